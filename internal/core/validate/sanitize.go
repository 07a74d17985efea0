package validate

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeRichText strips all markup from free text and trims the result.
// bluemonday escapes what it keeps, so the text is unescaped once before the
// final SanitizeInput pass to avoid double entities.
func SanitizeRichText(s string) string {
	stripped := html.UnescapeString(strictPolicy.Sanitize(s))
	return SanitizeInput(strings.TrimSpace(stripped))
}
