// Package output renders CLI results as tables, JSON or Markdown.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/ecoguard/ecoguard/internal/core/ratelimit"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ValidationReport is the outcome of checking one payload offline.
type ValidationReport struct {
	Kind       string   `json:"kind"`
	Source     string   `json:"source"`
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// RecordView is a rate limit record as shown to operators.
type RecordView struct {
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	ResetAt   time.Time `json:"window_reset_at"`
	Expired   bool      `json:"expired"`
	ResetsIn  string    `json:"resets_in"`
	ResetUnix int64     `json:"reset_unix"`
}

// Formatter renders CLI results.
type Formatter interface {
	FormatRecords(records []RecordView) (string, error)
	FormatValidation(report ValidationReport) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// Extension is the file suffix used when a report is written to --out-dir.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// RecordViews converts stored records for display at now.
func RecordViews(records []ratelimit.Record, now time.Time) []RecordView {
	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		view := RecordView{
			Key:       rec.Key,
			Count:     rec.Count,
			ResetAt:   rec.WindowResetAt.UTC(),
			Expired:   rec.Expired(now),
			ResetUnix: rec.WindowResetAt.Unix(),
		}
		if view.Expired {
			view.ResetsIn = "expired"
		} else {
			view.ResetsIn = rec.WindowResetAt.Sub(now).Round(time.Second).String()
		}
		views = append(views, view)
	}
	return views
}

func verdict(valid bool) string {
	if valid {
		return "valid"
	}
	return "invalid"
}
