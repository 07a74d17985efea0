// Package validate holds pure input checks for the monitoring API payloads.
package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// passwordSymbols is the accepted special-character set for passwords.
const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// Password rule messages, reported in this order.
const (
	PasswordTooShort    = "Password must be at least 8 characters long"
	PasswordNoUppercase = "Password must contain at least one uppercase letter"
	PasswordNoLowercase = "Password must contain at least one lowercase letter"
	PasswordNoDigit     = "Password must contain at least one number"
	PasswordNoSymbol    = "Password must contain at least one special character"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 8

// PasswordResult lists every password rule that failed.
type PasswordResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// IsValidEmail reports whether s looks like local@domain.tld with no
// whitespace and a single @.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsStrongPassword evaluates every password rule and reports all violations.
func IsStrongPassword(s string) PasswordResult {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	errs := []string{}
	if utf8.RuneCountInString(s) < MinPasswordLength {
		errs = append(errs, PasswordTooShort)
	}
	if !hasUpper {
		errs = append(errs, PasswordNoUppercase)
	}
	if !hasLower {
		errs = append(errs, PasswordNoLowercase)
	}
	if !hasDigit {
		errs = append(errs, PasswordNoDigit)
	}
	if !hasSymbol {
		errs = append(errs, PasswordNoSymbol)
	}

	return PasswordResult{IsValid: len(errs) == 0, Errors: errs}
}

// IsInRange reports min <= v <= max.
func IsInRange(v, min, max float64) bool {
	return v >= min && v <= max
}

// HasValidLength reports whether the character count of s is within [min, max].
func HasValidLength(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// SanitizeInput escapes HTML-significant characters. Ampersands go first so
// the entities produced afterwards are not escaped twice.
func SanitizeInput(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "'", "&#x27;")
	return s
}

// IsBlank reports whether s holds only whitespace.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
