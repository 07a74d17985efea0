package validate

import (
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"
)

// FieldType names the JSON type a field must decode to.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Rule describes the constraints for one field. Zero-valued fields are not
// checked; Min and Max are pointers because zero is a meaningful bound.
// Custom returns an error message, or "" when the value passes.
type Rule struct {
	Required  bool
	Type      FieldType
	MinLength int
	MaxLength int
	Min       *float64
	Max       *float64
	Custom    func(value any) string
}

// Rules maps field names to their rule.
type Rules map[string]Rule

// Float returns a pointer for use in Rule.Min and Rule.Max.
func Float(v float64) *float64 {
	return &v
}

// Validate checks data against rules and returns every violation. Fields are
// visited in name order so the result is stable. data is never modified.
func Validate(data map[string]any, rules Rules) []string {
	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	errs := []string{}
	for _, field := range fields {
		errs = append(errs, validateField(field, data[field], rules[field])...)
	}
	return errs
}

func validateField(field string, value any, rule Rule) []string {
	if isMissing(value) {
		if rule.Required {
			return []string{fmt.Sprintf("%s is required", field)}
		}
		return nil
	}

	if rule.Type != "" && !hasType(value, rule.Type) {
		return []string{fmt.Sprintf("%s must be of type %s", field, rule.Type)}
	}

	var errs []string
	if length, unit, ok := lengthOf(value); ok {
		if rule.MinLength > 0 && length < rule.MinLength {
			errs = append(errs, fmt.Sprintf("%s must be at least %d %s long", field, rule.MinLength, unit))
		}
		if rule.MaxLength > 0 && length > rule.MaxLength {
			errs = append(errs, fmt.Sprintf("%s must be no more than %d %s long", field, rule.MaxLength, unit))
		}
	}

	if n, ok := number(value); ok {
		if rule.Min != nil && n < *rule.Min {
			errs = append(errs, fmt.Sprintf("%s must be at least %s", field, formatNumber(*rule.Min)))
		}
		if rule.Max != nil && n > *rule.Max {
			errs = append(errs, fmt.Sprintf("%s must be no more than %s", field, formatNumber(*rule.Max)))
		}
	}

	if rule.Custom != nil {
		if msg := rule.Custom(value); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

func isMissing(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return IsBlank(s)
	}
	return false
}

func hasType(value any, want FieldType) bool {
	switch want {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		_, ok := number(value)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := value.([]any)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}

func lengthOf(value any) (int, string, bool) {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v), "characters", true
	case []any:
		return len(v), "items", true
	default:
		return 0, "", false
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// OneOf builds a Custom check that accepts only the listed strings.
func OneOf(field string, allowed []string) func(any) string {
	return func(value any) string {
		s, _ := value.(string)
		if oneOf(s, allowed) {
			return ""
		}
		return fmt.Sprintf("%s must be one of %v", field, allowed)
	}
}

// SensorRules mirrors IsValidSensorData with per-field messages.
func SensorRules() Rules {
	rules := Rules{
		"location":  {Type: TypeString, MaxLength: LocationMax},
		"sensor_id": {Type: TypeString, MaxLength: SensorIDMax},
	}
	for field, bounds := range SensorRanges {
		rules[field] = Rule{
			Required: true,
			Type:     TypeNumber,
			Min:      Float(bounds.Min),
			Max:      Float(bounds.Max),
		}
	}
	return rules
}

// AlertRules mirrors IsValidAlertData with per-field messages.
func AlertRules() Rules {
	return Rules{
		"type":     {Required: true, Type: TypeString, Custom: OneOf("type", AlertTypes)},
		"severity": {Required: true, Type: TypeString, Custom: OneOf("severity", AlertSeverities)},
		"title":    {Required: true, Type: TypeString, MinLength: AlertTitleMin, MaxLength: AlertTitleMax},
		"message":  {Required: true, Type: TypeString, MinLength: AlertMessageMin, MaxLength: AlertMessageMax},
		"location": {Type: TypeString, MaxLength: LocationMax},
	}
}

// CredentialRules checks an email and password pair.
func CredentialRules() Rules {
	return Rules{
		"email": {
			Required: true,
			Type:     TypeString,
			Custom: func(value any) string {
				if s, _ := value.(string); IsValidEmail(s) {
					return ""
				}
				return "email must be a valid email address"
			},
		},
		"password": {Required: true, Type: TypeString},
	}
}
