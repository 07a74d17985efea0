package validate

import "fmt"

// TextField is a string field kept in cleaned form. Its bounds apply to the
// cleaned value: stripping markup cannot empty a required field and escaping
// cannot push a stored value past its limit.
type TextField struct {
	Name     string
	Min, Max int
	Clean    func(string) string
}

// Stored text fields of the API payloads.
var (
	AlertTitle    = TextField{"title", AlertTitleMin, AlertTitleMax, SanitizeRichText}
	AlertMessage  = TextField{"message", AlertMessageMin, AlertMessageMax, SanitizeRichText}
	AlertLocation = TextField{"location", 0, LocationMax, SanitizeInput}

	ReadingLocation = TextField{"location", 0, LocationMax, SanitizeInput}
	ReadingSensorID = TextField{"sensor_id", 0, SensorIDMax, SanitizeInput}
)

// AlertTextFields and SensorTextFields list the cleaned fields per payload.
var (
	AlertTextFields  = []TextField{AlertTitle, AlertMessage, AlertLocation}
	SensorTextFields = []TextField{ReadingSensorID, ReadingLocation}
)

// Read cleans the field from obj and appends a violation when the cleaned
// value is out of bounds. Absent or non-string values read as "".
func (f TextField) Read(obj map[string]any, violations *[]string) string {
	raw, _ := obj[f.Name].(string)
	cleaned := f.Clean(raw)
	if !HasValidLength(cleaned, f.Min, f.Max) {
		*violations = append(*violations, f.violation())
	}
	return cleaned
}

func (f TextField) violation() string {
	if f.Min == 0 {
		return fmt.Sprintf("%s must be at most %d characters once sanitized", f.Name, f.Max)
	}
	return fmt.Sprintf("%s must be between %d and %d characters once sanitized", f.Name, f.Min, f.Max)
}

// StoredTextViolations checks every field as it would be stored.
func StoredTextViolations(obj map[string]any, fields []TextField) []string {
	var violations []string
	for _, f := range fields {
		f.Read(obj, &violations)
	}
	return violations
}
