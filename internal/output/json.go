package output

import (
	"encoding/json"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatRecords renders rate limit records as a JSON array.
func (f *JSONFormatter) FormatRecords(records []RecordView) (string, error) {
	if records == nil {
		records = []RecordView{}
	}
	return f.marshal(records)
}

// FormatValidation renders a validation report as JSON.
func (f *JSONFormatter) FormatValidation(report ValidationReport) (string, error) {
	if report.Violations == nil {
		report.Violations = []string{}
	}
	return f.marshal(report)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
