package validate

import (
	"encoding/json"
	"math"
)

// Range is an inclusive numeric bound.
type Range struct {
	Min float64
	Max float64
}

// SensorRanges bounds every field of a sensor reading.
var SensorRanges = map[string]Range{
	"aqi":         {Min: 0, Max: 500},
	"pm25":        {Min: 0, Max: 1000},
	"pm10":        {Min: 0, Max: 2000},
	"co2":         {Min: 0, Max: 10000},
	"temperature": {Min: -50, Max: 60},
	"humidity":    {Min: 0, Max: 100},
}

// Alert vocabularies.
var (
	AlertTypes      = []string{"air", "water", "noise", "general"}
	AlertSeverities = []string{"low", "moderate", "high", "critical"}
)

// Alert text bounds, in characters.
const (
	AlertTitleMin   = 5
	AlertTitleMax   = 100
	AlertMessageMin = 10
	AlertMessageMax = 500
)

// Free-text bounds for optional descriptive fields, in characters.
const (
	LocationMax = 200
	SensorIDMax = 64
)

// IsValidSensorData requires every sensor field to be present, numeric and in range.
func IsValidSensorData(obj map[string]any) bool {
	if obj == nil {
		return false
	}
	for field, bounds := range SensorRanges {
		v, ok := number(obj[field])
		if !ok || !IsInRange(v, bounds.Min, bounds.Max) {
			return false
		}
	}
	return true
}

// IsValidAlertData checks the alert vocabulary and text lengths.
func IsValidAlertData(obj map[string]any) bool {
	if obj == nil {
		return false
	}

	kind, ok := obj["type"].(string)
	if !ok || !oneOf(kind, AlertTypes) {
		return false
	}
	severity, ok := obj["severity"].(string)
	if !ok || !oneOf(severity, AlertSeverities) {
		return false
	}
	title, ok := obj["title"].(string)
	if !ok || !HasValidLength(title, AlertTitleMin, AlertTitleMax) {
		return false
	}
	message, ok := obj["message"].(string)
	if !ok || !HasValidLength(message, AlertMessageMin, AlertMessageMax) {
		return false
	}
	return true
}

func oneOf(value string, allowed []string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}

// number converts decoded JSON numbers and Go numeric types to float64.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Number converts a decoded JSON number to float64.
func Number(v any) (float64, bool) {
	return number(v)
}
