package transform

import (
	"math"
	"strconv"
	"strings"
)

// ParseDecimal parses a number that may be written with Brazilian locale separators.
//
// A value containing a comma is treated as locale formatted: periods are thousands
// separators and the comma is the decimal separator. Anything else is parsed as a
// plain float. Empty or unparsable input returns ok=false.
func ParseDecimal(value string) (float64, bool) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0, false
	}
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// DecimalPtr is ParseDecimal returning nil for null values.
func DecimalPtr(value string) *float64 {
	v, ok := ParseDecimal(value)
	if !ok {
		return nil
	}
	return &v
}

// CountPtr parses a shareholder count: null becomes 0, negatives are clamped to 0
// and fractional values are rounded.
func CountPtr(value string) *int64 {
	var n int64
	if v, ok := ParseDecimal(value); ok && v > 0 {
		n = int64(math.Round(v))
	}
	return &n
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
