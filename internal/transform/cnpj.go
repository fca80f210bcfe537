// Package transform normalizes identifiers, dates and numbers found in CVM and B3 files.
package transform

import (
	"strings"

	"go.uber.org/zap"
)

// CNPJLength is the number of digits in a normalized CNPJ.
const CNPJLength = 14

// NormalizeCNPJ strips every non-digit character from a CNPJ.
// Values that do not end up with exactly 14 digits are logged but still returned.
func NormalizeCNPJ(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(CNPJLength)
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if !IsValidCNPJ(digits) {
		zap.L().Warn("unexpected CNPJ format", zap.String("cnpj", value))
	}
	return digits
}

// IsValidCNPJ reports whether value is already a normalized 14-digit CNPJ.
func IsValidCNPJ(value string) bool {
	if len(value) != CNPJLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

// CNPJSet normalizes a list of identifiers into a lookup set, skipping empty results.
func CNPJSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if n := NormalizeCNPJ(v); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
