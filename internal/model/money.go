package model

import (
	"fmt"
	"math"
	"strconv"
)

// ParsePaise converts decimal rupee string amounts to paise (int64).
// Use for API fields expressed in major units (e.g., "1200.00" = Rs 1200).
// Handles edge cases: empty strings, missing decimals, large values.
// Examples: "1200.00" → 120000, "49.50" → 4950, "" → 0
func ParsePaise(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative amounts correctly
	return int64(math.Round(f * 100))
}

// ParseMinorUnits converts string amounts already in paise to int64.
// Examples: "120000" → 120000, "" → 0
func ParseMinorUnits(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// FormatRupees renders a paise amount as a rupee string, e.g. 120050 → "₹1200.50".
func FormatRupees(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, paise/100, paise%100)
}
