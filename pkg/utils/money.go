package utils

import (
	"fmt"
	"math"
)

// ToMinorUnits converts a dollar amount to integer cents, rounding to nearest.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts integer cents back to a dollar amount.
func FromMinorUnits(cents int64) float64 {
	return float64(cents) / 100
}

// FormatUSD formats a dollar amount with a sign and two decimal places.
func FormatUSD(amount float64) string {
	if amount < 0 {
		return fmt.Sprintf("-$%.2f", -amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}
