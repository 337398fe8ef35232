package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// All settlement amounts are stored as minor-unit integers (cents). Major-unit
// decimals exist only at presentation and rule-evaluation boundaries.

const minorUnitExponent = 2

var minorUnitFactor = decimal.New(1, minorUnitExponent)

// ToMinor parses a major-unit decimal string into minor units. Invalid or
// empty input yields zero; strict rejection of bad input belongs to DTO
// validation, not to the arithmetic primitive.
func ToMinor(value string) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0
	}

	return RoundMajor(d)
}

// ToMinorFloat converts a major-unit float into minor units, rounding half
// away from zero.
func ToMinorFloat(value float64) int64 {
	return RoundMajor(decimal.NewFromFloat(value))
}

// ToMajor converts minor units into an exact major-unit decimal.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExponent)
}

// RoundMajor converts a major-unit decimal into minor units, rounding half
// away from zero exactly once.
func RoundMajor(major decimal.Decimal) int64 {
	return major.Mul(minorUnitFactor).Round(0).IntPart()
}

// MultiplyRate applies a real-valued rate to a minor-unit amount and rounds
// the result back to minor units, half away from zero.
func MultiplyRate(minor int64, rate float64) int64 {
	return decimal.New(minor, 0).Mul(decimal.NewFromFloat(rate)).Round(0).IntPart()
}

// Sum adds minor-unit amounts exactly.
func Sum(values ...int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}

// FormatMajor renders a minor-unit amount as a fixed two-decimal string for
// documents and API payloads.
func FormatMajor(minor int64) string {
	return ToMajor(minor).StringFixed(2)
}
