// Package units converts ingredient amounts between metric and
// imperial for display. Conversion is presentation-only: stored
// amounts always stay in the recipe's native units.
package units

import (
	"fmt"
	"math"
	"strings"

	"github.com/mirepoix/souschef/internal/domain"
)

// ParseSystem maps a tool-surface string to a unit system.
func ParseSystem(s string) (domain.UnitSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric":
		return domain.UnitsMetric, nil
	case "imperial", "us":
		return domain.UnitsImperial, nil
	default:
		return domain.UnitsMetric, fmt.Errorf("unknown unit system %q", s)
	}
}

// conversion describes one metric unit and its imperial counterpart.
type conversion struct {
	metric   string
	imperial string
	factor   float64 // imperial = metric * factor
}

// Count-style units ("pieces", "cloves") have no entry and pass
// through untouched.
var conversions = []conversion{
	{"g", "oz", 0.03527},
	{"kg", "lb", 2.20462},
	{"ml", "fl oz", 0.033814},
	{"l", "qt", 1.05669},
	{"cm", "in", 0.393701},
}

// Convert renders an amount/unit pair in the target system. Unknown
// units are returned unchanged, so count-style and descriptive units
// survive a switch without damage.
func Convert(amount float64, unit string, to domain.UnitSystem) (float64, string) {
	u := strings.ToLower(strings.TrimSpace(unit))
	for _, c := range conversions {
		switch {
		case u == c.metric && to == domain.UnitsImperial:
			return roundAmount(amount * c.factor), c.imperial
		case u == c.imperial && to == domain.UnitsMetric:
			return roundAmount(amount / c.factor), c.metric
		}
	}
	return amount, unit
}

// Format renders an amount with trailing zeros trimmed ("2", "2.5",
// "0.25").
func Format(amount float64) string {
	s := fmt.Sprintf("%.2f", amount)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// roundAmount keeps two decimals.
func roundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
