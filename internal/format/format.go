// Package format renders amounts, weights and rates for display.
package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency formats amount with two decimals and the symbol for currency.
// Example: Currency(decimal.RequireFromString("1234.5"), "VES") => "Bs. 1,234.50"
func Currency(amount decimal.Decimal, currency string) string {
	neg := amount.IsNegative()
	body := Amount(amount.Abs())
	sign := ""
	if neg {
		sign = "-"
	}
	switch strings.ToUpper(currency) {
	case "VES", "VED", "BS":
		return sign + "Bs. " + body
	case "USD":
		return sign + "$" + body
	case "EUR":
		return sign + "€" + body
	default:
		return sign + strings.ToUpper(currency) + " " + body
	}
}

// Amount renders amount with two decimals and comma thousand separators.
func Amount(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	out := thousandSep(whole) + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// Rate renders an exchange rate with two decimals and no grouping.
func Rate(rate decimal.Decimal) string {
	return rate.StringFixed(2)
}

// Whole renders a whole number of notes, e.g. "3".
func Whole(amount decimal.Decimal) string {
	return amount.Floor().String()
}

// Weight renders a product weight in grams, e.g. "500g".
func Weight(grams float64) string {
	return strconv.FormatFloat(grams, 'f', -1, 64) + "g"
}

// TotalWeight switches to kilograms from 1000g, e.g. "1.25 kg".
func TotalWeight(grams float64) string {
	if grams < 1000 {
		return Weight(grams)
	}
	kg := decimal.NewFromFloat(grams).Div(decimal.NewFromInt(1000)).Round(2)
	return kg.String() + " kg"
}

func thousandSep(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
