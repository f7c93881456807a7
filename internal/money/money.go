// ABOUTME: Exact money parsing and display formatting
// ABOUTME: Formats decimals with grouping and a currency symbol, e.g. $5,000.00

package money

import (
	"errors"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when text does not parse as a number
var ErrInvalidAmount = errors.New("invalid amount")

var symbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// Format renders amount with two decimals, thousands grouping, and the
// currency symbol. Unknown currencies are prefixed with their code.
func Format(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	grouped := humanize.Comma(decimal.RequireFromString(whole).IntPart())

	prefix, ok := symbols[currency]
	if !ok && currency != "" {
		prefix = currency + " "
	}
	return sign + prefix + grouped + "." + frac
}

// ParseAmount parses user-entered text such as "25", "1,000.50", or "$12".
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FitsCents reports whether d has no more than two significant decimal places.
func FitsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
