// Package currency reads and prints the Brazilian real amounts that appear
// on statements under review.
package currency

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Symbol is the Brazilian real sign.
const Symbol = "R$"

// Cents is an amount in hundredths of a real.
type Cents int64

// Float returns the amount in reais.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// Parse reads a value as printed on a statement: "R$ 1.234,56", "-50,00",
// "- 12,30" or a plain "45.9". Thousands separators are dots and the
// decimal separator is a comma; a string without a comma may use a dot as
// the decimal separator when it is followed by one or two digits.
func Parse(s string) (Cents, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, Symbol)
	raw = strings.ReplaceAll(raw, " ", "")
	raw = strings.ReplaceAll(raw, "\u00a0", "")
	if raw == "" {
		return 0, fmt.Errorf("empty amount %q", s)
	}

	negative := false
	switch {
	case strings.HasPrefix(raw, "-"):
		negative = true
		raw = raw[1:]
	case strings.HasSuffix(raw, "-"):
		// some issuers print credits as "50,00-"
		negative = true
		raw = raw[:len(raw)-1]
	}
	raw = strings.TrimPrefix(raw, Symbol)

	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	} else if !dotIsDecimal(raw) {
		raw = strings.ReplaceAll(raw, ".", "")
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	cents := Cents(math.Round(f * 100))
	if negative {
		cents = -cents
	}
	return cents, nil
}

// dotIsDecimal reports whether a comma-free amount uses its single dot as
// a decimal point ("45.9") rather than a thousands separator ("1.234").
func dotIsDecimal(raw string) bool {
	i := strings.LastIndex(raw, ".")
	return i >= 0 && strings.Count(raw, ".") == 1 && len(raw)-i-1 <= 2
}

// Sum adds up values, counting unreadable ones as zero. It also returns
// how many values could not be read.
func Sum(values []string) (Cents, int) {
	var total Cents
	skipped := 0
	for _, v := range values {
		c, err := Parse(v)
		if err != nil {
			skipped++
			continue
		}
		total += c
	}
	return total, skipped
}

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Format prints an amount the way the review screen shows it, e.g.
// "R$ 1.234,56".
func Format(c Cents) string {
	return printer.Sprintf("%s %v", Symbol, number.Decimal(c.Float(), number.Scale(2)))
}
