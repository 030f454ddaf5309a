package membership

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatDollars renders an amount as whole dollars with thousands separators,
// e.g. 25000 -> "$25,000". Halves round to even.
func FormatDollars(amount decimal.Decimal) string {
	s := amount.RoundBank(0).StringFixed(0)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 2)
	b.WriteString(sign)
	b.WriteByte('$')
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
