package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if digits, neg := strings.CutPrefix(s, "-"); neg {
		return "-" + groupThousands(digits)
	}
	return groupThousands(s)
}

// Placeholder is shown for values that cannot be formatted.
const Placeholder = "--"

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// groupThousands inserts commas into a string of digits.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	start := len(digits) % 3
	if start > 0 {
		b.WriteString(digits[:start])
	}
	for i := start; i < len(digits); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatPrice formats a price as $X.XX with thousands separators.
// Non-finite values render as Placeholder.
func FormatPrice(p float64) string {
	if !finite(p) {
		return Placeholder
	}
	d := decimal.NewFromFloat(p).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

// FormatChange formats a price change with an explicit sign: "+1.25" or
// "-0.40". The sign follows c itself, so -0.001 renders as "-0.00" and
// matches a down trend. Zero renders as "+0.00", non-finite values as
// Placeholder.
func FormatChange(c float64) string {
	if !finite(c) {
		return Placeholder
	}
	abs := decimal.NewFromFloat(math.Abs(c)).StringFixed(2)
	if c < 0 {
		return "-" + abs
	}
	return "+" + abs
}

// FormatPercent formats a percentage with an explicit sign: "+1.25%".
func FormatPercent(p float64) string {
	if !finite(p) {
		return Placeholder
	}
	return FormatChange(p) + "%"
}

// FormatClock formats a quote timestamp as HH:MM in local time.
func FormatClock(ts time.Time) string {
	return ts.Local().Format("15:04")
}
