package checkout

import (
	"math"
	"strconv"
	"strings"
)

// FormatAmount renders a money amount with exactly two decimals.
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// FormatUSD renders an amount in dollars, e.g. "$1,234.50".
func FormatUSD(v float64) string {
	return "$" + groupThousands(FormatAmount(v), ",", ".")
}

// FormatBs renders an amount in bolívares, e.g. "Bs. 1.234,50".
func FormatBs(v float64) string {
	return "Bs. " + groupThousands(FormatAmount(v), ".", ",")
}

// NormalizeDiscountCode trims and upper-cases a discount code.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func groupThousands(amount, sep, decimal string) string {
	neg := strings.HasPrefix(amount, "-")
	amount = strings.TrimPrefix(amount, "-")

	intPart, frac := amount, ""
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		intPart, frac = amount[:i], amount[i+1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString(decimal)
		b.WriteString(frac)
	}
	return b.String()
}
