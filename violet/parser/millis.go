package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MillisSuffix is the unit suffix LatencyTracker appends to execution times.
const MillisSuffix = "ms"

// ParseMillis parses an execution time such as "12.5ms" into an exact decimal.
func ParseMillis(s string) (decimal.Decimal, error) {
	v, ok := strings.CutSuffix(s, MillisSuffix)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("execution time %q lacks %q suffix", s, MillisSuffix)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("execution time %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("execution time %q is negative", s)
	}
	return d, nil
}

// FormatMillis renders an execution time the way LatencyTracker prints it.
func FormatMillis(d decimal.Decimal) string {
	return d.String() + MillisSuffix
}
