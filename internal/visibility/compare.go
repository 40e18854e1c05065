package visibility

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// numericPrefix matches the longest leading decimal literal, exponent optional.
var numericPrefix = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)

// Collators keep scratch buffers and are not safe for concurrent use.
var collators = sync.Pool{
	New: func() any { return collate.New(language.Und) },
}

// compareValues orders a against b. When both sides parse as numbers the result is
// their difference; otherwise it falls back to collation order of the raw strings.
// The sign of the result is what callers test, and a NaN difference (Infinity
// against Infinity) fails every ordering operator.
func compareValues(a, b string) float64 {
	x, okA := parseLeadingNumber(a)
	y, okB := parseLeadingNumber(b)
	if okA && okB {
		return x - y
	}
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return float64(c.CompareString(a, b))
}

// ParseNumber reads a number the same way ordering conditions do. Form field
// normalization uses it so that stored values agree with later comparisons.
func ParseNumber(s string) (float64, bool) {
	return parseLeadingNumber(s)
}

// parseLeadingNumber reads a number from the start of s, ignoring leading
// whitespace and any trailing garbage: "20abc" is 20, "abc" is not a number.
func parseLeadingNumber(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
	if s == "" {
		return 0, false
	}

	sign := 1.0
	rest := s
	switch rest[0] {
	case '+':
		rest = rest[1:]
	case '-':
		sign = -1
		rest = rest[1:]
	}
	if strings.HasPrefix(rest, "Infinity") {
		return math.Inf(int(sign)), true
	}

	lit := numericPrefix.FindString(s)
	if lit == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		// Out-of-range literals still carry a usable +/-Inf or 0.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// splitList splits a comma-separated literal and trims each token. Empty tokens
// are kept: "A,,B" yields an empty member that matches an empty field value.
func splitList(literal string) []string {
	parts := strings.Split(literal, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
