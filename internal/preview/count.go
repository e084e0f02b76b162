package preview

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var suffixMultipliers = map[rune]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

// ParseSubscriberCount converts a counter such as "1234", "2.5K" or "3M" into an
// integer. A trailing K/M/B (any case) scales the leading number, and the result
// is truncated. Any other trailing character, multi-byte ones included, scales
// by one, so "7X" and "7€" are 7.
func ParseSubscriberCount(s string) (int64, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if s != "" && isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid subscriber count %q: %w", s, err)
		}
		return n, nil
	}

	suffix, size := utf8.DecodeLastRuneInString(s)
	numeric := s[:len(s)-size]
	if numeric == "" {
		return 0, fmt.Errorf("invalid subscriber count %q", s)
	}

	number, err := strconv.ParseFloat(numeric, 64)
	if err != nil || number < 0 || math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, fmt.Errorf("invalid subscriber count %q", s)
	}

	multiplier, ok := suffixMultipliers[unicode.ToUpper(suffix)]
	if !ok {
		multiplier = 1
	}

	// The epsilon absorbs binary float error such as 0.29*1e6 = 289999.99...
	return int64(math.Trunc(number*multiplier + 1e-6)), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
