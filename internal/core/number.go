// Package core holds the record types shared by every chart and the
// permissive number parsing applied to tabular input.
//
// Parsing deliberately mirrors the lenient browser behavior the datasets were
// authored against: the longest numeric prefix wins and anything without one
// becomes NaN. NaN is not filtered here; it flows into aggregates so that a
// broken cell is visible downstream instead of silently vanishing.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber converts s to a float the way a lenient parseFloat would.
//
// Leading whitespace is skipped, then the longest prefix matching
// [+-]digits[.digits][e[+-]digits] (or [+-]Infinity) is parsed. Returns NaN
// when no digits are found.
//
// Examples:
//
//	ParseNumber("12.5")     -> 12.5
//	ParseNumber(" 7e2 USD") -> 700
//	ParseNumber("1,234")    -> 1
//	ParseNumber("n/a")      -> NaN
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}

	i := 0
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	if strings.HasPrefix(s[i:], "Infinity") {
		if s[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits > 0 || frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return math.NaN()
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expDigits := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			expDigits++
		}
		if expDigits > 0 {
			i = j
		}
	}

	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		// Out of range values come back as ±Inf together with an error.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v
		}
		return math.NaN()
	}
	return v
}

// ParseInt converts s the way a lenient base-10 parseInt would: optional
// sign, then the leading run of digits. Returns NaN when there are none.
func ParseInt(s string) float64 {
	s = strings.TrimSpace(s)
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == start {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil {
		return math.NaN()
	}
	if neg {
		v = -v
	}
	return v
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
