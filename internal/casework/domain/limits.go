package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Storage bounds. Amounts are kept to the cent.
const (
	MaxAmount             = 9_999_999_999.99
	MaxHouseholdSize      = 99
	MaxProtocolWeek       = 520
	MaxSurveillanceMonths = 240
)

// checkAmount reports what is wrong with a money figure, or "" when it is
// acceptable. positive excludes zero.
func checkAmount(v float64, positive bool) string {
	switch {
	case math.IsNaN(v):
		return "must be a number"
	case positive && v <= 0:
		return "must be greater than zero"
	case v < 0:
		return "must not be negative"
	case v > MaxAmount:
		return fmt.Sprintf("must be at most %.2f", MaxAmount)
	case !centScale(v):
		return "must have at most 2 decimal places"
	}
	return ""
}

// centScale reports whether v has no digits past the cent in its shortest
// decimal form.
func centScale(v float64) bool {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	return dot < 0 || len(s)-dot-1 <= 2
}

func (f fieldErrors) amount(field string, v float64, positive bool) {
	if problem := checkAmount(v, positive); problem != "" {
		f.add(field, problem)
	}
}

func (f fieldErrors) between(field string, v, lo, hi int) {
	if v < lo || v > hi {
		f.add(field, fmt.Sprintf("must be between %d and %d", lo, hi))
	}
}
