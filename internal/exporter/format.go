package exporter

import (
	"math"
	"strconv"
	"strings"
)

// FormatRounded rounds f to digits decimal places and prints it the
// shortest way, always with a decimal point: 45 -> "45.0", 0.01234 at four
// digits -> "0.0123".
func FormatRounded(f float64, digits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	scale := math.Pow(10, float64(digits))
	r := math.Round(f*scale) / scale
	if r == 0 {
		r = 0 // drop negative zero
	}

	s := strconv.FormatFloat(r, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatFloat prints f at full precision, the way the text reports do
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
