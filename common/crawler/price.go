package crawler

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParsePrice normalizes listing price text such as "1 234 ₽" or "$1,234.56".
// The text must hold a single number surrounded by currency markers, letters
// or spaces. A minus sign before the number, a second group of digits, or
// text that is not a number at all yield 0.
func ParsePrice(text string) float64 {
	raw, ok := scanNumber(text)
	if !ok {
		return 0
	}

	number, ok := joinSpaceGroups(strings.TrimRight(raw, "., "))
	if !ok {
		return 0
	}
	number = normalizeSeparators(number)
	if number == "" {
		return 0
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return value
}

// scanNumber returns the single run of digits, separators and spaces in text,
// with digits folded to ASCII and every space folded to ' '.
func scanNumber(text string) (string, bool) {
	var b strings.Builder
	started, ended := false, false

	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			if ended {
				return "", false
			}
			started = true
			b.WriteRune('0' + rune(digitValue(r)))
		case !started && isMinus(r):
			return "", false
		case !started:
			// currency markers, letters and stray separators ahead of the number
		case ended:
		case r == '.' || r == ',':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			ended = true
		}
	}
	return b.String(), started
}

func isMinus(r rune) bool {
	switch r {
	case '-', '\u2012', '\u2013', '\u2212', '\uFE63', '\uFF0D':
		return true
	}
	return false
}

// digitValue returns the value of a Unicode decimal digit. Decimal digits are
// encoded in runs made of whole zero-to-nine blocks.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	start := r
	for unicode.IsDigit(start - 1) {
		start--
	}
	return int(r-start) % 10
}

// joinSpaceGroups removes space grouping ("1 234 567"). Every group after the
// first must open with exactly three digits, otherwise the spaces separate
// two different numbers.
func joinSpaceGroups(s string) (string, bool) {
	groups := strings.Fields(s)
	if len(groups) == 0 {
		return "", false
	}
	for _, g := range groups[1:] {
		digits := strings.IndexAny(g, ".,")
		if digits < 0 {
			digits = len(g)
		}
		if digits != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

// normalizeSeparators rewrites s so that only an optional '.' decimal point remains.
//
//	both '.' and ','   -> the right-most one is the decimal point
//	one kind, repeated -> thousands grouping
//	one kind, once     -> grouping when exactly three digits follow, decimal otherwise
func normalizeSeparators(s string) string {
	s = strings.Trim(s, ".,")
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			return strings.ReplaceAll(s, ",", "")
		}
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case dots+commas == 0:
		return s
	}

	sep := "."
	count := dots
	if commas > 0 {
		sep = ","
		count = commas
	}

	if count > 1 {
		return strings.ReplaceAll(s, sep, "")
	}

	idx := strings.Index(s, sep)
	intPart, fracPart := s[:idx], s[idx+1:]
	if len(fracPart) == 3 && intPart != "0" {
		return intPart + fracPart
	}
	return intPart + "." + fracPart
}
