package formula

import (
	"strconv"

	"github.com/2x3systems/cuiping/gocp"
)

// scanNumber matches a signed decimal literal (`-12`, `+3.5`, `.5`) at text[from:].
// Returns the number of runes matched, or 0 if there is no literal there.
func scanNumber(text []rune, from int) int {
	i := from
	if i < len(text) && (text[i] == '-' || text[i] == '+') {
		i++
	}
	digits := 0
	for i < len(text) && isDigit(text[i]) {
		i++
		digits++
	}
	if i < len(text) && text[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(text) && isDigit(text[j]) {
			j++
			frac++
		}
		if frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}
	return i - from
}

// ParseNumber parses a complete decimal literal.
func ParseNumber(s string) (float64, bool) {
	text := []rune(s)
	n := scanNumber(text, 0)
	if n == 0 || n != len(text) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseInteger parses a complete, optionally signed, integer literal.
func ParseInteger(s string) (int, bool) {
	if len(s) == 0 {
		return 0, false
	}
	for i, r := range s {
		if !isDigit(r) && !(i == 0 && (r == '-' || r == '+') && len(s) > 1) {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// scanAngle parses the numeric part of an `@` direction, returning the matched value.
func (p *parser) scanAngle() (float64, error) {
	n := scanNumber(p.text, p.index)
	if n == 0 {
		return 0, p.expect(gocp.ExpectNumber, "bond angle")
	}
	lit := string(p.text[p.index : p.index+n])
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, p.expect(gocp.ExpectNumber, "bond angle")
	}
	p.index += n
	return v, nil
}
