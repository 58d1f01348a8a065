package formula

const (
	IdentifierCharset = "abcdefghijklmnopqrstuvwxyz" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
		"0123456789"

	GroupCharset = IdentifierCharset +
		"()" +
		"?" + // wildcard
		"." // collapsed carbon

	AlignCharset = "^_`"

	BondModifierCharset = "*!~:"
	BondCountCharset    = "=#"
	BondDirCharset      = "-|/\\+@"
	BondCharset         = BondModifierCharset + BondCountCharset + BondDirCharset

	AngleModifierCharset = "!|-_"
)

// BondCountTable maps a count character to a bond order.
var BondCountTable = map[rune]int{
	'=': 2,
	'#': 3,
}

// BondDirTable maps a direction character to raw directions.
//
// The y-axis points down, so angles grow clockwise.
var BondDirTable = map[rune][]float64{
	'-':  {0},
	'/':  {300},
	'|':  {270},
	'\\': {60},
	'+':  {0, 90, 180, 270},
}

func in(ch rune, charset string) bool {
	if ch == 0 {
		return false
	}
	for _, c := range charset {
		if c == ch {
			return true
		}
	}
	return false
}

func isIdentChar(ch rune) bool { return in(ch, IdentifierCharset) || ch == '_' }
func isGroupChar(ch rune) bool { return in(ch, GroupCharset) }
func isAlignChar(ch rune) bool { return in(ch, AlignCharset) }
func isBondChar(ch rune) bool { return in(ch, BondCharset) }
func isBondDirChar(ch rune) bool { return in(ch, BondDirCharset) }

func isStructStart(ch rune) bool {
	return ch == '$' || ch == '&' || isGroupChar(ch) || isAlignChar(ch)
}

func isUpper(ch rune) bool { return ch >= 'A' && ch <= 'Z' }
func isLower(ch rune) bool { return ch >= 'a' && ch <= 'z' }
func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
func isLetter(ch rune) bool { return isUpper(ch) || isLower(ch) }
