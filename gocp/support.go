package gocp

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// angleEpsilon absorbs float drift from @-angles and repeated rotation.
const angleEpsilon = 1e-9

// Standardize reduces a degree value into [0, 360).
func Standardize(deg float64) float64 {
	d := math.Mod(math.Mod(deg, FullTurn)+FullTurn, FullTurn)
	if d < angleEpsilon || d > FullTurn-angleEpsilon {
		return 0
	}
	return d
}

// AnglesEqual reports if a and b denote the same direction modulo 360.
func AnglesEqual(a, b float64) bool {
	return Standardize(a-b) == 0
}

// ContainsAngle reports if dirs holds a direction equal to d modulo 360.
func ContainsAngle(dirs []float64, d float64) bool {
	for _, di := range dirs {
		if AnglesEqual(di, d) {
			return true
		}
	}
	return false
}

// DefaultWidth is the stock character width table: collapsed carbons are 0 wide, digits half
// wide, and each extra letter of a merged box adds 0.4.
func DefaultWidth(text string, align Align) float64 {
	if text == "." {
		return 0
	}
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	digits := true
	for _, r := range text {
		if r < '0' || r > '9' {
			digits = false
			break
		}
	}
	if digits {
		return 0.5 * float64(n)
	}
	return 1 + float64(n-1)*0.4
}

// FormatAngle prints a direction without a trailing ".0" for whole degrees.
func FormatAngle(deg float64) string {
	return strconv.FormatFloat(deg, 'f', -1, 64)
}

// WriteTree writes an indented, human readable dump of an ExpandedTree.
func WriteTree(out io.Writer, tree *ExpandedTree, opts PrintOpts) error {
	indent := opts.Indent
	if indent <= 0 {
		indent = 4
	}
	b := strings.Builder{}
	b.Grow(256)
	if len(opts.Label) > 0 {
		b.WriteString(opts.Label)
		b.WriteByte(' ')
	}
	writeNode(&b, tree, 0, indent, opts)
	_, err := io.WriteString(out, b.String())
	return err
}

func writeNode(b *strings.Builder, node *ExpandedTree, depth, indent int, opts PrintOpts) {
	writeGroup(b, node.Group, opts)
	b.WriteByte('\n')
	for _, bond := range node.Bonds {
		b.WriteString(strings.Repeat(" ", indent*(depth+1)))
		fmt.Fprintf(b, "%s%s ", strings.Repeat("-", bond.Order), FormatAngle(bond.Direction))
		if opts.Attrs {
			writeBondAttrs(b, &bond.Attrs)
		}
		writeNode(b, bond.To, depth+1, indent, opts)
	}
}

func writeGroup(b *strings.Builder, g *Group, opts PrintOpts) {
	if g.IsPlaceholder() {
		b.WriteString("[nd]")
		return
	}
	b.WriteString(g.Text())
	if opts.Widths {
		fmt.Fprintf(b, " w=%s", FormatAngle(g.Width()))
	}
	if !opts.Attrs {
		return
	}
	var attrs []string
	if g.Attrs.Ref != "" {
		attrs = append(attrs, "'"+g.Attrs.Ref)
	}
	if g.Attrs.Color != "" {
		attrs = append(attrs, "color:"+g.Attrs.Color)
	}
	if g.Attrs.Bold {
		attrs = append(attrs, "bold")
	}
	if len(attrs) > 0 {
		fmt.Fprintf(b, " {%s}", strings.Join(attrs, ","))
	}
}

func writeBondAttrs(b *strings.Builder, a *BondAttrs) {
	var attrs []string
	if a.Color != "" {
		attrs = append(attrs, "color:"+a.Color)
	}
	if a.HighEnergy {
		attrs = append(attrs, "HE")
	}
	if a.From > 0 {
		attrs = append(attrs, "from:"+strconv.Itoa(a.From))
	}
	if a.To > 0 {
		attrs = append(attrs, "to:"+strconv.Itoa(a.To))
	}
	if a.Length != nil {
		attrs = append(attrs, "length:"+FormatAngle(*a.Length))
	}
	if a.Side != SideNone {
		attrs = append(attrs, "side:"+a.Side.String())
	}
	if len(attrs) > 0 {
		fmt.Fprintf(b, "{%s} ", strings.Join(attrs, ","))
	}
}
