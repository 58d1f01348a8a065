package gocp

const (

	// DefaultMaxDepth bounds formula nesting for parsing, combining and expanding.
	// Each chained atom is one level, so this also bounds the longest chain.
	DefaultMaxDepth = 4096

	// FullTurn is the number of degrees in a full rotation.
	FullTurn = 360.0
)

// Align says where a Box sits relative to the text baseline.
type Align byte

const (
	AlignBase Align = iota
	AlignSub
	AlignSup
)

func (a Align) String() string {
	switch a {
	case AlignSub:
		return "sub"
	case AlignSup:
		return "sup"
	}
	return "base"
}

// Box is one typeset run of a Group label.
type Box struct {
	Text         string
	Width        float64
	Align        Align
	Collapsed    bool // drawn as a point, e.g. an implicit carbon
	NotDisplayed bool
}

// Side is the side of a double bond that carries the inner line.
type Side byte

const (
	SideNone Side = iota
	SideL
	SideR
)

// Mirror swaps left and right.
func (s Side) Mirror() Side {
	switch s {
	case SideL:
		return SideR
	case SideR:
		return SideL
	}
	return s
}

func (s Side) String() string {
	switch s {
	case SideL:
		return "L"
	case SideR:
		return "R"
	}
	return ""
}

// GroupAttrs are the validated attributes of a Group.
type GroupAttrs struct {
	Color string // "" denotes unset
	Bold  bool
	Ref   string // label this group is registered under; "" denotes none
}

// BondAttrs are the validated attributes of a Bond.
type BondAttrs struct {
	Color      string
	HighEnergy bool
	From       int      // coordination arrow source line (1..order); 0 denotes unset
	To         int      // coordination arrow target line (1..order); 0 denotes unset
	Length     *float64 // nil denotes the default length
	Side       Side
}

// Span is a half-open byte range [Start, End) of the original source text.
type Span struct {
	Start int
	End   int
}

// Group is a typeset atom or functional group label.
type Group struct {
	ID    int // stable index into the owning formula's group list
	Boxes []Box
	Attrs GroupAttrs
	Span  Span
}

// Width returns the aggregate width of all boxes.
func (g *Group) Width() float64 {
	w := 0.0
	for _, b := range g.Boxes {
		w += b.Width
	}
	return w
}

// Text returns the concatenated text of all boxes.
func (g *Group) Text() string {
	n := 0
	for _, b := range g.Boxes {
		n += len(b.Text)
	}
	buf := make([]byte, 0, n)
	for _, b := range g.Boxes {
		buf = append(buf, b.Text...)
	}
	return string(buf)
}

// IsPlaceholder reports if this group stands in for a revisited struct.
func (g *Group) IsPlaceholder() bool {
	return len(g.Boxes) == 1 && g.Boxes[0].NotDisplayed && g.Boxes[0].Text == ""
}

// NewPlaceholderGroup returns the empty, not displayed group used to break cycles.
func NewPlaceholderGroup(id int) *Group {
	return &Group{
		ID: id,
		Boxes: []Box{{
			Align:        AlignBase,
			NotDisplayed: true,
		}},
	}
}

// WidthFunc measures the width of a box's text.
type WidthFunc func(text string, align Align) float64

// ExpandedTree is a resolved node whose bonds each carry exactly one absolute direction.
type ExpandedTree struct {
	Group *Group
	Bonds []ExpandedBond
}

// ExpandedBond is an outgoing bond of an ExpandedTree.
type ExpandedBond struct {
	Order     int     // 1, 2, or 3
	Direction float64 // degrees in [0, 360), clockwise with y pointing down
	From      *Group
	Attrs     BondAttrs
	To        *ExpandedTree
}

// PrintOpts specifies what is printed by WriteTree.
type PrintOpts struct {
	Label  string // Prefix label
	Indent int    // spaces per level (0 denotes 4)
	Attrs  bool   // If set, bond and group attributes are printed
	Widths bool   // If set, group widths are printed
}

// DefaultPrintOpts is used when printing trees for humans.
var DefaultPrintOpts = PrintOpts{
	Indent: 4,
	Attrs:  true,
}
