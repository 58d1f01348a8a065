package formula

import (
	"github.com/2x3systems/cuiping/gocp"
)

// StructID is an index into a Formula's struct arena.
type StructID int32

// NilStruct denotes no struct.
const NilStruct StructID = -1

// EdgeID identifies one physical bond; a Bond and its Twin share the same EdgeID.
type EdgeID int32

// StructKind says which variant a Struct holds.
type StructKind byte

const (
	Chem StructKind = iota
	Ref
	Macro
)

func (k StructKind) String() string {
	switch k {
	case Ref:
		return "ref"
	case Macro:
		return "macro"
	}
	return "chem"
}

// Struct is a graph node: a chemical group, a by-name reference, or a macro call.
//
// Identity is the StructID, never the label.
type Struct struct {
	ID       StructID
	Kind     StructKind
	Group    *gocp.Group // Kind == Chem
	RefNames []string    // Kind == Ref; ordered candidates
	Call     *MacroCall  // Kind == Macro
	Children []*Bond     // edges written forward in source
	Parents  []*Bond     // implied backward edges
}

// Bond is one side of a link between two structs.
//
// A child bond lives in its source's Children and points at the child; its Twin lives in the
// child's Parents, points back, and carries each direction turned by 180 degrees.
type Bond struct {
	Edge   EdgeID
	Order  int       // 1, 2, or 3
	Dirs   []float64 // empty only while deferred (':' modifier) until Combine resolves it
	Attrs  gocp.BondAttrs
	Target StructID
	Twin   *Bond
}

// Deferred reports if this bond's directions come from a registered default direction.
func (b *Bond) Deferred() bool {
	return len(b.Dirs) == 0
}

// MacroCall is a `$Name{...}` struct head.
type MacroCall struct {
	Name   string
	Def    *MacroDef
	Attrs  AttrValues // validated against Def.Params merged with the generic call attributes
	Prefix string     // explicit `ref` attribute; "" if none
	Deg    float64    // counter-clockwise rotation from the `deg` attribute
	Pos    int
}

// Formula is the parser's output: ordered roots over an arena of structs.
type Formula struct {
	Source   string
	Roots    []StructID
	Groups   []*gocp.Group
	Structs  []*Struct
	Labels   map[string]StructID
	Defaults map[StructID]float64 // default directions registered by macro expansion

	edgeCount EdgeID
}

// NewFormula returns an empty Formula for the given source.
func NewFormula(src string) *Formula {
	return &Formula{
		Source:   src,
		Labels:   make(map[string]StructID),
		Defaults: make(map[StructID]float64),
	}
}

// Struct returns the struct with the given ID.
func (f *Formula) Struct(id StructID) *Struct {
	return f.Structs[id]
}

// NewStruct appends a new struct of the given kind to the arena.
func (f *Formula) NewStruct(kind StructKind) *Struct {
	s := &Struct{
		ID:   StructID(len(f.Structs)),
		Kind: kind,
	}
	f.Structs = append(f.Structs, s)
	return s
}

// NewChem appends a new chemical struct holding a copy of the given group, which receives a new group ID.
func (f *Formula) NewChem(g gocp.Group) *Struct {
	g.ID = len(f.Groups)
	grp := &g
	f.Groups = append(f.Groups, grp)
	s := f.NewStruct(Chem)
	s.Group = grp
	return s
}

// Link bonds parent to child, appending the child bond to parent.Children and its twin to child.Parents.
func (f *Formula) Link(parent, child StructID, order int, dirs []float64, attrs gocp.BondAttrs) *Bond {
	edge := f.edgeCount
	f.edgeCount++

	back := make([]float64, len(dirs))
	for i, d := range dirs {
		back[i] = gocp.Standardize(d + 180)
	}

	fwd := &Bond{
		Edge:   edge,
		Order:  order,
		Dirs:   dirs,
		Attrs:  attrs,
		Target: child,
	}
	rev := &Bond{
		Edge:   edge,
		Order:  order,
		Dirs:   back,
		Attrs:  attrs,
		Target: parent,
		Twin:   fwd,
	}
	fwd.Twin = rev

	p := f.Structs[parent]
	c := f.Structs[child]
	p.Children = append(p.Children, fwd)
	c.Parents = append(c.Parents, rev)
	return fwd
}

// EdgeCount returns the number of bonds linked so far.
func (f *Formula) EdgeCount() int {
	return int(f.edgeCount)
}

// SetDirs assigns the directions of a deferred bond and its twin.
func (b *Bond) SetDirs(dirs []float64) {
	b.Dirs = dirs
	back := make([]float64, len(dirs))
	for i, d := range dirs {
		back[i] = gocp.Standardize(d + 180)
	}
	b.Twin.Dirs = back
}

// MacroKind says what a macro expands to.
type MacroKind byte

const (
	MacroChem MacroKind = iota
	MacroAttr
)

func (k MacroKind) String() string {
	if k == MacroAttr {
		return "attr"
	}
	return "chem"
}

// MacroDef is an immutable, named structure template shared by every call site.
type MacroDef struct {
	Name       string
	Kind       MacroKind
	Params     AttrSchema // attributes declared by the macro itself
	Proto      *Template
	Exposed    []ExposedLabel
	DefaultIn  string
	DefaultOut string
}

// ExposedLabel is a prototype label addressable from outside a call as prefix+Name.
type ExposedLabel struct {
	Name string
	Dir  *float64 // default direction, nil if none
}

// Template is a rooted tree of prototype nodes addressed by index; node 0 is the root.
type Template struct {
	Nodes  []TemplateNode
	Labels map[string]int
}

// TemplateNode is one prototype node.
type TemplateNode struct {
	Group *gocp.Group
	Bonds []TemplateBond
}

// TemplateBond is an outgoing prototype bond.
type TemplateBond struct {
	Order int
	Dirs  []float64
	Attrs gocp.BondAttrs
	To    int
}

// MacroTable resolves macro names for the parser.
type MacroTable interface {
	LookupMacro(name string) (*MacroDef, bool)
}

// Options configures Parse.
type Options struct {
	Macros   MacroTable     // nil denotes no macros
	Width    gocp.WidthFunc // nil denotes gocp.DefaultWidth
	MaxDepth int            // <= 0 denotes gocp.DefaultMaxDepth
}

// Parse parses a formula into a Formula.
func Parse(src string, opts Options) (*Formula, error) {
	p, err := newParser(src, opts)
	if err != nil {
		return nil, err
	}
	return p.parse()
}
