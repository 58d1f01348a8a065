package formula

import (
	"github.com/2x3systems/cuiping/gocp"
)

// bondType is a parsed bond before it is linked.
type bondType struct {
	order int
	dirs  []float64 // source to target; empty if deferred
	attrs gocp.BondAttrs
}

// pendingBond is a parsed bond and its parsed target, not yet linked to the source.
type pendingBond struct {
	bondType
	target StructID
}

type bondModifiers struct {
	zeroWidth  bool // '*'
	add180     bool // '!'
	infer      bool // '~'
	useDefault bool // ':'
}

func (m *bondModifiers) flag(ch rune) *bool {
	switch ch {
	case '*':
		return &m.zeroWidth
	case '!':
		return &m.add180
	case '~':
		return &m.infer
	case ':':
		return &m.useDefault
	}
	return nil
}

// inferDir picks the continuation direction of a broken line from the direction the chain came from.
func inferDir(add180 bool, dirFrom *float64) (float64, bool) {
	if dirFrom == nil {
		return 30, true
	}
	from := *dirFrom
	if add180 {
		switch {
		case gocp.AnglesEqual(from, 30):
			return 330, true
		case gocp.AnglesEqual(from, 330):
			return 30, true
		}
	} else {
		switch {
		case gocp.AnglesEqual(from, 210):
			return 330, true
		case gocp.AnglesEqual(from, 150):
			return 30, true
		}
	}
	return 0, false
}

// scanExplicitAngle parses `@deg` plus an optional angle modifier at the cursor (on '@').
func (p *parser) scanExplicitAngle() ([]float64, error) {
	p.advance() // Note: skip '@'
	v, err := p.scanAngle()
	if err != nil {
		return nil, err
	}
	d := -v
	switch p.current() {
	case '!':
		p.advance()
		return []float64{d, d + 180}, nil
	case '|':
		p.advance()
		return []float64{d, 180 - d}, nil
	case '-', '_':
		p.advance()
		return []float64{d, -d}, nil
	}
	return []float64{d}, nil
}

// parseBondType parses bond modifiers, count, directions and attributes.
//
// siblings are the bonds already linked from the same struct and dirFrom is the direction
// from that struct back to where the chain came from (nil if none); no produced direction may equal either.
func (p *parser) parseBondType(isPrefix bool, siblings []*Bond, dirFrom *float64) (bondType, error) {
	start := p.pos()

	var mods bondModifiers
	for in(p.current(), BondModifierCharset) {
		ch := p.current()
		flag := mods.flag(ch)
		if *flag {
			return bondType{}, p.errorf(gocp.ErrDupModifier, "Duplicated bond modifier '%c'", ch)
		}
		*flag = true
		p.advance()
	}

	bt := bondType{order: 1}
	if n, ok := BondCountTable[p.current()]; ok {
		bt.order = n
		p.advance()
	}

	if !mods.useDefault {
		var raws []float64
	dirs:
		for {
			ch := p.current()
			switch {
			case ch == '@':
				// Note: `@deg` stands alone and can't follow table directions
				if len(raws) > 0 {
					break dirs
				}
				ds, err := p.scanExplicitAngle()
				if err != nil {
					return bt, err
				}
				raws = append(raws, ds...)
				break dirs
			case isBondDirChar(ch):
				raws = append(raws, BondDirTable[ch]...)
				p.advance()
			case len(raws) > 0:
				break dirs
			case bt.order > 1 || mods.zeroWidth:
				raws = append(raws, 0)
				break dirs
			case mods.infer:
				// Note: inferDir accounts for '!' and its +180 is applied below
				d, ok := inferDir(mods.add180, dirFrom)
				if !ok {
					return bt, gocp.NewError(gocp.ErrCannotInferDir, start, "Cannot infer broken line direction from %s deg", gocp.FormatAngle(*dirFrom))
				}
				raws = append(raws, d)
				break dirs
			case mods.add180:
				raws = append(raws, 0)
				break dirs
			default:
				return bt, p.expect(gocp.ExpectBondDir, "")
			}
		}

		bt.dirs = make([]float64, 0, len(raws))
		for _, d := range raws {
			if mods.infer {
				if gocp.AnglesEqual(d, 60) {
					d = 30
				} else if gocp.AnglesEqual(d, 300) {
					d = 330
				}
			}
			if mods.add180 {
				d += 180
			}
			if !isPrefix {
				d += 180
			}
			d = gocp.Standardize(d)
			if gocp.ContainsAngle(bt.dirs, d) {
				d = gocp.Standardize(d + 180)
			}
			if isDupDir(bt.dirs, siblings, dirFrom, d) {
				return bt, gocp.NewError(gocp.ErrDupBondDir, start, "Duplicated bond direction (%s deg)", gocp.FormatAngle(d))
			}
			bt.dirs = append(bt.dirs, d)
		}
	}

	if p.current() == '{' {
		vals, err := p.parseAttrBlock(BondSchema, &AttrContext{BondOrder: bt.order}, "bond")
		if err != nil {
			return bt, err
		}
		bt.attrs = decodeBondAttrs(vals)
	}
	if mods.zeroWidth {
		zero := 0.0
		bt.attrs.Length = &zero
	}
	return bt, nil
}

func isDupDir(current []float64, siblings []*Bond, dirFrom *float64, d float64) bool {
	if gocp.ContainsAngle(current, d) {
		return true
	}
	for _, b := range siblings {
		if gocp.ContainsAngle(b.Dirs, d) {
			return true
		}
	}
	return dirFrom != nil && gocp.AnglesEqual(*dirFrom, d)
}

// parseBond parses one bond of a struct with its target: either a prefix bond followed by the
// target, or the target followed by a postfix bond.
//
// Inside a bracket list a prefix bond may end the element, in which case it ends at an implicit carbon.
func (p *parser) parseBond(siblings []*Bond, dirFrom *float64, inList bool) (*pendingBond, error) {
	ch := p.current()
	switch {
	case isBondChar(ch):
		bt, err := p.parseBondType(true, siblings, dirFrom)
		if err != nil {
			return nil, err
		}
		if inList && (p.current() == ',' || p.current() == ']') {
			return &pendingBond{bt, p.implicitCarbon()}, nil
		}
		var back *float64
		if len(bt.dirs) > 0 {
			d := gocp.Standardize(bt.dirs[0] + 180)
			back = &d
		}
		target, err := p.parseStruct(back, false)
		if err != nil {
			return nil, err
		}
		return &pendingBond{bt, target}, nil

	case isStructStart(ch):
		target, err := p.parseStruct(nil, true)
		if err != nil {
			return nil, err
		}
		bt, err := p.parseBondType(false, siblings, dirFrom)
		if err != nil {
			return nil, err
		}
		return &pendingBond{bt, target}, nil
	}
	return nil, p.expect(gocp.ExpectBond, "")
}

// parseBonds parses an optional bracketed bond list then an optional single bond, linking each to src.
func (p *parser) parseBonds(src StructID, dirFrom *float64) error {
	link := func(pb *pendingBond) {
		p.f.Link(src, pb.target, pb.order, pb.dirs, pb.attrs)
	}

	if p.current() == '[' {
		p.advance()
		p.lists++
		defer func() { p.lists-- }()
		for {
			pb, err := p.parseBond(p.f.Struct(src).Children, dirFrom, true)
			if err != nil {
				return err
			}
			link(pb)

			if p.current() == ']' {
				p.advance()
				break
			}
			if p.current() != ',' {
				return p.expect(gocp.ExpectDelimiter, "',' or ']'")
			}
			p.advance()
		}
	}

	if isBondChar(p.current()) {
		pb, err := tryParse(p, func() (*pendingBond, error) {
			return p.parseBond(p.f.Struct(src).Children, dirFrom, false)
		}).except(gocp.ExpectAtomGroup, nil)
		if err != nil {
			return err
		}
		if pb != nil {
			link(pb)
		}
	}
	return nil
}

// implicitCarbon adds the collapsed carbon a bare bond ends at.
func (p *parser) implicitCarbon() StructID {
	pos := p.pos()
	s := p.f.NewChem(gocp.Group{
		Boxes: []gocp.Box{{
			Text:      ".",
			Collapsed: true,
		}},
		Span: gocp.Span{Start: pos, End: pos},
	})
	return s.ID
}
