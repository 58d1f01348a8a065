package formula

import (
	"strings"

	"github.com/2x3systems/cuiping/gocp"
)

// parse parses `;`-separated statements, each a root struct.
func (p *parser) parse() (*Formula, error) {
	if p.atEnd() {
		return nil, p.expect(gocp.ExpectAtomGroup, "")
	}

	for {
		root, err := p.parseStruct(nil, false)
		if err != nil {
			return nil, err
		}
		p.f.Roots = append(p.f.Roots, root)

		if p.current() != ';' {
			break
		}
		p.advance()
		if p.atEnd() {
			break
		}
	}

	if !p.atEnd() {
		err := gocp.NewError(gocp.ErrTrailingInput, p.pos(), "Unexpected trailing characters '%s'", p.after())
		err.Expect = gocp.ExpectEnd
		return nil, err
	}
	return p.f, nil
}

// parseStruct parses a struct head (group, reference or macro call) followed by its bonds.
//
// postfix is set when a postfix bond must follow the struct.
func (p *parser) parseStruct(dirFrom *float64, postfix bool) (StructID, error) {
	if err := p.enter(); err != nil {
		return NilStruct, err
	}
	defer p.leave()

	var (
		id  StructID
		err error
	)
	switch p.current() {
	case '$':
		id, err = p.parseMacroCall()
	case '&':
		id, err = p.parseRef(p.lists > 0 && !postfix)
	default:
		var g *gocp.Group
		g, err = p.parseGroup()
		if err == nil {
			s := p.f.NewChem(*g)
			id = s.ID
			if ref := s.Group.Attrs.Ref; ref != "" {
				p.registerLabel(ref, id)
			}
		}
	}
	if err != nil {
		return NilStruct, err
	}

	if err = p.parseBonds(id, dirFrom); err != nil {
		return NilStruct, err
	}
	return id, nil
}

func (p *parser) parseIdentifier(what string) (string, error) {
	var name strings.Builder
	for isIdentChar(p.current()) {
		name.WriteRune(p.current())
		p.advance()
	}
	if name.Len() == 0 {
		return "", p.expect(gocp.ExpectIdentifier, what)
	}
	return name.String(), nil
}

// parseRef parses `&name1,name2,...` into a Ref struct.
//
// In a bracket list a name after ',' is only a candidate when ',' or ']' follows it;
// otherwise the ',' starts the next element, as in `[-&a,N-]`.
func (p *parser) parseRef(inList bool) (StructID, error) {
	p.advance() // Note: skip '&'

	var names []string
	for {
		name, err := p.parseIdentifier("reference name")
		if err != nil {
			return NilStruct, err
		}
		names = append(names, name)

		if p.current() != ',' || !isIdentChar(p.peek(1)) {
			break
		}
		if inList && !p.endsListItem(1) {
			break
		}
		p.advance()
	}

	s := p.f.NewStruct(Ref)
	s.RefNames = names
	return s.ID, nil
}

// parseMacroCall parses `$Name{attrs}` into a Macro struct.
func (p *parser) parseMacroCall() (StructID, error) {
	pos := p.pos()
	p.advance() // Note: skip '$'

	name, err := p.parseIdentifier("macro name")
	if err != nil {
		return NilStruct, err
	}

	var def *MacroDef
	if p.macros != nil {
		def, _ = p.macros.LookupMacro(name)
	}
	if def == nil {
		return NilStruct, gocp.NewError(gocp.ErrUnknownMacro, pos, "Unknown macro '%s'", name)
	}
	if def.Kind != MacroChem {
		return NilStruct, gocp.NewError(gocp.ErrNotChemMacro, pos, "Macro '%s' is of %v type, not chem", name, def.Kind)
	}

	call := &MacroCall{
		Name: name,
		Def:  def,
		Pos:  pos,
	}
	if p.current() == '{' {
		call.Attrs, err = p.parseAttrBlock(CallSchema.Merge(def.Params), &AttrContext{}, "macro")
		if err != nil {
			return NilStruct, err
		}
		if v, ok := call.Attrs["ref"]; ok {
			call.Prefix = v.Str
		}
		if v, ok := call.Attrs["deg"]; ok {
			call.Deg = v.Float
		}
	}

	s := p.f.NewStruct(Macro)
	s.Call = call
	return s.ID, nil
}

// endsListItem reports if the identifier at offset is followed by ',' or ']'.
func (p *parser) endsListItem(offset int) bool {
	for isIdentChar(p.peek(offset)) {
		offset++
	}
	ch := p.peek(offset)
	return ch == ',' || ch == ']'
}
