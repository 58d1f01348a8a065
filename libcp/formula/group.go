package formula

import (
	"strings"

	"github.com/2x3systems/cuiping/gocp"
)

type boxToken struct {
	text     string
	align    gocp.Align
	explicit bool // written after an alignment marker
}

func alignOf(marker rune) gocp.Align {
	switch marker {
	case '^':
		return gocp.AlignSup
	case '_':
		return gocp.AlignSub
	}
	return gocp.AlignBase
}

// parseGroup parses an atom group with its optional label abbreviation and attribute block.
func (p *parser) parseGroup() (*gocp.Group, error) {
	from := p.index

	var toks []boxToken
	var plain strings.Builder // group characters outside alignment markers

	for {
		ch := p.current()
		if isAlignChar(ch) {
			p.advance()
			tok := boxToken{
				align:    alignOf(ch),
				explicit: true,
			}
			switch {
			case p.current() == '{':
				p.advance()
				var run strings.Builder
				for p.current() != '}' {
					if p.atEnd() {
						return nil, gocp.NewExpectError(gocp.ErrUnterminated, gocp.ExpectDelimiter, "delimiter '}' of alignment block", p.pos(), p.got())
					}
					run.WriteRune(p.current())
					p.advance()
				}
				p.advance()
				tok.text = run.String()
			case p.atEnd():
				return nil, gocp.NewExpectError(gocp.ErrUnterminated, gocp.ExpectDelimiter, "character after alignment marker", p.pos(), p.got())
			default:
				tok.text = string(p.current())
				p.advance()
			}
			toks = append(toks, tok)
			continue
		}
		if !isGroupChar(ch) {
			break
		}

		plain.WriteRune(ch)
		p.advance()
		text := string(ch)
		switch {
		case isUpper(ch) && isLower(p.current()):
			text += string(p.current())
			plain.WriteRune(p.current())
			p.advance()
		case isDigit(ch):
			for isDigit(p.current()) {
				text += string(p.current())
				plain.WriteRune(p.current())
				p.advance()
			}
		}
		toks = append(toks, boxToken{text: text})
	}

	if len(toks) == 0 {
		return nil, p.expect(gocp.ExpectAtomGroup, "")
	}

	s := plain.String()
	if strings.ContainsRune(s, '?') && len(toks) > 1 {
		return nil, gocp.NewError(gocp.ErrBadWildcard, p.start[from], "Wildcard groups mustn't include any characters except '?'")
	}
	if strings.ContainsRune(s, '.') && len(toks) > 1 {
		return nil, gocp.NewError(gocp.ErrBadCollapsed, p.start[from], "Collapsed carbon mustn't include any characters except '.'")
	}

	g := &gocp.Group{
		Boxes: make([]gocp.Box, 0, len(toks)),
	}
	for i, tok := range toks {
		box := gocp.Box{
			Text:  tok.text,
			Align: tok.align,
		}
		if !tok.explicit && i > 0 && isDigit([]rune(tok.text)[0]) {
			prev := []rune(toks[i-1].text)
			if last := prev[len(prev)-1]; isLetter(last) || last == ')' {
				box.Align = gocp.AlignSub
			}
		}
		if tok.text == "." && !tok.explicit {
			box.Collapsed = true
			box.Width = 0
		} else {
			box.Width = p.width(box.Text, box.Align)
		}
		g.Boxes = append(g.Boxes, box)
	}
	g.Span = p.span(from)

	ctx := &AttrContext{Group: g}
	if p.current() == '\'' {
		p.advance()
		var name strings.Builder
		for isIdentChar(p.current()) {
			name.WriteRune(p.current())
			p.advance()
		}
		if name.Len() == 0 {
			return nil, p.expect(gocp.ExpectIdentifier, "label name")
		}
		ctx.Label = name.String()
		g.Attrs.Ref = ctx.Label
	}

	if p.current() == '{' {
		vals, err := p.parseAttrBlock(GroupSchema, ctx, "group")
		if err != nil {
			return nil, err
		}
		attrs := decodeGroupAttrs(vals)
		if attrs.Ref == "" {
			attrs.Ref = ctx.Label
		}
		g.Attrs = attrs
	}
	return g, nil
}
