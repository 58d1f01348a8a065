package formula

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/2x3systems/cuiping/gocp"
)

// parser is a single-use recursive descent parser over the stripped source.
type parser struct {
	text  []rune // source with whitespace and comments removed
	start []int  // start[i] is the source byte offset of text[i]; start[len(text)] == len(source)
	end   []int  // end[i] is the source byte offset just past text[i]
	lists int    // bracket lists open at the cursor
	index int

	depth    int
	maxDepth int
	macros   MacroTable
	width    gocp.WidthFunc
	f        *Formula

	labelLog []labelEntry
}

type labelEntry struct {
	name    string
	prev    StructID
	hadPrev bool
}

func newParser(src string, opts Options) (*parser, error) {
	p := &parser{
		maxDepth: opts.MaxDepth,
		macros:   opts.Macros,
		width:    opts.Width,
		f:        NewFormula(src),
	}
	if p.maxDepth <= 0 {
		p.maxDepth = gocp.DefaultMaxDepth
	}
	if p.width == nil {
		p.width = gocp.DefaultWidth
	}
	if err := p.strip(src); err != nil {
		return nil, err
	}
	return p, nil
}

// strip drops whitespace and (* ... *) comments while remembering where each kept rune came from.
func (p *parser) strip(src string) error {
	p.text = make([]rune, 0, len(src))
	p.start = make([]int, 0, len(src)+1)
	p.end = make([]int, 0, len(src))

	for i := 0; i < len(src); {
		r, sz := utf8.DecodeRuneInString(src[i:])
		if r == '(' && i+1 < len(src) && src[i+1] == '*' {
			closeAt := strings.Index(src[i+2:], "*)")
			if closeAt < 0 {
				return gocp.NewError(gocp.ErrUnterminated, i, "Unterminated comment")
			}
			i += 2 + closeAt + 2
			continue
		}
		if !unicode.IsSpace(r) {
			p.text = append(p.text, r)
			p.start = append(p.start, i)
			p.end = append(p.end, i+sz)
		}
		i += sz
	}
	p.start = append(p.start, len(src))
	return nil
}

// current returns the rune at the cursor, or 0 at the end of input.
func (p *parser) current() rune {
	if p.index < len(p.text) {
		return p.text[p.index]
	}
	return 0
}

func (p *parser) peek(offset int) rune {
	if i := p.index + offset; i < len(p.text) {
		return p.text[i]
	}
	return 0
}

func (p *parser) atEnd() bool {
	return p.index >= len(p.text)
}

func (p *parser) advance() {
	if p.index < len(p.text) {
		p.index++
	}
}

// pos returns the source byte offset of the cursor.
func (p *parser) pos() int {
	return p.start[p.index]
}

func (p *parser) after() string {
	return string(p.text[p.index:])
}

// span returns the source byte range covering text[from:p.index].
func (p *parser) span(from int) gocp.Span {
	if p.index <= from {
		return gocp.Span{Start: p.start[from], End: p.start[from]}
	}
	return gocp.Span{Start: p.start[from], End: p.end[p.index-1]}
}

func (p *parser) got() string {
	if p.atEnd() {
		return "end of input"
	}
	return fmt.Sprintf("'%c'", p.current())
}

// expect returns an expectation failure tagged with the given Expectation.
func (p *parser) expect(expect gocp.Expectation, what string) error {
	sentinel := gocp.ErrUnexpectedChar
	switch expect {
	case gocp.ExpectAtomGroup:
		sentinel = gocp.ErrEmptyGroup
	case gocp.ExpectBondDir:
		sentinel = gocp.ErrNoBondDir
	}
	return gocp.NewExpectError(sentinel, expect, what, p.pos(), p.got())
}

func (p *parser) errorf(sentinel error, format string, args ...interface{}) error {
	return gocp.NewError(sentinel, p.pos(), format, args...)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorf(gocp.ErrTooDeep, "Formula nested deeper than %d levels", p.maxDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// checkpoint captures everything a failed sub-parse may have changed.
type checkpoint struct {
	index    int
	structs  int
	groups   int
	edges    EdgeID
	labelLog int
	depth    int
}

func (p *parser) save() checkpoint {
	return checkpoint{
		index:    p.index,
		structs:  len(p.f.Structs),
		groups:   len(p.f.Groups),
		edges:    p.f.edgeCount,
		labelLog: len(p.labelLog),
		depth:    p.depth,
	}
}

// restore rolls the cursor and the arena back to a checkpoint.
//
// Links made inside the failed sub-parse only join structs created after the checkpoint, so truncating the arena drops them.
func (p *parser) restore(cp checkpoint) {
	for i := len(p.labelLog) - 1; i >= cp.labelLog; i-- {
		e := p.labelLog[i]
		if e.hadPrev {
			p.f.Labels[e.name] = e.prev
		} else {
			delete(p.f.Labels, e.name)
		}
	}
	p.labelLog = p.labelLog[:cp.labelLog]
	p.f.Structs = p.f.Structs[:cp.structs]
	p.f.Groups = p.f.Groups[:cp.groups]
	p.f.edgeCount = cp.edges
	p.index = cp.index
	p.depth = cp.depth
}

func (p *parser) registerLabel(name string, id StructID) {
	prev, hadPrev := p.f.Labels[name]
	p.labelLog = append(p.labelLog, labelEntry{
		name:    name,
		prev:    prev,
		hadPrev: hadPrev,
	})
	p.f.Labels[name] = id
}

// attempt is the outcome of a sub-parse that may be rolled back.
type attempt[R any] struct {
	p   *parser
	cp  checkpoint
	res R
	err error
}

func tryParse[R any](p *parser, fn func() (R, error)) attempt[R] {
	cp := p.save()
	res, err := fn()
	return attempt[R]{
		p:   p,
		cp:  cp,
		res: res,
		err: err,
	}
}

// except recovers from a failure tagged with the given expectation by rolling back and returning or.
// Any other failure propagates unchanged.
func (a attempt[R]) except(expect gocp.Expectation, or R) (R, error) {
	if a.err == nil {
		return a.res, nil
	}
	if gocp.IsExpecting(a.err, expect) {
		a.p.restore(a.cp)
		return or, nil
	}
	return a.res, a.err
}
