package catalog

import (
	"math"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

/***

Entry wire format (all integers varint unless noted):

	Seq, Source (bytes), Node

	Node  := Group, NumBonds, [NumBonds]Bond
	Group := ID, Span.Start (zigzag), Span.End (zigzag), NumBoxes, [NumBoxes]Box, Color (bytes), Bold, Ref (bytes)
	Box   := Text (bytes), Width (fixed64), Align, Flags
	Bond  := Order, Direction (fixed64), Color (bytes), HighEnergy, From, To, HasLength, [Length (fixed64)], Side, Node

A canonical encoding omits Seq, Source, Group.ID and Group.Span so that two formulas drawing the
same structure encode identically.

***/

const (
	boxCollapsed    = 0x01
	boxNotDisplayed = 0x02
)

// Entry is a compiled formula as stored in a Catalog.
type Entry struct {
	Seq    uint64 // one-based order of insertion
	Source string
	Tree   *gocp.ExpandedTree
}

type encoder struct {
	buf       *proto.Buffer
	canonical bool
}

func (enc *encoder) bool(b bool) {
	if b {
		enc.buf.EncodeVarint(1)
	} else {
		enc.buf.EncodeVarint(0)
	}
}

func (enc *encoder) float(f float64) {
	enc.buf.EncodeFixed64(math.Float64bits(f))
}

func (enc *encoder) node(node *gocp.ExpandedTree) {
	enc.group(node.Group)
	enc.buf.EncodeVarint(uint64(len(node.Bonds)))
	for i := range node.Bonds {
		b := &node.Bonds[i]
		enc.buf.EncodeVarint(uint64(b.Order))
		enc.float(b.Direction)
		enc.buf.EncodeStringBytes(b.Attrs.Color)
		enc.bool(b.Attrs.HighEnergy)
		enc.buf.EncodeVarint(uint64(b.Attrs.From))
		enc.buf.EncodeVarint(uint64(b.Attrs.To))
		enc.bool(b.Attrs.Length != nil)
		if b.Attrs.Length != nil {
			enc.float(*b.Attrs.Length)
		}
		enc.buf.EncodeVarint(uint64(b.Attrs.Side))
		enc.node(b.To)
	}
}

func (enc *encoder) group(g *gocp.Group) {
	if !enc.canonical {
		enc.buf.EncodeVarint(uint64(g.ID))
		enc.buf.EncodeZigzag64(uint64(g.Span.Start))
		enc.buf.EncodeZigzag64(uint64(g.Span.End))
	}
	enc.buf.EncodeVarint(uint64(len(g.Boxes)))
	for _, box := range g.Boxes {
		enc.buf.EncodeStringBytes(box.Text)
		enc.float(box.Width)
		enc.buf.EncodeVarint(uint64(box.Align))
		flags := uint64(0)
		if box.Collapsed {
			flags |= boxCollapsed
		}
		if box.NotDisplayed {
			flags |= boxNotDisplayed
		}
		enc.buf.EncodeVarint(flags)
	}
	enc.buf.EncodeStringBytes(g.Attrs.Color)
	enc.bool(g.Attrs.Bold)
	enc.buf.EncodeStringBytes(g.Attrs.Ref)
}

// MarshalEntry appends the wire encoding of an entry.
func MarshalEntry(in []byte, e *Entry) []byte {
	enc := encoder{buf: proto.NewBuffer(in)}
	enc.buf.EncodeVarint(e.Seq)
	enc.buf.EncodeStringBytes(e.Source)
	enc.node(e.Tree)
	return enc.buf.Bytes()
}

// AppendCanonicalKey appends an encoding of tree that ignores source positions.
func AppendCanonicalKey(in []byte, tree *gocp.ExpandedTree) []byte {
	enc := encoder{
		buf:       proto.NewBuffer(in),
		canonical: true,
	}
	enc.node(tree)
	return enc.buf.Bytes()
}

type decoder struct {
	buf   *proto.Buffer
	err   error
	depth int
}

func (dec *decoder) varint() uint64 {
	if dec.err != nil {
		return 0
	}
	var v uint64
	v, dec.err = dec.buf.DecodeVarint()
	return v
}

func (dec *decoder) zigzag() int {
	if dec.err != nil {
		return 0
	}
	var v uint64
	v, dec.err = dec.buf.DecodeZigzag64()
	return int(int64(v))
}

func (dec *decoder) float() float64 {
	if dec.err != nil {
		return 0
	}
	var v uint64
	v, dec.err = dec.buf.DecodeFixed64()
	return math.Float64frombits(v)
}

func (dec *decoder) str() string {
	if dec.err != nil {
		return ""
	}
	var s string
	s, dec.err = dec.buf.DecodeStringBytes()
	return s
}

func (dec *decoder) count() int {
	n := dec.varint()
	if n > uint64(len(dec.buf.Bytes())) {
		dec.fail("count %d exceeds the input size", n)
		return 0
	}
	return int(n)
}

func (dec *decoder) fail(format string, args ...interface{}) {
	if dec.err == nil {
		dec.err = errors.Wrapf(ErrUnmarshal, format, args...)
	}
}

// node decodes a tree; From of each bond is the parent's group.
func (dec *decoder) node() *gocp.ExpandedTree {
	dec.depth++
	defer func() { dec.depth-- }()
	if dec.depth > gocp.DefaultMaxDepth {
		dec.fail("tree deeper than %d", gocp.DefaultMaxDepth)
		return nil
	}

	node := &gocp.ExpandedTree{
		Group: dec.group(),
	}
	n := dec.count()
	if dec.err != nil {
		return nil
	}
	node.Bonds = make([]gocp.ExpandedBond, n)
	for i := range node.Bonds {
		b := &node.Bonds[i]
		b.From = node.Group
		b.Order = int(dec.varint())
		b.Direction = dec.float()
		b.Attrs.Color = dec.str()
		b.Attrs.HighEnergy = dec.varint() != 0
		b.Attrs.From = int(dec.varint())
		b.Attrs.To = int(dec.varint())
		if dec.varint() != 0 {
			length := dec.float()
			b.Attrs.Length = &length
		}
		b.Attrs.Side = gocp.Side(dec.varint())
		if b.To = dec.node(); b.To == nil {
			return nil
		}
		if b.Order < 1 || b.Order > 3 {
			dec.fail("bad bond order %d", b.Order)
			return nil
		}
	}
	return node
}

func (dec *decoder) group() *gocp.Group {
	g := &gocp.Group{
		ID: int(dec.varint()),
	}
	g.Span.Start = dec.zigzag()
	g.Span.End = dec.zigzag()
	g.Boxes = make([]gocp.Box, dec.count())
	for i := range g.Boxes {
		box := &g.Boxes[i]
		box.Text = dec.str()
		box.Width = dec.float()
		box.Align = gocp.Align(dec.varint())
		flags := dec.varint()
		box.Collapsed = flags&boxCollapsed != 0
		box.NotDisplayed = flags&boxNotDisplayed != 0
	}
	g.Attrs.Color = dec.str()
	g.Attrs.Bold = dec.varint() != 0
	g.Attrs.Ref = dec.str()
	return g
}

// UnmarshalEntry decodes an entry written by MarshalEntry.
func UnmarshalEntry(buf []byte) (*Entry, error) {
	dec := decoder{buf: proto.NewBuffer(buf)}
	e := &Entry{
		Seq:    dec.varint(),
		Source: dec.str(),
	}
	if dec.err == nil {
		e.Tree = dec.node()
	}
	if dec.err != nil {
		if errors.Is(dec.err, ErrUnmarshal) {
			return nil, dec.err
		}
		return nil, errors.Wrap(ErrUnmarshal, dec.err.Error())
	}
	return e, nil
}
