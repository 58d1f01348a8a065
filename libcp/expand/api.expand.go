package expand

import (
	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/formula"
	"github.com/plan-systems/klog"
)

// Options is the transform applied at the root of an expansion.
type Options struct {
	Rotate   float64 // degrees, clockwise
	FlipX    bool
	FlipY    bool
	MaxDepth int // <= 0 denotes gocp.DefaultMaxDepth
}

// Expand turns the combined tree at root into an ExpandedTree in which every bond has one absolute direction.
//
// A bond with k directions yields k sibling expansions of its target; every direction after the first
// carries the rotation or reflection that maps the first onto it down its own branch.
func Expand(f *formula.Formula, root formula.StructID, opts Options) (*gocp.ExpandedTree, error) {
	e := expander{
		f:        f,
		maxDepth: opts.MaxDepth,
	}
	if e.maxDepth <= 0 {
		e.maxDepth = gocp.DefaultMaxDepth
	}
	tree, err := e.expand(root, transform{
		rotate: opts.Rotate,
		flipX:  opts.FlipX,
		flipY:  opts.FlipY,
	}, 0)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("expand: %d nodes", e.nodes)
	return tree, nil
}

type transform struct {
	rotate float64
	flipX  bool
	flipY  bool
}

// apply maps a bond direction through the transform.
func (t transform) apply(d float64) float64 {
	d += t.rotate
	if t.flipX {
		d = 180 - d
	}
	if t.flipY {
		d = 360 - d
	}
	return gocp.Standardize(d)
}

// branch derives the transform for the i-th direction d of a bond whose first direction is d0.
func (t transform) branch(d, d0 float64) transform {
	br := t
	switch {
	case gocp.AnglesEqual(d+d0, 0):
		br.flipY = !br.flipY
	case gocp.AnglesEqual(d+d0, 180):
		br.flipX = !br.flipX
	default:
		dd := d - d0
		if t.flipX != t.flipY {
			dd = -dd
		}
		br.rotate += gocp.Standardize(dd)
	}
	return br
}

// mirrors reports if the transform reverses left and right.
func (t transform) mirrors() bool {
	return t.flipX != t.flipY
}

type expander struct {
	f        *formula.Formula
	maxDepth int
	nodes    int
}

func (e *expander) expand(id formula.StructID, t transform, depth int) (*gocp.ExpandedTree, error) {
	if depth >= e.maxDepth {
		return nil, gocp.NewError(gocp.ErrTooDeep, -1, "Formula nested deeper than %d levels", e.maxDepth)
	}
	e.nodes++

	s := e.f.Struct(id)
	node := &gocp.ExpandedTree{
		Group: s.Group,
	}
	for _, b := range s.Children {
		if len(b.Dirs) == 0 {
			return nil, gocp.NewError(gocp.ErrUnresolvedBondDirs, -1, "Bond from '%s' has no resolved direction", e.f.Describe(id))
		}
		d0 := b.Dirs[0]
		for i, d := range b.Dirs {
			br := t
			if i > 0 {
				br = t.branch(d, d0)
			}

			attrs := b.Attrs
			if t.mirrors() {
				attrs.Side = attrs.Side.Mirror()
			}

			dir := t.apply(d)
			klog.V(3).Infof("expand: %*s%s rd %v, fx %v, fy %v -> %v", depth, "", e.f.Describe(id), t.rotate, t.flipX, t.flipY, dir)

			to, err := e.expand(b.Target, br, depth+1)
			if err != nil {
				return nil, err
			}
			node.Bonds = append(node.Bonds, gocp.ExpandedBond{
				Order:     b.Order,
				Direction: dir,
				From:      s.Group,
				Attrs:     attrs,
				To:        to,
			})
		}
	}
	return node, nil
}
