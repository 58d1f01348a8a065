package combine

import (
	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/formula"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/plan-systems/klog"
)

// Options configures Combine.
type Options struct {
	MaxDepth int // <= 0 denotes gocp.DefaultMaxDepth
}

// Combine expands macro calls, resolves references and turns the formula's graph into a single tree of
// chemical structs rooted at the returned struct.
//
// The formula is rewritten in place and must not be combined again.
func Combine(f *formula.Formula, opts Options) (formula.StructID, error) {
	c := newCombiner(f, opts)

	if err := c.expandMacros(); err != nil {
		return formula.NilStruct, err
	}
	if err := c.toGraph(); err != nil {
		return formula.NilStruct, err
	}

	root, err := c.toTree()
	if err != nil {
		return formula.NilStruct, err
	}

	if c.treeCount != c.graph.Size() {
		return formula.NilStruct, gocp.NewError(gocp.ErrDisconnected, -1,
			"Structs aren't connected: %d of %d structs are reachable from the first root", c.treeCount, c.graph.Size())
	}

	klog.V(2).Infof("combine: %d roots, %d structs, %d bonds", len(c.roots), c.treeCount, f.EdgeCount())
	return root, nil
}

type combiner struct {
	f        *formula.Formula
	maxDepth int
	depth    int
	unnamed  int

	roots   []formula.StructID
	forward map[formula.StructID]formula.StructID // dereferenced Ref -> target

	graph  *hashset.Set // distinct chem structs met while resolving the graph
	walked *hashset.Set // edges whose forward bond has been resolved

	treeCount int
}

func newCombiner(f *formula.Formula, opts Options) *combiner {
	c := &combiner{
		f:        f,
		maxDepth: opts.MaxDepth,
		roots:    append([]formula.StructID(nil), f.Roots...),
		forward:  make(map[formula.StructID]formula.StructID),
		graph:    hashset.New(),
		walked:   hashset.New(),
	}
	if c.maxDepth <= 0 {
		c.maxDepth = gocp.DefaultMaxDepth
	}
	return c
}

func (c *combiner) enter() error {
	c.depth++
	if c.depth > c.maxDepth {
		return gocp.NewError(gocp.ErrTooDeep, -1, "Formula nested deeper than %d levels", c.maxDepth)
	}
	return nil
}

func (c *combiner) leave() {
	c.depth--
}
