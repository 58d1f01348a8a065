package combine

import (
	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/formula"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/plan-systems/klog"
)

// toTree inverts the graph into a tree hanging off the first root.
//
// Every struct keeps one bond per physical edge as an outgoing child bond except the edge it was reached
// through. A bond that reaches an already placed struct ends at a new placeholder instead.
func (c *combiner) toTree() (formula.StructID, error) {
	if len(c.roots) == 0 {
		return formula.NilStruct, gocp.NewError(gocp.ErrDisconnected, -1, "Formula has no structs")
	}
	root := c.roots[0]

	t := treeWalk{
		placed: hashset.New(),
		edges:  hashset.New(),
	}
	if err := c.invert(&t, root); err != nil {
		return formula.NilStruct, err
	}
	c.treeCount = t.placed.Size()
	return root, nil
}

// treeWalk holds the visitation marks of one inversion pass.
type treeWalk struct {
	placed *hashset.Set // structs
	edges  *hashset.Set // edges walked from either side
}

func (c *combiner) invert(t *treeWalk, id formula.StructID) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	t.placed.Add(id)
	s := c.f.Struct(id)

	candidates := make([]*formula.Bond, 0, len(s.Children)+len(s.Parents))
	candidates = append(candidates, s.Children...)
	candidates = append(candidates, s.Parents...)
	s.Children = s.Children[:0:0]
	s.Parents = nil

	for _, b := range candidates {
		if t.edges.Contains(b.Edge) {
			continue
		}
		t.edges.Add(b.Edge)

		if len(b.Dirs) == 0 {
			return gocp.NewError(gocp.ErrUnresolvedBondDirs, -1, "Bond from '%s' has no resolved direction", c.f.Describe(id))
		}

		if t.placed.Contains(b.Target) {
			ph := c.f.NewChem(*gocp.NewPlaceholderGroup(0))
			klog.V(3).Infof("combine: %s revisits %s, placeholder #%d", c.f.Describe(id), c.f.Describe(b.Target), ph.ID)
			b.Target = ph.ID
			s.Children = append(s.Children, b)
			continue
		}

		s.Children = append(s.Children, b)
		if err := c.invert(t, b.Target); err != nil {
			return err
		}
	}
	return nil
}
