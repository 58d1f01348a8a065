package combine

import (
	"strings"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/formula"
	"github.com/plan-systems/klog"
)

// toGraph dereferences every Ref reachable from each root and resolves deferred bond directions.
func (c *combiner) toGraph() error {
	for i, root := range c.roots {
		id, err := c.deref(root)
		if err != nil {
			return err
		}
		c.roots[i] = id
		if err = c.resolveFrom(id); err != nil {
			return err
		}
	}
	return nil
}

func (c *combiner) resolveFrom(id formula.StructID) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	c.graph.Add(id)
	s := c.f.Struct(id)

	// Note: s.Children may grow as refs resolving to s merge into it
	for i := 0; i < len(s.Children); i++ {
		b := s.Children[i]
		if c.walked.Contains(b.Edge) {
			continue
		}
		c.walked.Add(b.Edge)

		target, err := c.deref(b.Target)
		if err != nil {
			return err
		}
		if target == id {
			return gocp.NewError(gocp.ErrSelfLoop, -1, "Struct '%s' is bonded to itself", c.f.Describe(id))
		}
		if b.Deferred() {
			if err = c.resolveDeferred(b, id, target); err != nil {
				return err
			}
		}
		if err = c.resolveFrom(target); err != nil {
			return err
		}
	}
	return nil
}

// deref returns the chem struct a struct stands for, merging a Ref's bonds into its target on first use.
func (c *combiner) deref(id formula.StructID) (formula.StructID, error) {
	if to, ok := c.forward[id]; ok {
		return to, nil
	}
	r := c.f.Struct(id)
	if r.Kind != formula.Ref {
		return id, nil
	}

	to := formula.NilStruct
	for _, name := range r.RefNames {
		if t, ok := c.f.Labels[name]; ok {
			to = t
			break
		}
	}
	if to == formula.NilStruct {
		return formula.NilStruct, gocp.NewError(gocp.ErrUnknownRef, -1, "Unknown reference '&%s'", strings.Join(r.RefNames, ","))
	}
	if t := c.f.Struct(to); t.Kind == formula.Ref {
		var err error
		if to, err = c.deref(to); err != nil {
			return formula.NilStruct, err
		}
	}
	c.forward[id] = to

	t := c.f.Struct(to)
	for _, b := range r.Parents {
		b.Twin.Target = to
	}
	for _, b := range r.Children {
		b.Twin.Target = to
	}
	t.Parents = append(append([]*formula.Bond(nil), r.Parents...), t.Parents...)
	t.Children = append(t.Children, r.Children...)
	r.Parents, r.Children = nil, nil

	for _, b := range t.Children {
		if b.Target == to {
			return formula.NilStruct, gocp.NewError(gocp.ErrSelfLoop, -1, "Struct '%s' is bonded to itself", c.f.Describe(to))
		}
	}

	klog.V(3).Infof("combine: &%s -> %s", strings.Join(r.RefNames, ","), c.f.Describe(to))
	return to, nil
}

// resolveDeferred assigns a ':' bond the default direction registered for its source, or else the
// opposite of the one registered for its target.
func (c *combiner) resolveDeferred(b *formula.Bond, from, to formula.StructID) error {
	if d, ok := c.f.Defaults[from]; ok {
		b.SetDirs([]float64{d})
		return nil
	}
	if d, ok := c.f.Defaults[to]; ok {
		b.SetDirs([]float64{gocp.Standardize(d + 180)})
		return nil
	}
	return gocp.NewError(gocp.ErrNoDefaultDir, -1, "No default direction for the bond between '%s' and '%s'", c.f.Describe(from), c.f.Describe(to))
}
