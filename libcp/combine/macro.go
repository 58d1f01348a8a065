package combine

import (
	"fmt"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/formula"
	"github.com/plan-systems/klog"
)

// expandMacros replaces every macro call with a clone of its template, children first.
func (c *combiner) expandMacros() error {
	roots := append([]formula.StructID(nil), c.roots...)
	for _, root := range roots {
		if err := c.expandFrom(root); err != nil {
			return err
		}
	}
	return nil
}

func (c *combiner) expandFrom(id formula.StructID) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	s := c.f.Struct(id)
	for _, b := range s.Children {
		if err := c.expandFrom(b.Target); err != nil {
			return err
		}
	}
	if s.Kind == formula.Macro {
		return c.expandCall(s)
	}
	return nil
}

// expandCall splices a clone of the call's template in place of the call.
//
// Bonds into the call are redirected to the clone's default input; bonds out of the call move to a new
// Ref naming the clone's default output, which becomes an extra root and is resolved like any other ref.
func (c *combiner) expandCall(s *formula.Struct) error {
	call := s.Call
	def := call.Def
	tpl := def.Proto
	if tpl == nil || len(tpl.Nodes) == 0 {
		return gocp.NewError(gocp.ErrBadMacroDef, call.Pos, "Macro '%s' has no prototype", def.Name)
	}

	prefix := call.Prefix
	if prefix == "" {
		prefix = fmt.Sprintf("unnamed:%d:", c.unnamed)
		c.unnamed++
	}

	ids := c.cloneTemplate(tpl, prefix, call.Deg)

	for _, label := range def.Exposed {
		idx, ok := tpl.Labels[label.Name]
		if !ok {
			continue
		}
		c.f.Labels[prefix+label.Name] = ids[idx]
		if label.Dir != nil {
			c.f.Defaults[ids[idx]] = gocp.Standardize(*label.Dir - call.Deg)
		}
	}

	inIdx, ok := tpl.Labels[def.DefaultIn]
	if !ok {
		return gocp.NewError(gocp.ErrBadMacroDef, call.Pos, "Macro '%s' has no label '%s' for its default input", def.Name, def.DefaultIn)
	}
	in := c.f.Struct(ids[inIdx])
	for _, pb := range s.Parents {
		pb.Twin.Target = in.ID
	}
	in.Parents = append(in.Parents, s.Parents...)
	s.Parents = nil

	if len(s.Children) > 0 {
		out := c.f.NewStruct(formula.Ref)
		out.RefNames = []string{prefix + def.DefaultOut}
		out.Children = s.Children
		for _, cb := range out.Children {
			cb.Twin.Target = out.ID
		}
		s.Children = nil
		c.roots = append(c.roots, out.ID)
	}

	replaced := false
	for i, root := range c.roots {
		if root == s.ID {
			c.roots[i] = ids[0]
			replaced = true
		}
	}
	if !replaced {
		c.roots = append(c.roots, ids[0])
	}

	klog.V(3).Infof("combine: expanded $%s as %q into %d structs", def.Name, prefix, len(ids))
	return nil
}

// cloneTemplate adds a copy of every template node to the arena, rotated by -deg, and returns their IDs.
func (c *combiner) cloneTemplate(tpl *formula.Template, prefix string, deg float64) []formula.StructID {
	ids := make([]formula.StructID, len(tpl.Nodes))
	for i, node := range tpl.Nodes {
		g := *node.Group
		if g.Attrs.Ref != "" {
			g.Attrs.Ref = prefix + g.Attrs.Ref
		}
		ids[i] = c.f.NewChem(g).ID
	}

	for i, node := range tpl.Nodes {
		for _, tb := range node.Bonds {
			dirs := make([]float64, len(tb.Dirs))
			for j, d := range tb.Dirs {
				dirs[j] = gocp.Standardize(d - deg)
			}
			c.f.Link(ids[i], ids[tb.To], tb.Order, dirs, tb.Attrs)
		}
	}
	return ids
}
