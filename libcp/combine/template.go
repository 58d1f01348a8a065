package combine

import (
	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/formula"
	"github.com/pkg/errors"
)

// MacroSpec declares a macro before its prototype is compiled.
type MacroSpec struct {
	Name       string
	Kind       formula.MacroKind
	Params     formula.AttrSchema
	Exposed    []formula.ExposedLabel
	DefaultIn  string
	DefaultOut string
}

// NewMacroDef combines the prototype formula and freezes it into a template shared by every call.
func NewMacroDef(spec MacroSpec, proto *formula.Formula, opts Options) (*formula.MacroDef, error) {
	root, err := Combine(proto, opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "macro '%s'", spec.Name)
	}
	tpl := BuildTemplate(proto, root)

	for _, name := range []string{spec.DefaultIn, spec.DefaultOut} {
		if _, ok := tpl.Labels[name]; !ok {
			return nil, gocp.NewError(gocp.ErrBadMacroDef, -1, "Macro '%s' has no label '%s'", spec.Name, name)
		}
	}
	for _, label := range spec.Exposed {
		if _, ok := tpl.Labels[label.Name]; !ok {
			return nil, gocp.NewError(gocp.ErrBadMacroDef, -1, "Macro '%s' exposes missing label '%s'", spec.Name, label.Name)
		}
	}

	return &formula.MacroDef{
		Name:       spec.Name,
		Kind:       spec.Kind,
		Params:     spec.Params,
		Proto:      tpl,
		Exposed:    spec.Exposed,
		DefaultIn:  spec.DefaultIn,
		DefaultOut: spec.DefaultOut,
	}, nil
}

// BuildTemplate copies the combined tree at root into a Template; node 0 is the root.
func BuildTemplate(f *formula.Formula, root formula.StructID) *formula.Template {
	tpl := &formula.Template{
		Labels: make(map[string]int),
	}
	index := make(map[formula.StructID]int)

	var add func(id formula.StructID) int
	add = func(id formula.StructID) int {
		idx := len(tpl.Nodes)
		index[id] = idx
		g := *f.Struct(id).Group
		tpl.Nodes = append(tpl.Nodes, formula.TemplateNode{Group: &g})

		for _, b := range f.Struct(id).Children {
			to := add(b.Target)
			tpl.Nodes[idx].Bonds = append(tpl.Nodes[idx].Bonds, formula.TemplateBond{
				Order: b.Order,
				Dirs:  append([]float64(nil), b.Dirs...),
				Attrs: b.Attrs,
				To:    to,
			})
		}
		return idx
	}
	add(root)

	for name, id := range f.Labels {
		if idx, ok := index[id]; ok {
			tpl.Labels[name] = idx
		}
	}
	return tpl
}
