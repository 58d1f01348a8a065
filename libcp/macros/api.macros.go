package macros

import (
	_ "embed"
	"os"
	"sync"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/combine"
	"github.com/2x3systems/cuiping/libcp/formula"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

//go:embed builtin.cpm
var builtinSrc string

// Library is a sorted registry of macro definitions; it implements formula.MacroTable.
//
// A Library is not safe for concurrent modification, but lookups may run concurrently once loading is done.
type Library struct {
	defs     *treemap.Map // name -> *formula.MacroDef
	maxDepth int
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{
		defs: treemap.NewWithStringComparator(),
	}
}

var (
	builtinOnce sync.Once
	builtinLib  *Library
	builtinErr  error
)

// Builtin returns the shared library of builtin macros (e.g. Ben).
func Builtin() (*Library, error) {
	builtinOnce.Do(func() {
		lib := NewLibrary()
		if err := lib.Load("builtin.cpm", builtinSrc); err != nil {
			builtinErr = errors.Wrap(err, "builtin macros")
			return
		}
		builtinLib = lib
	})
	return builtinLib, builtinErr
}

// Default returns a new library holding the builtin macros, ready for more to be loaded.
func Default() (*Library, error) {
	builtin, err := Builtin()
	if err != nil {
		return nil, err
	}
	lib := NewLibrary()
	builtin.defs.Each(func(k, v interface{}) {
		lib.defs.Put(k, v)
	})
	return lib, nil
}

// SetMaxDepth bounds the nesting of macro prototypes loaded from now on.
func (lib *Library) SetMaxDepth(maxDepth int) {
	lib.maxDepth = maxDepth
}

// LookupMacro implements formula.MacroTable.
func (lib *Library) LookupMacro(name string) (*formula.MacroDef, bool) {
	v, found := lib.defs.Get(name)
	if !found {
		return nil, false
	}
	return v.(*formula.MacroDef), true
}

// Add registers def, replacing any macro of the same name.
func (lib *Library) Add(def *formula.MacroDef) {
	if _, exists := lib.defs.Get(def.Name); exists {
		klog.V(2).Infof("macros: redefining $%s", def.Name)
	}
	lib.defs.Put(def.Name, def)
}

// Names returns the registered macro names in sorted order.
func (lib *Library) Names() []string {
	keys := lib.defs.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names
}

// Len returns the number of registered macros.
func (lib *Library) Len() int {
	return lib.defs.Size()
}

// LoadFile loads a macro library file.
func (lib *Library) LoadFile(pathname string) error {
	buf, err := os.ReadFile(pathname)
	if err != nil {
		return errors.Wrapf(err, "reading macro library %q", pathname)
	}
	return lib.Load(pathname, string(buf))
}

// Load parses a macro library and registers its macros in order, so a prototype may call any macro
// declared before it.
func (lib *Library) Load(filename, src string) error {
	expr, err := sParseLibrary.ParseString(filename, src)
	if err != nil {
		return gocp.NewError(gocp.ErrBadMacroDef, -1, "%v", err)
	}

	for _, m := range expr.Macros {
		def, err := lib.compile(m)
		if err != nil {
			return errors.WithMessagef(err, "%s", m.Pos)
		}
		lib.Add(def)
	}
	klog.V(2).Infof("macros: loaded %d macros from %s", len(expr.Macros), filename)
	return nil
}

func (lib *Library) compile(m *MacroExpr) (*formula.MacroDef, error) {
	spec := combine.MacroSpec{
		Name: m.Name,
		Kind: formula.MacroChem,
	}
	if m.Kind == "attr" {
		spec.Kind = formula.MacroAttr
	}

	for _, p := range m.Params {
		kind, ok := formula.AttrKindByName[p.Type]
		if !ok {
			return nil, gocp.NewError(gocp.ErrBadMacroDef, -1, "Macro '%s' parameter '%s' has unknown type '%s'", m.Name, p.Name, p.Type)
		}
		if _, dup := spec.Params.Lookup(p.Name); dup {
			return nil, gocp.NewError(gocp.ErrBadMacroDef, -1, "Macro '%s' declares parameter '%s' twice", m.Name, p.Name)
		}
		spec.Params = append(spec.Params, formula.AttrSpec{
			Key:  p.Name,
			Rule: formula.AttrRule{Kind: kind},
		})
	}

	var proto *string
	for _, clause := range m.Body {
		switch {
		case clause.In != nil:
			spec.DefaultIn = *clause.In
		case clause.Out != nil:
			spec.DefaultOut = *clause.Out
		case clause.Proto != nil:
			proto = clause.Proto
		default:
			for _, e := range clause.Expose {
				label := formula.ExposedLabel{Name: e.Name}
				if e.Dir != nil {
					d := gocp.Standardize(e.Dir.Degrees())
					label.Dir = &d
				}
				spec.Exposed = append(spec.Exposed, label)
			}
		}
	}

	if proto == nil {
		if spec.Kind == formula.MacroChem {
			return nil, gocp.NewError(gocp.ErrBadMacroDef, -1, "Macro '%s' has no prototype", m.Name)
		}
		return &formula.MacroDef{
			Name:   spec.Name,
			Kind:   spec.Kind,
			Params: spec.Params,
		}, nil
	}

	if spec.Kind == formula.MacroChem && (spec.DefaultIn == "" || spec.DefaultOut == "") {
		return nil, gocp.NewError(gocp.ErrBadMacroDef, -1, "Macro '%s' must declare 'in' and 'out'", m.Name)
	}

	f, err := formula.Parse(*proto, formula.Options{
		Macros:   lib,
		MaxDepth: lib.maxDepth,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "macro '%s' prototype", m.Name)
	}

	if spec.Kind == formula.MacroAttr {
		root, err := combine.Combine(f, combine.Options{MaxDepth: lib.maxDepth})
		if err != nil {
			return nil, errors.WithMessagef(err, "macro '%s'", m.Name)
		}
		return &formula.MacroDef{
			Name:   spec.Name,
			Kind:   spec.Kind,
			Params: spec.Params,
			Proto:  combine.BuildTemplate(f, root),
		}, nil
	}

	return combine.NewMacroDef(spec, f, combine.Options{MaxDepth: lib.maxDepth})
}
