package libcp

import (
	"io"
	"os"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/catalog"
	"github.com/2x3systems/cuiping/libcp/combine"
	"github.com/2x3systems/cuiping/libcp/expand"
	"github.com/2x3systems/cuiping/libcp/formula"
	"github.com/2x3systems/cuiping/libcp/macros"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"gopkg.in/yaml.v3"
)

// Options configures a Compiler.
type Options struct {
	Rotate      float64        `yaml:"rotate"`      // clockwise degrees (y down) applied to the whole drawing
	FlipX       bool           `yaml:"flipX"`       // mirror left and right
	FlipY       bool           `yaml:"flipY"`       // mirror up and down
	MaxDepth    int            `yaml:"maxDepth"`    // <= 0 denotes gocp.DefaultMaxDepth
	MacroFiles  []string       `yaml:"macroFiles"`  // loaded in order after the builtin macros
	CatalogPath string         `yaml:"catalogPath"` // "" denotes no catalog
	Width       gocp.WidthFunc `yaml:"-"`           // nil denotes gocp.DefaultWidth
}

// LoadOptions reads Options from a YAML file; unknown keys are an error.
func LoadOptions(pathname string) (Options, error) {
	var opts Options

	file, err := os.Open(pathname)
	if err != nil {
		return opts, errors.Wrap(err, "opening options")
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err = dec.Decode(&opts); err != nil && err != io.EOF {
		return opts, errors.Wrapf(err, "decoding options %q", pathname)
	}
	return opts, nil
}

// Compiler runs the parse, combine and expand stages with a fixed set of options and macros.
//
// Once constructed, a Compiler may be used from multiple goroutines.
type Compiler struct {
	opts   Options
	macros *macros.Library
}

// NewCompiler loads the builtin macros plus opts.MacroFiles.
func NewCompiler(opts Options) (*Compiler, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = gocp.DefaultMaxDepth
	}

	lib, err := macros.Default()
	if err != nil {
		return nil, err
	}
	lib.SetMaxDepth(opts.MaxDepth)
	for _, pathname := range opts.MacroFiles {
		if err = lib.LoadFile(pathname); err != nil {
			return nil, err
		}
	}

	klog.V(2).Infof("libcp: compiler ready with %d macros", lib.Len())
	return &Compiler{
		opts:   opts,
		macros: lib,
	}, nil
}

// Options returns the options in effect (with defaults applied).
func (c *Compiler) Options() Options {
	return c.opts
}

// Macros returns the macro library used to parse formulas.
func (c *Compiler) Macros() *macros.Library {
	return c.macros
}

// Parse parses src into its struct graph.
func (c *Compiler) Parse(src string) (*formula.Formula, error) {
	f, err := formula.Parse(src, formula.Options{
		Macros:   c.macros,
		Width:    c.opts.Width,
		MaxDepth: c.opts.MaxDepth,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "parse")
	}
	return f, nil
}

// Combine resolves f into a tree in place and returns its root.
func (c *Compiler) Combine(f *formula.Formula) (formula.StructID, error) {
	root, err := combine.Combine(f, combine.Options{
		MaxDepth: c.opts.MaxDepth,
	})
	if err != nil {
		return formula.NilStruct, errors.WithMessage(err, "combine")
	}
	return root, nil
}

// Expand resolves every bond of a combined formula to one absolute direction.
func (c *Compiler) Expand(f *formula.Formula, root formula.StructID) (*gocp.ExpandedTree, error) {
	tree, err := expand.Expand(f, root, expand.Options{
		Rotate:   c.opts.Rotate,
		FlipX:    c.opts.FlipX,
		FlipY:    c.opts.FlipY,
		MaxDepth: c.opts.MaxDepth,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "expand")
	}
	return tree, nil
}

// Compile runs all three stages on src.
func (c *Compiler) Compile(src string) (*gocp.ExpandedTree, error) {
	f, err := c.Parse(src)
	if err != nil {
		return nil, err
	}
	root, err := c.Combine(f)
	if err != nil {
		return nil, err
	}
	return c.Expand(f, root)
}

// OpenCatalog opens the catalog named by Options.CatalogPath, or an in-memory one if unset.
func (c *Compiler) OpenCatalog(readOnly bool) (*catalog.Catalog, error) {
	return catalog.Open(catalog.Opts{
		DbPathName: c.opts.CatalogPath,
		ReadOnly:   readOnly,
	})
}

// DumpFormula writes the struct graph of a parsed (not yet combined) formula.
func DumpFormula(out io.Writer, f *formula.Formula) error {
	return f.Dump(out)
}
