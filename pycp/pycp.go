package pycp

import (
	"strings"
	"sync"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp"
	"github.com/2x3systems/cuiping/libcp/catalog"
	"github.com/go-python/gpython/py"
	"github.com/pkg/errors"
)

var (
	LIB_VERSION = "v1.2023.1"
)

var (
	pyCompilerType   = py.NewType("Compiler", "compiles Cuiping formulas into expanded trees")
	pyTreeType       = py.NewType("Tree", "an expanded formula tree")
	pyCatalogType    = py.NewType("Catalog", "libcp/catalog.Catalog")
	pyFormulaSetType = py.NewType("FormulaSet", "drops formulas drawing an already seen structure")
	pyWorkspaceType  = py.NewType("Workspace", "collects active session resources and catalogs")
)

const (
	kWorkspaceAttr = "_Workspace"
)

// pyErr converts a compile error into the matching Python exception.
func pyErr(err error) error {
	if gocp.KindOfErr(err) == gocp.KindSyntax {
		return py.ExceptionNewf(py.SyntaxError, "%v", err)
	}
	return py.ExceptionNewf(py.ValueError, "%v", err)
}

func loadString(args py.Tuple, i int, what string) (string, error) {
	if i >= len(args) {
		return "", py.ExceptionNewf(py.TypeError, "missing argument '%s'", what)
	}
	str, ok := args[i].(py.String)
	if !ok {
		return "", py.ExceptionNewf(py.TypeError, "'%s' must be a str (got %v)", what, args[i].Type().Name)
	}
	return string(str), nil
}

func loadBool(kwargs py.StringDict, key string, dst *bool) error {
	if obj, ok := kwargs[key]; ok {
		val, err := py.ObjectIsTrue(obj)
		if err != nil {
			return err
		}
		*dst = val
	}
	return nil
}

/////////////////////////////////
// Compiler

type pyCompiler struct {
	*libcp.Compiler
}

func (c pyCompiler) Type() *py.Type {
	return pyCompilerType
}

// NewCompiler(rotate=0, flipx=False, flipy=False, maxdepth=0, macros=(), config="")
func py_NewCompiler(module py.Object, args py.Tuple, kwargs py.StringDict) (py.Object, error) {
	var opts libcp.Options

	if obj, ok := kwargs["config"]; ok {
		pathname, isStr := obj.(py.String)
		if !isStr {
			return nil, py.ExceptionNewf(py.TypeError, "'config' must be a str")
		}
		var err error
		if opts, err = libcp.LoadOptions(string(pathname)); err != nil {
			return nil, py.ExceptionNewf(py.FileNotFoundError, "%v", err)
		}
	}
	if obj, ok := kwargs["rotate"]; ok {
		deg, err := py.FloatAsFloat64(obj)
		if err != nil {
			return nil, err
		}
		opts.Rotate = deg
	}
	if obj, ok := kwargs["maxdepth"]; ok {
		depth, err := py.GetInt(obj)
		if err != nil {
			return nil, err
		}
		opts.MaxDepth = int(depth)
	}
	if err := loadBool(kwargs, "flipx", &opts.FlipX); err != nil {
		return nil, err
	}
	if err := loadBool(kwargs, "flipy", &opts.FlipY); err != nil {
		return nil, err
	}
	if obj, ok := kwargs["macros"]; ok {
		files, isTuple := obj.(py.Tuple)
		if !isTuple {
			return nil, py.ExceptionNewf(py.TypeError, "'macros' must be a tuple of pathnames")
		}
		for i := range files {
			pathname, err := loadString(files, i, "macros")
			if err != nil {
				return nil, err
			}
			opts.MacroFiles = append(opts.MacroFiles, pathname)
		}
	}

	c, err := libcp.NewCompiler(opts)
	if err != nil {
		return nil, pyErr(err)
	}
	return pyCompiler{c}, nil
}

func py_Compiler_Compile(self py.Object, args py.Tuple) (py.Object, error) {
	c := self.(pyCompiler)
	src, err := loadString(args, 0, "formula")
	if err != nil {
		return nil, err
	}
	tree, err := c.Compile(src)
	if err != nil {
		return nil, pyErr(err)
	}
	return pyTree{tree}, nil
}

func py_Compiler_Dump(self py.Object, args py.Tuple) (py.Object, error) {
	c := self.(pyCompiler)
	src, err := loadString(args, 0, "formula")
	if err != nil {
		return nil, err
	}
	f, err := c.Parse(src)
	if err != nil {
		return nil, pyErr(err)
	}
	out := strings.Builder{}
	libcp.DumpFormula(&out, f)
	return py.String(out.String()), nil
}

func py_Compiler_LoadMacros(self py.Object, args py.Tuple) (py.Object, error) {
	c := self.(pyCompiler)
	pathname, err := loadString(args, 0, "pathname")
	if err != nil {
		return nil, err
	}
	if err = c.Macros().LoadFile(pathname); err != nil {
		return nil, pyErr(err)
	}
	return py.None, nil
}

func py_Compiler_Macros(self py.Object, args py.Tuple) (py.Object, error) {
	c := self.(pyCompiler)
	names := c.Macros().Names()
	tuple := make(py.Tuple, len(names))
	for i, name := range names {
		tuple[i] = py.String(name)
	}
	return tuple, nil
}

/////////////////////////////////
// Tree

type pyTree struct {
	*gocp.ExpandedTree
}

func (tree pyTree) Type() *py.Type {
	return pyTreeType
}

func (tree pyTree) M__str__() (py.Object, error) {
	writer := strings.Builder{}
	gocp.WriteTree(&writer, tree.ExpandedTree, gocp.DefaultPrintOpts)
	return py.String(writer.String()), nil
}

func (tree pyTree) M__repr__() (py.Object, error) {
	return tree.M__str__()
}

func getTree(obj py.Object) (pyTree, error) {
	tree, ok := obj.(pyTree)
	if !ok {
		return tree, py.ExceptionNewf(py.TypeError, "expected Tree object (got %v)", obj.Type().Name)
	}
	return tree, nil
}

func countNodes(node *gocp.ExpandedTree) int {
	n := 1
	for _, b := range node.Bonds {
		n += countNodes(b.To)
	}
	return n
}

func py_Tree_Text(self py.Object, args py.Tuple) (py.Object, error) {
	tree := self.(pyTree)
	return py.String(tree.Group.Text()), nil
}

func py_Tree_NumNodes(self py.Object, args py.Tuple) (py.Object, error) {
	tree := self.(pyTree)
	return py.Int(countNodes(tree.ExpandedTree)), nil
}

// Bonds returns a tuple of (order, direction, Tree) tuples.
func py_Tree_Bonds(self py.Object, args py.Tuple) (py.Object, error) {
	tree := self.(pyTree)
	bonds := make(py.Tuple, len(tree.ExpandedTree.Bonds))
	for i, b := range tree.ExpandedTree.Bonds {
		bonds[i] = py.Tuple{
			py.Int(b.Order),
			py.Float(b.Direction),
			pyTree{b.To},
		}
	}
	return bonds, nil
}

/////////////////////////////////
// Workspace

// Workspace tracks the catalogs opened by a script so they are closed with its context.
type Workspace struct {
	mu       sync.Mutex
	catalogs []*catalog.Catalog
}

func (ws *Workspace) Type() *py.Type {
	return pyWorkspaceType
}

func (ws *Workspace) attach(cat *catalog.Catalog) {
	ws.mu.Lock()
	ws.catalogs = append(ws.catalogs, cat)
	ws.mu.Unlock()
}

// Close closes every catalog still open.
func (ws *Workspace) Close() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, cat := range ws.catalogs {
		cat.Close()
	}
	ws.catalogs = nil
}

func getWorkspace(module py.Object) *Workspace {
	wsObj, _ := py.GetAttrString(module, kWorkspaceAttr)
	if wsObj == nil {
		wsObj = &Workspace{}
		py.SetAttrString(module, kWorkspaceAttr, wsObj)
	}
	return wsObj.(*Workspace)
}

/////////////////////////////////
// Catalog

type pyCatalog struct {
	*catalog.Catalog
}

func (cat pyCatalog) Type() *py.Type {
	return pyCatalogType
}

// OpenCatalog(pathname, readonly=False); an empty pathname opens an in-memory catalog.
func py_OpenCatalog(module py.Object, args py.Tuple, kwargs py.StringDict) (py.Object, error) {
	pathname, err := loadString(args, 0, "pathname")
	if err != nil {
		return nil, err
	}
	opts := catalog.Opts{
		DbPathName: pathname,
	}
	if err = loadBool(kwargs, "readonly", &opts.ReadOnly); err != nil {
		return nil, err
	}

	cat, err := catalog.Open(opts)
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}
	getWorkspace(module).attach(cat)
	return pyCatalog{cat}, nil
}

func py_Catalog_TryAdd(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	src, err := loadString(args, 0, "formula")
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, py.ExceptionNewf(py.TypeError, "missing argument 'tree'")
	}
	tree, err := getTree(args[1])
	if err != nil {
		return nil, err
	}

	added, err := cat.TryAdd(src, tree.ExpandedTree)
	if errors.Is(err, catalog.ErrReadOnly) {
		return nil, py.ExceptionNewf(py.PermissionError, "%v", err)
	}
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}
	return py.NewBool(added), nil
}

func py_Catalog_Lookup(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	src, err := loadString(args, 0, "formula")
	if err != nil {
		return nil, err
	}
	entry, err := cat.Lookup(src)
	if errors.Is(err, catalog.ErrNotFound) {
		return py.None, nil
	}
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}
	return pyTree{entry.Tree}, nil
}

// Select(prefix="") returns the catalogued sources starting with prefix.
func py_Catalog_Select(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	prefix := ""
	if len(args) > 0 {
		var err error
		if prefix, err = loadString(args, 0, "prefix"); err != nil {
			return nil, err
		}
	}

	var sources py.Tuple
	err := cat.Select(prefix, func(e *catalog.Entry) bool {
		sources = append(sources, py.String(e.Source))
		return true
	})
	if err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}
	return sources, nil
}

func py_Catalog_Count(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	return py.Int(cat.Count()), nil
}

func py_Catalog_Close(self py.Object, args py.Tuple) (py.Object, error) {
	cat := self.(pyCatalog)
	if err := cat.Close(); err != nil {
		return nil, py.ExceptionNewf(py.RuntimeError, "%v", err)
	}
	return py.None, nil
}

/////////////////////////////////
// FormulaSet

type pyFormulaSet struct {
	*catalog.FormulaSet
}

func (set pyFormulaSet) Type() *py.Type {
	return pyFormulaSetType
}

func py_NewFormulaSet(module py.Object, args py.Tuple) (py.Object, error) {
	return pyFormulaSet{catalog.NewFormulaSet(catalog.FormulaSetOpts{})}, nil
}

func py_FormulaSet_TryAdd(self py.Object, args py.Tuple) (py.Object, error) {
	set := self.(pyFormulaSet)
	if len(args) < 1 {
		return nil, py.ExceptionNewf(py.TypeError, "missing argument 'tree'")
	}
	tree, err := getTree(args[0])
	if err != nil {
		return nil, err
	}
	return py.NewBool(set.TryAdd(tree.ExpandedTree)), nil
}

func py_FormulaSet_Len(self py.Object, args py.Tuple) (py.Object, error) {
	set := self.(pyFormulaSet)
	return py.Int(set.Len()), nil
}

func init() {

	/////////////////////////////////
	// Compiler
	{
		pyCompilerType.Dict["Compile"] = py.MustNewMethod("Compile", py_Compiler_Compile, 0, "compiles a formula into a Tree")
		pyCompilerType.Dict["Dump"] = py.MustNewMethod("Dump", py_Compiler_Dump, 0, "returns the struct graph of a parsed formula")
		pyCompilerType.Dict["LoadMacros"] = py.MustNewMethod("LoadMacros", py_Compiler_LoadMacros, 0, "loads a macro library file")
		pyCompilerType.Dict["Macros"] = py.MustNewMethod("Macros", py_Compiler_Macros, 0, "")
	}

	/////////////////////////////////
	// Tree
	{
		pyTreeType.Dict["Text"] = py.MustNewMethod("Text", py_Tree_Text, 0, "")
		pyTreeType.Dict["NumNodes"] = py.MustNewMethod("NumNodes", py_Tree_NumNodes, 0, "")
		pyTreeType.Dict["Bonds"] = py.MustNewMethod("Bonds", py_Tree_Bonds, 0, "returns (order, direction, Tree) for each bond")
	}

	/////////////////////////////////
	// Catalog
	{
		pyCatalogType.Dict["TryAdd"] = py.MustNewMethod("TryAdd", py_Catalog_TryAdd, 0, "")
		pyCatalogType.Dict["Lookup"] = py.MustNewMethod("Lookup", py_Catalog_Lookup, 0, "")
		pyCatalogType.Dict["Select"] = py.MustNewMethod("Select", py_Catalog_Select, 0, "")
		pyCatalogType.Dict["Count"] = py.MustNewMethod("Count", py_Catalog_Count, 0, "")
		pyCatalogType.Dict["Close"] = py.MustNewMethod("Close", py_Catalog_Close, 0, "")
	}

	/////////////////////////////////
	// FormulaSet
	{
		pyFormulaSetType.Dict["TryAdd"] = py.MustNewMethod("TryAdd", py_FormulaSet_TryAdd, 0, "")
		pyFormulaSetType.Dict["Len"] = py.MustNewMethod("Len", py_FormulaSet_Len, 0, "")
	}

	{
		methods := []*py.Method{
			py.MustNewMethod("NewCompiler", py_NewCompiler, 0, ""),
			py.MustNewMethod("OpenCatalog", py_OpenCatalog, 0, ""),
			py.MustNewMethod("NewFormulaSet", py_NewFormulaSet, 0, ""),
		}

		globals := py.StringDict{
			"LIB_VERSION": py.String(LIB_VERSION),
			"MAX_DEPTH":   py.Int(gocp.DefaultMaxDepth),
		}

		py.RegisterModule(&py.ModuleImpl{
			Info: py.ModuleInfo{
				Name: "_pycp",
				Doc:  "Cuiping chemical formula compiler",
			},
			Methods: methods,
			Globals: globals,
			OnContextClosed: func(m *py.Module) {
				wsObj, _ := py.GetAttrString(m, kWorkspaceAttr)
				if wsObj != nil {
					wsObj.(*Workspace).Close()
				}
			},
		})
	}
}
