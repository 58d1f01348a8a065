package pycp_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-python/gpython/py"

	_ "github.com/2x3systems/cuiping/pycp"
	_ "github.com/go-python/gpython/stdlib"
)

const script = `
import _pycp

c = _pycp.NewCompiler(rotate=90)
t = c.Compile("C-N")
assert t.Text() == "C"
assert t.NumNodes() == 2
b = t.Bonds()
assert len(b) == 1
assert b[0][0] == 1
assert b[0][1] == 90.0
assert b[0][2].Text() == "N"
assert "Ben" in c.Macros()

s = _pycp.NewFormulaSet()
assert s.TryAdd(t)
assert not s.TryAdd(c.Compile("C - N"))
assert s.Len() == 1

cat = _pycp.OpenCatalog("")
assert cat.TryAdd("C-N", t)
assert not cat.TryAdd("C-N", t)
assert cat.Count() == 1
assert cat.Lookup("O") is None
assert cat.Lookup("C-N").NumNodes() == 2
assert cat.Select("C") == ("C-N",)

try:
    c.Compile("C-")
    raise RuntimeError("expected a syntax error")
except SyntaxError:
    pass

try:
    c.Compile("C-&x")
    raise RuntimeError("expected a value error")
except ValueError:
    pass
`

func TestModule(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pycp_test.py"), []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := py.NewContext(py.DefaultContextOpts())
	// gpython v0.2.0 cannot resolve absolute run paths; resolve via CurDir.
	_, err := py.RunFile(ctx, "pycp_test.py", py.CompileOpts{CurDir: dir}, nil)
	ctx.Close()
	<-ctx.Done()
	if err != nil {
		py.TracebackDump(err)
		t.Fatal(err)
	}
}

func TestModuleFailure(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fail.py"), []byte("import _pycp\n_pycp.NewCompiler().Compile(\"C-&x\")\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := py.NewContext(py.DefaultContextOpts())
	// gpython v0.2.0 cannot resolve absolute run paths; resolve via CurDir.
	_, err := py.RunFile(ctx, "fail.py", py.CompileOpts{CurDir: dir}, nil)
	ctx.Close()
	<-ctx.Done()
	if err == nil {
		t.Fatal("a failing script should return an error")
	}
}
