package libcp_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	pathname := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(pathname, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return pathname
}

func TestLoadOptions(t *testing.T) {
	macroFile := writeFile(t, "extra.cpm", "macro Water { in o; out o; proto `H-O{&:o}-H`; }")
	optsFile := writeFile(t, "cuiping.yaml", `
rotate: 90
flipX: true
maxDepth: 64
macroFiles:
  - `+macroFile+`
catalogPath: ""
`)

	opts, err := libcp.LoadOptions(optsFile)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Rotate != 90 || !opts.FlipX || opts.FlipY || opts.MaxDepth != 64 || len(opts.MacroFiles) != 1 {
		t.Fatalf("bad options %+v", opts)
	}

	c, err := libcp.NewCompiler(opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Macros().LookupMacro("Water"); !ok {
		t.Fatal("macro files should be loaded")
	}
	if _, ok := c.Macros().LookupMacro("Ben"); !ok {
		t.Fatal("builtin macros should be loaded")
	}

	// Note: a vertical bond is unchanged by flipping left and right
	tree, err := c.Compile("C-N")
	if err != nil {
		t.Fatal(err)
	}
	if d := tree.Bonds[0].Direction; !gocp.AnglesEqual(d, 90) {
		t.Fatalf("expected 90, got %v", d)
	}

	badFile := writeFile(t, "bad.yaml", "rotation: 90\n")
	if _, err = libcp.LoadOptions(badFile); err == nil {
		t.Fatal("unknown keys should be rejected")
	}

	empty, err := libcp.LoadOptions(writeFile(t, "empty.yaml", ""))
	if err != nil || empty.MaxDepth != 0 {
		t.Fatalf("an empty file should give zero options, got %+v %v", empty, err)
	}
}

func TestCompile(t *testing.T) {
	c, err := libcp.NewCompiler(libcp.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Options().MaxDepth != gocp.DefaultMaxDepth {
		t.Fatal("MaxDepth should default")
	}

	tree, err := c.Compile("N#N")
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Bonds) != 1 || tree.Bonds[0].Order != 3 || tree.Bonds[0].To.Group.Text() != "N" {
		t.Fatal("bad N#N tree")
	}

	out := bytes.Buffer{}
	if err = gocp.WriteTree(&out, tree, gocp.DefaultPrintOpts); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "N") || !strings.Contains(out.String(), "---0 N") {
		t.Fatalf("unexpected tree dump:\n%s", out.String())
	}

	if _, err = c.Compile("$Ben{&:r}-N"); err != nil {
		t.Fatal(err)
	}
}

func TestRotate(t *testing.T) {
	c, err := libcp.NewCompiler(libcp.Options{Rotate: 90})
	if err != nil {
		t.Fatal(err)
	}
	// Note: y points down, so a clockwise quarter turn takes right to down and up to right
	for src, want := range map[string]float64{"C-N": 90, "C|N": 0, "C/N": 30} {
		tree, err := c.Compile(src)
		if err != nil {
			t.Fatal(err)
		}
		if d := tree.Bonds[0].Direction; !gocp.AnglesEqual(d, want) {
			t.Fatalf("%q: expected %v, got %v", src, want, d)
		}
	}
}

func TestLongChain(t *testing.T) {
	c, err := libcp.NewCompiler(libcp.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tree, err := c.Compile(strings.Repeat("C-", 999) + "N")
	if err != nil {
		t.Fatal(err)
	}
	n := 1
	for len(tree.Bonds) > 0 {
		tree = tree.Bonds[0].To
		n++
	}
	if n != 1000 || tree.Group.Text() != "N" {
		t.Fatalf("expected a 1000 atom chain ending in N, got %d", n)
	}
}

func TestStageErrors(t *testing.T) {
	c, err := libcp.NewCompiler(libcp.Options{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		src    string
		stage  string
		want   error
		kind   gocp.ErrKind
		hasPos bool
	}{
		{"C-", "parse", gocp.ErrTrailingInput, gocp.KindSyntax, true},
		{"", "parse", gocp.ErrEmptyGroup, gocp.KindSyntax, true},
		{"C{X:1}", "parse", gocp.ErrUnknownAttr, gocp.KindAttribute, true},
		{"$Nope", "parse", gocp.ErrUnknownMacro, gocp.KindMacro, true},
		{"C-&x", "combine", gocp.ErrUnknownRef, gocp.KindReference, false},
		{"C;N", "combine", gocp.ErrDisconnected, gocp.KindTopology, false},
		{"C:N", "combine", gocp.ErrNoDefaultDir, gocp.KindGeometry, false},
	}
	for _, tt := range tests {
		_, err := c.Compile(tt.src)
		if !errors.Is(err, tt.want) || gocp.KindOfErr(err) != tt.kind {
			t.Fatalf("%q: expected %v, got %v", tt.src, tt.want, err)
		}
		if !strings.HasPrefix(err.Error(), tt.stage+": ") {
			t.Fatalf("%q: expected a %s error, got %q", tt.src, tt.stage, err.Error())
		}
		if strings.Contains(err.Error(), "(at ") != tt.hasPos {
			t.Fatalf("%q: position mismatch in %q", tt.src, err.Error())
		}
	}
}

func TestDumpFormula(t *testing.T) {
	c, err := libcp.NewCompiler(libcp.Options{})
	if err != nil {
		t.Fatal(err)
	}
	f, err := c.Parse("C{&:a}-N-&a")
	if err != nil {
		t.Fatal(err)
	}

	out := bytes.Buffer{}
	if err = libcp.DumpFormula(&out, f); err != nil {
		t.Fatal(err)
	}
	dump := out.String()
	if !strings.HasPrefix(dump, "root 0:") || !strings.Contains(dump, "&a") {
		t.Fatalf("unexpected dump:\n%s", dump)
	}
}

func TestCatalog(t *testing.T) {
	c, err := libcp.NewCompiler(libcp.Options{
		CatalogPath: filepath.Join(t.TempDir(), "catalog"),
	})
	if err != nil {
		t.Fatal(err)
	}
	cat, err := c.OpenCatalog(false)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	tree, err := c.Compile("C-O")
	if err != nil {
		t.Fatal(err)
	}
	if added, err := cat.TryAdd("C-O", tree); err != nil || !added {
		t.Fatalf("expected add, got %v %v", added, err)
	}
	if cat.Count() != 1 {
		t.Fatal("expected 1 entry")
	}
}
