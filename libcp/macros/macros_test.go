package macros

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp/combine"
	"github.com/2x3systems/cuiping/libcp/expand"
	"github.com/2x3systems/cuiping/libcp/formula"
)

const testLibrary = `
(* test macros *)
macro Phenol {
    in 1; out 1;
    expose 1 @ 0;
    proto ` + "`$Ben{&:r}-O{&:1}`" + `;
}

macro Tag(size: integer, note: string) : attr {
    proto ` + "`?`" + `;
}

macro Methyl : chem {
    in c; out c;
    expose c @ -90;
    proto ` + "`CH_3{&:c}`" + `;
}
`

func countTree(f *formula.Formula, id formula.StructID) int {
	n := 1
	for _, b := range f.Struct(id).Children {
		n += countTree(f, b.Target)
	}
	return n
}

func TestBuiltin(t *testing.T) {
	lib, err := Builtin()
	if err != nil {
		t.Fatal(err)
	}
	ben, ok := lib.LookupMacro("Ben")
	if !ok {
		t.Fatal("Ben missing from the builtin library")
	}
	if ben.Kind != formula.MacroChem || ben.DefaultIn != "1" || ben.DefaultOut != "4" || len(ben.Exposed) != 6 {
		t.Fatalf("bad Ben definition %+v", ben)
	}
	if d := ben.Exposed[1].Dir; d == nil || *d != 240 {
		t.Fatal("Ben label 2 should default to 240")
	}
	if len(ben.Proto.Nodes) != 7 {
		t.Fatalf("expected 7 prototype nodes, got %d", len(ben.Proto.Nodes))
	}
}

func countExpanded(tree *gocp.ExpandedTree) int {
	n := 1
	for _, b := range tree.Bonds {
		n += countExpanded(b.To)
	}
	return n
}

func TestCompileBuiltin(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	f, err := formula.Parse("$Ben", formula.Options{Macros: lib})
	if err != nil {
		t.Fatal(err)
	}
	root, err := combine.Combine(f, combine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tree, err := expand.Expand(f, root, expand.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n := countExpanded(tree); n != 7 {
		t.Fatalf("expected 7 ring nodes, got %d", n)
	}
}

func TestRawProto(t *testing.T) {
	lib := NewLibrary()
	if err := lib.Load("raw.cpm", "macro Kink { in a; out b; proto `C{&:a}\\N{&:b}`; }"); err != nil {
		t.Fatal(err)
	}
	kink, _ := lib.LookupMacro("Kink")
	bonds := kink.Proto.Nodes[0].Bonds
	if len(bonds) != 1 || len(bonds[0].Dirs) != 1 || bonds[0].Dirs[0] != 60 {
		t.Fatalf("'\\' in a proto should be a 60 deg bond, got %+v", bonds)
	}
}

func TestLoad(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if err = lib.Load("test.cpm", testLibrary); err != nil {
		t.Fatal(err)
	}

	names := lib.Names()
	want := []string{"Ben", "Methyl", "Phenol", "Tag"}
	if len(names) != len(want) {
		t.Fatalf("got macros %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got macros %v, want %v", names, want)
		}
	}

	tag, _ := lib.LookupMacro("Tag")
	if tag.Kind != formula.MacroAttr || len(tag.Params) != 2 || tag.Params[0].Rule.Kind != formula.AttrInteger {
		t.Fatalf("bad Tag definition %+v", tag)
	}

	methyl, _ := lib.LookupMacro("Methyl")
	if d := methyl.Exposed[0].Dir; d == nil || *d != 270 {
		t.Fatal("negative exposed angles should be standardized")
	}

	// Note: the builtin library itself is untouched
	builtin, _ := Builtin()
	if builtin.Len() != 1 {
		t.Fatalf("builtin library should hold 1 macro, got %d", builtin.Len())
	}
}

func TestNestedMacro(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if err = lib.Load("test.cpm", testLibrary); err != nil {
		t.Fatal(err)
	}

	f, err := formula.Parse("$Phenol{&:p}:$Methyl", formula.Options{Macros: lib})
	if err != nil {
		t.Fatal(err)
	}
	root, err := combine.Combine(f, combine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Note: 6 ring atoms, the ring closure placeholder, O and the methyl group
	if n := countTree(f, root); n != 9 {
		t.Fatalf("expected 9 structs, got %d", n)
	}
	if _, ok := f.Labels["p1"]; !ok {
		t.Fatal("Phenol label 1 should be exposed as p1")
	}

	if _, err = formula.Parse("$Tag{size:3}", formula.Options{Macros: lib}); !errors.Is(err, gocp.ErrNotChemMacro) {
		t.Fatalf("expected ErrNotChemMacro, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	pathname := filepath.Join(t.TempDir(), "extra.cpm")
	src := "macro Water { in o; out o; proto `H-O{&:o}-H`; }"
	if err := os.WriteFile(pathname, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary()
	if err := lib.LoadFile(pathname); err != nil {
		t.Fatal(err)
	}
	if _, ok := lib.LookupMacro("Water"); !ok {
		t.Fatal("Water should be loaded")
	}
	if err := lib.LoadFile(filepath.Join(t.TempDir(), "missing.cpm")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestBadLibraries(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"syntax", "macro {", gocp.ErrBadMacroDef},
		{"param type", "macro X(a: color) { in a; out a; proto `C{&:a}`; }", gocp.ErrBadMacroDef},
		{"no proto", "macro X { in a; out a; }", gocp.ErrBadMacroDef},
		{"no in", "macro X { out a; proto `C{&:a}`; }", gocp.ErrBadMacroDef},
		{"missing label", "macro X { in a; out b; proto `C{&:a}`; }", gocp.ErrBadMacroDef},
		{"empty proto", "macro X { in a; out a; proto ``; }", gocp.ErrEmptyGroup},
		{"unknown macro", "macro X { in a; out a; proto `$Y{&:a}`; }", gocp.ErrUnknownMacro},
	}

	for _, tt := range tests {
		err := NewLibrary().Load(tt.name, tt.src)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}
