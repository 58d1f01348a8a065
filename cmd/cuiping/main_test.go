package main

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2x3systems/cuiping/libcp"
)

func newSession(t *testing.T, opts libcp.Options) (*session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	c, err := libcp.NewCompiler(opts)
	if err != nil {
		t.Fatal(err)
	}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &session{
		compiler: c,
		out:      out,
		errOut:   errOut,
	}, out, errOut
}

func TestBuildOptions(t *testing.T) {
	config := filepath.Join(t.TempDir(), "cuiping.yaml")
	if err := os.WriteFile(config, []byte("rotate: 45\nflipY: true\nmacroFiles: [a.cpm]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	var cf cliFlags
	fset.StringVar(&cf.config, "config", "", "")
	fset.Float64Var(&cf.rotate, "rotate", 0, "")
	fset.BoolVar(&cf.flipX, "flipx", false, "")
	fset.BoolVar(&cf.flipY, "flipy", false, "")
	fset.StringVar(&cf.macros, "macros", "", "")
	fset.StringVar(&cf.catalog, "catalog", "", "")
	if err := fset.Parse([]string{"-config", config, "-rotate", "90", "-macros", "b.cpm, c.cpm", "compile"}); err != nil {
		t.Fatal(err)
	}

	opts, err := buildOptions(fset, &cf)
	if err != nil {
		t.Fatal(err)
	}
	// Note: flags given override the file; others keep the file's values
	if opts.Rotate != 90 || !opts.FlipY || opts.FlipX {
		t.Fatalf("bad options %+v", opts)
	}
	if strings.Join(opts.MacroFiles, ",") != "a.cpm,b.cpm,c.cpm" {
		t.Fatalf("bad macro files %v", opts.MacroFiles)
	}
}

func TestCompileAll(t *testing.T) {
	s, out, errOut := newSession(t, libcp.Options{})
	failed := s.compileAll([]string{"C-O", "C-", "N#N"})
	if failed != 1 {
		t.Fatalf("expected 1 failure, got %d", failed)
	}
	if out.String() != "C\n    -0 O\nN\n    ---0 N\n" {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if !strings.HasPrefix(errOut.String(), "C-: parse: ") {
		t.Fatalf("unexpected error output %q", errOut.String())
	}
}

func TestCompileToCatalog(t *testing.T) {
	s, _, _ := newSession(t, libcp.Options{
		CatalogPath: filepath.Join(t.TempDir(), "catalog"),
	})
	var err error
	if s.cat, err = s.compiler.OpenCatalog(false); err != nil {
		t.Fatal(err)
	}
	defer s.cat.Close()

	if failed := s.compileAll([]string{"C-O", "C-O", "N#N"}); failed != 0 {
		t.Fatalf("expected no failures, got %d", failed)
	}
	if n := s.cat.Count(); n != 2 {
		t.Fatalf("expected 2 catalogued formulas, got %d", n)
	}
}

func TestDump(t *testing.T) {
	s, out, _ := newSession(t, libcp.Options{})
	s.dump = true
	if failed := s.compileAll([]string{"C-O"}); failed != 0 {
		t.Fatal("dump failed")
	}
	if !strings.HasPrefix(out.String(), "root 0:") {
		t.Fatalf("unexpected dump:\n%s", out.String())
	}
}

type fakeLines struct {
	lines   []string
	history []string
}

func (in *fakeLines) Prompt(prompt string) (string, error) {
	if len(in.lines) == 0 {
		return "", io.EOF
	}
	line := in.lines[0]
	in.lines = in.lines[1:]
	return line, nil
}

func (in *fakeLines) AppendHistory(item string) {
	in.history = append(in.history, item)
}

func TestPrompt(t *testing.T) {
	s, out, errOut := newSession(t, libcp.Options{})
	in := &fakeLines{
		lines: []string{"N#N", "  ", "C{X:1}"},
	}
	if err := s.prompt(in); err != nil {
		t.Fatal(err)
	}
	if len(in.history) != 2 {
		t.Fatalf("blank lines shouldn't enter history, got %v", in.history)
	}
	if out.String() != "N\n    ---0 N\n" {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if !strings.HasPrefix(errOut.String(), "error: parse: ") {
		t.Fatalf("unexpected error output %q", errOut.String())
	}
}

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("C-O\n\n  N#N  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "C-O" || lines[1] != "N#N" {
		t.Fatalf("unexpected lines %q", lines)
	}
}
