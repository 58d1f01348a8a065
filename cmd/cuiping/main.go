package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/2x3systems/cuiping/gocp"
	"github.com/2x3systems/cuiping/libcp"
	"github.com/2x3systems/cuiping/libcp/catalog"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

const usage = `usage: cuiping [flags] <command> [args]

commands:
  compile [formula ...]   compile formulas (one per stdin line when none given)
  prompt                  interactive prompt
  run [script.py]         run a gpython script (REPL when none given)

flags:
`

type cliFlags struct {
	config  string
	rotate  float64
	flipX   bool
	flipY   bool
	macros  string
	catalog string
	dump    bool
}

func main() {
	fset := flag.NewFlagSet("cuiping", flag.ExitOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})

	var cf cliFlags
	fset.StringVar(&cf.config, "config", "", "YAML options file")
	fset.Float64Var(&cf.rotate, "rotate", 0, "clockwise rotation in degrees (y down)")
	fset.BoolVar(&cf.flipX, "flipx", false, "mirror left and right")
	fset.BoolVar(&cf.flipY, "flipy", false, "mirror up and down")
	fset.StringVar(&cf.macros, "macros", "", "comma separated macro library files")
	fset.StringVar(&cf.catalog, "catalog", "", "catalog db path that compiled formulas are added to")
	fset.BoolVar(&cf.dump, "dump", false, "print the parsed struct graph instead of the expanded tree")
	fset.Usage = func() {
		fmt.Fprint(fset.Output(), usage)
		fset.PrintDefaults()
	}
	fset.Parse(os.Args[1:])

	err := run(fset, &cf)
	klog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(fset *flag.FlagSet, cf *cliFlags) error {
	args := fset.Args()
	if len(args) == 0 {
		fset.Usage()
		return errors.New("missing command")
	}

	cmd, args := args[0], args[1:]
	if cmd == "run" {
		pathname := ""
		if len(args) > 0 {
			pathname = args[0]
		}
		return runGpython(pathname)
	}

	opts, err := buildOptions(fset, cf)
	if err != nil {
		return err
	}
	c, err := libcp.NewCompiler(opts)
	if err != nil {
		return err
	}

	s := session{
		compiler: c,
		out:      os.Stdout,
		errOut:   os.Stderr,
		dump:     cf.dump,
	}
	if opts.CatalogPath != "" {
		if s.cat, err = c.OpenCatalog(false); err != nil {
			return err
		}
		defer s.cat.Close()
	}

	switch cmd {
	case "compile":
		if len(args) == 0 {
			args, err = readLines(os.Stdin)
			if err != nil {
				return err
			}
		}
		if failed := s.compileAll(args); failed > 0 {
			return errors.Errorf("%d of %d formulas failed", failed, len(args))
		}
		return nil

	case "prompt":
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)
		return s.prompt(line)
	}

	fset.Usage()
	return errors.Errorf("unknown command %q", cmd)
}

// buildOptions loads the config file (if any) then applies the flags that were given.
func buildOptions(fset *flag.FlagSet, cf *cliFlags) (libcp.Options, error) {
	var opts libcp.Options
	if cf.config != "" {
		var err error
		if opts, err = libcp.LoadOptions(cf.config); err != nil {
			return opts, err
		}
	}

	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rotate":
			opts.Rotate = cf.rotate
		case "flipx":
			opts.FlipX = cf.flipX
		case "flipy":
			opts.FlipY = cf.flipY
		case "catalog":
			opts.CatalogPath = cf.catalog
		case "macros":
			for _, pathname := range strings.Split(cf.macros, ",") {
				if pathname = strings.TrimSpace(pathname); pathname != "" {
					opts.MacroFiles = append(opts.MacroFiles, pathname)
				}
			}
		}
	})
	return opts, nil
}

func readLines(in io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, errors.Wrap(scanner.Err(), "reading formulas")
}

type session struct {
	compiler *libcp.Compiler
	cat      *catalog.Catalog
	out      io.Writer
	errOut   io.Writer
	dump     bool
}

// compileOne prints the expanded tree (or struct graph) of src.
func (s *session) compileOne(src string) error {
	if s.dump {
		f, err := s.compiler.Parse(src)
		if err != nil {
			return err
		}
		return libcp.DumpFormula(s.out, f)
	}

	tree, err := s.compiler.Compile(src)
	if err != nil {
		return err
	}
	if err = gocp.WriteTree(s.out, tree, gocp.DefaultPrintOpts); err != nil {
		return err
	}
	if s.cat != nil {
		added, err := s.cat.TryAdd(src, tree)
		if err != nil {
			return err
		}
		klog.V(2).Infof("catalog: %q added=%v", src, added)
	}
	return nil
}

// compileAll compiles each formula, reporting failures to errOut, and returns the number that failed.
func (s *session) compileAll(srcs []string) int {
	failed := 0
	for _, src := range srcs {
		if err := s.compileOne(src); err != nil {
			fmt.Fprintf(s.errOut, "%s: %v\n", src, err)
			failed++
		}
	}
	return failed
}

type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

func (s *session) prompt(in lineReader) error {
	for {
		line, err := in.Prompt("gcp> ")
		if err == io.EOF || err == liner.ErrPromptAborted {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in.AppendHistory(line)
		if err = s.compileOne(line); err != nil {
			fmt.Fprintf(s.errOut, "error: %v\n", err)
		}
	}
}
