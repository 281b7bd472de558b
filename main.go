package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tapelang/bfc/bf"
	"github.com/tapelang/bfc/compiler"
	"github.com/tapelang/bfc/lexer"
	"github.com/tapelang/bfc/parser"
)

var TL_SUFFIX = ".tl"
var BF_SUFFIX = ".bf"

// defaultTLCache gets env variable TLCACHE
// if it is not set sets it to the default value for windows, mac, linux
func defaultTLCache() string {
	if env := os.Getenv("TLCACHE"); env != "" {
		return env
	}

	homeDir, _ := os.UserHomeDir()
	var tlcache string
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			tlcache = filepath.Join(localAppData, "tapelang")
			return tlcache
		}
		tlcache = filepath.Join(homeDir, "AppData", "Local", "tapelang")

	case "darwin":
		tlcache = filepath.Join(homeDir, "Library", "Caches", "tapelang")

	default: // Linux and others
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			tlcache = filepath.Join(xdg, "tapelang")
			return tlcache
		}
		tlcache = filepath.Join(homeDir, ".cache", "tapelang")
	}

	os.Setenv("TLCACHE", tlcache)
	return tlcache
}

// compileSource runs the full pipeline on one source text and returns the
// target program text plus the number of tape cells the program claims.
// Parse errors are reported together, compile errors one at a time.
func compileSource(fileName string, source []byte, opts compiler.Options) (string, compiler.Address, error) {
	l := lexer.New(fileName, string(source))
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		var sb strings.Builder
		for i, e := range errs {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(e.Error())
		}
		return "", 0, fmt.Errorf("%s", sb.String())
	}

	c := compiler.New(opts)
	ir, err := c.Lower(program)
	if err != nil {
		return "", 0, err
	}
	if opts.Optimize {
		c.Optimize(ir)
	}
	return c.Emit(ir), c.Allocator().HighWater(), nil
}

func compileFile(srcPath string, opts compiler.Options) (string, compiler.Address, error) {
	source, err := os.ReadFile(srcPath)
	if err != nil {
		return "", 0, fmt.Errorf("reading %s: %w", srcPath, err)
	}
	return compileSource(filepath.Base(srcPath), source, opts)
}

// outputPath derives the target file path from the source path, honoring
// an explicit -o.
func outputPath(srcPath, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return strings.TrimSuffix(srcPath, TL_SUFFIX) + BF_SUFFIX
}

func cmdCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("o", "", "output file (default: source with "+BF_SUFFIX+" suffix)")
	debug := fs.Bool("debug", false, "embed source annotations in the output")
	opt := fs.Bool("opt", true, "run the optimizer")
	verbose := fs.Bool("verbose", false, "report cell usage and program size")
	watch := fs.Bool("watch", false, "recompile whenever the source changes")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bfc compile [flags] <file"+TL_SUFFIX+">")
		return 2
	}
	srcPath := fs.Arg(0)
	opts := compiler.Options{Debug: *debug, Optimize: *opt}

	build := func() error {
		code, cells, err := compileFile(srcPath, opts)
		if err != nil {
			return err
		}
		outPath := outputPath(srcPath, *out)
		if err := os.WriteFile(outPath, []byte(code), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		if *verbose {
			prog, err := bf.Parse(code)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d commands, %d cells\n", outPath, prog.Len(), cells)
		}
		return nil
	}

	if *watch {
		if err := watchAndBuild(srcPath, build); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	if err := build(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	debug := fs.Bool("debug", false, "embed source annotations in the output")
	opt := fs.Bool("opt", true, "run the optimizer")
	noCache := fs.Bool("nocache", false, "bypass the compile cache")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bfc run [flags] <file"+TL_SUFFIX+">")
		return 2
	}
	srcPath := fs.Arg(0)
	opts := compiler.Options{Debug: *debug, Optimize: *opt}

	var code string
	var err error
	if *noCache {
		code, _, err = compileFile(srcPath, opts)
	} else {
		code, err = cachedCompile(srcPath, opts)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := bf.Run(code, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: bfc <command> [flags]

commands:
  compile   translate a source file to target code
  run       compile (with caching) and interpret
  repl      interactive session
  version   print version information`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "compile":
		os.Exit(cmdCompile(os.Args[2:]))
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "version":
		printVersion()
	default:
		usage()
		os.Exit(2)
	}
}
