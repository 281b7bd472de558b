package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tapelang/bfc/bf"
	"github.com/tapelang/bfc/compiler"
)

const replPrompt = ">> "

// cmdRepl runs an interactive session. Each entered line extends the
// program so far; the whole program is recompiled and re-run, and only the
// output the new line produced is shown. Lines that fail to compile are
// discarded. The ',' command reads end-of-input, so `read` sees zero.
func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	debug := fs.Bool("debug", false, "embed source annotations in the output")
	opt := fs.Bool("opt", true, "run the optimizer")
	fs.Parse(args)
	opts := compiler.Options{Debug: *debug, Optimize: *opt}

	fmt.Printf("bfc %s repl, :code shows the compiled program, :reset starts over, :quit exits\n", Version)

	var lines []string
	var lastCode string
	shown := 0
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(replPrompt)
		if !scanner.Scan() {
			fmt.Println()
			return 0
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":quit":
			return 0
		case ":reset":
			lines, lastCode, shown = nil, "", 0
			continue
		case ":code":
			fmt.Println(lastCode)
			continue
		}

		candidate := append(append([]string{}, lines...), line)
		code, _, err := compileSource("repl", []byte(strings.Join(candidate, "\n")), opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		var out bytes.Buffer
		if err := bf.Run(code, strings.NewReader(""), &out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		lines, lastCode = candidate, code
		if out.Len() > shown {
			os.Stdout.Write(out.Bytes()[shown:])
			if !bytes.HasSuffix(out.Bytes(), []byte("\n")) {
				fmt.Println()
			}
		}
		shown = out.Len()
	}
}
