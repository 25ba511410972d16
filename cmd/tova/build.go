package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tovalang/tova/internal/build"
	"github.com/tovalang/tova/internal/compiler/ast"
	"github.com/tovalang/tova/internal/compiler/diag"
)

// ParseDirectory turns a directory of Tova source files into the AST this
// compiler consumes. Lexing and parsing are an external collaborator's job
// (spec.md §1: "Parsing is assumed to produce an AST and is not
// specified") — this module implements everything downstream of it. A
// host binary that embeds a real lexer/parser sets this hook before
// calling main; left nil, `tova build` reports that no parser is wired
// rather than silently doing nothing.
var ParseDirectory func(dir string) ([]*ast.File, error)

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "tova.config.toml", "path to the production build config")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tova build [-config tova.config.toml] <dir>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	dir := fs.Arg(0)

	if ParseDirectory == nil {
		fmt.Fprintln(os.Stderr, "Error: no .tova parser is wired into this binary (spec.md §1: the lexer/parser is an external collaborator, not implemented by this module). Set cmd/tova.ParseDirectory to your parser's entry point, or call internal/build.Orchestrator directly from Go code that already owns an AST.")
		os.Exit(1)
	}

	files, err := ParseDirectory(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := build.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	orch := build.New(cfg)
	reports, err := orch.CompileTree(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, rep := range reports {
		for _, d := range rep.Bag.Diagnostics {
			if d.Severity == diag.Warning {
				fmt.Fprintln(os.Stderr, d.Error())
			}
		}
		if err := orch.Write(rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", rep.Dir, err)
			os.Exit(1)
		}
		for _, f := range rep.Files {
			fmt.Printf("%s  %d bytes\n", filepath.Join(cfg.OutDir, rep.Dir, f.Name), len(f.Content))
		}
	}
}
