package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/tovalang/tova/internal/wasm"
)

func cmdVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	fn := fs.String("func", "", "exported function name to call")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tova verify -func name <module.wasm> [args...]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() < 1 || *fn == "" {
		fs.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", fs.Arg(0), err)
		os.Exit(1)
	}

	rawArgs := fs.Args()[1:]
	callArgs := make([]interface{}, len(rawArgs))
	for i, a := range rawArgs {
		if f, err := strconv.ParseFloat(a, 64); err == nil {
			callArgs[i] = f
		} else {
			callArgs[i] = a
		}
	}

	result, err := wasm.Verify(data, *fn, callArgs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%v\n", result)
}
