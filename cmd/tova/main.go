// Command tova is the compiler's CLI entry point: `tova build` drives the
// orchestrator over an already-parsed directory, `tova verify` sanity-checks
// an emitted WASM module. Grounded on the teacher's cmd/gmx/main.go
// subcommand dispatch (flag.FlagSet per subcommand, same usage convention).
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		cmdBuild(os.Args[2:])
	case "verify":
		cmdVerify(os.Args[2:])
	case "watch":
		fmt.Fprintln(os.Stderr, "tova watch: out of scope for this module (spec.md §1, the dev-server process supervisor is an external collaborator); delegating is a no-op here")
		os.Exit(1)
	case "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "tova: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tova <command> [arguments]

Commands:
  build    compile an already-parsed directory of Tova sources
  verify   sanity-check an emitted WASM module by calling one of its exports
  watch    (stub, out of scope — delegates to an external dev-server process)
`)
}
