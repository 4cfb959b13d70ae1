// Command tela is the collaborator CLI around the core toolchain: an
// interactive repl, an ahead-of-time compiler, a disassembler, and a
// micro-benchmark runner. None of these are required by the core; they
// exist only to exercise it from the command line.
package main

import (
	"fmt"
	"os"

	_ "github.com/xirelogy/tela/internal/builtins"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "repl":
		code = runRepl(os.Args[2:])
	case "compile":
		code = runCompile(os.Args[2:])
	case "disasm":
		code = runDisasm(os.Args[2:])
	case "bench":
		code = runBench(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		code = 1
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: tela <repl|compile|disasm|bench> [flags] [args]")
}

// Exit codes: 0 success, 1 compile error, 2 runtime error. bench exits with 2
// when any file fails, whether it failed to read, compile or run.
const (
	exitSuccess = 0
	exitCompile = 1
	exitRuntime = 2
)
