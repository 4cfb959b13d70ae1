package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/xirelogy/tela/internal/bytecode"
	"github.com/xirelogy/tela/internal/bytefile"
	"github.com/xirelogy/tela/internal/clidisplay"
	"github.com/xirelogy/tela/internal/compiler"
	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/lexer"
	"github.com/xirelogy/tela/internal/parser"
)

func runCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("o", "", "output bytecode file path (default: input with .tbc extension)")
	verbose := fs.Bool("v", false, "print compile statistics")
	disasm := fs.Bool("d", false, "print disassembly after compiling")
	noFold := fs.Bool("O0", false, "disable compile-time constant folding")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tela compile [-o path] [-v] [-d] [-O0] <input>")
		return exitCompile
	}
	input := fs.Arg(0)

	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompile
	}
	source := string(data)

	reporter := errs.NewReporter(source)
	p := parser.New(lexer.New(source, reporter), reporter)
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		clidisplay.PrintErrors(reporter)
		return exitCompile
	}

	mod, err := compiler.CompileWithOptions(prog, input, reporter, compiler.Options{DisableFold: *noFold})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompile
	}
	if reporter.HasErrors() {
		clidisplay.PrintErrors(reporter)
		return exitCompile
	}

	proto := mod.Functions[bytecode.ScriptEntryName]
	if *verbose {
		clidisplay.Info(fmt.Sprintf("compiled %s: %d instructions, %d constants",
			input, len(proto.Chunk.Code), len(proto.Chunk.Consts)))
	}

	outPath := *out
	if outPath == "" {
		outPath = defaultOutputPath(input)
	}
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompile
	}
	defer f.Close()
	if err := bytefile.Write(f, proto); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompile
	}
	if *verbose {
		clidisplay.Success("wrote " + outPath)
	}

	if *disasm {
		dis := bytecode.NewDisassembler(os.Stdout)
		if err := dis.DisassemblePrototype(bytecode.ScriptEntryName, proto); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitCompile
		}
	}
	return exitSuccess
}

func defaultOutputPath(input string) string {
	if idx := strings.LastIndex(input, "."); idx >= 0 {
		return input[:idx] + ".tbc"
	}
	return input + ".tbc"
}
