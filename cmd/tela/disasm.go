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

func runDisasm(args []string) int {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	verbose := fs.Bool("v", false, "print a summary header before disassembly")
	noConstants := fs.Bool("no-constants", false, "suppress inline constant annotations")
	noLines := fs.Bool("no-lines", false, "suppress the source line column")
	flow := fs.Bool("flow", false, "annotate jump/loop targets with resolved offsets")
	stack := fs.Bool("stack", false, "annotate each instruction with its static stack effect")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tela disasm [-v] [--no-constants] [--no-lines] [--flow] [--stack] <input>")
		return exitCompile
	}
	input := fs.Arg(0)

	proto, err := loadForDisasm(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompile
	}

	if *verbose {
		clidisplay.Info(fmt.Sprintf("disassembly of %s", input))
	}

	dis := bytecode.NewDisassembler(os.Stdout)
	dis.ShowFlow = *flow
	dis.ShowStack = *stack
	dis.HideConstants = *noConstants
	dis.HideLines = *noLines
	if err := dis.DisassemblePrototype(bytecode.ScriptEntryName, proto); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompile
	}
	return exitSuccess
}

// loadForDisasm accepts either a .tbc container (read back with placeholder
// function constants) or a source file, which it compiles first.
func loadForDisasm(input string) (*bytecode.Prototype, error) {
	if strings.HasSuffix(input, ".tbc") {
		f, err := os.Open(input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		chunk, err := bytefile.Read(f)
		if err != nil {
			return nil, err
		}
		return &bytecode.Prototype{
			Name:   bytecode.ScriptEntryName,
			Source: input,
			Chunk:  &bytecode.Chunk{Code: chunk.Code, Lines: chunk.Lines, Consts: chunk.Consts},
		}, nil
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	source := string(data)
	reporter := errs.NewReporter(source)
	p := parser.New(lexer.New(source, reporter), reporter)
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		clidisplay.PrintErrors(reporter)
		return nil, fmt.Errorf("%s: parse failed", input)
	}
	mod, err := compiler.Compile(prog, input)
	if err != nil {
		return nil, err
	}
	return mod.Functions[bytecode.ScriptEntryName], nil
}
