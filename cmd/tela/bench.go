package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/xirelogy/tela/internal/clidisplay"
	"github.com/xirelogy/tela/internal/compiler"
	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/lexer"
	"github.com/xirelogy/tela/internal/parser"
	"github.com/xirelogy/tela/internal/vm"
)

// runBench compiles and runs each file once, reporting wall-clock time,
// instruction count and memory growth. It is a micro-benchmark driver, not a
// statistically rigorous one: no warmup, no repeat, one sample per file.
func runBench(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: tela bench <file...>")
		return exitCompile
	}

	failed := false
	for _, path := range args {
		if !benchOne(path) {
			failed = true
		}
	}
	if failed {
		return exitRuntime
	}
	return exitSuccess
}

func benchOne(path string) bool {
	sp := clidisplay.BeginPhase(path)

	data, err := os.ReadFile(path)
	if err != nil {
		sp.Done(false)
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	source := string(data)

	reporter := errs.NewReporter(source)
	p := parser.New(lexer.New(source, reporter), reporter)
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		sp.Done(false)
		clidisplay.PrintErrors(reporter)
		return false
	}

	mod, err := compiler.Compile(prog, path)
	if err != nil {
		sp.Done(false)
		fmt.Fprintln(os.Stderr, err)
		return false
	}

	var instructions int64
	machine := vm.New()
	machine.SetTraceHook(func(vm.TraceInfo) {
		instructions++
	})
	if err := machine.LoadModule(mod); err != nil {
		sp.Done(false)
		fmt.Fprintln(os.Stderr, err)
		return false
	}

	var before runtime.MemStats
	runtime.ReadMemStats(&before)
	start := time.Now()

	if _, err := machine.RunScript(nil); err != nil {
		sp.Done(false)
		clidisplay.PrintRuntimeError(err)
		return false
	}

	elapsed := time.Since(start)
	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	sp.Done(true)
	stats := machine.GCStats()
	heapDelta := int64(after.HeapAlloc) - int64(before.HeapAlloc)
	fmt.Printf("  elapsed=%s instructions=%d heap-delta=%d bytes gc-cycles=%d arena-bytes=%d\n",
		elapsed, instructions, heapDelta, stats.CycleCount, stats.BytesAllocated)
	return true
}
