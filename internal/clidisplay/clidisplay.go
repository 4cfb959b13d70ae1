// Package clidisplay renders diagnostics and progress for the peripheral
// repl/compile/disasm/bench commands. It never touches script stdout: print
// writes straight to the VM's configured writer, so colored output here has
// no bearing on the byte-for-byte output properties the core guarantees.
package clidisplay

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/xirelogy/tela/internal/errs"
)

var (
	errorStyleBG = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	errorColorFG = pterm.FgRed
	warnStyleBG  = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	infoColorFG  = pterm.FgLightGreen
	successColor = pterm.FgLightGreen
)

// PrintErrors renders every error accumulated in a reporter using the
// kind-tagged banner plus caret diagnostic from errs.Reporter.Format.
func PrintErrors(r *errs.Reporter) {
	for _, e := range r.Errors() {
		printBanner(e.Kind)
		fmt.Println(r.Format(e))
	}
}

func printBanner(kind errs.Kind) {
	switch kind {
	case errs.Runtime:
		errorStyleBG.Print(" runtime error ")
	case errs.Compilation:
		errorStyleBG.Print(" internal error ")
	default:
		warnStyleBG.Print(" " + kind.String() + " ")
	}
	fmt.Println()
}

// PrintRuntimeError renders a plain runtime failure message (the REPL path,
// which has no batch of accumulated errs.Error values to walk).
func PrintRuntimeError(err error) {
	errorStyleBG.Print(" runtime error ")
	errorColorFG.Println(" " + err.Error())
}

// Info prints an informational banner line, used for REPL startup text and
// disassembly section headers.
func Info(msg string) {
	infoColorFG.Println(msg)
}

// Success prints a success-styled line.
func Success(msg string) {
	successColor.Println(msg)
}

// PhaseSpinner tracks one bench run's per-file timing display.
type PhaseSpinner struct {
	spinner *pterm.SpinnerPrinter
	label   string
	start   time.Time
}

// BeginPhase starts a labeled spinner, used by bench to show per-file progress.
func BeginPhase(label string) *PhaseSpinner {
	sp, _ := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(infoColorFG)).Start(label + "...")
	return &PhaseSpinner{spinner: sp, label: label, start: time.Now()}
}

// Done stops the spinner, reporting success or failure with elapsed time.
func (p *PhaseSpinner) Done(success bool) {
	if p == nil || p.spinner == nil {
		return
	}
	elapsed := time.Since(p.start)
	if success {
		p.spinner.Success(fmt.Sprintf("%s (%.3fs)", p.label, elapsed.Seconds()))
	} else {
		p.spinner.Fail(fmt.Sprintf("%s failed (%.3fs)", p.label, elapsed.Seconds()))
	}
}
