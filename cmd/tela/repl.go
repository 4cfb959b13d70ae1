package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/xirelogy/tela/internal/clidisplay"
	"github.com/xirelogy/tela/internal/compiler"
	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/lexer"
	"github.com/xirelogy/tela/internal/parser"
	"github.com/xirelogy/tela/internal/vm"
)

const historyCapacity = 100

// replSession holds a shell's persistent state across submissions: the VM
// keeps its globals alive, and history remembers the last accepted lines.
type replSession struct {
	machine *vm.VM
	history []string
}

func runRepl(args []string) int {
	clidisplay.Info("tela repl - type :help for shell commands")
	sess := &replSession{machine: vm.New()}

	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	fmt.Print("> ")
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if buf.Len() == 0 && strings.HasPrefix(trimmed, ":") {
			if sess.runCommand(trimmed) {
				return exitSuccess
			}
			fmt.Print("> ")
			continue
		}

		buf.WriteString(line)
		buf.WriteByte('\n')

		if endsSubmission(trimmed) {
			source := buf.String()
			buf.Reset()
			sess.submit(source)
			fmt.Print("> ")
			continue
		}
		fmt.Print("... ")
	}
	return exitSuccess
}

// endsSubmission reports whether the accumulated buffer looks complete: the
// last non-empty line ends with the statement terminator or a closing brace
// (covering multi-line fn/if/while bodies typed across several lines).
func endsSubmission(trimmedLastLine string) bool {
	return strings.HasSuffix(trimmedLastLine, ";") || strings.HasSuffix(trimmedLastLine, "}")
}

func (s *replSession) submit(source string) {
	if strings.TrimSpace(source) == "" {
		return
	}
	s.recordHistory(source)

	reporter := errs.NewReporter(source)
	p := parser.New(lexer.New(source, reporter), reporter)
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		clidisplay.PrintErrors(reporter)
		return
	}

	mod, err := compiler.Compile(prog, "repl")
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := s.machine.LoadModule(mod); err != nil {
		fmt.Println(err)
		return
	}
	if _, err := s.machine.RunScript(nil); err != nil {
		clidisplay.PrintRuntimeError(err)
	}
}

func (s *replSession) recordHistory(line string) {
	s.history = append(s.history, line)
	if len(s.history) > historyCapacity {
		s.history = s.history[len(s.history)-historyCapacity:]
	}
}

// runCommand handles a ":"-prefixed shell command. It returns true when the
// session should end.
func (s *replSession) runCommand(cmd string) bool {
	switch cmd {
	case ":quit":
		return true
	case ":help":
		fmt.Println("commands: :quit :help :history :gc :globals :stats")
	case ":history":
		for _, line := range s.history {
			fmt.Println(strings.TrimRight(line, "\n"))
		}
	case ":gc":
		s.machine.SetGCStressMode(true)
		clidisplay.Success("stress-mode garbage collection enabled")
	case ":globals":
		for name, v := range s.machine.Globals() {
			fmt.Printf("%s = %s\n", name, vm.Stringify(v))
		}
	case ":stats":
		stats := s.machine.GCStats()
		fmt.Printf("bytesAllocated=%d nextThreshold=%d cycleCount=%d\n",
			stats.BytesAllocated, stats.NextThreshold, stats.CycleCount)
	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return false
}
