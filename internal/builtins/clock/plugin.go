package clock

import (
	"time"

	"github.com/xirelogy/tela/internal/runtime"
	"github.com/xirelogy/tela/internal/vm"
)

const opcode byte = 0x80

// processStart anchors clock() to process start rather than wall-clock
// epoch, so the value is monotonic non-decreasing across a run regardless
// of system clock adjustments.
var processStart = time.Now()

func init() {
	runtime.Register(runtime.Spec{
		Name:     "clock",
		Opcode:   opcode,
		MinArity: 0,
		MaxArity: 0,
		Handler:  runClock,
	})
}

func runClock(rt *vm.VM, argc int) (vm.Value, error) {
	rt.Push(vm.Number(time.Since(processStart).Seconds()))
	return vm.Value{}, nil
}
