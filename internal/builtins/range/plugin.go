package rangebuiltin

import (
	"fmt"

	"github.com/xirelogy/tela/internal/runtime"
	"github.com/xirelogy/tela/internal/vm"
)

const opcode byte = 0x85

func init() {
	runtime.Register(runtime.Spec{
		Name:     "range",
		Opcode:   opcode,
		MinArity: 1,
		MaxArity: 1,
		Handler:  runRange,
	})
}

// runRange is a stub: the runtime has no sequence or iterator value type, so
// range(n) cannot produce something a script could loop over. It validates
// its argument and returns a textual placeholder rather than pretending to
// build a real range.
func runRange(rt *vm.VM, argc int) (vm.Value, error) {
	v := rt.Pop()
	if v.Kind != vm.KindNumber {
		return vm.RuntimeErrorf(rt, "range expects a number, got %s", vm.TypeName(v))
	}
	rt.Push(vm.String(fmt.Sprintf("range(0..%d)", int(v.Num))))
	return vm.Value{}, nil
}
