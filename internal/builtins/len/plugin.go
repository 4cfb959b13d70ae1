package len

import (
	"github.com/xirelogy/tela/internal/runtime"
	"github.com/xirelogy/tela/internal/vm"
)

const opcode byte = 0x81

func init() {
	runtime.Register(runtime.Spec{
		Name:     "len",
		Opcode:   opcode,
		MinArity: 1,
		MaxArity: 1,
		Handler:  runLen,
	})
}

func runLen(rt *vm.VM, argc int) (vm.Value, error) {
	v := rt.Pop()
	if v.Kind != vm.KindString {
		return vm.RuntimeErrorf(rt, "len expects a string, got %s", vm.TypeName(v))
	}
	rt.Push(vm.Number(float64(len(v.Str))))
	return vm.Value{}, nil
}
