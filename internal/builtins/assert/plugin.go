package assert

import (
	"github.com/xirelogy/tela/internal/runtime"
	"github.com/xirelogy/tela/internal/vm"
)

const opcode byte = 0x82

func init() {
	runtime.Register(runtime.Spec{
		Name:     "assert",
		Opcode:   opcode,
		MinArity: 1,
		MaxArity: 2,
		Handler:  runAssert,
	})
}

func runAssert(rt *vm.VM, argc int) (vm.Value, error) {
	var message string
	if argc == 2 {
		message = vm.Stringify(rt.Pop())
	}
	v := rt.Pop()
	if !vm.Truthy(v) {
		if message != "" {
			return vm.RuntimeErrorf(rt, "assertion failed: %s", message)
		}
		return vm.RuntimeErrorf(rt, "assertion failed")
	}
	rt.Push(vm.Nil())
	return vm.Value{}, nil
}
