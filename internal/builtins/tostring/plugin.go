package tostring

import (
	"github.com/xirelogy/tela/internal/runtime"
	"github.com/xirelogy/tela/internal/vm"
)

const opcode byte = 0x84

func init() {
	runtime.Register(runtime.Spec{
		Name:     "toString",
		Opcode:   opcode,
		MinArity: 1,
		MaxArity: 1,
		Handler:  runToString,
	})
}

func runToString(rt *vm.VM, argc int) (vm.Value, error) {
	v := rt.Pop()
	rt.Push(vm.String(vm.Stringify(v)))
	return vm.Value{}, nil
}
