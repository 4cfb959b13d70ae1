package tonumber

import (
	"github.com/xirelogy/tela/internal/runtime"
	"github.com/xirelogy/tela/internal/vm"
)

const opcode byte = 0x83

func init() {
	runtime.Register(runtime.Spec{
		Name:     "toNumber",
		Opcode:   opcode,
		MinArity: 1,
		MaxArity: 1,
		Handler:  runToNumber,
	})
}

func runToNumber(rt *vm.VM, argc int) (vm.Value, error) {
	v := rt.Pop()
	rt.Push(vm.Number(vm.ToNumber(v)))
	return vm.Value{}, nil
}
