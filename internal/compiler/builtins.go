package compiler

import (
	"fmt"

	"github.com/xirelogy/tela/internal/ast"
	"github.com/xirelogy/tela/internal/runtime"
)

func builtinName(expr ast.Expression) (string, bool) {
	if ident, ok := expr.(*ast.Identifier); ok {
		if _, exists := runtime.LookupByName(ident.Name); exists {
			return ident.Name, true
		}
	}
	return "", false
}

func (fc *funcCompiler) emitBuiltin(name string, argc int) error {
	spec, ok := runtime.LookupByName(name)
	if !ok {
		return fmt.Errorf("unknown builtin %s", name)
	}
	if argc < spec.MinArity || argc > spec.MaxArity {
		return errArgs(name, spec.MinArity, spec.MaxArity, argc)
	}
	fc.emitByte(spec.Opcode)
	fc.emitByte(byte(argc))
	return nil
}

func errArgs(name string, min, max, got int) error {
	if min == max {
		return fmt.Errorf("builtin %s expects %d args, got %d", name, min, got)
	}
	return fmt.Errorf("builtin %s expects %d-%d args, got %d", name, min, max, got)
}
