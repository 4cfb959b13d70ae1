package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xirelogy/tela/internal/bytecode"
)

// Stringify renders a value the way print and toString present it to
// scripts: no quoting on strings, shortest round-trippable form for numbers.
func Stringify(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindString:
		return v.Str
	case KindFunction:
		name := v.Func.Name
		if name == bytecode.ScriptEntryName {
			return bytecode.ScriptEntryName
		}
		if name == "" {
			name = "anonymous"
		}
		return fmt.Sprintf("<fn %s>", name)
	default:
		return "<unknown>"
	}
}

// ToNumber implements the built-in toNumber coercion: numbers pass through,
// bool maps to 0/1, nil maps to 0, strings parse leniently (unparsable
// input yields 0 rather than an error), anything else also yields 0.
func ToNumber(v Value) float64 {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindBool:
		if v.B {
			return 1
		}
		return 0
	case KindNil:
		return 0
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
