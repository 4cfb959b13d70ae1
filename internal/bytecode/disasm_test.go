package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisassembleBuiltinName(t *testing.T) {
	const opcode byte = 0x81
	if _, ok := LookupBuiltinInfo(opcode); !ok {
		RegisterBuiltinInfo("len", opcode, 1, 1)
	}
	proto := &Prototype{
		Name: "test",
		Chunk: &Chunk{
			Code:  []byte{opcode, 1},
			Lines: []int{1, 1},
		},
	}
	var buf bytes.Buffer
	dis := NewDisassembler(&buf)
	if err := dis.DisassemblePrototype("test", proto); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "OP_BUILTIN_len") {
		t.Fatalf("expected builtin name, got:\n%s", out)
	}
	if !strings.Contains(out, "argc=1") {
		t.Fatalf("expected argc operand, got:\n%s", out)
	}
}
