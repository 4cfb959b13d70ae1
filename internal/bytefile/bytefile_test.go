package bytefile_test

import (
	"bytes"
	"testing"

	"github.com/xirelogy/tela/internal/bytecode"
	"github.com/xirelogy/tela/internal/bytefile"
)

func TestWriteReadRoundTrip(t *testing.T) {
	chunk := &bytecode.Chunk{
		Code:   []byte{bytecode.OP_CONST, 0, bytecode.OP_PRINT, bytecode.OP_RETURN},
		Lines:  []int{1, 1, 1, 1},
		Consts: []interface{}{"hi"},
	}
	proto := &bytecode.Prototype{Name: "<script>", Source: "inline", Chunk: chunk}

	var buf bytes.Buffer
	if err := bytefile.Write(&buf, proto); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := bytefile.Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got.Code, chunk.Code) {
		t.Fatalf("code mismatch: got %v want %v", got.Code, chunk.Code)
	}
	if len(got.Lines) != len(chunk.Lines) {
		t.Fatalf("line count mismatch: got %d want %d", len(got.Lines), len(chunk.Lines))
	}
	if len(got.Consts) != 1 || got.Consts[0] != "hi" {
		t.Fatalf("constant mismatch: got %#v", got.Consts)
	}
}

func TestWriteReadAllValueKinds(t *testing.T) {
	chunk := &bytecode.Chunk{
		Code:   []byte{bytecode.OP_RETURN},
		Lines:  []int{1},
		Consts: []interface{}{nil, true, false, 3.5, "s"},
	}
	proto := &bytecode.Prototype{Chunk: chunk}

	var buf bytes.Buffer
	if err := bytefile.Write(&buf, proto); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := bytefile.Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Consts) != 5 {
		t.Fatalf("expected 5 constants, got %d", len(got.Consts))
	}
	if got.Consts[0] != nil {
		t.Fatalf("expected nil, got %#v", got.Consts[0])
	}
	if got.Consts[1] != true || got.Consts[2] != false {
		t.Fatalf("bool mismatch: %#v %#v", got.Consts[1], got.Consts[2])
	}
	if got.Consts[3] != 3.5 {
		t.Fatalf("number mismatch: %#v", got.Consts[3])
	}
	if got.Consts[4] != "s" {
		t.Fatalf("string mismatch: %#v", got.Consts[4])
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("XXX\x01")
	if _, err := bytefile.Read(buf); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestReadRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(bytefile.Magic[:])
	buf.WriteByte(0x09)
	if _, err := bytefile.Read(&buf); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}

func TestNestedFunctionConstantBecomesPlaceholder(t *testing.T) {
	nested := &bytecode.Prototype{Name: "inner", Chunk: &bytecode.Chunk{Code: []byte{bytecode.OP_RETURN}, Lines: []int{1}}}
	chunk := &bytecode.Chunk{
		Code:   []byte{bytecode.OP_CLOSURE, 0, 0},
		Lines:  []int{1, 1, 1},
		Consts: []interface{}{nested},
	}
	proto := &bytecode.Prototype{Chunk: chunk}

	var buf bytes.Buffer
	if err := bytefile.Write(&buf, proto); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := bytefile.Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, ok := got.Consts[0].(bytefile.FunctionPlaceholder); !ok {
		t.Fatalf("expected function placeholder, got %#v", got.Consts[0])
	}
}
