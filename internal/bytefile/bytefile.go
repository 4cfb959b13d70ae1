// Package bytefile implements the persisted bytecode container written by
// the compile CLI and read back by disasm. It is a strict collaborator
// format: the core VM loads modules straight from a freshly compiled
// *bytecode.Module and never touches this package.
package bytefile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/xirelogy/tela/internal/bytecode"
)

// Magic identifies a tela bytecode file.
var Magic = [3]byte{'T', 'B', 'C'}

// Version is the only container version this package writes or accepts.
const Version byte = 1

const (
	tagNil byte = iota
	tagBool
	tagNumber
	tagString
	tagFunction
)

// Write encodes a single prototype's chunk to w in the TBC container format:
// magic, version, code, line table, constant pool. Nested function
// prototypes in the constant pool are written as a function placeholder tag
// only (value 4); the format does not recurse into nested chunks, matching
// the source's ahead-of-time writer, which persists only the entry chunk.
func Write(w io.Writer, proto *bytecode.Prototype) error {
	if proto == nil || proto.Chunk == nil {
		return fmt.Errorf("bytefile: nil prototype")
	}
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{Version}); err != nil {
		return err
	}
	chunk := proto.Chunk
	if err := writeU32(w, uint32(len(chunk.Code))); err != nil {
		return err
	}
	if _, err := w.Write(chunk.Code); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(chunk.Lines))); err != nil {
		return err
	}
	for _, line := range chunk.Lines {
		if err := writeU32(w, uint32(line)); err != nil {
			return err
		}
	}
	if err := writeU32(w, uint32(len(chunk.Consts))); err != nil {
		return err
	}
	for _, c := range chunk.Consts {
		if err := writeValue(w, c); err != nil {
			return err
		}
	}
	return nil
}

// Chunk is the decoded form of a persisted container: bare code/lines/consts
// without the surrounding Prototype metadata (name, params, upvalues), which
// the container does not carry.
type Chunk struct {
	Code   []byte
	Lines  []int
	Consts []interface{}
}

// FunctionPlaceholder marks a constant slot that held a nested function
// prototype at write time; the container format does not persist nested
// chunks, so reading one back yields this sentinel instead of a prototype.
type FunctionPlaceholder struct{}

// Read decodes a container previously produced by Write.
func Read(r io.Reader) (*Chunk, error) {
	var magic [3]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("bytefile: reading magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("bytefile: bad magic %q", magic)
	}
	var version [1]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, fmt.Errorf("bytefile: reading version: %w", err)
	}
	if version[0] != Version {
		return nil, fmt.Errorf("bytefile: unsupported version %d", version[0])
	}

	codeLen, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("bytefile: reading code length: %w", err)
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, fmt.Errorf("bytefile: reading code: %w", err)
	}

	lineCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("bytefile: reading line count: %w", err)
	}
	lines := make([]int, lineCount)
	for i := range lines {
		v, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("bytefile: reading line %d: %w", i, err)
		}
		lines[i] = int(v)
	}

	constCount, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("bytefile: reading constant count: %w", err)
	}
	consts := make([]interface{}, constCount)
	for i := range consts {
		v, err := readValue(r)
		if err != nil {
			return nil, fmt.Errorf("bytefile: reading constant %d: %w", i, err)
		}
		consts[i] = v
	}

	return &Chunk{Code: code, Lines: lines, Consts: consts}, nil
}

func writeValue(w io.Writer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		_, err := w.Write([]byte{tagNil})
		return err
	case bool:
		b := byte(0)
		if val {
			b = 1
		}
		_, err := w.Write([]byte{tagBool, b})
		return err
	case float64:
		if _, err := w.Write([]byte{tagNumber}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, math.Float64bits(val))
	case string:
		if _, err := w.Write([]byte{tagString}); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(val))); err != nil {
			return err
		}
		_, err := io.WriteString(w, val)
		return err
	case *bytecode.Prototype:
		_, err := w.Write([]byte{tagFunction})
		return err
	default:
		return fmt.Errorf("bytefile: unsupported constant type %T", v)
	}
}

func readValue(r io.Reader) (interface{}, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, err
	}
	switch tag[0] {
	case tagNil:
		return nil, nil
	case tagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case tagNumber:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case tagString:
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return string(buf), nil
	case tagFunction:
		return FunctionPlaceholder{}, nil
	default:
		return nil, fmt.Errorf("bytefile: unknown constant tag %d", tag[0])
	}
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
