package compiler

import "github.com/xirelogy/tela/internal/bytecode"

type Chunk = bytecode.Chunk
type Prototype = bytecode.Prototype
type Module = bytecode.Module
type Upvalue = bytecode.Upvalue

const ScriptEntryName = bytecode.ScriptEntryName
