// Package compiler performs a single pass over an ast.Program, emitting
// bytecode chunks with lexical scoping, closure upvalue capture, constant
// folding and backpatched jumps.
package compiler

import (
	"fmt"
	"math"

	"github.com/xirelogy/tela/internal/ast"
	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/token"
)

const maxParams = 255
const maxLocals = 255

// Compile turns a parsed program into a Module containing the synthesized
// top-level script prototype. Nested functions are not listed in the Module;
// each is a *Prototype constant in the chunk of its enclosing function.
func Compile(prog *ast.Program, source string) (*Module, error) {
	return CompileWithReporter(prog, source, nil)
}

// CompileWithReporter is like Compile but reports Semantic compile errors
// into reporter (which may be nil) in addition to returning the first one.
func CompileWithReporter(prog *ast.Program, source string, reporter *errs.Reporter) (*Module, error) {
	return CompileWithOptions(prog, source, reporter, Options{})
}

// Options controls optional compiler behavior exposed to the compile CLI.
type Options struct {
	// DisableFold turns off compile-time constant folding (the compile
	// tool's -O0 flag), leaving literal arithmetic to be evaluated by the
	// VM at run time instead of collapsed into a single CONST at emission.
	DisableFold bool
}

// CompileWithOptions is the full entry point; Compile and CompileWithReporter
// call it with default options.
func CompileWithOptions(prog *ast.Program, source string, reporter *errs.Reporter, opts Options) (*Module, error) {
	fc := &funcCompiler{
		chunk:       &Chunk{},
		scope:       newScope(nil),
		source:      source,
		isScript:    true,
		reporter:    reporter,
		disableFold: opts.DisableFold,
	}
	if err := fc.compileStatements(prog.Statements); err != nil {
		return nil, err
	}
	if fc.lastOp() != OP_RETURN {
		fc.emitByte(OP_NIL)
		fc.emitByte(OP_RETURN)
	}
	proto := &Prototype{
		Name:      ScriptEntryName,
		Source:    source,
		NumParams: 0,
		Chunk:     fc.chunk,
		Upvalues:  fc.scope.upvalues,
		MaxLocals: fc.scope.maxSlots,
	}
	return &Module{Functions: map[string]*Prototype{ScriptEntryName: proto}}, nil
}

// loopCtx tracks the pending jumps of one enclosing loop so break/continue
// can be patched once the loop's extent is known.
type loopCtx struct {
	continueTarget int
	localBase      int
	breakJumps     []int
}

// funcCompiler emits one function's chunk. isScript is true only for the
// synthesized top-level entry point, where depth-0 declarations become
// globals rather than locals.
type funcCompiler struct {
	chunk       *Chunk
	scope       *scope
	source      string
	isScript    bool
	line        int
	loops       []*loopCtx
	reporter    *errs.Reporter
	disableFold bool
}

func newNestedFuncCompiler(enclosing *scope, source string, reporter *errs.Reporter, disableFold bool) *funcCompiler {
	return &funcCompiler{
		chunk:       &Chunk{},
		scope:       newScope(enclosing),
		source:      source,
		reporter:    reporter,
		disableFold: disableFold,
	}
}

func (fc *funcCompiler) lastOp() byte {
	if len(fc.chunk.Code) == 0 {
		return 0
	}
	return fc.chunk.Code[len(fc.chunk.Code)-1]
}

func (fc *funcCompiler) compileStatements(stmts []ast.Statement) error {
	for _, stmt := range stmts {
		if err := fc.compileStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (fc *funcCompiler) compileStatement(stmt ast.Statement) error {
	fc.setLine(stmt.Pos().Line)
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		if err := fc.compileExpr(s.Expression); err != nil {
			return err
		}
		fc.emitByte(OP_POP)
		return nil
	case *ast.VarDecl:
		return fc.compileVarDecl(s)
	case *ast.BlockStmt:
		return fc.compileBlockScoped(s)
	case *ast.IfStmt:
		return fc.compileIf(s)
	case *ast.WhileStmt:
		return fc.compileWhile(s)
	case *ast.BreakStmt:
		return fc.compileBreak(s)
	case *ast.ContinueStmt:
		return fc.compileContinue(s)
	case *ast.ReturnStmt:
		return fc.compileReturn(s)
	case *ast.PrintStmt:
		return fc.compilePrint(s)
	case *ast.FuncDecl:
		return fc.compileFuncDecl(s)
	default:
		return fc.semanticErr(stmt.Pos(), "unsupported statement type %T", stmt)
	}
}

func (fc *funcCompiler) compileVarDecl(decl *ast.VarDecl) error {
	if decl.Init != nil {
		if err := fc.compileExpr(decl.Init); err != nil {
			return err
		}
	} else {
		fc.emitByte(OP_NIL)
	}
	if fc.isScript && fc.scope.depth == 0 {
		return fc.emitGlobalSet(decl.Name, true)
	}
	if len(fc.scope.locals) >= maxLocals {
		return fc.semanticErr(decl.Position, "too many local variables in one function")
	}
	if _, ok := fc.scope.addLocal(decl.Name); !ok {
		return fc.semanticErr(decl.Position, "variable %q already declared in this scope", decl.Name)
	}
	return nil
}

func (fc *funcCompiler) compileBlockScoped(block *ast.BlockStmt) error {
	fc.scope.enterBlock()
	err := fc.compileStatements(block.Statements)
	popped := fc.scope.leaveBlock()
	if err != nil {
		return err
	}
	for i := len(popped) - 1; i >= 0; i-- {
		if popped[i].captured {
			fc.emitByte(OP_CLOSE_UPVALUE)
		} else {
			fc.emitByte(OP_POP)
		}
	}
	return nil
}

func (fc *funcCompiler) compileIf(stmt *ast.IfStmt) error {
	if err := fc.compileExpr(stmt.Condition); err != nil {
		return err
	}
	elseJump, err := fc.emitJump(OP_JUMP_IF_FALSE)
	if err != nil {
		return err
	}
	fc.emitByte(OP_POP)
	if err := fc.compileBlockScoped(stmt.Then); err != nil {
		return err
	}
	endJump, err := fc.emitJump(OP_JUMP)
	if err != nil {
		return err
	}
	if err := fc.patchJump(elseJump); err != nil {
		return err
	}
	fc.emitByte(OP_POP)
	if stmt.Else != nil {
		if err := fc.compileStatement(stmt.Else); err != nil {
			return err
		}
	}
	return fc.patchJump(endJump)
}

func (fc *funcCompiler) compileWhile(stmt *ast.WhileStmt) error {
	loopStart := len(fc.chunk.Code)
	if err := fc.compileExpr(stmt.Condition); err != nil {
		return err
	}
	exitJump, err := fc.emitJump(OP_JUMP_IF_FALSE)
	if err != nil {
		return err
	}
	fc.emitByte(OP_POP)

	loop := &loopCtx{continueTarget: loopStart, localBase: len(fc.scope.locals)}
	fc.loops = append(fc.loops, loop)
	bodyErr := fc.compileBlockScoped(stmt.Body)
	fc.loops = fc.loops[:len(fc.loops)-1]
	if bodyErr != nil {
		return bodyErr
	}

	if err := fc.emitLoop(loop.continueTarget); err != nil {
		return err
	}
	if err := fc.patchJump(exitJump); err != nil {
		return err
	}
	fc.emitByte(OP_POP)
	for _, pos := range loop.breakJumps {
		if err := fc.patchJump(pos); err != nil {
			return err
		}
	}
	return nil
}

func (fc *funcCompiler) compileBreak(stmt *ast.BreakStmt) error {
	if len(fc.loops) == 0 {
		return fc.semanticErr(stmt.Position, "break outside loop")
	}
	loop := fc.loops[len(fc.loops)-1]
	fc.emitLoopCleanup(loop.localBase)
	pos, err := fc.emitJump(OP_JUMP)
	if err != nil {
		return err
	}
	loop.breakJumps = append(loop.breakJumps, pos)
	return nil
}

func (fc *funcCompiler) compileContinue(stmt *ast.ContinueStmt) error {
	if len(fc.loops) == 0 {
		return fc.semanticErr(stmt.Position, "continue outside loop")
	}
	loop := fc.loops[len(fc.loops)-1]
	fc.emitLoopCleanup(loop.localBase)
	return fc.emitLoop(loop.continueTarget)
}

// emitLoopCleanup pops (or closes, if captured) every local declared since
// base without mutating scope bookkeeping, so a break/continue jump leaves
// the stack exactly as it would be after a normal block exit.
func (fc *funcCompiler) emitLoopCleanup(base int) {
	for i := len(fc.scope.locals) - 1; i >= base; i-- {
		if fc.scope.locals[i].captured {
			fc.emitByte(OP_CLOSE_UPVALUE)
		} else {
			fc.emitByte(OP_POP)
		}
	}
}

func (fc *funcCompiler) compileReturn(stmt *ast.ReturnStmt) error {
	if stmt.Value != nil {
		if err := fc.compileExpr(stmt.Value); err != nil {
			return err
		}
	} else {
		fc.emitByte(OP_NIL)
	}
	fc.emitByte(OP_RETURN)
	return nil
}

func (fc *funcCompiler) compilePrint(stmt *ast.PrintStmt) error {
	if len(stmt.Arguments) > maxParams {
		return fc.semanticErr(stmt.Position, "print cannot take more than %d arguments", maxParams)
	}
	for _, arg := range stmt.Arguments {
		if err := fc.compileExpr(arg); err != nil {
			return err
		}
	}
	fc.emitByte(OP_PRINT)
	fc.emitByte(byte(len(stmt.Arguments)))
	return nil
}

func (fc *funcCompiler) compileFuncDecl(fn *ast.FuncDecl) error {
	if len(fn.Params) > maxParams {
		return fc.semanticErr(fn.Position, "function %q cannot declare more than %d parameters", fn.Name, maxParams)
	}
	asGlobal := fc.isScript && fc.scope.depth == 0

	if !asGlobal {
		if len(fc.scope.locals) >= maxLocals {
			return fc.semanticErr(fn.Position, "too many local variables in one function")
		}
		if _, ok := fc.scope.addLocal(fn.Name); !ok {
			return fc.semanticErr(fn.Position, "variable %q already declared in this scope", fn.Name)
		}
	}

	idx, upvalues, err := fc.compileChildPrototype(fn.Name, fn.Params, fn.Body)
	if err != nil {
		return err
	}
	if err := fc.emitClosure(idx, upvalues); err != nil {
		return err
	}

	if asGlobal {
		return fc.emitGlobalSet(fn.Name, true)
	}
	// The local slot was reserved before the child prototype was compiled so
	// the function can reference itself recursively via an upvalue; stack
	// discipline guarantees OP_CLOSURE's push lands exactly on that slot,
	// so no separate store is needed (mirrors compileVarDecl).
	return nil
}

func (fc *funcCompiler) compileChildPrototype(name string, params []ast.Param, body *ast.BlockStmt) (byte, []Upvalue, error) {
	child := newNestedFuncCompiler(fc.scope, fc.source, fc.reporter, fc.disableFold)
	for _, p := range params {
		if _, ok := child.scope.addLocal(p.Name); !ok {
			return 0, nil, fc.semanticErr(p.Position, "duplicate parameter name %q", p.Name)
		}
	}
	if err := child.compileStatements(body.Statements); err != nil {
		return 0, nil, err
	}
	if child.lastOp() != OP_RETURN {
		child.emitByte(OP_NIL)
		child.emitByte(OP_RETURN)
	}
	proto := &Prototype{
		Name:      name,
		Source:    fc.source,
		NumParams: len(params),
		Chunk:     child.chunk,
		Upvalues:  child.scope.upvalues,
		MaxLocals: child.scope.maxSlots,
	}
	idx, ok := fc.chunk.AddConstant(proto)
	if !ok {
		return 0, nil, fc.semanticErr(body.Position, "too many constants in one chunk")
	}
	return idx, proto.Upvalues, nil
}

func (fc *funcCompiler) emitClosure(constIdx byte, upvalues []Upvalue) error {
	if len(upvalues) > 255 {
		return fc.semanticErr(token.Position{Line: fc.line}, "too many captured variables in one closure")
	}
	fc.emitBytes(OP_CLOSURE, constIdx, byte(len(upvalues)))
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.IsLocal {
			isLocal = 1
		}
		fc.emitBytes(isLocal, uv.Index)
	}
	return nil
}

func (fc *funcCompiler) compileExpr(expr ast.Expression) error {
	fc.setLine(expr.Pos().Line)
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		return fc.emitConst(e.Value)
	case *ast.StringLiteral:
		return fc.emitConst(e.Value)
	case *ast.BoolLiteral:
		if e.Value {
			fc.emitByte(OP_TRUE)
		} else {
			fc.emitByte(OP_FALSE)
		}
		return nil
	case *ast.NilLiteral:
		fc.emitByte(OP_NIL)
		return nil
	case *ast.Identifier:
		return fc.compileIdentifier(e)
	case *ast.UnaryExpr:
		return fc.compileUnary(e)
	case *ast.BinaryExpr:
		return fc.compileBinary(e)
	case *ast.AssignExpr:
		return fc.compileAssign(e)
	case *ast.CallExpr:
		return fc.compileCall(e)
	default:
		return fc.semanticErr(expr.Pos(), "unsupported expression type %T", expr)
	}
}

func (fc *funcCompiler) compileIdentifier(e *ast.Identifier) error {
	if slot, ok := fc.scope.resolveLocal(e.Name); ok {
		fc.emitBytes(OP_GET_LOCAL, slot)
		return nil
	}
	if idx, ok := fc.scope.resolveUpvalue(e.Name); ok {
		fc.emitBytes(OP_GET_UPVALUE, idx)
		return nil
	}
	return fc.emitGlobalGet(e.Name)
}

func (fc *funcCompiler) compileUnary(e *ast.UnaryExpr) error {
	if e.Operator == token.Minus && !fc.disableFold {
		if v, ok := foldNumber(e); ok {
			return fc.emitConst(v)
		}
	}
	if err := fc.compileExpr(e.Operand); err != nil {
		return err
	}
	switch e.Operator {
	case token.Minus:
		fc.emitByte(OP_NEG)
	case token.Bang:
		fc.emitByte(OP_NOT)
	default:
		return fc.semanticErr(e.Position, "unsupported unary operator %s", e.Operator)
	}
	return nil
}

func (fc *funcCompiler) compileBinary(e *ast.BinaryExpr) error {
	if e.Operator == token.AndAnd || e.Operator == token.OrOr {
		return fc.compileLogical(e)
	}
	if !fc.disableFold {
		if v, ok := foldNumber(e); ok {
			return fc.emitConst(v)
		}
	}
	if err := fc.compileExpr(e.Left); err != nil {
		return err
	}
	if err := fc.compileExpr(e.Right); err != nil {
		return err
	}
	switch e.Operator {
	case token.Plus:
		fc.emitByte(OP_ADD)
	case token.Minus:
		fc.emitByte(OP_SUB)
	case token.Star:
		fc.emitByte(OP_MUL)
	case token.Slash:
		fc.emitByte(OP_DIV)
	case token.Percent:
		fc.emitByte(OP_MOD)
	case token.Equal:
		fc.emitByte(OP_EQ)
	case token.NotEqual:
		fc.emitByte(OP_NEQ)
	case token.Less:
		fc.emitByte(OP_LT)
	case token.LessEqual:
		fc.emitByte(OP_LTE)
	case token.Greater:
		fc.emitByte(OP_GT)
	case token.GreaterEqual:
		fc.emitByte(OP_GTE)
	default:
		return fc.semanticErr(e.Position, "unsupported binary operator %s", e.Operator)
	}
	return nil
}

// compileLogical implements short-circuit && and ||, each with its own
// conditional jump so the tested value is never popped prematurely.
func (fc *funcCompiler) compileLogical(e *ast.BinaryExpr) error {
	if err := fc.compileExpr(e.Left); err != nil {
		return err
	}
	var op byte
	if e.Operator == token.AndAnd {
		op = OP_JUMP_IF_FALSE
	} else {
		op = OP_JUMP_IF_TRUE
	}
	endJump, err := fc.emitJump(op)
	if err != nil {
		return err
	}
	fc.emitByte(OP_POP)
	if err := fc.compileExpr(e.Right); err != nil {
		return err
	}
	return fc.patchJump(endJump)
}

func (fc *funcCompiler) compileAssign(e *ast.AssignExpr) error {
	if err := fc.compileExpr(e.Value); err != nil {
		return err
	}
	name := e.Target.Name
	if slot, ok := fc.scope.resolveLocal(name); ok {
		fc.emitBytes(OP_SET_LOCAL, slot)
		return nil
	}
	if idx, ok := fc.scope.resolveUpvalue(name); ok {
		fc.emitBytes(OP_SET_UPVALUE, idx)
		return nil
	}
	return fc.emitGlobalSet(name, false)
}

func (fc *funcCompiler) compileCall(e *ast.CallExpr) error {
	if len(e.Arguments) > maxParams {
		return fc.semanticErr(e.Position, "call cannot pass more than %d arguments", maxParams)
	}
	if name, ok := builtinName(e.Callee); ok {
		for _, arg := range e.Arguments {
			if err := fc.compileExpr(arg); err != nil {
				return err
			}
		}
		return fc.emitBuiltin(name, len(e.Arguments))
	}
	if err := fc.compileExpr(e.Callee); err != nil {
		return err
	}
	for _, arg := range e.Arguments {
		if err := fc.compileExpr(arg); err != nil {
			return err
		}
	}
	fc.emitBytes(OP_CALL, byte(len(e.Arguments)))
	return nil
}

// foldNumber evaluates a literal-only numeric expression at compile time.
// Division and modulo by zero decline to fold, leaving the runtime operator
// to raise the proper error.
func foldNumber(e ast.Expression) (float64, bool) {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return n.Value, true
	case *ast.UnaryExpr:
		if n.Operator != token.Minus {
			return 0, false
		}
		v, ok := foldNumber(n.Operand)
		if !ok {
			return 0, false
		}
		return -v, true
	case *ast.BinaryExpr:
		l, lok := foldNumber(n.Left)
		r, rok := foldNumber(n.Right)
		if !lok || !rok {
			return 0, false
		}
		switch n.Operator {
		case token.Plus:
			return l + r, true
		case token.Minus:
			return l - r, true
		case token.Star:
			return l * r, true
		case token.Slash:
			if r == 0 {
				return 0, false
			}
			return l / r, true
		case token.Percent:
			if r == 0 {
				return 0, false
			}
			return math.Mod(l, r), true
		}
	}
	return 0, false
}

func (fc *funcCompiler) emitConst(v interface{}) error {
	idx, ok := fc.chunk.AddConstant(v)
	if !ok {
		return fc.semanticErr(token.Position{Line: fc.line}, "too many constants in one chunk")
	}
	fc.emitBytes(OP_CONST, idx)
	return nil
}

func (fc *funcCompiler) emitGlobalGet(name string) error {
	idx, ok := fc.chunk.AddConstant(name)
	if !ok {
		return fc.semanticErr(token.Position{Line: fc.line}, "too many constants in one chunk")
	}
	fc.emitBytes(OP_GET_GLOBAL, idx)
	return nil
}

func (fc *funcCompiler) emitGlobalSet(name string, define bool) error {
	idx, ok := fc.chunk.AddConstant(name)
	if !ok {
		return fc.semanticErr(token.Position{Line: fc.line}, "too many constants in one chunk")
	}
	if define {
		fc.emitBytes(OP_DEFINE_GLOBAL, idx)
	} else {
		fc.emitBytes(OP_SET_GLOBAL, idx)
	}
	return nil
}

func (fc *funcCompiler) emitByte(b byte) {
	fc.chunk.Write(b, fc.line)
}

func (fc *funcCompiler) emitBytes(bs ...byte) {
	for _, b := range bs {
		fc.emitByte(b)
	}
}

// emitJump writes op followed by a two-byte placeholder distance, returning
// the offset of the placeholder's first byte for a later patchJump call.
func (fc *funcCompiler) emitJump(op byte) (int, error) {
	fc.emitByte(op)
	fc.emitByte(0xff)
	fc.emitByte(0xff)
	return len(fc.chunk.Code) - 2, nil
}

// patchJump backfills the forward distance from just past the jump's operand
// to the current end of the chunk.
func (fc *funcCompiler) patchJump(pos int) error {
	dist := len(fc.chunk.Code) - (pos + 2)
	if dist > maxJump {
		return fc.semanticErr(token.Position{Line: fc.line}, "jump distance %d exceeds the %d limit", dist, maxJump)
	}
	fc.chunk.Code[pos] = byte(dist >> 8)
	fc.chunk.Code[pos+1] = byte(dist)
	return nil
}

// emitLoop emits a backward OP_LOOP to start, measured from just past its
// own operand.
func (fc *funcCompiler) emitLoop(start int) error {
	fc.emitByte(OP_LOOP)
	fc.emitByte(0xff)
	fc.emitByte(0xff)
	dist := len(fc.chunk.Code) - start
	if dist > maxJump {
		return fc.semanticErr(token.Position{Line: fc.line}, "loop distance %d exceeds the %d limit", dist, maxJump)
	}
	fc.chunk.Code[len(fc.chunk.Code)-2] = byte(dist >> 8)
	fc.chunk.Code[len(fc.chunk.Code)-1] = byte(dist)
	return nil
}

func (fc *funcCompiler) setLine(line int) {
	if line > 0 {
		fc.line = line
	}
}

func (fc *funcCompiler) semanticErr(pos token.Position, format string, args ...interface{}) error {
	if fc.reporter != nil {
		fc.reporter.Report(errs.Semantic, errs.Span{Line: pos.Line, Column: pos.Column}, format, args...)
	}
	return fmt.Errorf("%s", fmt.Sprintf(format, args...))
}
