package parser

import (
	"testing"

	"github.com/xirelogy/tela/internal/ast"
	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/lexer"
	"github.com/xirelogy/tela/internal/token"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	reporter := errs.NewReporter(src)
	p := New(lexer.New(src, reporter), reporter)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("parser errors: %v", errs)
	}
	return prog
}

func TestParserVarDecl(t *testing.T) {
	prog := parseProgram(t, `let x = 1; var y;`)
	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Statements))
	}

	let, ok := prog.Statements[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected *ast.VarDecl, got %T", prog.Statements[0])
	}
	if let.Name != "x" || let.Mutable {
		t.Fatalf("expected immutable x, got name=%q mutable=%v", let.Name, let.Mutable)
	}
	if num, ok := let.Init.(*ast.NumberLiteral); !ok || num.Value != 1 {
		t.Fatalf("expected init 1, got %#v", let.Init)
	}

	v, ok := prog.Statements[1].(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected *ast.VarDecl, got %T", prog.Statements[1])
	}
	if v.Name != "y" || !v.Mutable || v.Init != nil {
		t.Fatalf("expected mutable y with no init, got name=%q mutable=%v init=%#v", v.Name, v.Mutable, v.Init)
	}
}

func TestParserFuncDecl(t *testing.T) {
	prog := parseProgram(t, `
fn add(a, b) {
  return a + b;
}`)
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	fn, ok := prog.Statements[0].(*ast.FuncDecl)
	if !ok {
		t.Fatalf("expected *ast.FuncDecl, got %T", prog.Statements[0])
	}
	if fn.Name != "add" {
		t.Fatalf("expected name add, got %q", fn.Name)
	}
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Fatalf("expected params [a b], got %#v", fn.Params)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(fn.Body.Statements))
	}
	ret, ok := fn.Body.Statements[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("expected *ast.ReturnStmt, got %T", fn.Body.Statements[0])
	}
	bin, ok := ret.Value.(*ast.BinaryExpr)
	if !ok || bin.Operator != token.Plus {
		t.Fatalf("expected a + b, got %#v", ret.Value)
	}
}

func TestParserIfElseChain(t *testing.T) {
	prog := parseProgram(t, `
fn demo(x) {
  if (x > 1) {
    return 1;
  } else if (x < 0) {
    return -1;
  } else {
    return 0;
  }
}`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	ifStmt, ok := fn.Body.Statements[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", fn.Body.Statements[0])
	}
	elseIf, ok := ifStmt.Else.(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected else-if to parse as nested *ast.IfStmt, got %T", ifStmt.Else)
	}
	if _, ok := elseIf.Else.(*ast.BlockStmt); !ok {
		t.Fatalf("expected final else to be a *ast.BlockStmt, got %T", elseIf.Else)
	}
}

func TestParserWhileLoop(t *testing.T) {
	prog := parseProgram(t, `
fn demo() {
  while (true) {
    break;
  }
}`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	wh, ok := fn.Body.Statements[0].(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected *ast.WhileStmt, got %T", fn.Body.Statements[0])
	}
	if _, ok := wh.Condition.(*ast.BoolLiteral); !ok {
		t.Fatalf("expected bool literal condition, got %#v", wh.Condition)
	}
	if len(wh.Body.Statements) != 1 {
		t.Fatalf("expected 1 loop body statement, got %d", len(wh.Body.Statements))
	}
}

// For loops desugar at parse time into a block containing the init statement
// followed by a single while loop whose body has the increment appended.
func TestParserForLoopDesugarsToWhile(t *testing.T) {
	prog := parseProgram(t, `
fn demo() {
  for (var i = 0; i < 3; i = i + 1) {
    print(i);
  }
}`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	outer, ok := fn.Body.Statements[0].(*ast.BlockStmt)
	if !ok {
		t.Fatalf("expected desugared for-loop to produce a *ast.BlockStmt, got %T", fn.Body.Statements[0])
	}
	if len(outer.Statements) != 2 {
		t.Fatalf("expected init statement + while loop, got %d statements", len(outer.Statements))
	}
	if _, ok := outer.Statements[0].(*ast.VarDecl); !ok {
		t.Fatalf("expected init statement to be *ast.VarDecl, got %T", outer.Statements[0])
	}
	wh, ok := outer.Statements[1].(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected second statement to be *ast.WhileStmt, got %T", outer.Statements[1])
	}
	// body: print(i); then the appended increment expression statement.
	if len(wh.Body.Statements) != 2 {
		t.Fatalf("expected loop body + appended increment, got %d statements", len(wh.Body.Statements))
	}
	if _, ok := wh.Body.Statements[1].(*ast.ExprStmt); !ok {
		t.Fatalf("expected appended increment to be *ast.ExprStmt, got %T", wh.Body.Statements[1])
	}
}

func TestParserForLoopWithoutClauses(t *testing.T) {
	prog := parseProgram(t, `
fn demo() {
  for (;;) {
    break;
  }
}`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	outer := fn.Body.Statements[0].(*ast.BlockStmt)
	if len(outer.Statements) != 1 {
		t.Fatalf("expected only the while loop with no init, got %d statements", len(outer.Statements))
	}
	wh, ok := outer.Statements[0].(*ast.WhileStmt)
	if !ok {
		t.Fatalf("expected *ast.WhileStmt, got %T", outer.Statements[0])
	}
	if _, ok := wh.Condition.(*ast.BoolLiteral); !ok {
		t.Fatalf("expected omitted condition to default to true, got %#v", wh.Condition)
	}
}

func TestParserAssignmentExpression(t *testing.T) {
	prog := parseProgram(t, `
fn demo() {
  x = 5;
}`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	exprStmt, ok := fn.Body.Statements[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected *ast.ExprStmt, got %T", fn.Body.Statements[0])
	}
	assign, ok := exprStmt.Expression.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected *ast.AssignExpr, got %T", exprStmt.Expression)
	}
	if assign.Target.Name != "x" {
		t.Fatalf("expected target x, got %q", assign.Target.Name)
	}
}

func TestParserCallExpression(t *testing.T) {
	prog := parseProgram(t, `
fn demo() {
  return add(1, 2);
}`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	ret := fn.Body.Statements[0].(*ast.ReturnStmt)
	call, ok := ret.Value.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected *ast.CallExpr, got %T", ret.Value)
	}
	callee, ok := call.Callee.(*ast.Identifier)
	if !ok || callee.Name != "add" {
		t.Fatalf("expected callee add, got %#v", call.Callee)
	}
	if len(call.Arguments) != 2 {
		t.Fatalf("expected 2 arguments, got %d", len(call.Arguments))
	}
}

func TestParserPrintStatement(t *testing.T) {
	prog := parseProgram(t, `print("a", 1, true);`)
	printStmt, ok := prog.Statements[0].(*ast.PrintStmt)
	if !ok {
		t.Fatalf("expected *ast.PrintStmt, got %T", prog.Statements[0])
	}
	if len(printStmt.Arguments) != 3 {
		t.Fatalf("expected 3 print arguments, got %d", len(printStmt.Arguments))
	}
}

func TestParserOperatorPrecedence(t *testing.T) {
	prog := parseProgram(t, `let r = 1 + 2 * 3;`)
	decl := prog.Statements[0].(*ast.VarDecl)
	bin, ok := decl.Init.(*ast.BinaryExpr)
	if !ok || bin.Operator != token.Plus {
		t.Fatalf("expected top-level +, got %#v", decl.Init)
	}
	right, ok := bin.Right.(*ast.BinaryExpr)
	if !ok || right.Operator != token.Star {
		t.Fatalf("expected right side to be 2 * 3, got %#v", bin.Right)
	}
}

func TestParserUnaryOperators(t *testing.T) {
	prog := parseProgram(t, `let a = -1; let b = !true;`)
	neg := prog.Statements[0].(*ast.VarDecl).Init.(*ast.UnaryExpr)
	if neg.Operator != token.Minus {
		t.Fatalf("expected unary minus, got %s", neg.Operator)
	}
	not := prog.Statements[1].(*ast.VarDecl).Init.(*ast.UnaryExpr)
	if not.Operator != token.Bang {
		t.Fatalf("expected unary bang, got %s", not.Operator)
	}
}

func TestParserParenthesizedExpression(t *testing.T) {
	prog := parseProgram(t, `let r = (1 + 2) * 3;`)
	decl := prog.Statements[0].(*ast.VarDecl)
	bin, ok := decl.Init.(*ast.BinaryExpr)
	if !ok || bin.Operator != token.Star {
		t.Fatalf("expected top-level *, got %#v", decl.Init)
	}
	left, ok := bin.Left.(*ast.BinaryExpr)
	if !ok || left.Operator != token.Plus {
		t.Fatalf("expected parenthesized left side to be 1 + 2, got %#v", bin.Left)
	}
}

func TestParserRecoversFromSyntaxErrorsAndReportsAll(t *testing.T) {
	reporter := errs.NewReporter("")
	p := New(lexer.New(`let ; let x = 1;`, reporter), reporter)
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatalf("expected at least one syntax error")
	}
}

func TestParserMissingSemicolonIsError(t *testing.T) {
	reporter := errs.NewReporter("")
	p := New(lexer.New(`let x = 1`, reporter), reporter)
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatalf("expected missing semicolon to be reported as a syntax error")
	}
}
