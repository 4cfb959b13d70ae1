package vm_test

import (
	"bytes"
	"strings"
	"testing"

	_ "github.com/xirelogy/tela/internal/builtins"
	"github.com/xirelogy/tela/internal/compiler"
	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/lexer"
	"github.com/xirelogy/tela/internal/parser"
	"github.com/xirelogy/tela/internal/vm"

	"github.com/nalgeon/be"
)

// runProgram compiles and runs src, capturing everything printed to stdout.
func runProgram(t *testing.T, src string) (string, error) {
	t.Helper()
	reporter := errs.NewReporter(src)
	p := parser.New(lexer.New(src, reporter), reporter)
	prog := p.ParseProgram()
	if perrs := p.Errors(); len(perrs) > 0 {
		t.Fatalf("parser errors: %v", perrs)
	}
	mod, err := compiler.Compile(prog, "test")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	machine := vm.New()
	machine.SetOutput(&out)
	if err := machine.LoadModule(mod); err != nil {
		t.Fatalf("load module: %v", err)
	}
	_, runErr := machine.RunScript(nil)
	return out.String(), runErr
}

func TestScenarioArithmeticPrecedence(t *testing.T) {
	out, err := runProgram(t, `print(1 + 2 * 3);`)
	be.Err(t, err, nil)
	be.Equal(t, out, "7\n")
}

func TestScenarioReassignment(t *testing.T) {
	out, err := runProgram(t, `let x = 10; x = x + 5; print(x);`)
	be.Err(t, err, nil)
	be.Equal(t, out, "15\n")
}

func TestScenarioRecursiveFibonacci(t *testing.T) {
	out, err := runProgram(t, `
fn fib(n){ if(n<2){return n;} return fib(n-1)+fib(n-2); }
print(fib(10));
`)
	be.Err(t, err, nil)
	be.Equal(t, out, "55\n")
}

func TestScenarioClosureCounter(t *testing.T) {
	out, err := runProgram(t, `
fn mk(){ var c = 0; fn inc(){ c = c + 1; return c; } return inc; }
let f = mk();
print(f());
print(f());
print(f());
`)
	be.Err(t, err, nil)
	be.Equal(t, out, "1\n2\n3\n")
}

func TestScenarioStringConcatAndLen(t *testing.T) {
	out, err := runProgram(t, `let s = "foo"; print(s + "bar"); print(len(s + "bar"));`)
	be.Err(t, err, nil)
	be.Equal(t, out, "foobar\n6\n")
}

func TestScenarioDivisionByZeroIsRuntimeError(t *testing.T) {
	_, err := runProgram(t, `print(1/0);`)
	if err == nil {
		t.Fatalf("expected a runtime error for division by zero")
	}
}

// TestStackDisciplineAcrossStatements exercises the §8 property that, between
// top-level statements, the value stack returns to the depth it held before
// the statement: every intermediate expression value is popped.
func TestStackDisciplineAcrossStatements(t *testing.T) {
	out, err := runProgram(t, `
1 + 2;
"a" + "b";
print(9);
`)
	be.Err(t, err, nil)
	be.Equal(t, out, "9\n")
}

// TestScopeIsolation exercises the §8 property that a name declared inside a
// block is not resolvable once the block has closed: the reference after the
// block falls through to a global lookup, which fails at run time with an
// undefined-variable error.
func TestScopeIsolation(t *testing.T) {
	src := `
fn run() {
  if (true) {
    var inner = 1;
  }
  print(inner);
}
run();
`
	_, err := runProgram(t, src)
	if err == nil || !strings.Contains(err.Error(), "undefined variable inner") {
		t.Fatalf("expected an undefined-variable error for an out-of-scope local, got %v", err)
	}
}
