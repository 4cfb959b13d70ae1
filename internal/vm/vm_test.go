package vm_test

import (
	"math"
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

func compileModule(t *testing.T, src string) *compiler.Module {
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
	return mod
}

// runScript compiles src, runs its top level, then (if entry is non-empty)
// calls the named global function with args and returns that result.
func runScript(t *testing.T, src string, entry string, args []vm.Value) (vm.Value, error) {
	t.Helper()
	mod := compileModule(t, src)
	machine := vm.New()
	if err := machine.LoadModule(mod); err != nil {
		t.Fatalf("load module: %v", err)
	}
	if _, err := machine.RunScript(nil); err != nil {
		return vm.Nil(), err
	}
	if entry == "" {
		return vm.Nil(), nil
	}
	return machine.Call(entry, args)
}

func TestVMFunctionCall(t *testing.T) {
	v, err := runScript(t, `fn add(a, b) { return a + b; }`, "add", []vm.Value{vm.Number(2), vm.Number(3)})
	be.Err(t, err, nil)
	be.Equal(t, v.Kind, vm.KindNumber)
	be.Equal(t, v.Num, 5.0)
}

func TestVMArithmeticPrecedence(t *testing.T) {
	v, err := runScript(t, `
fn calc() {
    return 2 + 3 * 4 - 1;
}`, "calc", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Num, 13.0)
}

func TestVMStringConcat(t *testing.T) {
	v, err := runScript(t, `
fn greet(name) {
    return "hello, " + name;
}`, "greet", []vm.Value{vm.String("world")})
	be.Err(t, err, nil)
	be.Equal(t, v.Str, "hello, world")
}

func TestVMStringOrdering(t *testing.T) {
	v, err := runScript(t, `
fn cmp() {
    return "apple" < "banana";
}`, "cmp", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Kind, vm.KindBool)
	be.Equal(t, v.B, true)
}

func TestVMNaNEquality(t *testing.T) {
	nan := vm.Number(math.NaN())
	be.Equal(t, vm.Equal(nan, nan), true)
}

func TestVMWhileLoopBreakContinue(t *testing.T) {
	v, err := runScript(t, `
fn count() {
    var i = 0;
    var total = 0;
    while (true) {
        i = i + 1;
        if (i > 10) {
            break;
        }
        if (i == 5) {
            continue;
        }
        total = total + i;
    }
    return total;
}`, "count", nil)
	be.Err(t, err, nil)
	// sum 1..10 excluding 5: 55 - 5 = 50
	be.Equal(t, v.Num, 50.0)
}

func TestVMForLoopDesugaring(t *testing.T) {
	v, err := runScript(t, `
fn sum() {
    var total = 0;
    for (var i = 0; i < 5; i = i + 1) {
        total = total + i;
    }
    return total;
}`, "sum", nil)
	be.Err(t, err, nil)
	// 0+1+2+3+4
	be.Equal(t, v.Num, 10.0)
}

func TestVMClosureCapturesUpvalue(t *testing.T) {
	v, err := runScript(t, `
fn makeCounter() {
    var count = 0;
    fn increment() {
        count = count + 1;
        return count;
    }
    return increment;
}
fn run() {
    var inc = makeCounter();
    inc();
    inc();
    return inc();
}`, "run", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Num, 3.0)
}

func TestVMTwoClosuresShareState(t *testing.T) {
	v, err := runScript(t, `
fn makePair() {
    var shared = 0;
    fn bump() { shared = shared + 1; return shared; }
    fn peek() { return shared; }
    bump();
    bump();
    return peek();
}`, "makePair", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Num, 2.0)
}

func TestVMRecursion(t *testing.T) {
	v, err := runScript(t, `
fn fib(n) {
    if (n < 2) {
        return n;
    }
    return fib(n - 1) + fib(n - 2);
}`, "fib", []vm.Value{vm.Number(10)})
	be.Err(t, err, nil)
	be.Equal(t, v.Num, 55.0)
}

func TestVMLocalRecursiveFunctionDeclaration(t *testing.T) {
	v, err := runScript(t, `
fn run() {
    fn fact(n) {
        if (n <= 1) {
            return 1;
        }
        return n * fact(n - 1);
    }
    return fact(5);
}`, "run", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Num, 120.0)
}

func TestVMGlobalAssignment(t *testing.T) {
	v, err := runScript(t, `
var total = 0;
fn add(n) {
    total = total + n;
    return total;
}
fn runTwice() {
    add(3);
    return add(4);
}`, "runTwice", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Num, 7.0)
}

func TestVMWrongArgumentCount(t *testing.T) {
	_, err := runScript(t, `
fn add(a, b) { return a + b; }
fn run() { return add(1); }
`, "run", nil)
	be.True(t, err != nil)
}

func TestVMDivisionByZero(t *testing.T) {
	_, err := runScript(t, `
fn run() { return 1 / 0; }
`, "run", nil)
	be.True(t, err != nil)
	var rte *vm.RuntimeError
	be.True(t, asRuntimeError(err, &rte))
	be.True(t, strings.Contains(rte.Message, "division by zero"))
}

func TestVMUndefinedGlobal(t *testing.T) {
	_, err := runScript(t, `
fn run() { return missing; }
`, "run", nil)
	be.True(t, err != nil)
}

func TestVMCallStackOverflow(t *testing.T) {
	_, err := runScript(t, `
fn loop() {
    return loop();
}
fn run() { return loop(); }
`, "run", nil)
	be.True(t, err != nil)
}

func TestVMBuiltinLen(t *testing.T) {
	v, err := runScript(t, `
fn run() { return len("hello"); }
`, "run", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Num, 5.0)
}

func TestVMBuiltinAssertPasses(t *testing.T) {
	_, err := runScript(t, `
fn run() {
    assert(1 == 1);
    return nil;
}
`, "run", nil)
	be.Err(t, err, nil)
}

func TestVMBuiltinAssertFailsWithMessage(t *testing.T) {
	_, err := runScript(t, `
fn run() {
    assert(false, "must hold");
    return nil;
}
`, "run", nil)
	be.True(t, err != nil)
	be.True(t, strings.Contains(err.Error(), "must hold"))
}

func TestVMBuiltinToNumberAndToString(t *testing.T) {
	v, err := runScript(t, `
fn run() {
    return toString(toNumber("42") + 1);
}
`, "run", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Str, "43")
}

func TestVMPrintOutput(t *testing.T) {
	mod := compileModule(t, `print("a", "b", 1);`)
	machine := vm.New()
	be.Err(t, machine.LoadModule(mod), nil)

	var buf strings.Builder
	machine.SetOutput(&buf)
	_, err := machine.RunScript(nil)
	be.Err(t, err, nil)
	be.Equal(t, buf.String(), "a b 1\n")
}

func TestVMTruthiness(t *testing.T) {
	v, err := runScript(t, `
fn run() {
    if (nil) {
        return "nil is truthy";
    }
    if (false) {
        return "false is truthy";
    }
    if (0) {
        if ("") {
            return "zero and empty string are both truthy";
        }
    }
    return "only nil/false are falsy";
}
`, "run", nil)
	be.Err(t, err, nil)
	be.Equal(t, v.Str, "zero and empty string are both truthy")
}

func asRuntimeError(err error, target **vm.RuntimeError) bool {
	if rte, ok := err.(*vm.RuntimeError); ok {
		*target = rte
		return true
	}
	return false
}
