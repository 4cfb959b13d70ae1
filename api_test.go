package tela

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nalgeon/be"
)

type testCustomMarshaler struct{ V string }
type testCustomUnmarshaler struct{ V string }

var _ Marshaler = (*testCustomMarshaler)(nil)
var _ Unmarshaler = (*testCustomUnmarshaler)(nil)

func (c testCustomMarshaler) MarshalScript() (VmValue, error) {
	return NewValue(c.V)
}

func (c *testCustomUnmarshaler) UnmarshalScript(v VmValue) error {
	s, ok := v.String()
	if !ok {
		return fmt.Errorf("expected string")
	}
	c.V = s
	return nil
}

func TestAPIScriptCall(t *testing.T) {
	vm := NewVM()
	err := vm.LoadSource("inline", `fn add(a, b) { return a + b; }`)
	be.Err(t, err, nil)

	a1, _ := NewValue(2)
	a2, _ := NewValue(3)
	res, err := vm.CallAsync(context.Background(), "add", []VmValue{a1, a2}).Await(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, res.MustRaw(), 5.0)
}

func TestAPIHostFunctionBinding(t *testing.T) {
	vm := NewVM()
	host := NewFunction([]string{"x"}, func(ctx *Context, args map[string]VmValue) (VmValue, error) {
		n, _ := args["x"].Number()
		return NewValue(n + 1)
	})
	be.Err(t, vm.SetGlobalFunction("inc", host), nil)

	err := vm.LoadSource("inline", `fn useHost(v) { return inc(v); }`)
	be.Err(t, err, nil)

	arg, _ := NewValue(41)
	res, err := vm.CallAsync(context.Background(), "useHost", []VmValue{arg}).Await(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, res.MustRaw(), 42.0)
}

func TestAPIScriptCallsHostFunctionDirectly(t *testing.T) {
	vm := NewVM()
	host := NewFunction([]string{"a", "b"}, func(ctx *Context, args map[string]VmValue) (VmValue, error) {
		an, _ := args["a"].Number()
		bn, _ := args["b"].Number()
		return NewValue(an * bn)
	})
	be.Err(t, vm.SetGlobalFunction("mul", host), nil)

	err := vm.LoadSource("inline", `
fn run() {
    return mul(6, 7);
}
`)
	be.Err(t, err, nil)
	res, err := vm.CallAsync(context.Background(), "run", nil).Await(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, res.MustRaw(), 42.0)
}

func TestAPIHostFunctionReturnsError(t *testing.T) {
	vm := NewVM()
	host := NewFunction(nil, func(ctx *Context, args map[string]VmValue) (VmValue, error) {
		return VmValue{}, errors.New("boom")
	})
	be.Err(t, vm.SetGlobalFunction("fail", host), nil)

	err := vm.LoadSource("inline", `fn run() { return fail(); }`)
	be.Err(t, err, nil)

	_, err = vm.CallAsync(context.Background(), "run", nil).Await(context.Background())
	be.True(t, err != nil)
}

func TestAPIRuntimeErrorCarriesFrame(t *testing.T) {
	vm := NewVM()
	err := vm.LoadSource("script.tl", `
fn divide(a, b) {
    return a / b;
}
fn run() {
    return divide(1, 0);
}
`)
	be.Err(t, err, nil)

	_, err = vm.CallAsync(context.Background(), "run", nil).Await(context.Background())
	var rte *RuntimeError
	be.True(t, errors.As(err, &rte))
	be.Equal(t, rte.Frame.Source, "script.tl")
}

func TestAPIInstructionLimit(t *testing.T) {
	vm := NewVM()
	vm.SetInstructionLimit(50)
	err := vm.LoadSource("inline", `
fn spin() {
    var i = 0;
    while (true) {
        i = i + 1;
    }
    return i;
}
`)
	be.Err(t, err, nil)

	_, err = vm.CallAsync(context.Background(), "spin", nil).Await(context.Background())
	be.True(t, err != nil)
}

func TestAPIDuplicateIsolatesState(t *testing.T) {
	vm := NewVM()
	err := vm.LoadSource("inline", `
var counter = 0;
fn bump() {
    counter = counter + 1;
    return counter;
}
`)
	be.Err(t, err, nil)

	dup, err := vm.Duplicate()
	be.Err(t, err, nil)

	res1, err := vm.CallAsync(context.Background(), "bump", nil).Await(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, res1.MustRaw(), 1.0)

	res2, err := dup.CallAsync(context.Background(), "bump", nil).Await(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, res2.MustRaw(), 1.0)
}

func TestAPIMarshalPrimitives(t *testing.T) {
	cases := []any{nil, true, false, 1, 2.5, "hi"}
	for _, c := range cases {
		v, err := NewValue(c)
		be.Err(t, err, nil)
		_, err = v.Raw()
		be.Err(t, err, nil)
	}
}

func TestAPIMarshalerUnmarshaler(t *testing.T) {
	v, err := NewValue(testCustomMarshaler{V: "hello"})
	be.Err(t, err, nil)
	be.Equal(t, v.Kind(), ValueString)

	var out testCustomUnmarshaler
	be.Err(t, Unmarshal(v, &out), nil)
	be.Equal(t, out.V, "hello")
}

func TestAPIUnmarshalTypeMismatch(t *testing.T) {
	v := MustValue("not a number")
	var n int
	err := Unmarshal(v, &n)
	be.True(t, err != nil)
}

func TestAPIAsFunctionRoundTrip(t *testing.T) {
	vm := NewVM()
	err := vm.LoadSource("inline", `
fn makeAdder() {
    return add;
}
fn add(a, b) {
    return a + b;
}
`)
	be.Err(t, err, nil)

	res, err := vm.CallAsync(context.Background(), "makeAdder", nil).Await(context.Background())
	be.Err(t, err, nil)

	handle, ok := res.AsFunction()
	be.True(t, ok)

	a1, _ := NewValue(10)
	a2, _ := NewValue(32)
	sum, err := handle.Call(context.Background(), a1, a2)
	be.Err(t, err, nil)
	be.Equal(t, sum.MustRaw(), 42.0)
}

func TestAPILoadFileMissing(t *testing.T) {
	vm := NewVM()
	err := vm.LoadFile("does/not/exist.tl")
	be.True(t, err != nil)
}

func TestAPICallAsyncHonorsContextCancellation(t *testing.T) {
	vm := NewVM()
	err := vm.LoadSource("inline", `fn id(v) { return v; }`)
	be.Err(t, err, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	arg, _ := NewValue(1)
	_, err = vm.CallAsync(context.Background(), "id", []VmValue{arg}).Await(ctx)
	be.True(t, err != nil)
}

func TestAPIScriptTopLevelPrintDoesNotBlockCalls(t *testing.T) {
	vm := NewVM()
	err := vm.LoadSource("inline", `
print("loaded");
fn greet() {
    return "hi";
}
`)
	be.Err(t, err, nil)

	res, err := vm.CallAsync(context.Background(), "greet", nil).Await(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, res.MustRaw(), "hi")
}
