package tela

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	_ "github.com/xirelogy/tela/internal/builtins"
	"github.com/xirelogy/tela/internal/compiler"
	"github.com/xirelogy/tela/internal/errs"
	"github.com/xirelogy/tela/internal/lexer"
	"github.com/xirelogy/tela/internal/parser"
	"github.com/xirelogy/tela/internal/vm"
)

// VmValue is a marshaled value compatible with the script runtime's value
// model: nil, boolean, number, string or function. There is no array,
// object, error or iterator kind to marshal into or out of.
type VmValue struct {
	v     vm.Value
	owner *vm.VM
}

// ArgError represents a typed argument validation error for host functions.
type ArgError struct {
	Name string
	Want string
	Got  string
}

func (e ArgError) Error() string {
	switch {
	case e.Name != "" && e.Want != "" && e.Got != "":
		return fmt.Sprintf("argument %q: want %s, got %s", e.Name, e.Want, e.Got)
	case e.Name != "" && e.Want != "":
		return fmt.Sprintf("argument %q: want %s", e.Name, e.Want)
	default:
		return "argument error"
	}
}

// Marshaler allows custom control over Go -> script conversion.
type Marshaler interface {
	MarshalScript() (VmValue, error)
}

// Unmarshaler allows custom control over script -> Go conversion in Unmarshal.
type Unmarshaler interface {
	UnmarshalScript(VmValue) error
}

// ValueKind mirrors the runtime's value kinds for convenient inspection.
type ValueKind int

const (
	ValueNil ValueKind = iota
	ValueBool
	ValueNumber
	ValueString
	ValueFunction
)

// FrameTrace describes a single frame in a runtime error or trace.
type FrameTrace struct {
	Function string
	Source   string
	Line     int
	IP       int
}

// RuntimeError is a source-aware execution error surfaced from the VM.
type RuntimeError struct {
	Message string
	Frame   FrameTrace
	Stack   []FrameTrace
	Cause   error
}

func (e *RuntimeError) Error() string {
	parts := []string{}
	if e.Frame.Source != "" {
		if e.Frame.Line > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", e.Frame.Source, e.Frame.Line))
		} else {
			parts = append(parts, e.Frame.Source)
		}
	} else if e.Frame.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Frame.Line))
	}
	if e.Frame.Function != "" {
		parts = append(parts, fmt.Sprintf("in %s", e.Frame.Function))
	}
	loc := strings.Join(parts, " ")
	if loc != "" {
		return fmt.Sprintf("%s: %s", loc, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying cause (if any) for errors.Is/As.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// TraceInfo captures execution steps for debug hooks.
type TraceInfo struct {
	Op       byte
	Function string
	Source   string
	Line     int
	IP       int
}

// TraceHook observes instruction dispatch for debugging/profiling.
type TraceHook func(TraceInfo)

func convertRuntimeError(err error) error {
	if err == nil {
		return nil
	}
	if rte, ok := err.(*vm.RuntimeError); ok {
		return &RuntimeError{
			Message: rte.Message,
			Frame:   frameTraceFromVM(rte.Frame),
			Stack:   stackTraceFromVM(rte.Stack),
			Cause:   rte.Cause,
		}
	}
	return err
}

func frameTraceFromVM(info vm.FrameInfo) FrameTrace {
	return FrameTrace{
		Function: info.Function,
		Source:   info.Source,
		Line:     info.Line,
		IP:       info.IP,
	}
}

func stackTraceFromVM(stack []vm.FrameInfo) []FrameTrace {
	if len(stack) == 0 {
		return nil
	}
	out := make([]FrameTrace, len(stack))
	for i, fr := range stack {
		out[i] = frameTraceFromVM(fr)
	}
	return out
}

// HostArgs provides typed accessors for host function arguments.
type HostArgs struct {
	args map[string]VmValue
}

// NewHostArgs wraps the raw argument map for typed access.
func NewHostArgs(args map[string]VmValue) HostArgs {
	return HostArgs{args: args}
}

// Value returns the raw VmValue for a named argument.
func (a HostArgs) Value(name string) (VmValue, error) {
	v, ok := a.args[name]
	if !ok {
		return VmValue{}, ArgError{Name: name, Want: "present"}
	}
	return v, nil
}

// Number returns the numeric argument.
func (a HostArgs) Number(name string) (float64, error) {
	v, err := a.Value(name)
	if err != nil {
		return 0, err
	}
	if n, ok := v.Number(); ok {
		return n, nil
	}
	return 0, ArgError{Name: name, Want: "number", Got: kindName(v.Kind())}
}

// String returns the string argument.
func (a HostArgs) String(name string) (string, error) {
	v, err := a.Value(name)
	if err != nil {
		return "", err
	}
	if s, ok := v.String(); ok {
		return s, nil
	}
	return "", ArgError{Name: name, Want: "string", Got: kindName(v.Kind())}
}

// Bool returns the boolean argument.
func (a HostArgs) Bool(name string) (bool, error) {
	v, err := a.Value(name)
	if err != nil {
		return false, err
	}
	if b, ok := v.Bool(); ok {
		return b, nil
	}
	return false, ArgError{Name: name, Want: "boolean", Got: kindName(v.Kind())}
}

// NewValue marshals a Go value into a runtime-compatible VmValue.
// Supported inputs are nil, bool, the numeric kinds, string, *VmFunction,
// VmValue and Marshaler implementors.
func NewValue(val any) (VmValue, error) {
	v, err := marshalGoValue(val)
	if err != nil {
		return VmValue{}, err
	}
	return VmValue{v: v}, nil
}

// MustValue marshals and panics on error (convenience for tests/examples).
func MustValue(val any) VmValue {
	v, err := NewValue(val)
	if err != nil {
		panic(err)
	}
	return v
}

// Raw returns a Go representation of the value. Functions are not
// convertible and return an error.
func (v VmValue) Raw() (any, error) {
	return unmarshalToGo(v.v)
}

// MustRaw returns Raw() or panics on error (convenience).
func (v VmValue) MustRaw() any {
	val, err := v.Raw()
	if err != nil {
		panic(err)
	}
	return val
}

// AsFunction extracts a callable handle when the value is a function.
func (v VmValue) AsFunction() (*VmFunctionHandle, bool) {
	if v.v.Kind != vm.KindFunction {
		return nil, false
	}
	return &VmFunctionHandle{owner: v.owner, fn: v.v.Func}, true
}

// Kind reports the underlying value kind.
func (v VmValue) Kind() ValueKind {
	return ValueKind(v.v.Kind)
}

func kindName(k ValueKind) string {
	switch k {
	case ValueNil:
		return "nil"
	case ValueBool:
		return "boolean"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueFunction:
		return "function"
	default:
		return "unknown"
	}
}

// IsNil reports whether the value is nil.
func (v VmValue) IsNil() bool {
	return v.v.Kind == vm.KindNil
}

// Bool returns the boolean value when the kind matches.
func (v VmValue) Bool() (bool, bool) {
	if v.v.Kind != vm.KindBool {
		return false, false
	}
	return v.v.B, true
}

// Number returns the numeric value when the kind matches.
func (v VmValue) Number() (float64, bool) {
	if v.v.Kind != vm.KindNumber {
		return 0, false
	}
	return v.v.Num, true
}

// String returns the string value when the kind matches.
func (v VmValue) String() (string, bool) {
	if v.v.Kind != vm.KindString {
		return "", false
	}
	return v.v.Str, true
}

// Context is the execution context provided to host functions.
type Context struct{}

// FunctionHandler is the Go-side implementation of a script function.
// Arguments are provided by name after validation against the declared
// parameter list.
type FunctionHandler func(ctx *Context, args map[string]VmValue) (VmValue, error)

// VmFunction describes a host-provided function, including its parameter
// list and handler.
type VmFunction struct {
	Params  []string
	Handler FunctionHandler
}

// NewFunction creates a marshaled function from a parameter list and handler.
func NewFunction(params []string, handler FunctionHandler) *VmFunction {
	return &VmFunction{Params: params, Handler: handler}
}

// VmFunctionHandle represents a function value returned from the VM.
type VmFunctionHandle struct {
	owner *vm.VM
	fn    *vm.Function
}

// Call invokes the function handle on its owning VM.
func (h *VmFunctionHandle) Call(ctx context.Context, args ...VmValue) (VmValue, error) {
	if h == nil || h.fn == nil {
		return VmValue{}, errors.New("nil function handle")
	}
	if h.owner == nil {
		return VmValue{}, errors.New("function handle missing VM owner")
	}
	argVals := make([]vm.Value, len(args))
	for i, a := range args {
		argVals[i] = a.v
	}
	res, err := h.owner.Run(h.fn, argVals)
	if err = convertRuntimeError(err); err != nil {
		return VmValue{}, err
	}
	return VmValue{v: res, owner: h.owner}, nil
}

func (fn *VmFunction) toVMValueWithName(name string) vm.Value {
	native := func(runtimeVM *vm.VM, args []vm.Value) (vm.Value, error) {
		if fn == nil || fn.Handler == nil {
			return vm.Nil(), errors.New("nil function handler")
		}
		if len(args) < len(fn.Params) {
			return vm.Nil(), fmt.Errorf("expected at least %d args, got %d", len(fn.Params), len(args))
		}
		argMap := make(map[string]VmValue, len(fn.Params))
		for i, pname := range fn.Params {
			argMap[pname] = VmValue{v: args[i], owner: runtimeVM}
		}
		res, err := fn.Handler(&Context{}, argMap)
		if err != nil {
			return vm.Nil(), err
		}
		return res.v, nil
	}
	return vm.FunctionVal(&vm.Function{Native: native, Name: name, Source: "host"})
}

// VM is the configurator/executor for tela scripts. It accumulates host
// bindings and script sources before execution.
type VM struct {
	core            *vm.VM
	propagateErrors bool
	mu              sync.Mutex
	busy            bool
}

// NewVM constructs a new VM configurator instance.
func NewVM() *VM {
	return &VM{core: vm.New()}
}

// Duplicate clones the VM configuration and global state into a new
// instance. The duplicate has independent memory and no in-flight execution
// state.
func (vmc *VM) Duplicate() (*VM, error) {
	if vmc == nil || vmc.core == nil {
		return nil, errors.New("nil VM")
	}
	vmc.mu.Lock()
	if vmc.busy {
		vmc.mu.Unlock()
		return nil, errors.New("VM is busy; cannot duplicate while running")
	}
	vmc.busy = true
	vmc.mu.Unlock()
	defer func() {
		vmc.mu.Lock()
		vmc.busy = false
		vmc.mu.Unlock()
	}()

	core := vmc.core.Duplicate()
	if core == nil {
		return nil, errors.New("VM duplicate failed")
	}
	return &VM{core: core, propagateErrors: vmc.propagateErrors}, nil
}

// SetGlobalFunction binds a marshaled function to a global name.
func (vmc *VM) SetGlobalFunction(name string, fn *VmFunction) error {
	if vmc == nil || vmc.core == nil {
		return errors.New("nil VM")
	}
	if fn == nil {
		return errors.New("nil function")
	}
	vmc.core.DefineGlobal(name, fn.toVMValueWithName(name))
	return nil
}

// HasFunction reports whether a global function exists with the given name.
func (vmc *VM) HasFunction(name string) bool {
	if vmc == nil || vmc.core == nil {
		return false
	}
	return vmc.core.HasFunction(name)
}

// LoadFile loads, compiles and runs a script's top level from a filesystem path.
func (vmc *VM) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return vmc.LoadSource(path, string(data))
}

// LoadSource compiles raw source text, loads it and runs its top-level
// statements, which populates globals for any later Call/CallAsync. The
// name is used in diagnostics (e.g. "inline" or a synthetic filename).
func (vmc *VM) LoadSource(name string, src string) error {
	if vmc == nil || vmc.core == nil {
		return errors.New("nil VM")
	}
	reporter := errs.NewReporter(src)
	p := parser.New(lexer.New(src, reporter), reporter)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return fmt.Errorf("parse errors: %v", errs)
	}
	mod, err := compiler.Compile(prog, name)
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}
	if err := vmc.core.LoadModule(mod); err != nil {
		return err
	}
	if _, err := vmc.core.RunScript(nil); err != nil {
		return convertRuntimeError(err)
	}
	return nil
}

// SetInstructionLimit caps the number of instructions a single CallAsync may
// execute (0 for unlimited).
func (vmc *VM) SetInstructionLimit(limit int) {
	if vmc == nil || vmc.core == nil {
		return
	}
	if limit < 0 {
		limit = 0
	}
	vmc.core.SetInstructionLimit(limit)
}

// SetTraceHook attaches a debug hook that observes instruction dispatch.
func (vmc *VM) SetTraceHook(h TraceHook) {
	if vmc == nil || vmc.core == nil {
		return
	}
	if h == nil {
		vmc.core.SetTraceHook(nil)
		return
	}
	vmc.core.SetTraceHook(func(info vm.TraceInfo) {
		h(TraceInfo{Op: info.Op, Function: info.Function, Source: info.Source, Line: info.Line, IP: info.IP})
	})
}

// VmCallFuture represents an in-flight VM call.
type VmCallFuture struct {
	ch <-chan VmCallResult
}

// VmCallResult is the outcome of a VM call.
type VmCallResult struct {
	Value VmValue
	Err   error
}

// Await waits for completion or context cancellation.
func (f VmCallFuture) Await(ctx context.Context) (VmValue, error) {
	select {
	case <-ctx.Done():
		return VmValue{}, ctx.Err()
	case res := <-f.ch:
		return res.Value, res.Err
	}
}

// CallAsync resolves a function by name, marshals arguments, and executes it
// on the VM asynchronously.
func (vmc *VM) CallAsync(ctx context.Context, name string, args []VmValue) VmCallFuture {
	vmc.mu.Lock()
	if vmc.busy {
		vmc.mu.Unlock()
		ch := make(chan VmCallResult, 1)
		ch <- VmCallResult{Err: errors.New("VM is busy; concurrent CallAsync not allowed")}
		close(ch)
		return VmCallFuture{ch: ch}
	}
	vmc.busy = true
	vmc.mu.Unlock()

	ch := make(chan VmCallResult, 1)
	go func() {
		defer close(ch)
		defer func() {
			vmc.mu.Lock()
			vmc.busy = false
			vmc.mu.Unlock()
		}()
		select {
		case <-ctx.Done():
			ch <- VmCallResult{Err: ctx.Err()}
			return
		default:
		}
		argVals := make([]vm.Value, len(args))
		for i, a := range args {
			argVals[i] = a.v
		}
		res, err := vmc.core.Call(name, argVals)
		if err = convertRuntimeError(err); err != nil {
			ch <- VmCallResult{Err: err}
			return
		}
		ch <- VmCallResult{Value: VmValue{v: res, owner: vmc.core}}
	}()
	return VmCallFuture{ch: ch}
}

// marshalGoValue converts common Go scalar types into vm.Value. Aggregate
// types have no runtime representation and are rejected.
func marshalGoValue(val any) (vm.Value, error) {
	if m, ok := val.(Marshaler); ok {
		custom, err := m.MarshalScript()
		if err != nil {
			return vm.Value{}, err
		}
		return custom.v, nil
	}
	switch v := val.(type) {
	case VmValue:
		return v.v, nil
	case nil:
		return vm.Nil(), nil
	case bool:
		return vm.Bool(v), nil
	case int:
		return vm.Number(float64(v)), nil
	case int8:
		return vm.Number(float64(v)), nil
	case int16:
		return vm.Number(float64(v)), nil
	case int32:
		return vm.Number(float64(v)), nil
	case int64:
		return vm.Number(float64(v)), nil
	case uint:
		return vm.Number(float64(v)), nil
	case uint8:
		return vm.Number(float64(v)), nil
	case uint16:
		return vm.Number(float64(v)), nil
	case uint32:
		return vm.Number(float64(v)), nil
	case uint64:
		return vm.Number(float64(v)), nil
	case uintptr:
		return vm.Number(float64(v)), nil
	case float32:
		return vm.Number(float64(v)), nil
	case float64:
		return vm.Number(v), nil
	case string:
		return vm.String(v), nil
	case *VmFunction:
		return v.toVMValueWithName(""), nil
	default:
		rv := reflect.ValueOf(val)
		if !rv.IsValid() {
			return vm.Nil(), nil
		}
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return vm.Nil(), nil
			}
			return marshalGoValue(rv.Elem().Interface())
		}
		switch rv.Kind() {
		case reflect.Bool:
			return vm.Bool(rv.Bool()), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return vm.Number(float64(rv.Int())), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return vm.Number(float64(rv.Uint())), nil
		case reflect.Float32, reflect.Float64:
			return vm.Number(rv.Float()), nil
		case reflect.String:
			return vm.String(rv.String()), nil
		}
		return vm.Value{}, fmt.Errorf("unsupported value type %T", val)
	}
}

// unmarshalToGo converts a vm.Value into a Go value for Raw().
func unmarshalToGo(v vm.Value) (any, error) {
	switch v.Kind {
	case vm.KindNil:
		return nil, nil
	case vm.KindBool:
		return v.B, nil
	case vm.KindNumber:
		return v.Num, nil
	case vm.KindString:
		return v.Str, nil
	case vm.KindFunction:
		return nil, errors.New("Raw() not supported on function values; use AsFunction")
	default:
		return nil, fmt.Errorf("unsupported value kind %v", v.Kind)
	}
}

// Unmarshal assigns a script VmValue into a Go target using reflection.
// Supports primitives and Unmarshaler implementors.
func Unmarshal(val VmValue, target any) error {
	if target == nil {
		return errors.New("nil target")
	}
	if u, ok := target.(Unmarshaler); ok {
		return u.UnmarshalScript(val)
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("target must be non-nil pointer")
	}
	return assignValue(val.v, rv.Elem())
}

func assignValue(src vm.Value, dst reflect.Value) error {
	if !dst.CanSet() {
		return errors.New("cannot set target")
	}
	switch dst.Kind() {
	case reflect.Interface:
		raw, err := unmarshalToGo(src)
		if err != nil {
			return err
		}
		if raw == nil {
			return nil
		}
		dst.Set(reflect.ValueOf(raw))
		return nil
	case reflect.Bool:
		if src.Kind != vm.KindBool {
			return ArgError{Want: "boolean", Got: kindName(ValueKind(src.Kind))}
		}
		dst.SetBool(src.B)
		return nil
	case reflect.String:
		if src.Kind != vm.KindString {
			return ArgError{Want: "string", Got: kindName(ValueKind(src.Kind))}
		}
		dst.SetString(src.Str)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if src.Kind != vm.KindNumber {
			return ArgError{Want: "number", Got: kindName(ValueKind(src.Kind))}
		}
		dst.SetInt(int64(src.Num))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if src.Kind != vm.KindNumber {
			return ArgError{Want: "number", Got: kindName(ValueKind(src.Kind))}
		}
		dst.SetUint(uint64(src.Num))
		return nil
	case reflect.Float32, reflect.Float64:
		if src.Kind != vm.KindNumber {
			return ArgError{Want: "number", Got: kindName(ValueKind(src.Kind))}
		}
		dst.SetFloat(src.Num)
		return nil
	default:
		return fmt.Errorf("unsupported unmarshal target kind %s", dst.Kind())
	}
}
