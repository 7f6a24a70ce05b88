package vm

import (
	"testing"

	"github.com/goquill/goquill/internal/env"
	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/job"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// testRuntime bundles a freshly bootstrapped Interpreter with the global
// environment a hand-assembled script's toplevel function runs against.
// This duplicates runtime.Realm's bootstrap (object/function/array/bigint/
// promise prototypes, a global object, a global environment) rather than
// importing package runtime, since runtime imports vm and a test living in
// package vm (unexported-field access to *promise, Context, Frame) cannot
// import back without a cycle.
type testRuntime struct {
	ip     *Interpreter
	global *env.Global
}

func newTestRuntime() *testRuntime {
	heap := gc.NewHeap()
	heap.SetHighWaterMark(0) // tests drive collection explicitly where they care about it

	ip := &Interpreter{Heap: heap, Strings: strpool.New(), Jobs: job.New()}

	objectProto := object.NewOrdinary(value.Nul())
	ip.ObjectProto = value.ObjectHandle(heap.AllocPermanent(objectProto))
	objectProto.SetSelf(ip.ObjectProto.Handle())

	functionProto := object.NewOrdinary(ip.ObjectProto)
	ip.FunctionProto = value.ObjectHandle(heap.AllocPermanent(functionProto))
	functionProto.SetSelf(ip.FunctionProto.Handle())

	arrayProto := object.NewArray(ip.ObjectProto, ip.Strings.Intern("length"), nil)
	ip.ArrayProto = value.ObjectHandle(heap.AllocPermanent(arrayProto))
	arrayProto.SetSelf(ip.ArrayProto.Handle())

	bigIntProto := object.NewOrdinary(ip.ObjectProto)
	ip.BigIntProto = value.ObjectHandle(heap.AllocPermanent(bigIntProto))
	bigIntProto.SetSelf(ip.BigIntProto.Handle())

	promiseProto := object.NewOrdinary(ip.ObjectProto)
	ip.PromiseProto = value.ObjectHandle(heap.AllocPermanent(promiseProto))
	promiseProto.SetSelf(ip.PromiseProto.Handle())
	ip.installPromiseProto()

	globalObj := object.NewOrdinary(ip.ObjectProto)
	globalObjVal := value.ObjectHandle(heap.AllocPermanent(globalObj))
	globalObj.SetSelf(globalObjVal.Handle())

	global := env.NewGlobal(globalObjVal, ip, ip.Intern)
	ip.Global = global

	return &testRuntime{ip: ip, global: global}
}

// run builds a script context for s's toplevel function, binds `this` to
// the global object, runs it to completion and drains the job queue once —
// the same one-shot evaluation sequence runtime.Realm.Run performs.
func (tr *testRuntime) run(s *script.Script) (value.Value, *Context, error) {
	toplevel := s.Toplevel()
	fnEnv := env.NewFunctionEnvironment(tr.global, env.NormalFunction, env.ThisInitialized, value.Undef(), value.Undef(), value.Undef())
	if err := fnEnv.BindThisValue(tr.global.GlobalObject()); err != nil {
		return value.Value{}, nil, err
	}
	ctx := NewScriptContext()
	ctx.PushFrame(&Frame{
		Script:    s,
		Func:      toplevel,
		IP:        toplevel.CodeStart,
		Registers: make([]value.Value, toplevel.RegisterCount),
		Env:       fnEnv,
		This:      tr.global.GlobalObject(),
	})
	if err := tr.ip.instantiateDeclarations(s, toplevel, fnEnv); err != nil {
		return value.Value{}, ctx, err
	}
	tr.ip.Heap.AddRoot(ctx)
	result, err := tr.ip.Run(ctx)
	tr.ip.Heap.RemoveRoot(ctx)
	if err != nil {
		return value.Value{}, ctx, err
	}
	tr.ip.Jobs.Drain()
	return result, ctx, nil
}

// asm is a tiny fixed-width bytecode assembler: each call appends one
// instruction's four bytes, mirroring what a compiler's code emitter would
// do and what bytecode.Disassembler reads back.
type asm struct{ code []byte }

func (a *asm) simple(op OpCode) *asm {
	a.code = encodeInstruction(a.code, MakeSimpleInstruction(op))
	return a
}

func (a *asm) withB(op OpCode, b uint16) *asm {
	a.code = encodeInstruction(a.code, MakeInstruction(op, 0, b))
	return a
}

func (a *asm) withAB(op OpCode, aOp byte, b uint16) *asm {
	a.code = encodeInstruction(a.code, MakeInstruction(op, aOp, b))
	return a
}

// readIterResult unpacks the {value, done} object iterResult builds.
func readIterResult(t *testing.T, ip *Interpreter, v value.Value) (value.Value, bool) {
	t.Helper()
	obj, ok := asObject(v)
	if !ok {
		t.Fatalf("iterator result is not an object")
	}
	val, err := obj.Get(ip, propkeys.StringKey(ip.Intern("value")), v)
	if err != nil {
		t.Fatalf("reading .value: %v", err)
	}
	done, err := obj.Get(ip, propkeys.StringKey(ip.Intern("done")), v)
	if err != nil {
		t.Fatalf("reading .done: %v", err)
	}
	return val, ip.ToBoolean(done)
}

// fixedNameKey interns name and wraps it as a string property key, the
// same two-step every fixed (non-computed) property reference in the
// interpreter performs via fixedKey.
func fixedNameKey(ip *Interpreter, name string) propkeys.Key {
	return propkeys.StringKey(ip.Intern(name))
}

// newTestNativeFunc wraps a plain Go function as a callable heap-allocated
// object.Function, the same shape a realm's built-ins are constructed with,
// for tests that need to hand a callback into the interpreter (e.g. as a
// Promise#then handler) without assembling bytecode for it.
func newTestNativeFunc(ip *Interpreter, body func(args []value.Value) (value.Value, error)) value.Value {
	f := object.NewNativeFunction(ip.FunctionProto, "", 1, func(inv object.Invoker, this value.Value, newTarget value.Value, args []value.Value) (value.Value, error) {
		return body(args)
	})
	h := ip.Heap.Alloc(f)
	f.SetSelf(h)
	return value.ObjectHandle(h)
}
