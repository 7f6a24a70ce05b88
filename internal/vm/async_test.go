package vm

import (
	"testing"

	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
)

// TestAsync_AwaitResolvesAfterJobDrain verifies an async function body
// suspends at its first await, returns a pending promise capability
// synchronously, and only settles that promise once the microtask queue
// is drained — await never resolves inline, even for an already-ready
// value.
func TestAsync_AwaitResolvesAfterJobDrain(t *testing.T) {
	tr := newTestRuntime()
	ip := tr.ip

	b := script.NewBuilder("async")
	c5 := b.AddConstant(value.Num(5))
	c1 := b.AddConstant(value.Num(1))

	// return (await 5) + 1
	var a asm
	a.withB(OpLoadValue, uint16(c5)).
		simple(OpAwait).
		withB(OpLoadValue, uint16(c1)).
		simple(OpAdd).
		simple(OpReturnValue)
	start := b.EmitCode(a.code...)
	b.AddFunction(script.FunctionEntry{
		CodeStart: start, CodeEnd: start + len(a.code),
		NameIndex: -1, DeclGroup: -1, Flags: script.FlagAsync,
	})
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	closure := ip.MakeClosure(s, 0, tr.global, value.Undef())
	fnObj, ok := asObject(closure)
	if !ok {
		t.Fatal("closure is not callable")
	}
	capability, err := fnObj.Call(ip, value.Undef(), nil)
	if err != nil {
		t.Fatalf("calling async function: %v", err)
	}
	p, ok := capability.Handle().Thing().(*promise)
	if !ok {
		t.Fatal("async call did not return a promise")
	}
	if p.state != promisePending {
		t.Fatalf("promise settled synchronously (state=%v), want still pending before any job drain", p.state)
	}

	ip.Jobs.Drain()

	if p.state != promiseFulfilled {
		t.Fatalf("promise state = %v after draining jobs, want fulfilled", p.state)
	}
	if p.result.AsNum() != 6 {
		t.Fatalf("promise result = %v, want 6", p.result.AsNum())
	}
}

// TestAsync_AwaitOnRejectedValuePropagatesAsRejection verifies awaiting a
// promise that later rejects rejects the async function's own promise
// capability with the same reason, rather than throwing synchronously out
// of the call that started the function.
func TestAsync_AwaitOnRejectedValuePropagatesAsRejection(t *testing.T) {
	tr := newTestRuntime()
	ip := tr.ip

	inner := ip.newPromise()
	reason := ip.NewString("boom")

	b := script.NewBuilder("async-reject")
	// The awaited value is a pre-built promise object, stuck straight into
	// the constant pool — legitimate since Constants is []value.Value and
	// this core has no parser to emit a `make_closure`-style opcode for
	// compiling an inner expression from scratch.
	cInner := b.AddConstant(value.ObjectHandle(inner.Self()))

	var a asm
	a.withB(OpLoadValue, uint16(cInner)).
		simple(OpAwait).
		simple(OpReturnValue)
	start := b.EmitCode(a.code...)
	b.AddFunction(script.FunctionEntry{
		CodeStart: start, CodeEnd: start + len(a.code),
		NameIndex: -1, DeclGroup: -1, Flags: script.FlagAsync,
	})
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	closure := ip.MakeClosure(s, 0, tr.global, value.Undef())
	fnObj, ok := asObject(closure)
	if !ok {
		t.Fatal("closure is not callable")
	}
	capability, err := fnObj.Call(ip, value.Undef(), nil)
	if err != nil {
		t.Fatalf("calling async function: %v", err)
	}
	p := capability.Handle().Thing().(*promise)
	if p.state != promisePending {
		t.Fatalf("promise settled before its awaited value did (state=%v)", p.state)
	}

	inner.reject(ip, reason)
	ip.Jobs.Drain()

	if p.state != promiseRejected {
		t.Fatalf("promise state = %v after the awaited promise rejected, want rejected", p.state)
	}
	if got := stringText(p.result); got != "boom" {
		t.Fatalf("rejection reason = %q, want %q", got, "boom")
	}
}
