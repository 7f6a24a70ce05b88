package vm

import (
	"testing"

	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
)

// buildGeneratorFunc assembles a single generator function: yield 1, yield
// 2, return 3 — Functions[0], since MakeClosure is driven directly from Go
// here rather than through a wrapping toplevel.
func buildGeneratorFunc(t *testing.T) *script.Script {
	t.Helper()
	b := script.NewBuilder("gen")
	c1 := b.AddConstant(value.Num(1))
	c2 := b.AddConstant(value.Num(2))
	c3 := b.AddConstant(value.Num(3))

	var a asm
	a.withB(OpLoadValue, uint16(c1)).
		simple(OpYield).
		withB(OpLoadValue, uint16(c2)).
		simple(OpYield).
		withB(OpLoadValue, uint16(c3)).
		simple(OpReturnValue)
	start := b.EmitCode(a.code...)
	b.AddFunction(script.FunctionEntry{
		CodeStart: start, CodeEnd: start + len(a.code),
		NameIndex: -1, DeclGroup: -1, Flags: script.FlagGenerator,
	})

	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

// TestGenerator_NextDrivesThroughTwoYieldsThenReturn exercises the full
// next() resume cycle: two suspend points, then a normal completion,
// matching the generator iterator protocol's {value, done} shape.
func TestGenerator_NextDrivesThroughTwoYieldsThenReturn(t *testing.T) {
	tr := newTestRuntime()
	ip := tr.ip
	s := buildGeneratorFunc(t)

	closure := ip.MakeClosure(s, 0, tr.global, value.Undef())
	fnObj, ok := asObject(closure)
	if !ok {
		t.Fatal("closure is not callable")
	}
	genVal, err := fnObj.Call(ip, value.Undef(), nil)
	if err != nil {
		t.Fatalf("calling generator function: %v", err)
	}
	genObj, ok := asObject(genVal)
	if !ok {
		t.Fatal("generator value is not an object")
	}
	next := func(arg value.Value) (value.Value, bool) {
		nextFn, err := genObj.Get(ip, fixedNameKey(ip, "next"), genVal)
		if err != nil {
			t.Fatalf("resolving next: %v", err)
		}
		nextObj, ok := asObject(nextFn)
		if !ok {
			t.Fatal("next is not callable")
		}
		res, err := nextObj.Call(ip, genVal, []value.Value{arg})
		if err != nil {
			t.Fatalf("next(): %v", err)
		}
		return readIterResult(t, ip, res)
	}

	if v, done := next(value.Undef()); v.AsNum() != 1 || done {
		t.Fatalf("first next() = (%v, %v), want (1, false)", v.AsNum(), done)
	}
	if v, done := next(value.Undef()); v.AsNum() != 2 || done {
		t.Fatalf("second next() = (%v, %v), want (2, false)", v.AsNum(), done)
	}
	if v, done := next(value.Undef()); v.AsNum() != 3 || !done {
		t.Fatalf("third next() = (%v, %v), want (3, true)", v.AsNum(), done)
	}
	// A generator already completed must keep returning {undefined, true}.
	if v, done := next(value.Undef()); !v.IsUndefined() || !done {
		t.Fatalf("next() after completion = (%v, %v), want (undefined, true)", v, done)
	}
}

// TestGenerator_ReturnEarlyCompletesImmediately verifies .return(v) ends a
// suspended generator without resuming its body, handing v straight back.
func TestGenerator_ReturnEarlyCompletesImmediately(t *testing.T) {
	tr := newTestRuntime()
	ip := tr.ip
	s := buildGeneratorFunc(t)

	closure := ip.MakeClosure(s, 0, tr.global, value.Undef())
	fnObj, _ := asObject(closure)
	genVal, err := fnObj.Call(ip, value.Undef(), nil)
	if err != nil {
		t.Fatalf("calling generator function: %v", err)
	}
	genObj, _ := asObject(genVal)

	nextFn, _ := genObj.Get(ip, fixedNameKey(ip, "next"), genVal)
	nextObj, _ := asObject(nextFn)
	if v, done := readIterResultFrom(t, ip, nextObj, genVal); v.AsNum() != 1 || done {
		t.Fatalf("first next() = (%v, %v), want (1, false)", v.AsNum(), done)
	}

	returnFn, err := genObj.Get(ip, fixedNameKey(ip, "return"), genVal)
	if err != nil {
		t.Fatalf("resolving return: %v", err)
	}
	returnObj, ok := asObject(returnFn)
	if !ok {
		t.Fatal("return is not callable")
	}
	res, err := returnObj.Call(ip, genVal, []value.Value{value.Num(99)})
	if err != nil {
		t.Fatalf("return(): %v", err)
	}
	v, done := readIterResult(t, ip, res)
	if v.AsNum() != 99 || !done {
		t.Fatalf("return(99) = (%v, %v), want (99, true)", v.AsNum(), done)
	}
}

// TestGenerator_ThrowIntoSuspendedBodyPropagatesUncaught verifies .throw(v)
// on a suspended generator with no enclosing try raises v as an uncaught
// error rather than silently resuming.
func TestGenerator_ThrowIntoSuspendedBodyPropagatesUncaught(t *testing.T) {
	tr := newTestRuntime()
	ip := tr.ip
	s := buildGeneratorFunc(t)

	closure := ip.MakeClosure(s, 0, tr.global, value.Undef())
	fnObj, _ := asObject(closure)
	genVal, err := fnObj.Call(ip, value.Undef(), nil)
	if err != nil {
		t.Fatalf("calling generator function: %v", err)
	}
	genObj, _ := asObject(genVal)

	nextFn, _ := genObj.Get(ip, fixedNameKey(ip, "next"), genVal)
	nextObj, _ := asObject(nextFn)
	if v, done := readIterResultFrom(t, ip, nextObj, genVal); v.AsNum() != 1 || done {
		t.Fatalf("first next() = (%v, %v), want (1, false)", v.AsNum(), done)
	}

	throwFn, err := genObj.Get(ip, fixedNameKey(ip, "throw"), genVal)
	if err != nil {
		t.Fatalf("resolving throw: %v", err)
	}
	throwObj, ok := asObject(throwFn)
	if !ok {
		t.Fatal("throw is not callable")
	}
	_, err = throwObj.Call(ip, genVal, []value.Value{value.Num(-1)})
	if err == nil {
		t.Fatal("throw() into a try-less suspended body should propagate, got nil error")
	}
	te, ok := err.(thrownError)
	if !ok {
		t.Fatalf("error = %T, want thrownError", err)
	}
	if te.v.AsNum() != -1 {
		t.Fatalf("thrown value = %v, want -1", te.v.AsNum())
	}
}

func readIterResultFrom(t *testing.T, ip *Interpreter, fn object.Object, this value.Value) (value.Value, bool) {
	t.Helper()
	res, err := fn.Call(ip, this, []value.Value{value.Undef()})
	if err != nil {
		t.Fatalf("calling iterator method: %v", err)
	}
	return readIterResult(t, ip, res)
}
