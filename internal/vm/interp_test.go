package vm

import (
	"testing"

	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
)

// TestArithmetic_AddsTwoConstants runs the simplest possible toplevel
// function: load two constants, add them, return the result.
func TestArithmetic_AddsTwoConstants(t *testing.T) {
	tr := newTestRuntime()

	b := script.NewBuilder("arith")
	c1 := b.AddConstant(value.Num(1))
	c2 := b.AddConstant(value.Num(2))

	var a asm
	a.withB(OpLoadValue, uint16(c1)).
		withB(OpLoadValue, uint16(c2)).
		simple(OpAdd).
		simple(OpReturnValue)
	start := b.EmitCode(a.code...)
	b.AddFunction(script.FunctionEntry{CodeStart: start, CodeEnd: start + len(a.code), NameIndex: -1, DeclGroup: -1})

	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	result, _, err := tr.run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.AsNum() != 3 {
		t.Fatalf("result = %v, want 3", result.AsNum())
	}
}

// TestControlFlow_JumpFalseSkipsBranch verifies jump_false branches around
// a then-clause when the condition is false.
func TestControlFlow_JumpFalseSkipsBranch(t *testing.T) {
	tr := newTestRuntime()

	b := script.NewBuilder("branch")
	cFalse := b.AddConstant(value.BoolVal(false))
	cThen := b.AddConstant(value.Num(1))
	cElse := b.AddConstant(value.Num(2))

	var a asm
	a.withB(OpLoadValue, uint16(cFalse)).
		withB(OpJumpFalse, 2). // skip the two-instruction then-branch
		withB(OpLoadValue, uint16(cThen)).
		simple(OpReturnValue). // not reached
		withB(OpLoadValue, uint16(cElse)).
		simple(OpReturnValue)
	start := b.EmitCode(a.code...)
	b.AddFunction(script.FunctionEntry{CodeStart: start, CodeEnd: start + len(a.code), NameIndex: -1, DeclGroup: -1})

	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	result, _, err := tr.run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.AsNum() != 2 {
		t.Fatalf("result = %v, want 2 (else branch)", result.AsNum())
	}
}

// TestStackBalance_ErrorUnwind verifies that a thrown error propagating
// into a catch clause leaves the value stack exactly as high as it was
// when the try block was entered (unwindFrame's only contract: it pushes
// the caught value once, nothing is left behind from the aborted body),
// and that code running after the catch produces the right result.
func TestStackBalance_ErrorUnwind(t *testing.T) {
	tr := newTestRuntime()
	ip := tr.ip

	b := script.NewBuilder("trycatch")
	cThrown := b.AddConstant(value.Num(99))
	cResult := b.AddConstant(value.Num(42))
	cErrName := b.AddConstant(ip.NewString("e"))

	errRef := b.AddBindingRef(script.BindingRef{NameIndex: cErrName})
	declGroup := b.AddDeclarationGroup(script.DeclarationGroup{
		Kind:     script.GroupLexical,
		Bindings: []script.BindingEntry{{NameIndex: cErrName, Immutable: false, TDZ: true}},
	})

	// idx0: push_try(catch at idx3)
	// idx1: load_value cThrown
	// idx2: throw
	// idx3: catch_error
	// idx4: binding_init e      (consumes the caught value unwindFrame pushed)
	// idx5: load_value cResult
	// idx6: return_value
	catchIP := 3 * 4
	var a asm
	a.withAB(OpPushTry, byte(catchIP&0xFF), uint16(catchIP>>8)).
		withB(OpLoadValue, uint16(cThrown)).
		simple(OpThrow).
		simple(OpCatchError).
		withB(OpBindingInit, uint16(errRef)).
		withB(OpLoadValue, uint16(cResult)).
		simple(OpReturnValue)
	start := b.EmitCode(a.code...)
	b.AddFunction(script.FunctionEntry{CodeStart: start, CodeEnd: start + len(a.code), NameIndex: -1, DeclGroup: declGroup})

	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	result, ctx, err := tr.run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.AsNum() != 42 {
		t.Fatalf("result = %v, want 42", result.AsNum())
	}
	if len(ctx.Stack.Values) != 0 {
		t.Fatalf("value stack left %d entries after the catch ran, want 0", len(ctx.Stack.Values))
	}
}

// TestStackBalance_UncaughtThrowReturnsError verifies a throw with no
// enclosing try state propagates out of Run as an error rather than being
// silently swallowed.
func TestStackBalance_UncaughtThrowReturnsError(t *testing.T) {
	tr := newTestRuntime()

	b := script.NewBuilder("uncaught")
	c := b.AddConstant(value.Num(7))
	var a asm
	a.withB(OpLoadValue, uint16(c)).simple(OpThrow)
	start := b.EmitCode(a.code...)
	b.AddFunction(script.FunctionEntry{CodeStart: start, CodeEnd: start + len(a.code), NameIndex: -1, DeclGroup: -1})

	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, _, err = tr.run(s)
	if err == nil {
		t.Fatal("expected an uncaught-throw error, got nil")
	}
	te, ok := err.(thrownError)
	if !ok {
		t.Fatalf("error = %T, want thrownError", err)
	}
	if te.v.AsNum() != 7 {
		t.Fatalf("thrown value = %v, want 7", te.v.AsNum())
	}
}
