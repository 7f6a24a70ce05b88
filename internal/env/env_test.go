package env

import (
	"testing"

	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

func asRuntimeError(t *testing.T, err error) *rterr.Error {
	t.Helper()
	re, ok := err.(*rterr.Error)
	if !ok {
		t.Fatalf("expected *errors.Error, got %T (%v)", err, err)
	}
	return re
}

func TestDeclarative_TDZReadThrowsReferenceError(t *testing.T) {
	pool := strpool.New()
	e := NewDeclarative(nil)
	name := pool.Intern("x")
	if err := e.CreateMutableBinding(name, false); err != nil {
		t.Fatal(err)
	}
	_, err := e.GetBindingValue(name, true)
	if err == nil {
		t.Fatal("expected ReferenceError reading an uninitialized binding (TDZ)")
	}
	re := asRuntimeError(t, err)
	if re.Kind != rterr.KindReferenceError {
		t.Fatalf("expected ReferenceError, got %v", re.Kind)
	}
}

func TestDeclarative_ImmutableBindingRejectsSet(t *testing.T) {
	pool := strpool.New()
	e := NewDeclarative(nil)
	name := pool.Intern("PI")
	if err := e.CreateImmutableBinding(name, true); err != nil {
		t.Fatal(err)
	}
	if err := e.InitializeBinding(name, value.Num(3.14)); err != nil {
		t.Fatal(err)
	}
	err := e.SetMutableBinding(name, value.Num(4), true)
	if err == nil {
		t.Fatal("expected TypeError assigning to a const binding in strict mode")
	}
	re := asRuntimeError(t, err)
	if re.Kind != rterr.KindTypeError {
		t.Fatalf("expected TypeError, got %v", re.Kind)
	}
	// The binding's value must be unchanged.
	v, err := e.GetBindingValue(name, true)
	if err != nil {
		t.Fatal(err)
	}
	if v.AsNum() != 3.14 {
		t.Fatalf("expected binding value to remain 3.14, got %v", v.AsNum())
	}
}

func TestDeclarative_ImmutableBindingNonStrictSilentlyIgnored(t *testing.T) {
	pool := strpool.New()
	e := NewDeclarative(nil)
	name := pool.Intern("k")
	if err := e.CreateImmutableBinding(name, false); err != nil {
		t.Fatal(err)
	}
	if err := e.InitializeBinding(name, value.Num(1)); err != nil {
		t.Fatal(err)
	}
	if err := e.SetMutableBinding(name, value.Num(2), false); err != nil {
		t.Fatalf("expected non-strict set on an immutable binding to be silently ignored, got %v", err)
	}
	v, _ := e.GetBindingValue(name, false)
	if v.AsNum() != 1 {
		t.Fatalf("expected value unchanged at 1, got %v", v.AsNum())
	}
}

func TestDeclarative_OuterChainResolution(t *testing.T) {
	pool := strpool.New()
	outer := NewDeclarative(nil)
	name := pool.Intern("shared")
	if err := outer.CreateMutableBinding(name, false); err != nil {
		t.Fatal(err)
	}
	if err := outer.InitializeBinding(name, value.Num(99)); err != nil {
		t.Fatal(err)
	}
	inner := NewDeclarative(outer)
	if has, _ := inner.HasBinding(name); has {
		t.Fatal("inner environment should not report its own binding for an outer-only name")
	}
	if inner.AncestorAt(0) != Environment(outer) {
		t.Fatal("expected AncestorAt(0) to return the outer environment")
	}
}

func TestFunction_ArrowDelegatesThisToOuter(t *testing.T) {
	globalLike := NewDeclarative(nil)
	outer := NewFunctionEnvironment(globalLike, NormalFunction, ThisInitialized, value.Undef(), value.Undef(), value.Undef())
	if err := outer.BindThisValue(value.Num(7)); err == nil {
		t.Fatal("BindThisValue should reject a second initialization")
	}
	arrow := NewFunctionEnvironment(outer, NormalFunction, ThisLexical, value.Undef(), value.Undef(), value.Undef())
	if _, err := arrow.GetThisBinding(); err != nil {
		t.Fatal(err)
	}
	if GetThisEnvironment(arrow) != Environment(outer) {
		t.Fatal("expected GetThisEnvironment(arrow) to resolve to the enclosing non-arrow function environment")
	}
}

func TestFunction_DerivedConstructorRejectsThisBeforeSuper(t *testing.T) {
	fn := NewFunctionEnvironment(nil, DerivedConstructor, ThisUninitialized, value.Undef(), value.Undef(), value.Undef())
	_, err := fn.GetThisBinding()
	if err == nil {
		t.Fatal("expected ReferenceError reading this before super() in a derived constructor")
	}
	re := asRuntimeError(t, err)
	if re.Kind != rterr.KindReferenceError {
		t.Fatalf("expected ReferenceError, got %v", re.Kind)
	}
}

func TestModule_IndirectBindingForwardsToTarget(t *testing.T) {
	pool := strpool.New()
	target := NewModule(nil)
	exportedName := pool.Intern("value")
	if err := target.CreateMutableBinding(exportedName, false); err != nil {
		t.Fatal(err)
	}
	if err := target.InitializeBinding(exportedName, value.Num(5)); err != nil {
		t.Fatal(err)
	}

	importer := NewModule(nil)
	localName := pool.Intern("value")
	importer.CreateIndirectBinding(localName, target, exportedName)

	v, err := importer.GetBindingValue(localName, true)
	if err != nil {
		t.Fatal(err)
	}
	if v.AsNum() != 5 {
		t.Fatalf("expected re-exported value 5, got %v", v.AsNum())
	}

	if err := importer.SetMutableBinding(localName, value.Num(6), true); err == nil {
		t.Fatal("expected assignment to a re-exported module binding to throw TypeError")
	}
}
