package env

import (
	"github.com/goquill/goquill/internal/gc"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/value"
)

// thisBindingStatus is the three-state this-binding lifecycle: an arrow
// function's environment never has its own (Lexical delegates
// to the nearest non-arrow ancestor); an ordinary/derived-constructor
// function's environment starts Uninitialized until super() runs (for a
// derived class) or the call begins (base class), then becomes Initialized.
type thisBindingStatus uint8

const (
	ThisUninitialized thisBindingStatus = iota
	ThisLexical                         // arrow function: no binding of its own
	ThisInitialized
)

// FunctionKind distinguishes a normal function from a derived-class
// constructor, which must not read `this` until after `super()` runs.
type FunctionKind uint8

const (
	NormalFunction FunctionKind = iota
	BaseConstructor
	DerivedConstructor
)

// Function is the function environment record: declarative
// bindings plus a this-binding cell, the associated function object, the
// new.target value, and a home object for `super` property lookups.
type Function struct {
	Declarative
	ThisStatus  thisBindingStatus
	ThisValue   value.Value
	Kind        FunctionKind
	FunctionObj value.Value // the [[FunctionObject]] this environment was created for
	NewTarget   value.Value // constructor call's new.target, or Undefined
	HomeObject  value.Value // for super.prop / super.method() resolution, or Undefined
}

// NewFunctionEnvironment creates a function environment. Arrow functions
// pass kind=NormalFunction with thisStatus=ThisLexical so this-binding
// lookups delegate outward via GetThisEnvironment.
func NewFunctionEnvironment(outer Environment, kind FunctionKind, thisStatus thisBindingStatus, fn, newTarget, homeObject value.Value) *Function {
	return &Function{
		Declarative: *NewDeclarative(outer),
		ThisStatus:  thisStatus,
		Kind:        kind,
		FunctionObj: fn,
		NewTarget:   newTarget,
		HomeObject:  homeObject,
	}
}

func (e *Function) HasThisBinding() bool { return e.ThisStatus != ThisLexical }

// GetThisBinding returns the bound `this`, throwing ReferenceError if a
// derived constructor reads it before its super() call has run.
func (e *Function) GetThisBinding() (value.Value, error) {
	switch e.ThisStatus {
	case ThisLexical:
		return getThisFromOuter(e.Outer())
	case ThisUninitialized:
		return value.Value{}, rterr.ReferenceError("must call super constructor before accessing 'this'")
	default:
		return e.ThisValue, nil
	}
}

// BindThisValue initializes the this-binding exactly once — called after a
// base-class call begins, or after a derived constructor's super() call
// returns.
func (e *Function) BindThisValue(v value.Value) error {
	if e.ThisStatus == ThisInitialized {
		return rterr.NewFatal(nil, "this binding already initialized")
	}
	e.ThisValue = v
	e.ThisStatus = ThisInitialized
	return nil
}

func (e *Function) HasSuperBinding() bool {
	return e.ThisStatus != ThisLexical && e.HomeObject.IsObject()
}

// GetSuperBase returns the prototype of the home object, the object
// super.prop resolves against.
func (e *Function) GetSuperBase() (value.Value, error) {
	if !e.HasSuperBinding() {
		return value.Value{}, rterr.NewFatal(nil, "no super binding in this environment")
	}
	obj, ok := e.HomeObject.Handle().Thing().(interface{ GetPrototypeOf() value.Value })
	if !ok {
		return value.Nul(), nil
	}
	return obj.GetPrototypeOf(), nil
}

// getThisFromOuter implements GetThisEnvironment for an arrow function's
// environment: walk outward through the chain to the nearest environment
// that actually has a this-binding, skipping every ThisLexical frame along
// the way.
func getThisFromOuter(outer Environment) (value.Value, error) {
	e := outer
	for e != nil {
		if e.HasThisBinding() {
			return e.GetThisBinding()
		}
		e = e.Outer()
	}
	return value.Value{}, rterr.ReferenceError("no enclosing this binding")
}

// GetThisEnvironment walks outward from e until it finds an environment
// with its own this-binding. Any Environment implementation may call this helper.
func GetThisEnvironment(e Environment) Environment {
	for e != nil {
		if e.HasThisBinding() {
			return e
		}
		e = e.Outer()
	}
	return nil
}

func (e *Function) Scan(visit func(gc.Handle)) {
	e.Declarative.Scan(visit)
	for _, v := range []value.Value{e.ThisValue, e.FunctionObj, e.NewTarget, e.HomeObject} {
		if v.IsObject() && !v.Handle().Nil() {
			visit(v.Handle())
		}
	}
}
