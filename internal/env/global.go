package env

import (
	"github.com/goquill/goquill/internal/gc"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// Global is the realm's outermost environment: a declarative
// record component for `let`/`const`/function/class bindings layered over
// an object-environment component (the global object) for `var`, so `var x`
// and a later `let x` in the same scope correctly collide per ECMAScript's
// global-declaration-instantiation rules, while `this` resolves to the
// global object.
type Global struct {
	declPart *Declarative
	objPart  *ObjectEnvironment
	globalThis value.Value
}

// NewGlobal creates the realm's global environment over the given global
// object (also used as `this`).
func NewGlobal(globalObj value.Value, inv object.Invoker, intern func(string) strpool.Interned) *Global {
	obj := NewObjectEnvironment(nil, globalObj, false, inv, intern)
	return &Global{
		declPart:   NewDeclarative(nil),
		objPart:    obj,
		globalThis: globalObj,
	}
}

func (e *Global) SetSelf(h gc.Handle) { e.declPart.SetSelf(h) }
func (e *Global) Self() gc.Handle     { return e.declPart.Self() }

func (e *Global) Scan(visit func(gc.Handle)) {
	e.declPart.Scan(visit)
	e.objPart.Scan(visit)
}
func (e *Global) Finalize() {}

func (e *Global) Outer() Environment { return nil }

func (e *Global) HasBinding(name strpool.Interned) (bool, error) {
	if ok, _ := e.declPart.HasBinding(name); ok {
		return true, nil
	}
	return e.objPart.HasBinding(name)
}

// CreateMutableBinding installs a `var`-style binding on the global object
// component. Lexical (`let`/`const`) declarations go through
// the declarative component via CreateImmutableBinding or the lexical
// variant of CreateMutableBinding exposed as CreateLexicalBinding below.
func (e *Global) CreateMutableBinding(name strpool.Interned, deletable bool) error {
	return e.objPart.CreateMutableBinding(name, deletable)
}

// CreateLexicalBinding installs a `let` binding in the declarative
// component, rejecting a name already declared as `var` or lexically.
func (e *Global) CreateLexicalBinding(name strpool.Interned, immutable bool, strict bool) error {
	if hasVar, _ := e.objPart.HasBinding(name); hasVar {
		return rterr.SyntaxError("identifier '" + name.Text() + "' has already been declared")
	}
	if hasLex, _ := e.declPart.HasBinding(name); hasLex {
		return rterr.SyntaxError("identifier '" + name.Text() + "' has already been declared")
	}
	if immutable {
		return e.declPart.CreateImmutableBinding(name, strict)
	}
	return e.declPart.CreateMutableBinding(name, true)
}

func (e *Global) CreateImmutableBinding(name strpool.Interned, strict bool) error {
	return e.declPart.CreateImmutableBinding(name, strict)
}

func (e *Global) InitializeBinding(name strpool.Interned, v value.Value) error {
	if ok, _ := e.declPart.HasBinding(name); ok {
		return e.declPart.InitializeBinding(name, v)
	}
	return e.objPart.InitializeBinding(name, v)
}

func (e *Global) SetMutableBinding(name strpool.Interned, v value.Value, strict bool) error {
	if ok, _ := e.declPart.HasBinding(name); ok {
		return e.declPart.SetMutableBinding(name, v, strict)
	}
	return e.objPart.SetMutableBinding(name, v, strict)
}

func (e *Global) GetBindingValue(name strpool.Interned, strict bool) (value.Value, error) {
	if ok, _ := e.declPart.HasBinding(name); ok {
		return e.declPart.GetBindingValue(name, strict)
	}
	return e.objPart.GetBindingValue(name, strict)
}

func (e *Global) DeleteBinding(name strpool.Interned) (bool, error) {
	if ok, _ := e.declPart.HasBinding(name); ok {
		return e.declPart.DeleteBinding(name)
	}
	return e.objPart.DeleteBinding(name)
}

func (e *Global) HasThisBinding() bool                 { return true }
func (e *Global) GetThisBinding() (value.Value, error) { return e.globalThis, nil }
func (e *Global) HasSuperBinding() bool                { return false }
func (e *Global) GetSuperBase() (value.Value, error) {
	return value.Value{}, rterr.NewFatal(nil, "no super binding at global scope")
}
func (e *Global) WithBaseObject() (value.Value, bool) { return value.Value{}, false }

// GlobalObject returns the object backing `var` bindings and `this`.
func (e *Global) GlobalObject() value.Value { return e.globalThis }

// propKey returns the key type used by HasBinding's callers for
// object-environment-style property lookup against the global object
// directly (e.g. a bare identifier reference compiled to a property read).
func (e *Global) propKey(name strpool.Interned) propkeys.Key { return propkeys.StringKey(name) }
