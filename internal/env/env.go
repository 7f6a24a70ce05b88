// Package env implements the ECMAScript lexical environment model: declarative, object, function, global, and module
// environment records, chained through an outer pointer, with TDZ and
// binding-immutability semantics and an opt-in ancestor cache for fast
// resolution.
//
// Each kind is a store plus an outer-environment pointer, with bindings
// resolved by walking the chain — generalised from a single
// case-insensitive variable store into five environment-record kinds, each
// with its own has/create/initialize/set/get/delete binding contract
// instead of a single Get/Set/Define API.
package env

import (
	"github.com/goquill/goquill/internal/gc"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// Environment is the common contract every environment-record kind
// implements.
type Environment interface {
	gc.Thing

	HasBinding(name strpool.Interned) (bool, error)
	CreateMutableBinding(name strpool.Interned, deletable bool) error
	CreateImmutableBinding(name strpool.Interned, strict bool) error
	InitializeBinding(name strpool.Interned, v value.Value) error
	SetMutableBinding(name strpool.Interned, v value.Value, strict bool) error
	GetBindingValue(name strpool.Interned, strict bool) (value.Value, error)
	DeleteBinding(name strpool.Interned) (bool, error)

	HasThisBinding() bool
	GetThisBinding() (value.Value, error)
	HasSuperBinding() bool
	GetSuperBase() (value.Value, error)
	WithBaseObject() (value.Value, bool)

	Outer() Environment
}

// binding tracks the three-state lifecycle a binding goes through:
// an uninitialized binding throws ReferenceError on read (TDZ); an
// immutable binding throws TypeError on write in strict mode.
type binding struct {
	value       value.Value
	initialized bool
	mutable     bool
	strict      bool // for immutable bindings: throw (true) vs silently ignore (false) on set
	deletable   bool
}

// Declarative is the base environment-record kind: an open-addressed table
// of named bindings plus an outer pointer.
type Declarative struct {
	self   gc.Handle
	table  map[strpool.Interned]*binding
	outer  Environment
	cache  *ancestorCache
}

// NewDeclarative creates a declarative environment with the given outer
// environment (nil for none).
func NewDeclarative(outer Environment) *Declarative {
	return &Declarative{table: make(map[strpool.Interned]*binding), outer: outer}
}

func (e *Declarative) SetSelf(h gc.Handle) { e.self = h }
func (e *Declarative) Self() gc.Handle     { return e.self }

func (e *Declarative) Scan(visit func(gc.Handle)) {
	for _, b := range e.table {
		if b.initialized && !b.value.Handle().Nil() {
			visit(b.value.Handle())
		}
	}
	if e.outer != nil {
		if h := environmentHandle(e.outer); !h.Nil() {
			visit(h)
		}
	}
}
func (e *Declarative) Finalize() {}

func (e *Declarative) Outer() Environment { return e.outer }

func (e *Declarative) HasBinding(name strpool.Interned) (bool, error) {
	_, ok := e.table[name]
	return ok, nil
}

func (e *Declarative) CreateMutableBinding(name strpool.Interned, deletable bool) error {
	e.table[name] = &binding{mutable: true, deletable: deletable}
	e.invalidateDescendantCaches()
	return nil
}

func (e *Declarative) CreateImmutableBinding(name strpool.Interned, strict bool) error {
	e.table[name] = &binding{mutable: false, strict: strict}
	e.invalidateDescendantCaches()
	return nil
}

func (e *Declarative) InitializeBinding(name strpool.Interned, v value.Value) error {
	b, ok := e.table[name]
	if !ok {
		return rterr.ReferenceError("cannot initialize undeclared binding " + name.Text())
	}
	b.value = v
	b.initialized = true
	return nil
}

// SetMutableBinding enforces TDZ and immutability: an uninitialized
// binding throws ReferenceError; an immutable binding throws TypeError in
// strict mode and is silently ignored otherwise.
func (e *Declarative) SetMutableBinding(name strpool.Interned, v value.Value, strict bool) error {
	b, ok := e.table[name]
	if !ok {
		if strict {
			return rterr.ReferenceError(name.Text() + " is not defined")
		}
		// Non-strict assignment to an undeclared name creates a global
		// binding; declarative environments other than Global reject this,
		// so the call is expected to have already resolved to Global by the
		// time it reaches here (vm's binding_set opcode handler).
		return rterr.ReferenceError(name.Text() + " is not defined")
	}
	if !b.initialized {
		return rterr.ReferenceError("cannot access '" + name.Text() + "' before initialization")
	}
	if !b.mutable {
		if b.strict || strict {
			return rterr.TypeError("assignment to constant variable '" + name.Text() + "'")
		}
		return nil
	}
	b.value = v
	return nil
}

func (e *Declarative) GetBindingValue(name strpool.Interned, strict bool) (value.Value, error) {
	b, ok := e.table[name]
	if !ok {
		return value.Value{}, rterr.ReferenceError(name.Text() + " is not defined")
	}
	if !b.initialized {
		return value.Value{}, rterr.ReferenceError("cannot access '" + name.Text() + "' before initialization")
	}
	return b.value, nil
}

func (e *Declarative) DeleteBinding(name strpool.Interned) (bool, error) {
	b, ok := e.table[name]
	if !ok {
		return true, nil
	}
	if !b.deletable {
		return false, nil
	}
	delete(e.table, name)
	e.invalidateDescendantCaches()
	return true, nil
}

func (e *Declarative) HasThisBinding() bool                 { return false }
func (e *Declarative) GetThisBinding() (value.Value, error) { return value.Value{}, rterr.ReferenceError("no this binding in scope") }
func (e *Declarative) HasSuperBinding() bool                { return false }
func (e *Declarative) GetSuperBase() (value.Value, error)   { return value.Value{}, rterr.ReferenceError("no super binding in scope") }
func (e *Declarative) WithBaseObject() (value.Value, bool)  { return value.Value{}, false }

func environmentHandle(e Environment) gc.Handle {
	if s, ok := e.(interface{ Self() gc.Handle }); ok {
		return s.Self()
	}
	return gc.Handle{}
}

// ObjectEnvironment binds names to the own-property names of a backing
// object, used for `with` statements and the global environment's var
// bindings. When WithBase is true, HasBinding additionally
// consults the object's `Symbol.unscopables` property (left to the realm's
// Invoker-aware caller; this package only exposes the base flag).
type ObjectEnvironment struct {
	Declarative
	Base     value.Value // Object
	WithBase bool
	inv      object.Invoker
	intern   func(string) strpool.Interned
}

func NewObjectEnvironment(outer Environment, base value.Value, withBase bool, inv object.Invoker, intern func(string) strpool.Interned) *ObjectEnvironment {
	return &ObjectEnvironment{Declarative: *NewDeclarative(outer), Base: base, WithBase: withBase, inv: inv, intern: intern}
}

func (e *ObjectEnvironment) baseObject() (object.Object, error) {
	obj, ok := e.Base.Handle().Thing().(object.Object)
	if !ok {
		return nil, rterr.TypeError("object environment base is not an object")
	}
	return obj, nil
}

func (e *ObjectEnvironment) HasBinding(name strpool.Interned) (bool, error) {
	obj, err := e.baseObject()
	if err != nil {
		return false, err
	}
	return obj.HasProperty(e.inv, propkeys.StringKey(name))
}

func (e *ObjectEnvironment) CreateMutableBinding(name strpool.Interned, deletable bool) error {
	obj, err := e.baseObject()
	if err != nil {
		return err
	}
	_, err = obj.DefineOwnProperty(e.inv, propkeys.StringKey(name), object.DataDescriptor(value.Undef(), true, true, deletable))
	return err
}

func (e *ObjectEnvironment) CreateImmutableBinding(strpool.Interned, bool) error {
	return rterr.NewFatal(nil, "object environments never hold immutable bindings")
}

func (e *ObjectEnvironment) InitializeBinding(name strpool.Interned, v value.Value) error {
	return e.SetMutableBinding(name, v, false)
}

func (e *ObjectEnvironment) SetMutableBinding(name strpool.Interned, v value.Value, strict bool) error {
	obj, err := e.baseObject()
	if err != nil {
		return err
	}
	ok, err := obj.Set(e.inv, propkeys.StringKey(name), v, e.Base)
	if err != nil {
		return err
	}
	if !ok && strict {
		return rterr.TypeError("cannot set property '" + name.Text() + "' on with-object")
	}
	return nil
}

func (e *ObjectEnvironment) GetBindingValue(name strpool.Interned, strict bool) (value.Value, error) {
	obj, err := e.baseObject()
	if err != nil {
		return value.Value{}, err
	}
	has, err := obj.HasProperty(e.inv, propkeys.StringKey(name))
	if err != nil {
		return value.Value{}, err
	}
	if !has {
		if strict {
			return value.Value{}, rterr.ReferenceError(name.Text() + " is not defined")
		}
		return value.Undef(), nil
	}
	return obj.Get(e.inv, propkeys.StringKey(name), e.Base)
}

func (e *ObjectEnvironment) DeleteBinding(name strpool.Interned) (bool, error) {
	obj, err := e.baseObject()
	if err != nil {
		return false, err
	}
	return obj.Delete(propkeys.StringKey(name))
}

func (e *ObjectEnvironment) Scan(visit func(gc.Handle)) {
	e.Declarative.Scan(visit)
	if !e.Base.Handle().Nil() {
		visit(e.Base.Handle())
	}
}
