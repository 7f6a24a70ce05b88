package object

import (
	"github.com/goquill/goquill/internal/gc"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/value"
)

// FieldInit is one class instance field: a property key plus a
// zero-argument initializer closure invoked with `this` bound to the new
// instance.
type FieldInit struct {
	Key  propkeys.Key
	Init value.Value
}

// NativeBody is the signature a Go-implemented built-in function supplies.
type NativeBody func(inv Invoker, this value.Value, newTarget value.Value, args []value.Value) (value.Value, error)

// Function is a callable ordinary object: either a native built-in (Body
// set) or a bytecode-backed closure whose Dispatch is wired by the vm
// package to a script function entry plus its captured environment. This
// package only models the object-level Call/Construct dispatch point; the
// actual bytecode invocation lives in vm, which implements Invoker and is
// handed to Function.Call as the caller.
type Function struct {
	Ordinary
	Name         string
	Length       int
	Body         NativeBody // non-nil for native built-ins
	Constructor  bool       // whether Construct is permitted at all
	BoundTarget  value.Value
	BoundThis    value.Value
	BoundArgs    []value.Value

	// InstanceFields lists this class's instance field initializers, run by
	// the vm package right after `this` is bound, before the constructor
	// body. Empty for ordinary functions and classes with no field syntax.
	InstanceFields []FieldInit

	// Dispatch is set by the vm package for bytecode-backed functions; nil
	// for native built-ins and still-unbound function objects.
	Dispatch func(inv Invoker, this value.Value, newTarget value.Value, args []value.Value) (value.Value, error)
}

// NewNativeFunction creates a callable built-in function object.
func NewNativeFunction(proto value.Value, name string, length int, body NativeBody) *Function {
	f := &Function{Ordinary: *NewOrdinary(proto), Name: name, Length: length, Body: body}
	return f
}

func (f *Function) IsCallable() bool { return true }

func (f *Function) IsConstructor() bool { return f.Constructor }

func (f *Function) Call(inv Invoker, this value.Value, args []value.Value) (value.Value, error) {
	if len(f.BoundArgs) > 0 || !f.BoundThis.IsUndefined() || f.BoundTarget.IsObject() {
		return f.callBound(inv, args)
	}
	if f.Dispatch != nil {
		return f.Dispatch(inv, this, value.Undef(), args)
	}
	if f.Body != nil {
		return f.Body(inv, this, value.Undef(), args)
	}
	return value.Undef(), rterr.TypeError("%s is not callable", f.Name)
}

func (f *Function) Construct(inv Invoker, args []value.Value, newTarget value.Value) (value.Value, error) {
	if !f.Constructor {
		return value.Undef(), rterr.TypeError("%s is not a constructor", f.Name)
	}
	if f.Dispatch != nil {
		return f.Dispatch(inv, value.Undef(), newTarget, args)
	}
	if f.Body != nil {
		return f.Body(inv, value.Undef(), newTarget, args)
	}
	return value.Undef(), rterr.TypeError("%s is not a constructor", f.Name)
}

func (f *Function) callBound(inv Invoker, args []value.Value) (value.Value, error) {
	full := make([]value.Value, 0, len(f.BoundArgs)+len(args))
	full = append(full, f.BoundArgs...)
	full = append(full, args...)
	return inv.Invoke(f.BoundTarget, f.BoundThis, full)
}

func (f *Function) Scan(visit func(gc.Handle)) {
	f.Ordinary.Scan(visit)
	if f.BoundTarget.IsObject() {
		visit(f.BoundTarget.Handle())
	}
	for _, a := range f.BoundArgs {
		if !a.Handle().Nil() {
			visit(a.Handle())
		}
	}
	for _, field := range f.InstanceFields {
		if !field.Init.Handle().Nil() {
			visit(field.Init.Handle())
		}
	}
}

// Bind returns a new bound-function object per Function.prototype.bind.
func Bind(proto value.Value, target value.Value, boundThis value.Value, boundArgs []value.Value, name string) *Function {
	f := &Function{Ordinary: *NewOrdinary(proto), Name: "bound " + name, BoundTarget: target, BoundThis: boundThis, BoundArgs: boundArgs}
	if t, ok := target.Handle().Thing().(Object); ok {
		f.Constructor = t.IsConstructor()
	}
	return f
}
