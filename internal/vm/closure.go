package vm

import (
	"github.com/goquill/goquill/internal/env"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// closureRecord is the non-GC-visible Go closure a bytecode-backed
// object.Function's Dispatch field points at: everything needed to start a
// fresh call without touching source text again. Generalised from upvalue
// capture to capturing the whole defining Environment, since this core's
// environments (unlike a flat locals array) already do the capturing job.
type closureRecord struct {
	ip         *Interpreter
	script     *script.Script
	funcIndex  int
	outerEnv   env.Environment
	homeObject value.Value
	// selfValue is this closure's own Function object, set once MakeClosure
	// allocates it — needed so a base constructor can find its own
	// instance-field initializer list (object.Function.InstanceFields)
	// without a separate lookup table.
	selfValue value.Value
}

// MakeClosure allocates a callable object.Function whose Dispatch runs the
// given script function against a freshly captured lexical environment.
func (ip *Interpreter) MakeClosure(s *script.Script, funcIndex int, outerEnv env.Environment, homeObject value.Value) value.Value {
	fn := &s.Functions[funcIndex]
	name := ""
	if fn.NameIndex >= 0 && fn.NameIndex < len(s.Constants) {
		name = stringText(s.Constants[fn.NameIndex])
	}
	cr := &closureRecord{ip: ip, script: s, funcIndex: funcIndex, outerEnv: outerEnv, homeObject: homeObject}
	f := object.NewNativeFunction(ip.FunctionProto, name, fn.ParamCount, nil)
	f.Constructor = !fn.Flags.Has(script.FlagArrow) && !fn.Flags.Has(script.FlagAsync) && !fn.Flags.Has(script.FlagGenerator)
	f.Dispatch = cr.dispatch
	h := ip.Heap.Alloc(f)
	f.SetSelf(h)
	cr.selfValue = value.ObjectHandle(h)
	return cr.selfValue
}

// dispatch implements object.NativeBody's signature for a bytecode-backed
// function: it is what Function.Call/Construct invoke.
func (cr *closureRecord) dispatch(inv object.Invoker, this value.Value, newTarget value.Value, args []value.Value) (value.Value, error) {
	ip := cr.ip
	fn := &cr.script.Functions[cr.funcIndex]

	kind := env.NormalFunction
	thisStatus := env.ThisInitialized
	switch {
	case fn.Flags.Has(script.FlagArrow):
		thisStatus = env.ThisLexical
	case fn.Flags.Has(script.FlagDerivedConstructor):
		kind = env.DerivedConstructor
		thisStatus = env.ThisUninitialized
	case fn.Flags.Has(script.FlagClassConstructor):
		kind = env.BaseConstructor
	}

	switch {
	case kind == env.BaseConstructor:
		// Construct's Dispatch call hands this=Undefined; a non-derived
		// constructor pre-creates its instance from new.target's
		// "prototype" before the body runs.
		created, err := ip.ordinaryCreateFromConstructor(newTarget)
		if err != nil {
			return value.Value{}, err
		}
		this = created
	case thisStatus == env.ThisInitialized && !fn.Flags.Has(script.FlagStrict):
		if this.IsNullish() {
			this = ip.Global.GlobalObject()
		}
	}

	fnEnv := env.NewFunctionEnvironment(cr.outerEnv, kind, thisStatus, value.Undef(), newTarget, cr.homeObject)
	if thisStatus == env.ThisInitialized {
		if err := fnEnv.BindThisValue(this); err != nil {
			return value.Value{}, err
		}
	}

	if kind == env.BaseConstructor {
		// A base (non-derived) constructor has `this` bound immediately
		// above, so its instance fields run here, before the constructor
		// body's first opcode.
		if err := ip.runInstanceFields(this, cr.selfValue); err != nil {
			return value.Value{}, err
		}
	}

	isGenerator := fn.Flags.Has(script.FlagGenerator)
	isAsync := fn.Flags.Has(script.FlagAsync)

	var ctx *Context
	switch {
	case isGenerator:
		ctx = NewGeneratorContext()
	case isAsync:
		ctx = NewAsyncContext(ip.newPromiseValue())
	default:
		ctx = NewScriptContext()
	}

	frame := &Frame{
		Script:     cr.script,
		Func:       fn,
		IP:         fn.CodeStart,
		Registers:  make([]value.Value, fn.RegisterCount),
		Env:        fnEnv,
		This:       this,
		NewTarget:  newTarget,
		HomeObject: cr.homeObject,
		Callee:     cr.selfValue,
	}
	for i := 0; i < fn.ParamCount && i < len(frame.Registers); i++ {
		if i < len(args) {
			frame.Registers[i] = args[i]
		} else {
			frame.Registers[i] = value.Undef()
		}
	}
	ctx.PushFrame(frame)

	if err := ip.instantiateDeclarations(cr.script, fn, fnEnv); err != nil {
		return value.Value{}, err
	}

	if isGenerator {
		ctx.ResumeFunc = resumeContext
		ip.Heap.AddRoot(ctx)
		return ip.makeGeneratorObject(ctx), nil
	}
	if isAsync {
		ctx.ResumeFunc = resumeContext
		ip.Heap.AddRoot(ctx)
		return ip.runAsync(ctx), nil
	}

	ip.Heap.AddRoot(ctx)
	result, err := ip.Run(ctx)
	ip.Heap.RemoveRoot(ctx)
	if err != nil {
		return value.Value{}, err
	}
	if kind == env.DerivedConstructor || kind == env.BaseConstructor {
		return fnEnv.GetThisBinding()
	}
	return result, nil
}

// runInstanceFields runs ctorValue's recorded instance-field initializers
// (object.Function.InstanceFields) against the newly created this,
// matching the requirement that a class's own instance elements run once
// `this` is bound and before the rest of the constructor body executes.
func (ip *Interpreter) runInstanceFields(this value.Value, ctorValue value.Value) error {
	if !ctorValue.IsObject() {
		return nil
	}
	fnObj, ok := ctorValue.Handle().Thing().(*object.Function)
	if !ok || len(fnObj.InstanceFields) == 0 {
		return nil
	}
	thisObj, ok := asObject(this)
	if !ok {
		return rterr.NewFatal(nil, "class instance is not an object")
	}
	for _, field := range fnObj.InstanceFields {
		v, err := ip.call(field.Init, this, nil)
		if err != nil {
			return err
		}
		if _, err := thisObj.DefineOwnProperty(ip, field.Key, object.DataDescriptor(v, true, true, true)); err != nil {
			return err
		}
	}
	return nil
}

// instantiateDeclarations implements function-environment-instantiation for
// the declaration group a function's entry names: var/parameter/
// function-declaration bindings are created and eagerly initialised to
// undefined; let/const bindings are created and left in TDZ until their
// own initializer opcode (binding_init) runs.
func (ip *Interpreter) instantiateDeclarations(s *script.Script, fn *script.FunctionEntry, e env.Environment) error {
	if fn.DeclGroup < 0 || fn.DeclGroup >= len(s.Declarations) {
		return nil
	}
	group := s.Declarations[fn.DeclGroup]
	for _, b := range group.Bindings {
		name := ip.nameFromConstant(s, b.NameIndex)
		switch group.Kind {
		case script.GroupLexical:
			if b.Immutable {
				if err := e.CreateImmutableBinding(name, fn.Flags.Has(script.FlagStrict)); err != nil {
					return err
				}
			} else {
				if err := e.CreateMutableBinding(name, false); err != nil {
					return err
				}
			}
		default:
			if err := e.CreateMutableBinding(name, false); err != nil {
				return err
			}
			if err := e.InitializeBinding(name, value.Undef()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ip *Interpreter) nameFromConstant(s *script.Script, idx int) strpool.Interned {
	return ip.Intern(stringText(s.Constants[idx]))
}

// call implements the `call`/`tail_call` opcode family's non-tail path
//: this-binding coercion happens inside dispatch.
func (ip *Interpreter) call(callee, this value.Value, args []value.Value) (value.Value, error) {
	obj, ok := ip.asCallable(callee)
	if !ok {
		return value.Value{}, rterr.TypeError("value is not a function")
	}
	return obj.Call(ip, this, args)
}

// construct implements the `new`/`push_new` opcode pair.
func (ip *Interpreter) construct(callee value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	obj, ok := ip.asConstructor(callee)
	if !ok {
		return value.Value{}, rterr.TypeError("value is not a constructor")
	}
	return obj.Construct(ip, args, newTarget)
}

// superCall implements `push_super_call`/`super_call`: the parent
// constructor is the active constructor's own [[Prototype]] (set by
// derived_default_constr at class-definition time), not the HomeObject
// chain GetSuperBase walks for super.prop — those are two different spec
// lookups that happen to share a name in this environment record.
func (ip *Interpreter) superCall(frame *Frame, args []value.Value) (value.Value, error) {
	fnEnv, ok := frame.Env.(*env.Function)
	if !ok || fnEnv.Kind != env.DerivedConstructor {
		return value.Value{}, rterr.NewFatal(nil, "super() used outside a derived constructor")
	}
	ctorObj, ok := asObject(frame.Callee)
	if !ok {
		return value.Value{}, rterr.NewFatal(nil, "super() called with no associated constructor object")
	}
	parentCtor := ctorObj.GetPrototypeOf()
	instance, err := ip.construct(parentCtor, args, fnEnv.NewTarget)
	if err != nil {
		return value.Value{}, err
	}
	if err := fnEnv.BindThisValue(instance); err != nil {
		return value.Value{}, err
	}
	if err := ip.runInstanceFields(instance, frame.Callee); err != nil {
		return value.Value{}, err
	}
	return instance, nil
}
