package vm

import (
	"github.com/goquill/goquill/internal/env"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
)

// bindingOp implements the Binding opcode family (binding_init/_set/_get and
// del_binding) against the current frame's lexical environment chain.
func (ip *Interpreter) bindingOp(op OpCode, frame *Frame, refIdx int, vs *NativeStack) error {
	ref := frame.Script.BindingRefs[refIdx]
	name := ip.nameFromConstant(frame.Script, ref.NameIndex)
	strict := frame.Func.Flags.Has(script.FlagStrict)

	// Nearest record holding name; an unresolved sloppy set goes to the outermost.
	rec := frame.Env
	for e := frame.Env; e != nil; e = e.Outer() {
		if has, _ := e.HasBinding(name); has {
			rec = e
			break
		}
		if op == OpBindingSet && !strict && e.Outer() == nil {
			rec = e
		}
	}

	switch op {
	case OpBindingInit:
		v := vs.Pop()
		return rec.InitializeBinding(name, v)
	case OpBindingSet:
		v := vs.Pop()
		if err := rec.SetMutableBinding(name, v, strict); err != nil {
			return err
		}
		vs.Push(v)
		return nil
	case OpBindingGet:
		v, err := rec.GetBindingValue(name, strict)
		if err != nil {
			return err
		}
		vs.Push(v)
		return nil
	case OpDelBinding:
		ok, err := rec.DeleteBinding(name)
		if err != nil {
			return err
		}
		vs.Push(value.BoolVal(ok))
		return nil
	default:
		return rterr.NewFatal(nil, "unhandled binding opcode %s", op)
	}
}

func asObject(v value.Value) (object.Object, bool) {
	if !v.IsObject() {
		return nil, false
	}
	obj, ok := v.Handle().Thing().(object.Object)
	return obj, ok
}

// propertyOp implements the Property opcode family's fixed-key and
// computed-key variants (prop_get[_expr]/prop_set[_expr]/del_prop).
func (ip *Interpreter) propertyOp(op OpCode, frame *Frame, refIdx int, vs *NativeStack) error {
	switch op {
	case OpPropGet:
		target := vs.Pop()
		key := ip.fixedKey(frame, refIdx)
		v, err := ip.getProperty(target, key)
		if err != nil {
			return err
		}
		vs.Push(v)
	case OpPropGetExpr:
		keyVal := vs.Pop()
		target := vs.Pop()
		key, err := ip.toPropertyKey(keyVal)
		if err != nil {
			return err
		}
		v, err := ip.getProperty(target, key)
		if err != nil {
			return err
		}
		vs.Push(v)
	case OpPropSet:
		v := vs.Pop()
		target := vs.Pop()
		key := ip.fixedKey(frame, refIdx)
		if err := ip.setProperty(target, key, v); err != nil {
			return err
		}
		vs.Push(v)
	case OpPropSetExpr:
		v := vs.Pop()
		keyVal := vs.Pop()
		target := vs.Pop()
		key, err := ip.toPropertyKey(keyVal)
		if err != nil {
			return err
		}
		if err := ip.setProperty(target, key, v); err != nil {
			return err
		}
		vs.Push(v)
	case OpDelProp:
		keyVal := vs.Pop()
		target := vs.Pop()
		key, err := ip.toPropertyKey(keyVal)
		if err != nil {
			return err
		}
		obj, ok := asObject(target)
		if !ok {
			vs.Push(value.BoolVal(true))
			return nil
		}
		ok2, err := obj.Delete(key)
		if err != nil {
			return err
		}
		vs.Push(value.BoolVal(ok2))
	default:
		return rterr.NewFatal(nil, "unhandled property opcode %s", op)
	}
	return nil
}

func (ip *Interpreter) fixedKey(frame *Frame, refIdx int) propkeys.Key {
	ref := frame.Script.PropertyRefs[refIdx]
	return propkeys.StringKey(ip.nameFromConstant(frame.Script, ref.NameIndex))
}

func (ip *Interpreter) getProperty(target value.Value, key propkeys.Key) (value.Value, error) {
	obj, ok := asObject(target)
	if !ok {
		return value.Value{}, rterr.TypeError("cannot read property of %s", ip.TypeofString(target))
	}
	return obj.Get(ip, key, target)
}

func (ip *Interpreter) setProperty(target value.Value, key propkeys.Key, v value.Value) error {
	obj, ok := asObject(target)
	if !ok {
		return rterr.TypeError("cannot set property on %s", ip.TypeofString(target))
	}
	_, err := obj.Set(ip, key, v, target)
	return err
}

// superPropertyOp implements super.prop get/set: the lookup starts from the
// enclosing function environment's home object's prototype, but the
// receiver for accessor calls is still the current `this`.
func (ip *Interpreter) superPropertyOp(op OpCode, frame *Frame, refIdx int, vs *NativeStack) error {
	fnEnv, ok := frame.Env.(*env.Function)
	if !ok || !fnEnv.HasSuperBinding() {
		return rterr.NewFatal(nil, "super property access outside a method")
	}
	base, err := fnEnv.GetSuperBase()
	if err != nil {
		return err
	}
	this, err := frame.Env.GetThisBinding()
	if err != nil {
		return err
	}
	key := ip.fixedKey(frame, refIdx)
	baseObj, ok := asObject(base)
	if !ok {
		return rterr.TypeError("super base is not an object")
	}
	switch op {
	case OpSuperPropGet:
		v, err := baseObj.Get(ip, key, this)
		if err != nil {
			return err
		}
		vs.Push(v)
	case OpSuperPropSet:
		v := vs.Pop()
		if _, err := baseObj.Set(ip, key, v, this); err != nil {
			return err
		}
		vs.Push(v)
	default:
		return rterr.NewFatal(nil, "unhandled super property opcode %s", op)
	}
	return nil
}

// privatePropertyOp implements priv_get/priv_set. Private names have no
// dedicated propkeys.Kind, so
// this core represents a private field/method as a string key carrying a
// "#"-prefixed name — a key shape no ordinary string property name can
// collide with, since `#` cannot start a computed string key's source text.
func (ip *Interpreter) privatePropertyOp(op OpCode, frame *Frame, idx int, vs *NativeStack) error {
	priv := frame.Script.PrivateIdentifiers[idx]
	rawName := ip.nameFromConstant(frame.Script, priv.NameIndex)
	key := propkeys.StringKey(ip.Intern("#" + rawName.Text()))

	switch op {
	case OpPrivGet:
		target := vs.Pop()
		obj, ok := asObject(target)
		if !ok {
			return rterr.TypeError("cannot read private field of %s", ip.TypeofString(target))
		}
		has, err := obj.HasProperty(ip, key)
		if err != nil {
			return err
		}
		if !has {
			return rterr.TypeError("private field must be declared in an enclosing class")
		}
		v, err := obj.Get(ip, key, target)
		if err != nil {
			return err
		}
		vs.Push(v)
	case OpPrivSet:
		v := vs.Pop()
		target := vs.Pop()
		obj, ok := asObject(target)
		if !ok {
			return rterr.TypeError("cannot set private field of %s", ip.TypeofString(target))
		}
		if _, err := obj.DefineOwnProperty(ip, key, object.DataDescriptor(v, true, false, false)); err != nil {
			return err
		}
		vs.Push(v)
	default:
		return rterr.NewFatal(nil, "unhandled private opcode %s", op)
	}
	return nil
}

// getIterator resolves an iterable to something iteratorStep can drive.
// Full Symbol.iterator trap dispatch is out of scope for this core: array
// objects and strings are iterated directly by index, which covers for-of,
// spread, and destructuring over the values this runtime itself produces.
func (ip *Interpreter) getIterator(v value.Value) (value.Value, error) {
	if v.IsString() {
		return v, nil
	}
	if obj, ok := asObject(v); ok {
		if _, isArr := obj.(*object.Array); isArr {
			return v, nil
		}
		has, _ := obj.HasProperty(ip, propkeys.StringKey(ip.Intern("length")))
		if has {
			return v, nil
		}
	}
	return value.Value{}, rterr.TypeError("value is not iterable")
}

// iteratorStep advances a ForIn/ForOf/ArrayAssi/ObjectAssi state by one
// element. For-in walks the pre-collected Keys slice; the others index into
// the Iterator value (an array-like or string, per getIterator above).
func (ip *Interpreter) iteratorStep(st *State) (done bool, item value.Value, err error) {
	if st.Kind == StateForIn {
		if len(st.Keys) == 0 {
			st.Done = true
			return true, value.Value{}, nil
		}
		item = st.Keys[0]
		st.Keys = st.Keys[1:]
		return false, item, nil
	}

	src := st.Iterator
	if src.IsString() {
		if src.Tag() == value.IndexString {
			src = ip.NewString(stringText(src))
		}
		s := jsStringOf(src)
		if st.NextIdx >= s.Len() {
			st.Done = true
			return true, value.Value{}, nil
		}
		unit := s.Units()[st.NextIdx]
		item = value.StrHandle(value.NewJSStringFromUnits(ip.Heap, []uint16{unit}))
		st.NextIdx++
		return false, item, nil
	}
	obj, ok := asObject(src)
	if !ok {
		return true, value.Value{}, nil
	}
	lengthVal, err := obj.Get(ip, propkeys.StringKey(ip.Intern("length")), src)
	if err != nil {
		return false, value.Value{}, err
	}
	length := int(lengthVal.AsNum())
	if st.NextIdx >= length {
		st.Done = true
		return true, value.Value{}, nil
	}
	item, err = obj.Get(ip, propkeys.IndexKey(uint32(st.NextIdx)), src)
	if err != nil {
		return false, value.Value{}, err
	}
	st.NextIdx++
	return false, item, nil
}

// iterableToSlice drains an iterable fully, used by spread (array literal,
// call arguments) and rest-pattern collection.
func (ip *Interpreter) iterableToSlice(v value.Value) ([]value.Value, error) {
	iter, err := ip.getIterator(v)
	if err != nil {
		return nil, err
	}
	st := &State{Iterator: iter, Kind: StateForOf}
	var out []value.Value
	for {
		done, item, err := ip.iteratorStep(st)
		if err != nil {
			return nil, err
		}
		if done {
			return out, nil
		}
		out = append(out, item)
	}
}

// enumerableStringKeys collects for-in's key list: own then inherited
// enumerable string keys, each name visited at most once.
func (ip *Interpreter) enumerableStringKeys(target value.Value) []value.Value {
	var out []value.Value
	seen := map[string]bool{}
	cur := target
	for cur.IsObject() {
		obj, ok := asObject(cur)
		if !ok {
			break
		}
		for _, k := range obj.OwnPropertyKeys() {
			if k.Kind() != propkeys.KindString {
				continue
			}
			text := k.Str().Text()
			if seen[text] {
				continue
			}
			seen[text] = true
			d, has := obj.GetOwnProperty(k)
			if has && d.Enumerable {
				out = append(out, ip.NewString(text))
			}
		}
		cur = obj.GetPrototypeOf()
	}
	return out
}

// objectLiteralAdd implements the object-literal property-install opcodes.
func (ip *Interpreter) objectLiteralAdd(op OpCode, frame *Frame, refIdx int, vs *NativeStack) error {
	v := vs.Pop()
	st := vs.TopState()
	key := ip.fixedKey(frame, refIdx)
	obj, ok := asObject(st.Dest)
	if !ok {
		return rterr.NewFatal(nil, "object literal state has no destination object")
	}
	switch op {
	case OpObjectAdd, OpObjectAddFunc, OpObjectMethodAdd:
		_, err := obj.DefineOwnProperty(ip, key, object.DataDescriptor(v, true, true, true))
		return err
	case OpObjectGetterAdd:
		existing, has := obj.GetOwnProperty(key)
		setFn := value.Undef()
		if has && existing.HasSet {
			setFn = existing.Set
		}
		_, err := obj.DefineOwnProperty(ip, key, object.AccessorDescriptor(v, setFn, true, true))
		return err
	case OpObjectSetterAdd:
		existing, has := obj.GetOwnProperty(key)
		getFn := value.Undef()
		if has && existing.HasGet {
			getFn = existing.Get
		}
		_, err := obj.DefineOwnProperty(ip, key, object.AccessorDescriptor(getFn, v, true, true))
		return err
	default:
		return rterr.NewFatal(nil, "unhandled object literal opcode %s", op)
	}
}

// objectSpreadInto copies src's own enumerable properties onto dest, the
// `...src` object-literal spread algorithm.
func (ip *Interpreter) objectSpreadInto(dest, src value.Value) error {
	if src.IsNullish() {
		return nil
	}
	srcObj, ok := asObject(src)
	if !ok {
		return nil
	}
	destObj, ok := asObject(dest)
	if !ok {
		return rterr.NewFatal(nil, "object spread destination is not an object")
	}
	for _, k := range srcObj.OwnPropertyKeys() {
		d, has := srcObj.GetOwnProperty(k)
		if !has || !d.Enumerable {
			continue
		}
		v, err := srcObj.Get(ip, k, src)
		if err != nil {
			return err
		}
		if _, err := destObj.DefineOwnProperty(ip, k, object.DataDescriptor(v, true, true, true)); err != nil {
			return err
		}
	}
	return nil
}

// getObjectPatternProp implements object-destructuring's property read,
// fixed-name or computed, tracking consumed names for a trailing rest
// pattern.
func (ip *Interpreter) getObjectPatternProp(op OpCode, frame *Frame, refIdx int, vs *NativeStack) error {
	st := vs.TopState()
	key := ip.fixedKey(frame, refIdx)
	if op == OpGetObjectPropExpr {
		keyVal := vs.Pop()
		pk, err := ip.toPropertyKey(keyVal)
		if err != nil {
			return err
		}
		key = pk
	}
	var v value.Value
	if obj, ok := asObject(st.Source); ok {
		got, err := obj.Get(ip, key, st.Source)
		if err != nil {
			return err
		}
		v = got
	} else {
		v = value.Undef()
	}
	if st.Consumed != nil && key.Kind() == propkeys.KindString {
		st.Consumed[key.Str().Text()] = true
	}
	vs.Push(v)
	return nil
}

// objectRest builds the `{...rest}` destructuring target: every own
// enumerable property of source not already consumed by an earlier
// fixed-name/computed pattern element.
func (ip *Interpreter) objectRest(source value.Value, consumed map[string]bool) (value.Value, error) {
	rest := ip.newObject()
	obj, ok := asObject(source)
	if !ok {
		return rest, nil
	}
	destObj, _ := asObject(rest)
	for _, k := range obj.OwnPropertyKeys() {
		if k.Kind() == propkeys.KindString && consumed[k.Str().Text()] {
			continue
		}
		d, has := obj.GetOwnProperty(k)
		if !has || !d.Enumerable {
			continue
		}
		v, err := obj.Get(ip, k, source)
		if err != nil {
			return value.Value{}, err
		}
		if _, err := destObj.DefineOwnProperty(ip, k, object.DataDescriptor(v, true, true, true)); err != nil {
			return value.Value{}, err
		}
	}
	return rest, nil
}

// classOp implements the Classes opcode family against a StateClass record:
// push_class opens it (optionally linking a superclass), default_constr/
// derived_default_constr install the (possibly derived) constructor closure
// (constr_create has no case here and returns a fatal error), method/getter/setter
// variants install onto the prototype or, for the static_ forms, the
// constructor itself, and class_init closes the literal and yields the
// constructor value. field_add/static_block_add run their initializer
// thunk immediately against the class itself (static field and static
// block semantics); inst_field_add instead records its thunk on the
// StateClass record, and set_af_field seals that list onto the
// constructor's object.Function so the vm package can run it once per
// instance, right after `this` is bound (see closure.go's
// runInstanceFields).
func (ip *Interpreter) classOp(op OpCode, frame *Frame, a, b int, vs *NativeStack) error {
	switch op {
	case OpPushClass:
		hasSuper := a != 0
		superProto := value.Nul()
		var superCtor value.Value
		if hasSuper {
			superCtor = vs.Pop()
			ctorObj, ok := asObject(superCtor)
			if !ok || !ctorObj.IsConstructor() {
				return rterr.TypeError("class extends value is not a constructor")
			}
			p, err := ctorObj.Get(ip, propkeys.StringKey(ip.Intern("prototype")), superCtor)
			if err != nil {
				return err
			}
			superProto = p
		}
		proto := object.NewOrdinary(superProto)
		h := ip.Heap.Alloc(proto)
		proto.SetSelf(h)
		st := State{Kind: StateClass, Prototype: value.ObjectHandle(h), PrivateEnv: -1}
		if hasSuper {
			st.Constructor = superCtor
		}
		vs.PushState(st)
		return nil

	case OpDefaultConstr, OpDerivedDefaultConstr:
		funcIndex := a | b<<8
		st := vs.TopState()
		closure := ip.MakeClosure(frame.Script, funcIndex, frame.Env, st.Prototype)
		ctorObj, _ := asObject(closure)
		fnObj := closure.Handle().Thing().(*object.Function)
		fnObj.Constructor = true
		if op == OpDerivedDefaultConstr && st.Constructor.IsObject() {
			if _, err := ctorObj.SetPrototypeOf(st.Constructor); err != nil {
				return err
			}
		}
		protoObj, _ := asObject(st.Prototype)
		if _, err := ctorObj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("prototype")), object.DataDescriptor(st.Prototype, false, false, false)); err != nil {
			return err
		}
		if _, err := protoObj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("constructor")), object.DataDescriptor(closure, true, false, true)); err != nil {
			return err
		}
		st.Constructor = closure
		return nil

	case OpMethodAdd, OpGetterAdd, OpSetterAdd:
		fn := vs.Pop()
		st := vs.TopState()
		return ip.installClassMember(st.Prototype, frame, b, fn, op, false)

	case OpStaticMethodAdd, OpStaticGetterAdd, OpStaticSetterAdd:
		fn := vs.Pop()
		st := vs.TopState()
		return ip.installClassMember(st.Constructor, frame, b, fn, op, true)

	case OpFieldAdd:
		// Static field: evaluated immediately with `this` bound to the class
		// itself, then installed as an own property of the constructor.
		fn := vs.Pop()
		st := vs.TopState()
		v, err := ip.call(fn, st.Constructor, nil)
		if err != nil {
			return err
		}
		ctorObj, ok := asObject(st.Constructor)
		if !ok {
			return rterr.NewFatal(nil, "class static field target is not an object")
		}
		key := ip.fixedKey(frame, b)
		_, err = ctorObj.DefineOwnProperty(ip, key, object.DataDescriptor(v, true, true, true))
		return err

	case OpInstFieldAdd:
		// Instance field: deferred until an instance exists; recorded on the
		// in-progress StateClass record rather than run now.
		fn := vs.Pop()
		st := vs.TopState()
		key := ip.fixedKey(frame, b)
		st.InstanceFields = append(st.InstanceFields, object.FieldInit{Key: key, Init: fn})
		return nil

	case OpSetAfField:
		// Seals the collected instance fields onto the constructor closure so
		// the vm package can run them once per instantiation.
		st := vs.TopState()
		if fnObj, ok := st.Constructor.Handle().Thing().(*object.Function); ok {
			fnObj.InstanceFields = append([]object.FieldInit{}, st.InstanceFields...)
		}
		return nil

	case OpStaticBlockAdd:
		// Static block: run immediately with `this` bound to the class.
		fn := vs.Pop()
		st := vs.TopState()
		_, err := ip.call(fn, st.Constructor, nil)
		return err

	case OpSetPrivEnv:
		st := vs.TopState()
		st.PrivateEnv = a | b<<8
		return nil

	case OpClassInit:
		st := vs.PopState()
		vs.Push(st.Constructor)
		return nil

	default:
		return rterr.NewFatal(nil, "unhandled class opcode %s", op)
	}
}

func (ip *Interpreter) installClassMember(target value.Value, frame *Frame, refIdx int, fn value.Value, op OpCode, static bool) error {
	obj, ok := asObject(target)
	if !ok {
		return rterr.NewFatal(nil, "class member target is not an object")
	}
	key := ip.fixedKey(frame, refIdx)
	switch {
	case op == OpMethodAdd || op == OpStaticMethodAdd:
		_, err := obj.DefineOwnProperty(ip, key, object.DataDescriptor(fn, true, false, true))
		return err
	case op == OpGetterAdd || op == OpStaticGetterAdd:
		existing, has := obj.GetOwnProperty(key)
		setFn := value.Undef()
		if has && existing.HasSet {
			setFn = existing.Set
		}
		_, err := obj.DefineOwnProperty(ip, key, object.AccessorDescriptor(fn, setFn, false, true))
		return err
	default:
		existing, has := obj.GetOwnProperty(key)
		getFn := value.Undef()
		if has && existing.HasGet {
			getFn = existing.Get
		}
		_, err := obj.DefineOwnProperty(ip, key, object.AccessorDescriptor(getFn, fn, false, true))
		return err
	}
}

// yieldIterStep implements yield*'s delegation: each yield_iter_next step
// pulls one value from the inner iterable and suspends the generator with
// it, exactly like a plain yield, until the inner iterable is exhausted.
func (ip *Interpreter) yieldIterStep(op OpCode, ctx *Context, frame *Frame, vs *NativeStack) error {
	switch op {
	case OpYieldIterStart:
		src := vs.Pop()
		iter, err := ip.getIterator(src)
		if err != nil {
			return err
		}
		vs.PushState(State{Kind: StateForOf, Iterator: iter})
		return nil
	case OpYieldIterNext:
		st := vs.TopState()
		done, item, err := ip.iteratorStep(st)
		if err != nil {
			return err
		}
		if done {
			vs.PopState()
			vs.Push(value.Undef())
			return nil
		}
		ctx.GenStatus = GenSuspendedYield
		frame.IP += 4
		return suspendSignal{value: item}
	default:
		return rterr.NewFatal(nil, "unhandled yield-iter opcode %s", op)
	}
}

// resolveAwait implements `await`: it always suspends the calling context
// at least one job-queue tick, even when v is already a resolved value,
// rather than short-circuiting to a synchronous pass-through. v is coerced
// to a promise (promiseResolve adopts an existing promise of this
// runtime's own type rather than invoking an arbitrary thenable's `then`);
// resumeAsync re-enters ctx once that promise settles.
func (ip *Interpreter) resolveAwait(ctx *Context, v value.Value) error {
	p := ip.promiseResolve(v)
	p.onSettle(ip,
		func(result value.Value) { ip.resumeAsync(ctx, ReqAsyncFulfill, result) },
		func(reason value.Value) { ip.resumeAsync(ctx, ReqAsyncReject, reason) },
	)
	return suspendSignal{value: value.Undef()}
}
