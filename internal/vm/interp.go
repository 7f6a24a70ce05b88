package vm

import (
	"github.com/goquill/goquill/internal/env"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
)

// suspendSignal is returned (wrapped, never as a bare error reaching user
// code) by the yield/await opcodes to unwind the Go call stack back up to
// Run's caller without running any further bytecode — a closed stackless
// coroutine: each opcode is a step, and suspending just stops stepping
// until the context is re-entered.
type suspendSignal struct {
	value value.Value
}

func (suspendSignal) Error() string { return "vm: context suspended" }

// Run drives the dispatch loop for ctx's topmost frame until it
// returns, throws past its own frame boundary, or suspends (yield/await).
// A fresh Context is allocated per non-tail call rather than sharing one
// VM-wide frame slice, so a generator's suspended frame doesn't have to
// coexist with its caller's.
func (ip *Interpreter) Run(ctx *Context) (value.Value, error) {
	for {
		frame := ctx.CurrentFrame()
		result, jumped, done, err := ip.step(ctx, frame)
		if err != nil {
			if sig, ok := err.(suspendSignal); ok {
				return sig.value, err
			}
			if handled, jumpIP := ip.unwindFrame(ctx, frame, err); handled {
				frame.IP = jumpIP
				continue
			}
			return value.Value{}, err
		}
		if done {
			return result, nil
		}
		if jumped {
			continue
		}
	}
}

// unwindFrame implements the error-unwind protocol: pop states down to the
// frame base, diverting to a try-state's catch or finally target the first
// time one is found; states with no try semantics just run their (simple)
// deinit and get discarded.
func (ip *Interpreter) unwindFrame(ctx *Context, frame *Frame, cause error) (handled bool, jumpIP int) {
	errVal := errorToValue(ip, cause)
	stack := ctx.Stack
	for len(stack.States) > frame.StateBase {
		st := stack.TopState()
		if st.Kind == StateTry {
			if st.Phase == TryPhaseBody && st.HasCatch {
				st.Phase = TryPhaseCatch
				st.PendingValue = errVal
				stack.Restore(st.SaveDepth)
				stack.Push(errVal)
				return true, st.CatchIP
			}
			if st.HasFinally && st.Phase != TryPhaseFinally {
				st.Phase = TryPhaseFinally
				st.Pending = PendingThrow
				st.PendingValue = errVal
				stack.Restore(st.SaveDepth)
				return true, st.FinallyIP
			}
		}
		if st.Kind == StateForOf || st.Kind == StateForIn {
			// Best-effort iterator close; ignore secondary errors from close
			// itself so the original error still propagates.
			ip.closeIterator(st)
		}
		stack.PopState()
	}
	return false, 0
}

func errorToValue(ip *Interpreter, err error) value.Value {
	if te, ok := err.(thrownError); ok {
		return te.v
	}
	return ip.NewString(err.Error())
}

func (ip *Interpreter) closeIterator(st *State) {
	if !st.Iterator.IsObject() {
		return
	}
	obj, ok := st.Iterator.Handle().Thing().(object.Object)
	if !ok {
		return
	}
	ret, err := obj.Get(ip, propkeys.StringKey(ip.Intern("return")), st.Iterator)
	if err != nil || !ret.IsObject() {
		return
	}
	if callable, ok := ret.Handle().Thing().(object.Object); ok && callable.IsCallable() {
		_, _ = callable.Call(ip, st.Iterator, nil)
	}
}

// step executes exactly one instruction, returning (result, jumped, done,
// err): done=true with a result means the frame returned a value; jumped
// means the IP was already updated by a control-flow opcode and the caller
// should not advance it further; otherwise the IP auto-advances to the next
// instruction before the next call to step.
func (ip *Interpreter) step(ctx *Context, frame *Frame) (value.Value, bool, bool, error) {
	code := frame.Script.Code
	if frame.IP >= frame.Func.CodeEnd {
		return value.Undef(), false, true, nil
	}
	inst := decodeInstruction(code, frame.IP)
	nextIP := frame.IP + 4
	op := inst.OpCode()
	a, b := inst.A(), inst.B()
	vs := ctx.Stack

	switch op {
	// ---- Load ----
	case OpLoadUndef:
		vs.Push(value.Undef())
	case OpLoadNull:
		vs.Push(value.Nul())
	case OpLoadTrue:
		vs.Push(value.BoolVal(true))
	case OpLoadFalse:
		vs.Push(value.BoolVal(false))
	case OpLoadThis:
		this, err := frame.Env.GetThisBinding()
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(this)
	case OpLoadSuperCtor:
		fnEnv, ok := frame.Env.(*env.Function)
		if !ok {
			return value.Value{}, false, false, rterr.NewFatal(nil, "load_super_ctor outside a function")
		}
		base, err := fnEnv.GetSuperBase()
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(base)
	case OpLoadNewTarget:
		vs.Push(frame.NewTarget)
	case OpLoadArg:
		idx := int(b)
		if idx < len(frame.Registers) {
			vs.Push(frame.Registers[idx])
		} else {
			vs.Push(value.Undef())
		}
	case OpLoadRestArgs:
		idx := int(b)
		rest := []value.Value{}
		if idx < len(frame.Registers) {
			rest = append(rest, frame.Registers[idx:]...)
		}
		vs.Push(ip.newArray(rest))
	case OpLoadValue:
		idx := int(b)
		if idx >= len(frame.Script.Constants) {
			return value.Value{}, false, false, rterr.NewFatal(nil, "load_value: constant index out of range")
		}
		vs.Push(frame.Script.Constants[idx])
	case OpLoadRegexp:
		// Regexp literals are out of this core's scope; push undefined as
		// a placeholder payload rather than failing the whole script.
		vs.Push(value.Undef())

	// ---- registers (A operand addresses a register directly) ----
	case OpDup:
		vs.Push(vs.Peek())

	// ---- Unary ----
	case OpNeg, OpReverse, OpNot, OpInc, OpDec, OpTypeof:
		v := vs.Pop()
		r, err := ip.unaryOp(op, v)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(r)
	case OpTypeofBinding:
		ref := frame.Script.BindingRefs[int(b)]
		name := ip.nameFromConstant(frame.Script, ref.NameIndex)
		has, _ := frame.Env.HasBinding(name)
		if !has {
			vs.Push(ip.NewString("undefined"))
		} else {
			v, err := frame.Env.GetBindingValue(name, false)
			if err != nil {
				vs.Push(ip.NewString("undefined"))
			} else {
				vs.Push(ip.NewString(ip.TypeofString(v)))
			}
		}

	// ---- Binary ----
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpExp, OpShl, OpShr, OpUshr,
		OpAnd, OpOr, OpXor, OpLt, OpLe, OpGt, OpGe, OpEq, OpNe, OpStrictEq, OpStrictNe:
		rhs := vs.Pop()
		lhs := vs.Pop()
		r, err := ip.binaryOp(op, lhs, rhs)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(r)
	case OpHasProp:
		rhs := vs.Pop()
		lhs := vs.Pop()
		r, err := ip.hasProperty(lhs, rhs)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(value.BoolVal(r))
	case OpInstanceof:
		rhs := vs.Pop()
		lhs := vs.Pop()
		r, err := ip.instanceOf(lhs, rhs)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(value.BoolVal(r))

	// ---- Binding ----
	case OpBindingResolve:
		// No-op placeholder for the ancestor-cache resolution step: this
		// core re-resolves by name on every access (binding_get/_set), so
		// resolve is only a hook point for a future caching compiler pass.
	case OpBindingInit, OpBindingSet, OpBindingGet, OpDelBinding:
		if err := ip.bindingOp(op, frame, int(b), vs); err != nil {
			return value.Value{}, false, false, err
		}

	// ---- Property ----
	case OpPropGet, OpPropGetExpr, OpPropSet, OpPropSetExpr, OpDelProp:
		if err := ip.propertyOp(op, frame, int(b), vs); err != nil {
			return value.Value{}, false, false, err
		}
	case OpSuperPropGet, OpSuperPropSet:
		if err := ip.superPropertyOp(op, frame, int(b), vs); err != nil {
			return value.Value{}, false, false, err
		}
	case OpPrivGet, OpPrivSet:
		if err := ip.privatePropertyOp(op, frame, int(b), vs); err != nil {
			return value.Value{}, false, false, err
		}

	// ---- Control ----
	case OpJump:
		return value.Value{}, true, false, stepJump(frame, int(inst.SignedB()))
	case OpJumpTrue:
		cond := ip.ToBoolean(vs.Pop())
		if cond {
			return value.Value{}, true, false, stepJump(frame, int(inst.SignedB()))
		}
		frame.IP = nextIP
		return value.Value{}, true, false, nil
	case OpJumpFalse:
		cond := ip.ToBoolean(vs.Pop())
		if !cond {
			return value.Value{}, true, false, stepJump(frame, int(inst.SignedB()))
		}
		frame.IP = nextIP
		return value.Value{}, true, false, nil
	case OpReturnValue:
		return vs.Pop(), false, true, nil
	case OpThrow:
		v := vs.Pop()
		return value.Value{}, false, false, thrownError{v}
	case OpDebugger:
		// No debugger hooked up; a no-op.

	// ---- Calls ----
	case OpPushCall:
		callee := vs.Pop()
		this := vs.Pop()
		vs.PushState(State{Kind: StateCall, Callee: callee, This: this, ArgBase: vs.Save()})
	case OpArgAdd:
		// argument already on the value stack; nothing to do beyond
		// tracking ArgCount for call/spread_args_add bookkeeping.
		st := vs.TopState()
		st.ArgCount++
	case OpSpreadArgsAdd:
		iterable := vs.Pop()
		items, err := ip.iterableToSlice(iterable)
		if err != nil {
			return value.Value{}, false, false, err
		}
		for _, it := range items {
			vs.Push(it)
		}
		st := vs.TopState()
		st.ArgCount += len(items)
	case OpCall, OpTailCall:
		st := *vs.TopState()
		args := append([]value.Value{}, vs.Values[st.ArgBase:]...)
		vs.PopState()
		result, err := ip.call(st.Callee, st.This, args)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(result)
	case OpEval, OpTailEval:
		// Direct eval requires a parser, which this core does not embed
		// (§ non-goal); treat as an ordinary call to whatever `eval`
		// currently resolves to, which a host may have replaced with its
		// own implementation.
		st := *vs.TopState()
		args := append([]value.Value{}, vs.Values[st.ArgBase:]...)
		vs.PopState()
		result, err := ip.call(st.Callee, st.This, args)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(result)
	case OpPushSuperCall:
		vs.PushState(State{Kind: StateCall, IsSuper: true, ArgBase: vs.Save()})
	case OpSuperCall:
		st := *vs.TopState()
		args := append([]value.Value{}, vs.Values[st.ArgBase:]...)
		vs.PopState()
		result, err := ip.superCall(frame, args)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(result)
	case OpPushNew:
		ctorArg := vs.Pop()
		vs.PushState(State{Kind: StateCall, Callee: ctorArg, IsNew: true, ArgBase: vs.Save()})
	case OpNew:
		st := *vs.TopState()
		args := append([]value.Value{}, vs.Values[st.ArgBase:]...)
		vs.PopState()
		result, err := ip.construct(st.Callee, args, st.Callee)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(result)

	// ---- Concurrency ----
	case OpYield:
		v := vs.Pop()
		ctx.GenStatus = GenSuspendedYield
		frame.IP = nextIP
		return value.Value{}, false, false, suspendSignal{value: v}
	case OpYieldIterStart, OpYieldIterNext:
		// yield* delegation: simplified to stepping the inner iterable via
		// yieldIterStep rather than a full request-forwarding loop.
		if err := ip.yieldIterStep(op, ctx, frame, vs); err != nil {
			return value.Value{}, false, false, err
		}
	case OpAwait:
		v := vs.Pop()
		frame.IP = nextIP
		return value.Value{}, false, false, ip.resolveAwait(ctx, v)

	// ---- State push/pop ----
	case OpPushLexEnv:
		vs.PushState(State{Kind: StateLexEnv, OuterEnv: frame.Env})
		frame.Env = env.NewDeclarative(frame.Env)
	case OpPopState:
		if err := ip.popState(ctx, frame, vs); err != nil {
			return value.Value{}, false, false, err
		}
	case OpPushEnum:
		target := vs.Pop()
		keys := ip.enumerableStringKeys(target)
		vs.PushState(State{Kind: StateForIn, Keys: keys})
	case OpPushIter, OpPushAsyncIter:
		target := vs.Pop()
		iter, err := ip.getIterator(target)
		if err != nil {
			return value.Value{}, false, false, err
		}
		kind := StateForOf
		vs.PushState(State{Kind: kind, Iterator: iter})
	case OpForStep, OpAsyncForStep:
		done, item, err := ip.iteratorStep(vs.TopState())
		if err != nil {
			return value.Value{}, false, false, err
		}
		if done {
			vs.TopState().Done = true
			vs.Push(value.Undef())
			vs.Push(value.BoolVal(true))
		} else {
			vs.Push(item)
			vs.Push(value.BoolVal(false))
		}
	case OpIterRest:
		st := vs.TopState()
		rest := []value.Value{}
		for {
			done, item, err := ip.iteratorStep(st)
			if err != nil {
				return value.Value{}, false, false, err
			}
			if done {
				break
			}
			rest = append(rest, item)
		}
		vs.Push(ip.newArray(rest))
	case OpPushTry:
		// A==0xFF is the "no catch clause" sentinel; otherwise A|B<<8 is the
		// catch target's byte offset.
		hasCatch := a != 0xFF
		catchIP := int(a) | int(b)<<8
		vs.PushState(State{Kind: StateTry, HasCatch: hasCatch, CatchIP: catchIP})
	case OpCatchError:
		st := vs.TopState()
		st.Phase = TryPhaseBody
	case OpFinally:
		st := vs.TopState()
		st.HasFinally = true
		st.FinallyIP = int(a) | int(b)<<8
	case OpTryEnd:
		st := vs.PopState()
		if st.Pending == PendingThrow {
			return value.Value{}, false, false, thrownError{st.PendingValue}
		}

	// ---- Literals: arrays/objects ----
	case OpPushNewArray:
		vs.PushState(State{Kind: StateArray, Dest: ip.newArray(nil)})
	case OpArrayElision:
		st := vs.TopState()
		st.NextIdx++
	case OpArrayAdd:
		v := vs.Pop()
		st := vs.TopState()
		ip.arraySet(st.Dest, st.NextIdx, v)
		st.NextIdx++
	case OpArraySpread:
		iterable := vs.Pop()
		items, err := ip.iterableToSlice(iterable)
		if err != nil {
			return value.Value{}, false, false, err
		}
		st := vs.TopState()
		for _, it := range items {
			ip.arraySet(st.Dest, st.NextIdx, it)
			st.NextIdx++
		}
	case OpPushConcat:
		// pop-array-state-and-push-result: the array literal is complete.
		st := vs.PopState()
		vs.Push(st.Dest)
	case OpPushNewObject:
		vs.PushState(State{Kind: StateObject, Dest: ip.newObject()})
	case OpObjectAdd, OpObjectAddFunc, OpObjectMethodAdd, OpObjectGetterAdd, OpObjectSetterAdd:
		if err := ip.objectLiteralAdd(op, frame, int(b), vs); err != nil {
			return value.Value{}, false, false, err
		}
	case OpObjectSpread:
		src := vs.Pop()
		st := vs.TopState()
		if err := ip.objectSpreadInto(st.Dest, src); err != nil {
			return value.Value{}, false, false, err
		}

	// ---- Classes ----
	case OpPushClass, OpConstrCreate, OpDefaultConstr, OpDerivedDefaultConstr,
		OpMethodAdd, OpGetterAdd, OpSetterAdd, OpStaticMethodAdd, OpStaticGetterAdd,
		OpStaticSetterAdd, OpFieldAdd, OpInstFieldAdd, OpSetAfField, OpStaticBlockAdd,
		OpSetPrivEnv, OpClassInit:
		if err := ip.classOp(op, frame, int(a), int(b), vs); err != nil {
			return value.Value{}, false, false, err
		}

	// ---- Patterns ----
	case OpPushArrayAssi:
		src := vs.Pop()
		iter, err := ip.getIterator(src)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.PushState(State{Kind: StateArrayAssi, Iterator: iter})
	case OpNextArrayItem:
		done, item, err := ip.iteratorStep(vs.TopState())
		if err != nil {
			return value.Value{}, false, false, err
		}
		if done {
			vs.Push(value.Undef())
		} else {
			vs.Push(item)
		}
	case OpGetArrayItem:
		vs.Push(vs.Peek())
	case OpRestArrayItems:
		st := vs.TopState()
		rest := []value.Value{}
		for {
			done, item, err := ip.iteratorStep(st)
			if err != nil {
				return value.Value{}, false, false, err
			}
			if done {
				break
			}
			rest = append(rest, item)
		}
		vs.Push(ip.newArray(rest))
	case OpPushObjectAssi:
		src := vs.Pop()
		vs.PushState(State{Kind: StateObjectAssi, Source: src, Consumed: map[string]bool{}})
	case OpGetObjectProp, OpGetObjectPropExpr:
		if err := ip.getObjectPatternProp(op, frame, int(b), vs); err != nil {
			return value.Value{}, false, false, err
		}
	case OpRestObjectProps:
		st := vs.TopState()
		rest, err := ip.objectRest(st.Source, st.Consumed)
		if err != nil {
			return value.Value{}, false, false, err
		}
		vs.Push(rest)

	// ---- Scope ----
	case OpPushWith:
		base := vs.Pop()
		vs.PushState(State{Kind: StateLexEnv, OuterEnv: frame.Env})
		frame.Env = env.NewObjectEnvironment(frame.Env, base, true, ip, ip.Intern)
	case OpSetProto:
		proto := vs.Pop()
		target := vs.Peek()
		if obj, ok := target.Handle().Thing().(object.Object); ok {
			_, _ = obj.SetPrototypeOf(proto)
		}

	default:
		return value.Value{}, false, false, rterr.NewFatal(nil, "unimplemented opcode %s", op)
	}

	frame.IP = nextIP
	return value.Value{}, false, false, nil
}

func stepJump(frame *Frame, offset int) error {
	frame.IP = frame.IP + 4 + offset*4
	return nil
}

// thrownError wraps a user-level thrown value (which may be any ECMAScript
// value, not just an Error instance) so it can travel through Go's error
// interface and be recovered by errorToValue/unwindFrame.
type thrownError struct {
	v value.Value
}

func (t thrownError) Error() string { return "uncaught exception" }

func (ip *Interpreter) newArray(initial []value.Value) value.Value {
	arr := object.NewArray(ip.ArrayProto, ip.Intern("length"), initial)
	h := ip.Heap.Alloc(arr)
	arr.SetSelf(h)
	return value.ObjectHandle(h)
}

func (ip *Interpreter) newObject() value.Value {
	obj := object.NewOrdinary(ip.ObjectProto)
	h := ip.Heap.Alloc(obj)
	obj.SetSelf(h)
	return value.ObjectHandle(h)
}

func (ip *Interpreter) arraySet(dest value.Value, idx int, v value.Value) {
	obj, ok := dest.Handle().Thing().(object.Object)
	if !ok {
		return
	}
	_, _ = obj.DefineOwnProperty(ip, propkeys.IndexKey(uint32(idx)), object.DataDescriptor(v, true, true, true))
}

func (ip *Interpreter) hasProperty(lhs, rhs value.Value) (bool, error) {
	if !rhs.IsObject() {
		return false, rterr.TypeError("cannot use 'in' operator on a non-object")
	}
	obj, ok := rhs.Handle().Thing().(object.Object)
	if !ok {
		return false, rterr.TypeError("cannot use 'in' operator on a non-object")
	}
	key, err := ip.toPropertyKey(lhs)
	if err != nil {
		return false, err
	}
	return obj.HasProperty(ip, key)
}

func (ip *Interpreter) instanceOf(lhs, rhs value.Value) (bool, error) {
	ctorObj, ok := rhs.Handle().Thing().(object.Object)
	if !rhs.IsObject() || !ok || !ctorObj.IsCallable() {
		return false, rterr.TypeError("right-hand side of 'instanceof' is not callable")
	}
	proto, err := ctorObj.Get(ip, propkeys.StringKey(ip.Intern("prototype")), rhs)
	if err != nil {
		return false, err
	}
	if !proto.IsObject() {
		return false, rterr.TypeError("prototype is not an object")
	}
	if !lhs.IsObject() {
		return false, nil
	}
	obj, ok := lhs.Handle().Thing().(object.Object)
	if !ok {
		return false, nil
	}
	cur := obj.GetPrototypeOf()
	for cur.IsObject() {
		if cur.Handle().Equal(proto.Handle()) {
			return true, nil
		}
		curObj, ok := cur.Handle().Thing().(object.Object)
		if !ok {
			break
		}
		cur = curObj.GetPrototypeOf()
	}
	return false, nil
}

func (ip *Interpreter) toPropertyKey(v value.Value) (propkeys.Key, error) {
	if v.IsSymbol() {
		return propkeys.SymbolKey(v.Handle().Identity()), nil
	}
	s, err := ip.ToStringValue(v)
	if err != nil {
		return propkeys.Key{}, err
	}
	return propkeys.StringKey(ip.Intern(stringText(s))), nil
}

func (ip *Interpreter) popState(ctx *Context, frame *Frame, vs *NativeStack) error {
	st := vs.TopState()
	switch st.Kind {
	case StateLexEnv:
		popped := vs.PopState()
		frame.Env = popped.OuterEnv
	case StateForIn, StateForOf, StateArrayAssi, StateObjectAssi:
		if !st.Done {
			ip.closeIterator(st)
		}
		vs.PopState()
	case StateTry:
		popped := vs.PopState()
		if popped.Pending == PendingThrow {
			return thrownError{popped.PendingValue}
		}
	default:
		vs.PopState()
	}
	return nil
}
