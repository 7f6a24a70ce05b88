package vm

import (
	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/value"
)

// resumeContext is the single driver every suspended Context re-enters
// through, assigned to Context.ResumeFunc when a generator or async
// function's body is first set up. It folds a next()/return()/throw() or a
// settled await's fulfill/reject back into the interpreter's normal
// control flow (a pushed value, or unwindFrame's catch/finally search) and
// re-runs the dispatch loop from wherever the context left off.
func resumeContext(ip *Interpreter, ctx *Context, req ResumeRequest, v value.Value) (value.Value, error) {
	frame := ctx.CurrentFrame()
	switch req {
	case ReqNext, ReqAsyncFulfill:
		if !(req == ReqNext && ctx.GenStatus == GenSuspendedStart) {
			ctx.Stack.Push(v)
		}
	case ReqThrow, ReqAsyncReject:
		if handled, jumpIP := ip.unwindFrame(ctx, frame, thrownError{v}); handled {
			frame.IP = jumpIP
		} else {
			ctx.GenStatus = GenCompleted
			ip.Heap.RemoveRoot(ctx)
			return value.Value{}, thrownError{v}
		}
	case ReqReturn:
		ctx.GenStatus = GenCompleted
		ip.Heap.RemoveRoot(ctx)
		return v, nil
	}

	ctx.GenStatus = GenExecuting
	result, err := ip.Run(ctx)
	if err != nil {
		if sig, ok := err.(suspendSignal); ok {
			ctx.GenStatus = GenSuspendedYield
			return sig.value, nil
		}
		ctx.GenStatus = GenCompleted
		ip.Heap.RemoveRoot(ctx)
		return value.Value{}, err
	}
	ctx.GenStatus = GenCompleted
	ip.Heap.RemoveRoot(ctx)
	return result, nil
}

// resumeAsync wakes a suspended async context once its awaited promise
// settles, then forwards the outcome to the context's own promise
// capability — the same capability `await`'s caller received immediately
// when the async function was first invoked.
func (ip *Interpreter) resumeAsync(ctx *Context, req ResumeRequest, v value.Value) {
	capability := ctx.PromiseCapability
	p, ok := capability.Handle().Thing().(*promise)
	if !ok {
		return
	}
	result, err := ctx.ResumeFunc(ip, ctx, req, v)
	if err != nil {
		p.reject(ip, errorToValue(ip, err))
		return
	}
	if ctx.GenStatus == GenCompleted {
		p.fulfill(ip, result)
	}
	// Otherwise the context suspended again at a further await; resolveAwait
	// already attached a fresh reaction to that await's promise before
	// returning, so there is nothing more to do here.
}

// runAsync runs an async function body synchronously up to its first
// await (or to completion), then always returns its promise capability —
// the caller of an async function never sees a suspendSignal or a directly
// thrown error, only the promise.
func (ip *Interpreter) runAsync(ctx *Context) value.Value {
	capability := ctx.PromiseCapability
	p := capability.Handle().Thing().(*promise)
	result, err := ip.Run(ctx)
	if err != nil {
		if _, ok := err.(suspendSignal); ok {
			return capability
		}
		ip.Heap.RemoveRoot(ctx)
		ctx.GenStatus = GenCompleted
		p.reject(ip, errorToValue(ip, err))
		return capability
	}
	ip.Heap.RemoveRoot(ctx)
	ctx.GenStatus = GenCompleted
	p.fulfill(ip, result)
	return capability
}

// generatorObject is the iterator a script sees when it calls a generator
// function: an Ordinary object (so it supports Symbol.iterator-style own
// properties normally) whose next/return/throw own properties are native
// functions closing over the suspended Context.
type generatorObject struct {
	object.Ordinary
	ip  *Interpreter
	ctx *Context
}

// Scan keeps the suspended context's registers and state stack reachable
// for as long as something still holds the generator object itself.
func (g *generatorObject) Scan(visit func(gc.Handle)) {
	g.Ordinary.Scan(visit)
	g.ctx.ScanRoots(visit)
}

// Prune implements gc.Prunable: a generator whose last external reference
// just vanished is unmarked but, if still suspended, cannot simply be
// freed — its native stack (and any pending try/finally cleanup) needs an
// orderly close. This pass marks it completed without running iterator
// finalizers, matching classOp's scope: full iterator-close-on-abandon
// would need to re-enter bytecode mid-sweep, which this collector does not
// support.
func (g *generatorObject) Prune() bool {
	if g.ctx.GenStatus == GenSuspendedYield || g.ctx.GenStatus == GenSuspendedStart {
		g.ctx.GenStatus = GenCompleted
		g.ip.Heap.RemoveRoot(g.ctx)
	}
	return true
}

// iterResult boxes {value, done} the way every next()/return()/throw()
// call reports its outcome to script code.
func (ip *Interpreter) iterResult(v value.Value, done bool) value.Value {
	obj := object.NewOrdinary(ip.ObjectProto)
	h := ip.Heap.Alloc(obj)
	obj.SetSelf(h)
	_, _ = obj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("value")), object.DataDescriptor(v, true, true, true))
	_, _ = obj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("done")), object.DataDescriptor(value.BoolVal(done), true, true, true))
	return value.ObjectHandle(h)
}

// invoke implements next()/return()/throw()'s shared body.
func (g *generatorObject) invoke(req ResumeRequest, v value.Value) (value.Value, error) {
	if g.ctx.GenStatus == GenCompleted {
		if req == ReqThrow {
			return value.Value{}, thrownError{v}
		}
		rv := value.Undef()
		if req == ReqReturn {
			rv = v
		}
		return g.ip.iterResult(rv, true), nil
	}
	result, err := g.ctx.ResumeFunc(g.ip, g.ctx, req, v)
	if err != nil {
		if te, ok := err.(thrownError); ok {
			return value.Value{}, te
		}
		return value.Value{}, err
	}
	return g.ip.iterResult(result, g.ctx.GenStatus == GenCompleted), nil
}

// makeGeneratorObject wraps a not-yet-started generator Context as the
// object returned from calling a generator function, installing its
// next/return/throw own properties.
func (ip *Interpreter) makeGeneratorObject(ctx *Context) value.Value {
	g := &generatorObject{Ordinary: *object.NewOrdinary(ip.ObjectProto), ip: ip, ctx: ctx}
	h := ip.Heap.Alloc(g)
	g.SetSelf(h)

	install := func(name string, req ResumeRequest) {
		fn := object.NewNativeFunction(ip.FunctionProto, name, 1, func(inv object.Invoker, this value.Value, newTarget value.Value, args []value.Value) (value.Value, error) {
			arg := value.Undef()
			if len(args) > 0 {
				arg = args[0]
			}
			return g.invoke(req, arg)
		})
		fh := ip.Heap.Alloc(fn)
		fn.SetSelf(fh)
		_, _ = g.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern(name)), object.DataDescriptor(value.ObjectHandle(fh), true, false, true))
	}
	install("next", ReqNext)
	install("return", ReqReturn)
	install("throw", ReqThrow)

	return value.ObjectHandle(h)
}
