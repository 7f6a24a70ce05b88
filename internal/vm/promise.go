package vm

import (
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/value"
)

// promiseState is one of Promise's three settlement states.
type promiseState uint8

const (
	promisePending promiseState = iota
	promiseFulfilled
	promiseRejected
)

// promise is the Promise exotic object: an Ordinary object (so `.then`,
// installed on PromiseProto, and own-property access work exactly like any
// other object) plus the settlement record and pending-reaction lists
// `await` and `.then` attach to. Composition over inheritance, like
// object.Array: promise embeds Ordinary and adds fields, rather than
// reimplementing the 13-op vtable.
type promise struct {
	object.Ordinary
	state     promiseState
	result    value.Value
	onFulfill []func(value.Value)
	onReject  []func(value.Value)
}

// Scan additionally visits the settlement result, which Ordinary.Scan
// cannot see since it is a plain Go field rather than an own property.
func (p *promise) Scan(visit func(gc.Handle)) {
	p.Ordinary.Scan(visit)
	if h := p.result.Handle(); !h.Nil() {
		visit(h)
	}
}

// newPromise allocates a pending promise on the heap.
func (ip *Interpreter) newPromise() *promise {
	p := &promise{Ordinary: *object.NewOrdinary(ip.PromiseProto)}
	h := ip.Heap.Alloc(p)
	p.SetSelf(h)
	return p
}

func (ip *Interpreter) newPromiseValue() value.Value {
	return value.ObjectHandle(ip.newPromise().Self())
}

// promiseResolve implements Promise.resolve's value-coercion half: a
// promise is returned as-is, anything else becomes an already-fulfilled
// promise. Arbitrary thenables (a plain object exposing `.then`) are not
// adopted; only this runtime's own promise objects chain.
func (ip *Interpreter) promiseResolve(v value.Value) *promise {
	if v.IsObject() {
		if p, ok := v.Handle().Thing().(*promise); ok {
			return p
		}
	}
	p := ip.newPromise()
	p.state = promiseFulfilled
	p.result = v
	return p
}

// fulfill settles a pending promise with v, scheduling every attached
// reaction as a job rather than calling it inline.
func (p *promise) fulfill(ip *Interpreter, v value.Value) {
	if p.state != promisePending {
		return
	}
	p.state, p.result = promiseFulfilled, v
	reactions := p.onFulfill
	p.onFulfill, p.onReject = nil, nil
	for _, r := range reactions {
		ip.Jobs.Enqueue(v, r)
	}
}

// reject settles a pending promise with reason, scheduling every attached
// reaction as a job.
func (p *promise) reject(ip *Interpreter, reason value.Value) {
	if p.state != promisePending {
		return
	}
	p.state, p.result = promiseRejected, reason
	reactions := p.onReject
	p.onFulfill, p.onReject = nil, nil
	for _, r := range reactions {
		ip.Jobs.Enqueue(reason, r)
	}
}

// onSettle attaches fulfill/reject continuations. They always run through
// the job queue, even for an already-settled promise, so a reaction never
// runs synchronously with the code that attached it — the guarantee
// `await`'s always-suspend behaviour and `.then` both rely on.
func (p *promise) onSettle(ip *Interpreter, onFulfill, onReject func(value.Value)) {
	switch p.state {
	case promiseFulfilled:
		ip.Jobs.Enqueue(p.result, onFulfill)
	case promiseRejected:
		ip.Jobs.Enqueue(p.result, onReject)
	default:
		p.onFulfill = append(p.onFulfill, onFulfill)
		p.onReject = append(p.onReject, onReject)
	}
}

// promiseThen implements Promise.prototype.then: returns a new promise
// settled from whichever handler applies, defaulting to pass-through for a
// missing handler exactly like the spec's thrown-promise-reaction-job
// shape. Run on the job queue so it composes with await's own scheduling.
func (ip *Interpreter) promiseThen(receiver value.Value, onFulfilled, onRejected value.Value) (value.Value, error) {
	self, ok := receiver.Handle().Thing().(*promise)
	if !ok {
		return value.Value{}, rterr.TypeError("Promise.prototype.then called on a non-promise")
	}
	derived := ip.newPromise()
	handle := func(handler value.Value, fallback func(value.Value, *promise)) func(value.Value) {
		return func(v value.Value) {
			if callable, ok := ip.asCallable(handler); ok {
				result, err := callable.Call(ip, value.Undef(), []value.Value{v})
				if err != nil {
					derived.reject(ip, errorToValue(ip, err))
					return
				}
				derived.fulfill(ip, result)
				return
			}
			fallback(v, derived)
		}
	}
	self.onSettle(ip,
		handle(onFulfilled, func(v value.Value, d *promise) { d.fulfill(ip, v) }),
		handle(onRejected, func(v value.Value, d *promise) { d.reject(ip, v) }),
	)
	return value.ObjectHandle(derived.Self()), nil
}

// installPromiseProto wires Promise.prototype.then/catch against
// PromiseProto, called once by the owning realm at bootstrap.
func (ip *Interpreter) installPromiseProto() {
	protoObj, ok := ip.PromiseProto.Handle().Thing().(object.Object)
	if !ok {
		return
	}
	then := object.NewNativeFunction(ip.FunctionProto, "then", 2, func(inv object.Invoker, this value.Value, newTarget value.Value, args []value.Value) (value.Value, error) {
		onFulfilled, onRejected := value.Undef(), value.Undef()
		if len(args) > 0 {
			onFulfilled = args[0]
		}
		if len(args) > 1 {
			onRejected = args[1]
		}
		return ip.promiseThen(this, onFulfilled, onRejected)
	})
	h := ip.Heap.Alloc(then)
	then.SetSelf(h)
	_, _ = protoObj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("then")), object.DataDescriptor(value.ObjectHandle(h), true, false, true))

	catch := object.NewNativeFunction(ip.FunctionProto, "catch", 1, func(inv object.Invoker, this value.Value, newTarget value.Value, args []value.Value) (value.Value, error) {
		onRejected := value.Undef()
		if len(args) > 0 {
			onRejected = args[0]
		}
		return ip.promiseThen(this, value.Undef(), onRejected)
	})
	ch := ip.Heap.Alloc(catch)
	catch.SetSelf(ch)
	_, _ = protoObj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("catch")), object.DataDescriptor(value.ObjectHandle(ch), true, false, true))
}
