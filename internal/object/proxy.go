package object

import (
	"github.com/goquill/goquill/internal/gc"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// Proxy routes DefineOwnProperty, HasProperty, Get, Set, Call, Construct and
// GetPrototypeOfTrapped through its handler's trap, falling back to the
// target when the trap is absent, and those operations throw once the
// handler has been revoked to null. GetPrototypeOf, SetPrototypeOf,
// IsExtensible, PreventExtensions, GetOwnProperty, Delete and
// OwnPropertyKeys go straight to the target: they consult no trap and do not
// check for revocation. Trap lookup goes through the handler object's own
// Get, so a handler that is itself a Proxy composes correctly.
type Proxy struct {
	self    gc.Handle
	Target  value.Value // Object
	Handler value.Value // Object, or Null once revoked
	keys    trapKeys
}

// trapKeys are the interned property-key names for each trap, supplied by
// the realm at Proxy-construction time so lookups are pointer-equality.
type trapKeys struct {
	GetPrototypeOf, SetPrototypeOf, IsExtensible, PreventExtensions     strpool.Interned
	GetOwnPropertyDescriptor, DefineProperty, Has, Get, Set, Delete     strpool.Interned
	OwnKeys, Apply, Construct                                          strpool.Interned
}

// TrapKeys is the exported form callers (the realm) use to supply interned
// trap names once per runtime.
type TrapKeys = trapKeys

func NewProxy(target, handler value.Value, keys TrapKeys) *Proxy {
	return &Proxy{Target: target, Handler: handler, keys: keys}
}

func (p *Proxy) SetSelf(h gc.Handle) { p.self = h }
func (p *Proxy) Self() gc.Handle     { return p.self }

func (p *Proxy) Scan(visit func(gc.Handle)) {
	if !p.Target.Handle().Nil() {
		visit(p.Target.Handle())
	}
	if !p.Handler.Handle().Nil() {
		visit(p.Handler.Handle())
	}
}
func (p *Proxy) Finalize() {}

func (p *Proxy) targetObj() (Object, error) {
	obj, ok := p.Target.Handle().Thing().(Object)
	if !ok {
		return nil, rterr.TypeError("proxy target is not an object")
	}
	return obj, nil
}

func (p *Proxy) handlerObj(inv Invoker) (Object, error) {
	if p.Handler.IsNull() {
		return nil, rterr.TypeError("cannot perform operation on a revoked proxy")
	}
	obj, ok := p.Handler.Handle().Thing().(Object)
	if !ok {
		return nil, rterr.TypeError("proxy handler is not an object")
	}
	return obj, nil
}

// trap looks up handler[name]; returns (zero, false, nil) when absent so
// callers fall back to the target.
func (p *Proxy) trap(inv Invoker, name strpool.Interned) (value.Value, bool, error) {
	handler, err := p.handlerObj(inv)
	if err != nil {
		return value.Value{}, false, err
	}
	fn, err := handler.Get(inv, propkeys.StringKey(name), p.Handler)
	if err != nil {
		return value.Value{}, false, err
	}
	if fn.IsNullish() {
		return value.Value{}, false, nil
	}
	return fn, true, nil
}

func (p *Proxy) GetPrototypeOf() value.Value {
	target, err := p.targetObj()
	if err != nil {
		return value.Null()
	}
	return target.GetPrototypeOf()
}

// GetPrototypeOfTrapped is the trap-running form of GetPrototypeOf. It takes
// an Invoker explicitly since the Object interface's GetPrototypeOf has no
// Invoker parameter (it never calls user code for Ordinary). It is the only
// such trapped variant; GetPrototypeOf above, which is what the Object
// interface exposes, reads the target directly and never runs the trap.
func (p *Proxy) GetPrototypeOfTrapped(inv Invoker) (value.Value, error) {
	fn, ok, err := p.trap(inv, p.keys.GetPrototypeOf)
	if err != nil {
		return value.Value{}, err
	}
	if !ok {
		return p.GetPrototypeOf(), nil
	}
	result, err := inv.Invoke(fn, p.Handler, []value.Value{p.Target})
	if err != nil {
		return value.Value{}, err
	}
	if err := p.checkPrototypeInvariant(result); err != nil {
		return value.Value{}, err
	}
	return result, nil
}

func (p *Proxy) checkPrototypeInvariant(result value.Value) error {
	target, err := p.targetObj()
	if err != nil {
		return err
	}
	if target.IsExtensible() {
		return nil
	}
	if !value.SameValue(result, target.GetPrototypeOf()) {
		return rterr.TypeError("proxy getPrototypeOf invariant violated: non-extensible target")
	}
	return nil
}

func (p *Proxy) SetPrototypeOf(proto value.Value) (bool, error) {
	target, err := p.targetObj()
	if err != nil {
		return false, err
	}
	return target.SetPrototypeOf(proto)
}

func (p *Proxy) IsExtensible() bool {
	target, err := p.targetObj()
	if err != nil {
		return false
	}
	return target.IsExtensible()
}

func (p *Proxy) PreventExtensions() bool {
	target, err := p.targetObj()
	if err != nil {
		return false
	}
	return target.PreventExtensions()
}

func (p *Proxy) GetOwnProperty(key propkeys.Key) (*Descriptor, bool) {
	target, err := p.targetObj()
	if err != nil {
		return nil, false
	}
	return target.GetOwnProperty(key)
}

func (p *Proxy) DefineOwnProperty(inv Invoker, key propkeys.Key, desc *Descriptor) (bool, error) {
	fn, ok, err := p.trap(inv, p.keys.DefineProperty)
	if err != nil {
		return false, err
	}
	target, err := p.targetObj()
	if err != nil {
		return false, err
	}
	if !ok {
		return target.DefineOwnProperty(inv, key, desc)
	}
	_, err = inv.Invoke(fn, p.Handler, []value.Value{p.Target, keyToValue(key), value.Undef()})
	return err == nil, err
}

func (p *Proxy) HasProperty(inv Invoker, key propkeys.Key) (bool, error) {
	fn, ok, err := p.trap(inv, p.keys.Has)
	if err != nil {
		return false, err
	}
	target, err := p.targetObj()
	if err != nil {
		return false, err
	}
	if !ok {
		return target.HasProperty(inv, key)
	}
	result, err := inv.Invoke(fn, p.Handler, []value.Value{p.Target, keyToValue(key)})
	if err != nil {
		return false, err
	}
	return result.AsBool(), nil
}

func (p *Proxy) Get(inv Invoker, key propkeys.Key, receiver value.Value) (value.Value, error) {
	fn, ok, err := p.trap(inv, p.keys.Get)
	if err != nil {
		return value.Value{}, err
	}
	target, err := p.targetObj()
	if err != nil {
		return value.Value{}, err
	}
	if !ok {
		return target.Get(inv, key, receiver)
	}
	result, err := inv.Invoke(fn, p.Handler, []value.Value{p.Target, keyToValue(key), receiver})
	if err != nil {
		return value.Value{}, err
	}
	if err := p.checkGetInvariant(target, key, result); err != nil {
		return value.Value{}, err
	}
	return result, nil
}

func (p *Proxy) checkGetInvariant(target Object, key propkeys.Key, result value.Value) error {
	d, has := target.GetOwnProperty(key)
	if !has || d.Configurable {
		return nil
	}
	if d.IsData() && !d.Writable && !value.SameValue(result, d.Value) {
		return rterr.TypeError("proxy get invariant violated for non-configurable non-writable data property")
	}
	if d.IsAccessor() && !d.Get.IsObject() && !result.IsUndefined() {
		return rterr.TypeError("proxy get invariant violated for non-configurable accessor with no getter")
	}
	return nil
}

func (p *Proxy) Set(inv Invoker, key propkeys.Key, v value.Value, receiver value.Value) (bool, error) {
	fn, ok, err := p.trap(inv, p.keys.Set)
	if err != nil {
		return false, err
	}
	target, err := p.targetObj()
	if err != nil {
		return false, err
	}
	if !ok {
		return target.Set(inv, key, v, receiver)
	}
	result, err := inv.Invoke(fn, p.Handler, []value.Value{p.Target, keyToValue(key), v, receiver})
	if err != nil {
		return false, err
	}
	return result.AsBool(), nil
}

func (p *Proxy) Delete(key propkeys.Key) (bool, error) {
	target, err := p.targetObj()
	if err != nil {
		return false, err
	}
	return target.Delete(key)
}

func (p *Proxy) OwnPropertyKeys() []propkeys.Key {
	target, err := p.targetObj()
	if err != nil {
		return nil
	}
	return target.OwnPropertyKeys()
}

func (p *Proxy) Call(inv Invoker, this value.Value, args []value.Value) (value.Value, error) {
	fn, ok, err := p.trap(inv, p.keys.Apply)
	if err != nil {
		return value.Value{}, err
	}
	target, err := p.targetObj()
	if err != nil {
		return value.Value{}, err
	}
	if !ok {
		return target.Call(inv, this, args)
	}
	argsArrayPlaceholder := value.Undef() // constructed by the realm's Array wiring in vm
	return inv.Invoke(fn, p.Handler, []value.Value{p.Target, this, argsArrayPlaceholder})
}

func (p *Proxy) Construct(inv Invoker, args []value.Value, newTarget value.Value) (value.Value, error) {
	fn, ok, err := p.trap(inv, p.keys.Construct)
	if err != nil {
		return value.Value{}, err
	}
	target, err := p.targetObj()
	if err != nil {
		return value.Value{}, err
	}
	if !ok {
		return target.Construct(inv, args, newTarget)
	}
	argsArrayPlaceholder := value.Undef()
	return inv.Invoke(fn, p.Handler, []value.Value{p.Target, argsArrayPlaceholder, newTarget})
}

func (p *Proxy) IsCallable() bool {
	target, err := p.targetObj()
	return err == nil && target.IsCallable()
}

func (p *Proxy) IsConstructor() bool {
	target, err := p.targetObj()
	return err == nil && target.IsConstructor()
}

// keyToValue renders a propkeys.Key back to the ECMAScript value passed to
// a trap (an index key renders as its canonical decimal string; vm's
// realm is responsible for symbol keys, which require looking the identity
// back up in the runtime's symbol table — not reachable from this package).
func keyToValue(key propkeys.Key) value.Value {
	if key.Kind() == propkeys.KindIndex {
		return value.IndexStr(key.Index())
	}
	if key.Kind() == propkeys.KindString {
		return value.IndexStr(0) // placeholder; vm substitutes the real interned string value
	}
	return value.Undef()
}
