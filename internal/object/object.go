package object

import (
	"github.com/goquill/goquill/internal/gc"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/value"
)

// Invoker lets an object op call back into user code — an accessor's
// getter/setter, or a Proxy trap — without this package importing the
// interpreter.
// vm.Interpreter implements Invoker.
type Invoker interface {
	Invoke(fn value.Value, this value.Value, args []value.Value) (value.Value, error)
	Construct(fn value.Value, args []value.Value, newTarget value.Value) (value.Value, error)
}

// Object is the 13-op vtable contract every heap object value's payload
// implements; specialisations override individual ops by embedding
// *Ordinary and shadowing the methods they need to change, composition
// rather than inheritance.
type Object interface {
	gc.Thing

	GetPrototypeOf() value.Value
	SetPrototypeOf(proto value.Value) (bool, error)
	IsExtensible() bool
	PreventExtensions() bool

	GetOwnProperty(key propkeys.Key) (*Descriptor, bool)
	DefineOwnProperty(inv Invoker, key propkeys.Key, desc *Descriptor) (bool, error)
	HasProperty(inv Invoker, key propkeys.Key) (bool, error)
	Get(inv Invoker, key propkeys.Key, receiver value.Value) (value.Value, error)
	Set(inv Invoker, key propkeys.Key, v value.Value, receiver value.Value) (bool, error)
	Delete(key propkeys.Key) (bool, error)
	OwnPropertyKeys() []propkeys.Key

	Call(inv Invoker, this value.Value, args []value.Value) (value.Value, error)
	Construct(inv Invoker, args []value.Value, newTarget value.Value) (value.Value, error)
	IsCallable() bool
	IsConstructor() bool
}

// Ordinary is the plain-object implementation of every op. Specialisations embed it and override only what differs.
type Ordinary struct {
	self       gc.Handle // this object's own handle, set by SetSelf right after Alloc
	proto      value.Value // Object or Null
	extensible bool
	props      map[propkeys.Key]*Descriptor
	keys       *propkeys.List
}

// NewOrdinary creates a plain extensible object with the given prototype
// (Null for none).
func NewOrdinary(proto value.Value) *Ordinary {
	return &Ordinary{
		proto:      proto,
		extensible: true,
		props:      make(map[propkeys.Key]*Descriptor),
		keys:       propkeys.New(),
	}
}

// SetSelf records the handle the heap allocated for this object. Callers
// that allocate an Object must call SetSelf immediately afterward so Set's
// receiver-identity fast path and prototype-cycle checks work.
func (o *Ordinary) SetSelf(h gc.Handle) { o.self = h }

// Self returns the object's own handle.
func (o *Ordinary) Self() gc.Handle { return o.self }

func (o *Ordinary) Scan(visit func(gc.Handle)) {
	if o.proto.IsObject() {
		visit(o.proto.Handle())
	}
	for _, d := range o.props {
		if d.HasValue && !d.Value.Handle().Nil() {
			visit(d.Value.Handle())
		}
		if d.HasGet && d.Get.IsObject() {
			visit(d.Get.Handle())
		}
		if d.HasSet && d.Set.IsObject() {
			visit(d.Set.Handle())
		}
	}
}

func (o *Ordinary) Finalize() {}

func (o *Ordinary) GetPrototypeOf() value.Value { return o.proto }

// SetPrototypeOf installs a new prototype, rejecting the change on a
// non-extensible object unless it is a no-op, and detecting cycles by
// walking the candidate chain.
func (o *Ordinary) SetPrototypeOf(proto value.Value) (bool, error) {
	if value.SameValue(proto, o.proto) {
		return true, nil
	}
	if !o.extensible {
		return false, nil
	}
	// Cycle detection: walk from the candidate prototype; if we ever reach
	// this same object, reject.
	p := proto
	for p.IsObject() {
		if p.Handle().Equal(o.self) {
			return false, nil
		}
		obj, ok := p.Handle().Thing().(Object)
		if !ok {
			break
		}
		// Every object, a Proxy included, is followed via GetPrototypeOf;
		// no getPrototypeOf trap runs during this walk.
		p = obj.GetPrototypeOf()
	}
	o.proto = proto
	return true, nil
}

func (o *Ordinary) IsExtensible() bool { return o.extensible }

func (o *Ordinary) PreventExtensions() bool {
	o.extensible = false
	return true
}

func (o *Ordinary) GetOwnProperty(key propkeys.Key) (*Descriptor, bool) {
	d, ok := o.props[key]
	if !ok {
		return nil, false
	}
	return d.clone(), true
}

// DefineOwnProperty implements the standard Validate+Apply algorithm.
func (o *Ordinary) DefineOwnProperty(inv Invoker, key propkeys.Key, desc *Descriptor) (bool, error) {
	current, exists := o.props[key]
	if !exists {
		if !o.extensible {
			return false, nil
		}
		o.installDefault(key, desc)
		return true, nil
	}

	if !current.Configurable {
		if desc.HasConfigurable && desc.Configurable {
			return false, nil
		}
		if desc.HasEnumerable && desc.Enumerable != current.Enumerable {
			return false, nil
		}
		if !desc.IsGeneric() && current.IsData() != desc.IsData() {
			return false, nil
		}
		if current.IsData() && desc.IsData() {
			if !current.Writable {
				if desc.HasWritable && desc.Writable {
					return false, nil
				}
				if desc.HasValue && !value.SameValue(desc.Value, current.Value) {
					return false, nil
				}
			}
		}
		if current.IsAccessor() && desc.IsAccessor() {
			if desc.HasGet && !value.SameValue(desc.Get, current.Get) {
				return false, nil
			}
			if desc.HasSet && !value.SameValue(desc.Set, current.Set) {
				return false, nil
			}
		}
	}

	merged := current.clone()
	applyDescriptor(merged, desc)
	o.props[key] = merged
	return true, nil
}

func (o *Ordinary) installDefault(key propkeys.Key, desc *Descriptor) {
	merged := &Descriptor{}
	if desc.IsAccessor() {
		merged.HasGet, merged.Get = true, desc.Get
		merged.HasSet, merged.Set = true, desc.Set
		if !desc.HasGet {
			merged.Get = value.Undef()
		}
		if !desc.HasSet {
			merged.Set = value.Undef()
		}
	} else {
		merged.HasValue, merged.Value = true, desc.Value
		merged.HasWritable, merged.Writable = true, desc.Writable && desc.HasWritable
	}
	merged.HasEnumerable, merged.Enumerable = true, desc.Enumerable && desc.HasEnumerable
	merged.HasConfigurable, merged.Configurable = true, desc.Configurable && desc.HasConfigurable
	o.props[key] = merged
	o.keys.Add(key)
}

func applyDescriptor(dst *Descriptor, src *Descriptor) {
	if src.HasValue {
		dst.HasValue, dst.Value = true, src.Value
		dst.HasGet, dst.HasSet = false, false
	}
	if src.HasWritable {
		dst.HasWritable, dst.Writable = true, src.Writable
	}
	if src.HasGet {
		dst.HasGet, dst.Get = true, src.Get
		dst.HasValue, dst.HasWritable = false, false
	}
	if src.HasSet {
		dst.HasSet, dst.Set = true, src.Set
		dst.HasValue, dst.HasWritable = false, false
	}
	if src.HasEnumerable {
		dst.HasEnumerable, dst.Enumerable = true, src.Enumerable
	}
	if src.HasConfigurable {
		dst.HasConfigurable, dst.Configurable = true, src.Configurable
	}
}

// HasProperty walks own then the prototype chain.
func (o *Ordinary) HasProperty(inv Invoker, key propkeys.Key) (bool, error) {
	if _, ok := o.props[key]; ok {
		return true, nil
	}
	proto := o.proto
	if !proto.IsObject() {
		return false, nil
	}
	parent, ok := proto.Handle().Thing().(Object)
	if !ok {
		return false, nil
	}
	return parent.HasProperty(inv, key)
}

// Get walks the chain; an accessor's getter is invoked with receiver as
// `this`.
func (o *Ordinary) Get(inv Invoker, key propkeys.Key, receiver value.Value) (value.Value, error) {
	if d, ok := o.props[key]; ok {
		if d.IsAccessor() {
			if !d.Get.IsObject() {
				return value.Undef(), nil
			}
			return inv.Invoke(d.Get, receiver, nil)
		}
		return d.Value, nil
	}
	if !o.proto.IsObject() {
		return value.Undef(), nil
	}
	parent, ok := o.proto.Handle().Thing().(Object)
	if !ok {
		return value.Undef(), nil
	}
	return parent.Get(inv, key, receiver)
}

// Set walks the chain; a data property found on a prototype creates an own
// property on receiver rather than mutating the prototype.
func (o *Ordinary) Set(inv Invoker, key propkeys.Key, v value.Value, receiver value.Value) (bool, error) {
	if d, ok := o.props[key]; ok {
		if d.IsAccessor() {
			if !d.Set.IsObject() {
				return false, nil
			}
			_, err := inv.Invoke(d.Set, receiver, []value.Value{v})
			return err == nil, err
		}
		if !d.Writable {
			return false, nil
		}
		if receiver.IsObject() && receiver.Handle().Equal(o.self) {
			d.Value = v
			return true, nil
		}
		return createOwnDataProperty(inv, receiver, key, v)
	}
	if o.proto.IsObject() {
		if parent, ok := o.proto.Handle().Thing().(Object); ok {
			return parent.Set(inv, key, v, receiver)
		}
	}
	return createOwnDataProperty(inv, receiver, key, v)
}

func createOwnDataProperty(inv Invoker, receiver value.Value, key propkeys.Key, v value.Value) (bool, error) {
	if !receiver.IsObject() {
		return false, rterr.TypeError("cannot create property on non-object receiver")
	}
	recv, ok := receiver.Handle().Thing().(Object)
	if !ok {
		return false, rterr.TypeError("receiver is not an object")
	}
	existing, has := recv.GetOwnProperty(key)
	if has {
		if existing.IsAccessor() || !existing.Writable {
			return false, nil
		}
		return recv.DefineOwnProperty(inv, key, DataDescriptor(v, true, true, true))
	}
	return recv.DefineOwnProperty(inv, key, DataDescriptor(v, true, true, true))
}

func (o *Ordinary) Delete(key propkeys.Key) (bool, error) {
	d, ok := o.props[key]
	if !ok {
		return true, nil
	}
	if !d.Configurable {
		return false, nil
	}
	delete(o.props, key)
	o.keys.Remove(key)
	return true, nil
}

// OwnPropertyKeys returns keys in the mandated order: integer indices
// ascending, then strings in insertion order, then symbols in insertion order.
func (o *Ordinary) OwnPropertyKeys() []propkeys.Key { return o.keys.Keys() }

func (o *Ordinary) Call(Invoker, value.Value, []value.Value) (value.Value, error) {
	return value.Undef(), rterr.TypeError("object is not callable")
}

func (o *Ordinary) Construct(Invoker, []value.Value, value.Value) (value.Value, error) {
	return value.Undef(), rterr.TypeError("object is not a constructor")
}

func (o *Ordinary) IsCallable() bool    { return false }
func (o *Ordinary) IsConstructor() bool { return false }
