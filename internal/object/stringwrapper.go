package object

import (
	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/value"
)

// StringWrapper is the String exotic object: a captured primitive string
// whose code units are exposed as non-writable, enumerable,
// non-configurable own data properties keyed by index, with own-keys
// enumeration yielding those integer indices first.
type StringWrapper struct {
	Ordinary
	Primitive gc.Handle // *value.JSString
	units     []uint16
}

// NewStringWrapper wraps a primitive JSString handle.
func NewStringWrapper(proto value.Value, primitive gc.Handle, units []uint16) *StringWrapper {
	return &StringWrapper{Ordinary: *NewOrdinary(proto), Primitive: primitive, units: units}
}

func (s *StringWrapper) GetOwnProperty(key propkeys.Key) (*Descriptor, bool) {
	if key.Kind() == propkeys.KindIndex {
		i := key.Index()
		if int(i) < len(s.units) {
			unit := s.units[i]
			return DataDescriptor(value.Num(float64(unit)), false, true, false), true
		}
		return nil, false
	}
	return s.Ordinary.GetOwnProperty(key)
}

func (s *StringWrapper) HasProperty(inv Invoker, key propkeys.Key) (bool, error) {
	if key.Kind() == propkeys.KindIndex && int(key.Index()) < len(s.units) {
		return true, nil
	}
	return s.Ordinary.HasProperty(inv, key)
}

func (s *StringWrapper) Get(inv Invoker, key propkeys.Key, receiver value.Value) (value.Value, error) {
	if key.Kind() == propkeys.KindIndex {
		i := key.Index()
		if int(i) < len(s.units) {
			return value.Num(float64(s.units[i])), nil
		}
	}
	return s.Ordinary.Get(inv, key, receiver)
}

// Set silently rejects index writes (the code-unit properties are
// non-writable) and otherwise behaves like an ordinary object.
func (s *StringWrapper) Set(inv Invoker, key propkeys.Key, v value.Value, receiver value.Value) (bool, error) {
	if key.Kind() == propkeys.KindIndex && int(key.Index()) < len(s.units) {
		return false, nil
	}
	return s.Ordinary.Set(inv, key, v, receiver)
}

func (s *StringWrapper) Delete(key propkeys.Key) (bool, error) {
	if key.Kind() == propkeys.KindIndex && int(key.Index()) < len(s.units) {
		return false, nil // non-configurable
	}
	return s.Ordinary.Delete(key)
}

func (s *StringWrapper) OwnPropertyKeys() []propkeys.Key {
	keys := make([]propkeys.Key, 0, len(s.units)+1)
	for i := range s.units {
		keys = append(keys, propkeys.IndexKey(uint32(i)))
	}
	keys = append(keys, s.Ordinary.OwnPropertyKeys()...)
	return keys
}

func (s *StringWrapper) Scan(visit func(gc.Handle)) {
	s.Ordinary.Scan(visit)
	if !s.Primitive.Nil() {
		visit(s.Primitive)
	}
}
