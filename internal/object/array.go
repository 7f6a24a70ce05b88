package object

import (
	"github.com/goquill/goquill/internal/gc"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// Array is the Array exotic object: a dense element part backed by a Go
// slice plus a "length" data property whose DefineOwnProperty traps index
// writes above the current length and truncation writes to "length"
// itself, per the ECMAScript length-truncation algorithm.
type Array struct {
	Ordinary
	lengthKey    propkeys.Key
	dense        []value.Value // dense[i] holds index i's value when present
	denseHasHole []bool        // true at i means index i is absent (a hole)
	length       uint32
}

// NewArray creates an Array with the given prototype and interned "length"
// key (callers pass the pool-interned "length" string so lookups for it
// are pointer-equality like any other property key).
func NewArray(proto value.Value, lengthKeyName strpool.Interned, initial []value.Value) *Array {
	a := &Array{Ordinary: *NewOrdinary(proto), lengthKey: propkeys.StringKey(lengthKeyName)}
	a.dense = append(a.dense, initial...)
	a.denseHasHole = make([]bool, len(initial))
	a.length = uint32(len(initial))
	return a
}

func (a *Array) Length() uint32 { return a.length }

func (a *Array) GetOwnProperty(key propkeys.Key) (*Descriptor, bool) {
	if key.Equal(a.lengthKey) {
		return DataDescriptor(value.Num(float64(a.length)), true, false, false), true
	}
	if key.Kind() == propkeys.KindIndex {
		i := key.Index()
		if i < uint32(len(a.dense)) && !a.denseHasHole[i] {
			return DataDescriptor(a.dense[i], true, true, true), true
		}
		return nil, false
	}
	return a.Ordinary.GetOwnProperty(key)
}

// DefineOwnProperty overrides index-key and "length" validation per the
// array exotic-object ArraySetLength/DefineOwnProperty algorithm.
func (a *Array) DefineOwnProperty(inv Invoker, key propkeys.Key, desc *Descriptor) (bool, error) {
	if key.Equal(a.lengthKey) {
		return a.setLength(desc)
	}
	if key.Kind() == propkeys.KindIndex {
		idx := key.Index()
		if idx >= a.length && !a.canGrow() {
			return false, nil
		}
		if desc.IsAccessor() {
			// Promote to a real own-property on the Ordinary map; dense
			// storage only ever holds plain data values.
			if idx < uint32(len(a.dense)) {
				a.denseHasHole[idx] = true
			}
			return a.Ordinary.DefineOwnProperty(inv, key, desc)
		}
		a.growTo(idx + 1)
		a.dense[idx] = valueOrDefault(desc)
		a.denseHasHole[idx] = false
		if idx >= a.length {
			a.length = idx + 1
		}
		return true, nil
	}
	return a.Ordinary.DefineOwnProperty(inv, key, desc)
}

func valueOrDefault(desc *Descriptor) value.Value {
	if desc.HasValue {
		return desc.Value
	}
	return value.Undef()
}

func (a *Array) canGrow() bool { return a.IsExtensible() }

func (a *Array) growTo(n uint32) {
	for uint32(len(a.dense)) < n {
		a.dense = append(a.dense, value.Undef())
		a.denseHasHole = append(a.denseHasHole, true)
	}
}

// setLength implements ArraySetLength: compute the new length, then walk
// the dense part top-down deleting every element at or above it. Dense
// elements are all treated as configurable, so the walk never stops early
// and the new length is always the requested one; index properties held in
// the Ordinary map (accessor-promoted indices) are not removed.
func (a *Array) setLength(desc *Descriptor) (bool, error) {
	if !desc.HasValue {
		return true, nil
	}
	newLenF := desc.Value.AsNum()
	newLen := uint32(newLenF)
	if float64(newLen) != newLenF {
		return false, rterr.RangeError("invalid array length")
	}
	if newLen >= a.length {
		a.length = newLen
		return true, nil
	}
	i := a.length
	for i > newLen {
		i--
		if i < uint32(len(a.dense)) && !a.denseHasHole[i] {
			// All dense elements are configurable in this model.
			a.denseHasHole[i] = true
			a.dense[i] = value.Undef()
		}
	}
	a.length = newLen
	if desc.HasWritable && !desc.Writable {
		a.PreventExtensions()
	}
	return true, nil
}

func (a *Array) HasProperty(inv Invoker, key propkeys.Key) (bool, error) {
	if key.Equal(a.lengthKey) {
		return true, nil
	}
	if key.Kind() == propkeys.KindIndex {
		i := key.Index()
		if i < uint32(len(a.dense)) && !a.denseHasHole[i] {
			return true, nil
		}
	}
	return a.Ordinary.HasProperty(inv, key)
}

func (a *Array) Get(inv Invoker, key propkeys.Key, receiver value.Value) (value.Value, error) {
	if key.Equal(a.lengthKey) {
		return value.Num(float64(a.length)), nil
	}
	if key.Kind() == propkeys.KindIndex {
		i := key.Index()
		if i < uint32(len(a.dense)) && !a.denseHasHole[i] {
			return a.dense[i], nil
		}
	}
	return a.Ordinary.Get(inv, key, receiver)
}

func (a *Array) Set(inv Invoker, key propkeys.Key, v value.Value, receiver value.Value) (bool, error) {
	if key.Equal(a.lengthKey) {
		return a.setLength(DataDescriptor(v, true, false, false))
	}
	if key.Kind() == propkeys.KindIndex && receiver.Handle().Equal(a.Self()) {
		idx := key.Index()
		a.growTo(idx + 1)
		a.dense[idx] = v
		a.denseHasHole[idx] = false
		if idx >= a.length {
			a.length = idx + 1
		}
		return true, nil
	}
	return a.Ordinary.Set(inv, key, v, receiver)
}

func (a *Array) Delete(key propkeys.Key) (bool, error) {
	if key.Kind() == propkeys.KindIndex {
		i := key.Index()
		if i < uint32(len(a.dense)) {
			a.denseHasHole[i] = true
			a.dense[i] = value.Undef()
			return true, nil
		}
		return true, nil
	}
	return a.Ordinary.Delete(key)
}

// OwnPropertyKeys yields dense indices ascending, then "length", then the
// Ordinary map's string/symbol keys (array index keys always sort before
// "length" numerically is moot here since "length" is a string key, which
// always comes after all indices).
func (a *Array) OwnPropertyKeys() []propkeys.Key {
	keys := make([]propkeys.Key, 0, len(a.dense)+1)
	for i := range a.dense {
		if !a.denseHasHole[i] {
			keys = append(keys, propkeys.IndexKey(uint32(i)))
		}
	}
	keys = append(keys, a.lengthKey)
	keys = append(keys, a.Ordinary.OwnPropertyKeys()...)
	return keys
}

func (a *Array) Scan(visit func(gc.Handle)) {
	a.Ordinary.Scan(visit)
	for i, v := range a.dense {
		if !a.denseHasHole[i] && !v.Handle().Nil() {
			visit(v.Handle())
		}
	}
}
