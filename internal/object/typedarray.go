package object

import (
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/value"
)

// ElementType identifies a TypedArray's backing element kind.
type ElementType uint8

const (
	Int8Element ElementType = iota
	Uint8Element
	Uint8ClampedElement
	Int16Element
	Uint16Element
	Int32Element
	Uint32Element
	Float32Element
	Float64Element
	BigInt64Element
	BigUint64Element
)

// ElementSize returns the byte width of one element of the given type.
func ElementSize(t ElementType) int {
	switch t {
	case Int8Element, Uint8Element, Uint8ClampedElement:
		return 1
	case Int16Element, Uint16Element:
		return 2
	case Int32Element, Uint32Element, Float32Element:
		return 4
	default:
		return 8
	}
}

// ArrayBuffer is the raw byte storage a TypedArray views. Detach severs
// every view from the memory.
type ArrayBuffer struct {
	Ordinary
	Data     []byte
	Detached bool
}

func NewArrayBuffer(proto value.Value, size int) *ArrayBuffer {
	return &ArrayBuffer{Ordinary: *NewOrdinary(proto), Data: make([]byte, size)}
}

func (b *ArrayBuffer) Detach() { b.Detached = true; b.Data = nil }

// TypedArray is the integer-indexed exotic object:
// numeric property access translates to typed memory load/store through
// its backing ArrayBuffer; invalid indices are silent no-ops and integer
// indices are never stored on the object's own property map.
type TypedArray struct {
	Ordinary
	Buffer     *ArrayBuffer
	ByteOffset int
	ElemType   ElementType
	Len        int // element count
}

func NewTypedArray(proto value.Value, buf *ArrayBuffer, byteOffset int, elemType ElementType, length int) *TypedArray {
	return &TypedArray{Ordinary: *NewOrdinary(proto), Buffer: buf, ByteOffset: byteOffset, ElemType: elemType, Len: length}
}

// validIndex reports whether i is a valid integer index: non-negative,
// integral, < length, and the buffer is not detached.
func (t *TypedArray) validIndex(i uint32) bool {
	return !t.Buffer.Detached && int(i) < t.Len
}

func (t *TypedArray) GetOwnProperty(key propkeys.Key) (*Descriptor, bool) {
	if key.Kind() == propkeys.KindIndex {
		if !t.validIndex(key.Index()) {
			return nil, false
		}
		return DataDescriptor(t.load(key.Index()), true, true, true), true
	}
	return t.Ordinary.GetOwnProperty(key)
}

func (t *TypedArray) HasProperty(inv Invoker, key propkeys.Key) (bool, error) {
	if key.Kind() == propkeys.KindIndex {
		return t.validIndex(key.Index()), nil
	}
	return t.Ordinary.HasProperty(inv, key)
}

func (t *TypedArray) Get(inv Invoker, key propkeys.Key, receiver value.Value) (value.Value, error) {
	if key.Kind() == propkeys.KindIndex {
		if !t.validIndex(key.Index()) {
			return value.Undef(), nil
		}
		return t.load(key.Index()), nil
	}
	return t.Ordinary.Get(inv, key, receiver)
}

// Set is a silent no-op for an invalid index.
func (t *TypedArray) Set(inv Invoker, key propkeys.Key, v value.Value, receiver value.Value) (bool, error) {
	if key.Kind() == propkeys.KindIndex {
		if !t.validIndex(key.Index()) {
			return true, nil
		}
		t.store(key.Index(), v)
		return true, nil
	}
	return t.Ordinary.Set(inv, key, v, receiver)
}

// DefineOwnProperty refuses configurable/enumerable=false changes and
// accessors on index keys, and writes through to the buffer when a value
// is supplied.
func (t *TypedArray) DefineOwnProperty(inv Invoker, key propkeys.Key, desc *Descriptor) (bool, error) {
	if key.Kind() == propkeys.KindIndex {
		if !t.validIndex(key.Index()) {
			return false, nil
		}
		if desc.IsAccessor() {
			return false, rterr.TypeError("typed array indices cannot be accessors")
		}
		if desc.HasConfigurable && !desc.Configurable {
			return false, rterr.TypeError("typed array indices are always configurable")
		}
		if desc.HasEnumerable && !desc.Enumerable {
			return false, rterr.TypeError("typed array indices are always enumerable")
		}
		if desc.HasValue {
			t.store(key.Index(), desc.Value)
		}
		return true, nil
	}
	return t.Ordinary.DefineOwnProperty(inv, key, desc)
}

func (t *TypedArray) Delete(key propkeys.Key) (bool, error) {
	if key.Kind() == propkeys.KindIndex {
		return !t.validIndex(key.Index()), nil
	}
	return t.Ordinary.Delete(key)
}

func (t *TypedArray) OwnPropertyKeys() []propkeys.Key {
	keys := make([]propkeys.Key, 0, t.Len)
	for i := 0; i < t.Len; i++ {
		keys = append(keys, propkeys.IndexKey(uint32(i)))
	}
	return append(keys, t.Ordinary.OwnPropertyKeys()...)
}

func (t *TypedArray) offset(i uint32) int { return t.ByteOffset + int(i)*ElementSize(t.ElemType) }

func (t *TypedArray) load(i uint32) value.Value {
	off := t.offset(i)
	buf := t.Buffer.Data
	switch t.ElemType {
	case Int8Element:
		return value.Num(float64(int8(buf[off])))
	case Uint8Element, Uint8ClampedElement:
		return value.Num(float64(buf[off]))
	case Int16Element:
		return value.Num(float64(int16(le16(buf, off))))
	case Uint16Element:
		return value.Num(float64(le16(buf, off)))
	case Int32Element:
		return value.Num(float64(int32(le32(buf, off))))
	case Uint32Element:
		return value.Num(float64(le32(buf, off)))
	case Float32Element:
		return value.Num(float64(float32FromBits(le32(buf, off))))
	case Float64Element:
		return value.Num(float64FromBits(le64(buf, off)))
	default:
		return value.Num(0)
	}
}

func (t *TypedArray) store(i uint32, v value.Value) {
	off := t.offset(i)
	buf := t.Buffer.Data
	f := v.AsNum()
	switch t.ElemType {
	case Int8Element, Uint8Element:
		buf[off] = byte(int64(f))
	case Uint8ClampedElement:
		clamped := f
		if clamped < 0 {
			clamped = 0
		}
		if clamped > 255 {
			clamped = 255
		}
		buf[off] = byte(clamped + 0.5) // round-to-nearest per Uint8Clamped semantics
	case Int16Element, Uint16Element:
		putLE16(buf, off, uint16(int64(f)))
	case Int32Element, Uint32Element:
		putLE32(buf, off, uint32(int64(f)))
	case Float32Element:
		putLE32(buf, off, float32Bits(float32(f)))
	case Float64Element:
		putLE64(buf, off, float64Bits(f))
	}
}

func le16(b []byte, off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
func le32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}
func le64(b []byte, off int) uint64 {
	return uint64(le32(b, off)) | uint64(le32(b, off+4))<<32
}
func putLE16(b []byte, off int, v uint16) { b[off] = byte(v); b[off+1] = byte(v >> 8) }
func putLE32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}
func putLE64(b []byte, off int, v uint64) {
	putLE32(b, off, uint32(v))
	putLE32(b, off+4, uint32(v>>32))
}
