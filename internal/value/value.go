// Package value implements the tagged Value union. A Value is
// always small, always stack-allocated, and never itself a pointer into the
// native stack — it either carries its payload inline or points at GC-managed
// storage through a gc.Handle.
package value

import "github.com/goquill/goquill/internal/gc"

// Tag identifies which alternative of the union a Value holds.
type Tag uint8

const (
	Undefined Tag = iota
	Null
	Bool
	Number
	// IndexString is the cheap integer-only property-key form: a canonical
	// decimal integer in [0, 2^32-2] that never materialises a String object.
	IndexString
	String
	Symbol
	BigInt
	Object
	PrivateName
)

func (t Tag) String() string {
	switch t {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case IndexString, String:
		return "string"
	case Symbol:
		return "symbol"
	case BigInt:
		return "bigint"
	case Object:
		return "object"
	case PrivateName:
		return "private-name"
	default:
		return "unknown"
	}
}

// Value is the tagged union. num carries a Number's bits, a Bool's 0/1, or
// an IndexString's integer; handle carries the GC pointer for every
// reference-typed tag. The struct is 24 bytes on a 64-bit platform — small
// enough to always live in a stack slot.
type Value struct {
	tag    Tag
	num    float64
	handle gc.Handle
}

// Tag returns the value's discriminant.
func (v Value) Tag() Tag { return v.tag }

var undefinedValue = Value{tag: Undefined}
var nullValue = Value{tag: Null}

// Undef returns the undefined value.
func Undef() Value { return undefinedValue }

// Nul returns the null value.
func Nul() Value { return nullValue }

// IsUndefined reports whether v is undefined.
func (v Value) IsUndefined() bool { return v.tag == Undefined }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.tag == Null }

// IsNullish reports whether v is undefined or null.
func (v Value) IsNullish() bool { return v.tag == Undefined || v.tag == Null }

// BoolVal constructs a boolean value.
func BoolVal(b bool) Value {
	n := 0.0
	if b {
		n = 1.0
	}
	return Value{tag: Bool, num: n}
}

// AsBool returns the payload of a boolean value; callers must check Tag()
// first, same contract every accessor below follows.
func (v Value) AsBool() bool { return v.num != 0 }

// Num constructs a number value from an IEEE-754 double.
func Num(f float64) Value { return Value{tag: Number, num: f} }

// AsNum returns the payload of a number value.
func (v Value) AsNum() float64 { return v.num }

// IndexStr constructs an index-string value. idx must be in
// [0, strpool.MaxIndexString]; callers normally obtain idx from
// strpool.IndexStringOf.
func IndexStr(idx uint32) Value { return Value{tag: IndexString, num: float64(idx)} }

// AsIndexStr returns the integer payload of an index-string value.
func (v Value) AsIndexStr() uint32 { return uint32(v.num) }

// StrHandle constructs a String value over an already-allocated JSString.
func StrHandle(h gc.Handle) Value { return Value{tag: String, handle: h} }

// SymbolHandle constructs a Symbol value.
func SymbolHandle(h gc.Handle) Value { return Value{tag: Symbol, handle: h} }

// BigIntHandle constructs a BigInt value.
func BigIntHandle(h gc.Handle) Value { return Value{tag: BigInt, handle: h} }

// ObjectHandle constructs an Object value.
func ObjectHandle(h gc.Handle) Value { return Value{tag: Object, handle: h} }

// PrivateNameHandle constructs a PrivateName value.
func PrivateNameHandle(h gc.Handle) Value { return Value{tag: PrivateName, handle: h} }

// Handle returns the GC handle payload of a reference-typed value. It is the
// zero Handle for inline tags (Undefined, Null, Bool, Number, IndexString).
func (v Value) Handle() gc.Handle { return v.handle }

// IsObject, IsString, IsSymbol, IsBigInt, IsPrivateName test the tag.
func (v Value) IsObject() bool      { return v.tag == Object }
func (v Value) IsString() bool      { return v.tag == String || v.tag == IndexString }
func (v Value) IsSymbol() bool      { return v.tag == Symbol }
func (v Value) IsBigInt() bool      { return v.tag == BigInt }
func (v Value) IsPrivateName() bool { return v.tag == PrivateName }
func (v Value) IsNumber() bool      { return v.tag == Number }

// SameValue implements the ECMAScript SameValue algorithm (used by
// Object.is and by property-key comparison): like ===, except NaN equals
// itself and +0 is distinct from -0.
func SameValue(a, b Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case Undefined, Null:
		return true
	case Bool, IndexString:
		return a.num == b.num
	case Number:
		if a.num != a.num && b.num != b.num {
			return true // both NaN
		}
		if a.num == 0 && b.num == 0 {
			return isNegZero(a.num) == isNegZero(b.num)
		}
		return a.num == b.num
	default:
		return a.handle.Equal(b.handle)
	}
}

func isNegZero(f float64) bool {
	return f == 0 && (1/f) < 0
}

// StrictEquals implements the === algorithm: like SameValue but +0 == -0
// and NaN != NaN, matching ECMAScript's IsStrictlyEqual.
func StrictEquals(a, b Value) bool {
	if a.tag != b.tag {
		if (a.tag == IndexString && b.tag == String) || (a.tag == String && b.tag == IndexString) {
			// String content is compared by vm's binaryOp and looseEquals;
			// here, distinct tags with no shared representation are unequal.
			return false
		}
		return false
	}
	switch a.tag {
	case Undefined, Null:
		return true
	case Bool, IndexString:
		return a.num == b.num
	case Number:
		return a.num == b.num // NaN != NaN falls out naturally
	default:
		return a.handle.Equal(b.handle)
	}
}
