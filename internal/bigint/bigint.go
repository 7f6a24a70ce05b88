// Package bigint implements the arbitrary-precision signed integer
// subsystem behind ECMAScript BigInt. Representation: a
// magnitude array of 32-bit limbs, little-endian (limb 0 is least
// significant), plus a sign; count == 0 means zero and is always stored
// with sign Zero, never Negative (so Int is usable as a map key after
// ToString, and == can short-circuit zero-vs-zero).
//
// Grounded directly on the original C engine's rjs_big_int_internal_opt.c
// (RJS_BI: a signed size field packing sign into the magnitude-length, a
// uint32 limb buffer) — this package splits sign and limbs into separate
// fields for Go readability but keeps the same limb width and algorithms
// (schoolbook multiply, long division, square-and-multiply exponentiation).
package bigint

import (
	"math"

	rterr "github.com/goquill/goquill/internal/errors"
)

// Sign of an Int.
type Sign int8

const (
	Negative Sign = -1
	Zero     Sign = 0
	Positive Sign = 1
)

// Int is an arbitrary-precision signed integer. The zero value is 0.
type Int struct {
	sign  Sign
	limbs []uint32 // little-endian magnitude, no trailing zero limbs
}

// Zero-value Int is valid and equals 0; this constructor exists for symmetry
// with FromInt64 etc.
func NewZero() *Int { return &Int{} }

func normalize(limbs []uint32) []uint32 {
	n := len(limbs)
	for n > 0 && limbs[n-1] == 0 {
		n--
	}
	return limbs[:n]
}

func fromMagnitude(sign Sign, limbs []uint32) *Int {
	limbs = normalize(limbs)
	if len(limbs) == 0 {
		return &Int{}
	}
	return &Int{sign: sign, limbs: limbs}
}

// FromInt64 converts a machine int64 exactly.
func FromInt64(v int64) *Int {
	if v == 0 {
		return &Int{}
	}
	sign := Positive
	u := uint64(v)
	if v < 0 {
		sign = Negative
		u = uint64(-v)
	}
	return fromMagnitude(sign, limbsFromUint64(u))
}

// FromUint64 converts a machine uint64 exactly.
func FromUint64(v uint64) *Int {
	if v == 0 {
		return &Int{}
	}
	return fromMagnitude(Positive, limbsFromUint64(v))
}

func limbsFromUint64(u uint64) []uint32 {
	if u <= 0xFFFFFFFF {
		return []uint32{uint32(u)}
	}
	return []uint32{uint32(u), uint32(u >> 32)}
}

// FromFloat64 converts a finite, integral float64 exactly, by shifting the
// mantissa according to the exponent. Returns an error (RangeError) if f is
// NaN, +/-Inf, or not integral.
func FromFloat64(f float64) (*Int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, rterr.RangeError("cannot convert %v to a BigInt", f)
	}
	if f != math.Trunc(f) {
		return nil, rterr.RangeError("cannot convert non-integral %v to a BigInt", f)
	}
	if f == 0 {
		return &Int{}, nil
	}
	sign := Positive
	if f < 0 {
		sign = Negative
		f = -f
	}
	mantissa, exp := math.Frexp(f) // f == mantissa * 2^exp, 0.5 <= mantissa < 1
	mbits := uint64(mantissa * (1 << 53))
	shift := exp - 53
	bi := fromMagnitude(Positive, limbsFromUint64(mbits))
	if shift > 0 {
		bi = bi.ShiftLeft(uint(shift))
	} else if shift < 0 {
		bi = bi.shiftRightMagnitude(uint(-shift))
	}
	bi.sign = sign
	if len(bi.limbs) == 0 {
		bi.sign = Zero
	}
	return bi, nil
}

// ToFloat64 converts to the nearest float64 (may lose precision or overflow
// to +/-Inf, matching ECMAScript's BigInt-to-Number coercion).
func (a *Int) ToFloat64() float64 {
	f := 0.0
	for i := len(a.limbs) - 1; i >= 0; i-- {
		f = f*4294967296.0 + float64(a.limbs[i])
	}
	if a.sign == Negative {
		f = -f
	}
	return f
}

// ToInt64 truncates to a machine int64 using two's-complement wraparound,
// matching BigInt.asIntN(64, x) semantics without the mask step.
func (a *Int) ToInt64() int64 {
	var u uint64
	if len(a.limbs) > 0 {
		u = uint64(a.limbs[0])
	}
	if len(a.limbs) > 1 {
		u |= uint64(a.limbs[1]) << 32
	}
	if a.sign == Negative {
		return -int64(u)
	}
	return int64(u)
}

// Sign reports the sign of a: Negative, Zero, or Positive.
func (a *Int) Sign() Sign { return a.sign }

// IsZero reports whether a == 0.
func (a *Int) IsZero() bool { return len(a.limbs) == 0 }

func (a *Int) clone() *Int {
	limbs := make([]uint32, len(a.limbs))
	copy(limbs, a.limbs)
	return &Int{sign: a.sign, limbs: limbs}
}
