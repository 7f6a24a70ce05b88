package bigint

import rterr "github.com/goquill/goquill/internal/errors"

// twosComplementLimbs renders a's value as an infinite-precision
// two's-complement bit pattern truncated/extended to nLimbs 32-bit limbs,
// used as the shared helper for AND/OR/XOR and AsUintN.
func (a *Int) twosComplementLimbs(nLimbs int) []uint32 {
	out := make([]uint32, nLimbs)
	copy(out, a.limbs)
	if a.sign == Negative {
		// two's complement of magnitude: invert then add 1
		var carry uint64 = 1
		for i := range out {
			out[i] = ^out[i]
			s := uint64(out[i]) + carry
			out[i] = uint32(s)
			carry = s >> 32
		}
	}
	return out
}

// fromTwosComplement interprets limbs as a two's-complement signed value of
// len(limbs)*32 bits and reconstructs sign+magnitude.
func fromTwosComplement(limbs []uint32) *Int {
	negative := len(limbs) > 0 && (limbs[len(limbs)-1]>>31) != 0
	if !negative {
		return fromMagnitude(Positive, limbs)
	}
	out := make([]uint32, len(limbs))
	var carry uint64 = 1
	for i, l := range limbs {
		out[i] = ^l
		s := uint64(out[i]) + carry
		out[i] = uint32(s)
		carry = s >> 32
	}
	return fromMagnitude(Negative, out)
}

func bitwise(a, b *Int, op func(x, y uint32) uint32) *Int {
	n := len(a.limbs)
	if len(b.limbs) > n {
		n = len(b.limbs)
	}
	n++ // room for the sign-extension limb
	la := a.twosComplementLimbs(n)
	lb := b.twosComplementLimbs(n)
	out := make([]uint32, n)
	for i := range out {
		out[i] = op(la[i], lb[i])
	}
	return fromTwosComplement(out)
}

// And returns a & b.
func (a *Int) And(b *Int) *Int { return bitwise(a, b, func(x, y uint32) uint32 { return x & y }) }

// Or returns a | b.
func (a *Int) Or(b *Int) *Int { return bitwise(a, b, func(x, y uint32) uint32 { return x | y }) }

// Xor returns a ^ b.
func (a *Int) Xor(b *Int) *Int { return bitwise(a, b, func(x, y uint32) uint32 { return x ^ y }) }

// Not returns ^a (two's-complement bitwise NOT, equal to -(a+1)).
func (a *Int) Not() *Int { return a.Add(FromInt64(1)).Neg() }

// ShiftLeft returns a << n.
func (a *Int) ShiftLeft(n uint) *Int {
	if a.sign == Zero || n == 0 {
		return a.clone()
	}
	limbShift := n / 32
	bitShift := n % 32
	out := make([]uint32, len(a.limbs)+int(limbShift)+1)
	for i, l := range a.limbs {
		lo := uint64(l) << bitShift
		out[i+int(limbShift)] |= uint32(lo)
		out[i+int(limbShift)+1] |= uint32(lo >> 32)
	}
	return fromMagnitude(a.sign, out)
}

func (a *Int) shiftRightMagnitude(n uint) *Int {
	limbShift := n / 32
	bitShift := n % 32
	if int(limbShift) >= len(a.limbs) {
		return &Int{}
	}
	src := a.limbs[limbShift:]
	out := make([]uint32, len(src))
	for i := range src {
		v := uint64(src[i]) >> bitShift
		if bitShift > 0 && i+1 < len(src) {
			v |= uint64(src[i+1]) << (32 - bitShift)
		}
		out[i] = uint32(v)
	}
	return fromMagnitude(a.sign, out)
}

// ShiftRight returns a >> n, arithmetic (sign-propagating): for negative a
// this rounds toward negative infinity, matching ECMAScript's BigInt `>>`.
func (a *Int) ShiftRight(n uint) *Int {
	if a.sign != Negative {
		return a.shiftRightMagnitude(n)
	}
	// For negative numbers, arithmetic shift = -((-a - 1) >> n) - 1,
	// derived from the two's-complement identity.
	one := FromInt64(1)
	adjusted := a.Neg().Sub(one)
	shifted := adjusted.shiftRightMagnitudeSigned(n)
	return shifted.Neg().Sub(one)
}

func (a *Int) shiftRightMagnitudeSigned(n uint) *Int {
	r := a.shiftRightMagnitude(n)
	r.sign = a.sign
	if len(r.limbs) == 0 {
		r.sign = Zero
	}
	return r
}

// UnsignedShiftRight is not defined for BigInt; ECMAScript's `>>>` throws a
// TypeError when either operand is a BigInt.
func UnsignedShiftRightError() error {
	return rterr.TypeError("BigInts have no unsigned right shift, use >> instead")
}

// AsIntN masks a to its low n bits and sign-extends bit n-1, implementing
// BigInt.asIntN.
func AsIntN(n uint, a *Int) *Int {
	if n == 0 {
		return &Int{}
	}
	masked := AsUintN(n, a)
	signBit := (n - 1) / 32
	signBitPos := (n - 1) % 32
	if uint(len(masked.limbs)) > signBit && masked.limbs[signBit]&(1<<signBitPos) != 0 {
		// bit n-1 is set: value is negative, subtract 2^n
		full := FromInt64(1).ShiftLeft(n)
		return masked.Sub(full)
	}
	return masked
}

// AsUintN masks a to its low n bits, implementing BigInt.asUintN.
func AsUintN(n uint, a *Int) *Int {
	if n == 0 {
		return &Int{}
	}
	nLimbs := int((n + 31) / 32)
	limbs := a.twosComplementLimbs(nLimbs)
	// Mask the top limb down to the remaining bit count.
	extraBits := uint(nLimbs)*32 - n
	if extraBits > 0 {
		top := nLimbs - 1
		limbs[top] &= (1 << (32 - extraBits)) - 1
	}
	return fromMagnitude(Positive, limbs)
}
