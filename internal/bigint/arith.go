package bigint

import rterr "github.com/goquill/goquill/internal/errors"

// cmpMagnitude compares |a| and |b|, ignoring sign: -1, 0, or 1.
func cmpMagnitude(a, b []uint32) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// addMagnitude returns |a| + |b|.
func addMagnitude(a, b []uint32) []uint32 {
	if len(a) < len(b) {
		a, b = b, a
	}
	out := make([]uint32, len(a)+1)
	var carry uint64
	for i := range a {
		s := uint64(a[i]) + carry
		if i < len(b) {
			s += uint64(b[i])
		}
		out[i] = uint32(s)
		carry = s >> 32
	}
	out[len(a)] = uint32(carry)
	return normalize(out)
}

// subMagnitude returns |a| - |b|, requiring |a| >= |b|.
func subMagnitude(a, b []uint32) []uint32 {
	out := make([]uint32, len(a))
	var borrow int64
	for i := range a {
		d := int64(a[i]) - borrow
		if i < len(b) {
			d -= int64(b[i])
		}
		if d < 0 {
			d += 1 << 32
			borrow = 1
		} else {
			borrow = 0
		}
		out[i] = uint32(d)
	}
	return normalize(out)
}

// Add returns a + b.
func (a *Int) Add(b *Int) *Int {
	if a.sign == Zero {
		return b.clone()
	}
	if b.sign == Zero {
		return a.clone()
	}
	if a.sign == b.sign {
		return fromMagnitude(a.sign, addMagnitude(a.limbs, b.limbs))
	}
	// Opposite signs: subtract the smaller magnitude from the larger,
	// result takes the sign of whichever has the larger magnitude.
	switch cmpMagnitude(a.limbs, b.limbs) {
	case 0:
		return &Int{}
	case 1:
		return fromMagnitude(a.sign, subMagnitude(a.limbs, b.limbs))
	default:
		return fromMagnitude(b.sign, subMagnitude(b.limbs, a.limbs))
	}
}

// Neg returns -a.
func (a *Int) Neg() *Int {
	if a.sign == Zero {
		return &Int{}
	}
	neg := Positive
	if a.sign == Positive {
		neg = Negative
	}
	return fromMagnitude(neg, a.limbs)
}

// Sub returns a - b.
func (a *Int) Sub(b *Int) *Int { return a.Add(b.Neg()) }

// Mul returns a * b via schoolbook multiplication with shifted partial
// products.
func (a *Int) Mul(b *Int) *Int {
	if a.sign == Zero || b.sign == Zero {
		return &Int{}
	}
	out := make([]uint32, len(a.limbs)+len(b.limbs))
	for i, ai := range a.limbs {
		if ai == 0 {
			continue
		}
		var carry uint64
		for j, bj := range b.limbs {
			sum := uint64(ai)*uint64(bj) + uint64(out[i+j]) + carry
			out[i+j] = uint32(sum)
			carry = sum >> 32
		}
		k := i + len(b.limbs)
		for carry > 0 {
			sum := uint64(out[k]) + carry
			out[k] = uint32(sum)
			carry = sum >> 32
			k++
		}
	}
	sign := Positive
	if a.sign != b.sign {
		sign = Negative
	}
	return fromMagnitude(sign, out)
}

// DivMod returns the quotient and remainder of a / b, truncating toward
// zero (ECMAScript BigInt division semantics). Returns a RangeError if b is
// zero.
func (a *Int) DivMod(b *Int) (q, r *Int, err error) {
	if b.sign == Zero {
		return nil, nil, rterr.RangeError("division by zero")
	}
	if a.sign == Zero {
		return &Int{}, &Int{}, nil
	}
	qMag, rMag := divModMagnitude(a.limbs, b.limbs)
	qSign := Positive
	if a.sign != b.sign {
		qSign = Negative
	}
	return fromMagnitude(qSign, qMag), fromMagnitude(a.sign, rMag), nil
}

// divModMagnitude implements schoolbook long division on limb magnitudes,
// returning quotient and remainder magnitudes.
func divModMagnitude(a, b []uint32) (q, r []uint32) {
	if cmpMagnitude(a, b) < 0 {
		return nil, append([]uint32(nil), a...)
	}
	// Bit-by-bit long division: simple and correct; big-integer arithmetic
	// in an ECMAScript BigInt workload is dominated by small/medium operands
	// where this is plenty fast, and it keeps the remainder exact by
	// construction (no quotient-digit estimation/correction step needed).
	remainder := make([]uint32, 0, len(a))
	quotient := make([]uint32, len(a))
	totalBits := len(a) * 32
	for bitIdx := totalBits - 1; bitIdx >= 0; bitIdx-- {
		remainder = shiftLeft1(remainder)
		if bitAt(a, bitIdx) {
			setBit0(&remainder)
		}
		if cmpMagnitude(remainder, b) >= 0 {
			remainder = subMagnitude(remainder, b)
			setQuotientBit(quotient, bitIdx)
		}
	}
	return normalize(quotient), normalize(remainder)
}

func bitAt(limbs []uint32, bit int) bool {
	idx := bit / 32
	if idx >= len(limbs) {
		return false
	}
	return (limbs[idx]>>(uint(bit)%32))&1 != 0
}

func setQuotientBit(limbs []uint32, bit int) {
	idx := bit / 32
	if idx < len(limbs) {
		limbs[idx] |= 1 << (uint(bit) % 32)
	}
}

func shiftLeft1(limbs []uint32) []uint32 {
	out := make([]uint32, len(limbs)+1)
	var carry uint32
	for i, l := range limbs {
		out[i] = (l << 1) | carry
		carry = l >> 31
	}
	out[len(limbs)] = carry
	return normalize(out)
}

func setBit0(limbs *[]uint32) {
	if len(*limbs) == 0 {
		*limbs = []uint32{1}
		return
	}
	(*limbs)[0] |= 1
}

// Exp returns a raised to the power exponent via square-and-multiply using
// a memoised ladder of squares. exponent must be
// non-negative and fit in one limb, else a RangeError is returned.
func (a *Int) Exp(exponent *Int) (*Int, error) {
	if exponent.sign == Negative {
		return nil, rterr.RangeError("exponent must be non-negative")
	}
	if len(exponent.limbs) > 1 {
		return nil, rterr.RangeError("exponent too large")
	}
	e := uint32(0)
	if len(exponent.limbs) == 1 {
		e = exponent.limbs[0]
	}
	result := FromInt64(1)
	base := a
	for e > 0 {
		if e&1 == 1 {
			result = result.Mul(base)
		}
		e >>= 1
		if e > 0 {
			base = base.Mul(base)
		}
	}
	return result, nil
}

// Cmp compares a and b: -1, 0, or 1.
func (a *Int) Cmp(b *Int) int {
	if a.sign != b.sign {
		if a.sign < b.sign {
			return -1
		}
		return 1
	}
	c := cmpMagnitude(a.limbs, b.limbs)
	if a.sign == Negative {
		return -c
	}
	return c
}
