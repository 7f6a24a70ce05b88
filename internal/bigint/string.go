package bigint

import (
	"strings"

	rterr "github.com/goquill/goquill/internal/errors"
)

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// ParseString parses a BigInt literal in the given radix (2..36), returning
// a SyntaxError on malformed input.
func ParseString(s string, radix int) (*Int, error) {
	if radix < 2 || radix > 36 {
		return nil, rterr.RangeError("radix %d out of range", radix)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return &Int{}, nil
	}
	sign := Positive
	i := 0
	if s[0] == '+' || s[0] == '-' {
		if s[0] == '-' {
			sign = Negative
		}
		i++
	}
	if i >= len(s) {
		return nil, rterr.SyntaxError("invalid BigInt literal %q", s)
	}
	result := &Int{}
	base := FromInt64(int64(radix))
	for ; i < len(s); i++ {
		d := digitValue(s[i])
		if d < 0 || d >= radix {
			return nil, rterr.SyntaxError("invalid BigInt literal %q", s)
		}
		result = result.Mul(base).Add(FromInt64(int64(d)))
	}
	if sign == Negative {
		result = result.Neg()
	}
	return result, nil
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// ToString renders a in the given radix (2..36) via repeated division by the
// radix.
func (a *Int) ToString(radix int) string {
	if a.sign == Zero {
		return "0"
	}
	if radix < 2 || radix > 36 {
		radix = 10
	}
	n := a.clone()
	n.sign = Positive
	base := FromInt64(int64(radix))

	var out []byte
	for !n.IsZero() {
		q, r, _ := n.DivMod(base)
		d := 0
		if len(r.limbs) > 0 {
			d = int(r.limbs[0])
		}
		out = append(out, digits[d])
		n = q
	}
	if a.sign == Negative {
		out = append(out, '-')
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return string(out)
}
