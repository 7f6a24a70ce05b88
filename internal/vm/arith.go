package vm

import (
	"math"

	"github.com/goquill/goquill/internal/bigint"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// binaryOp implements every Binary-family opcode except the
// property/instanceof ones handled inline in the dispatch loop. Number/BigInt
// separation is enforced once here rather than per opcode.
func (ip *Interpreter) binaryOp(op OpCode, a, b value.Value) (value.Value, error) {
	switch op {
	case OpEq:
		return value.BoolVal(ip.looseEquals(a, b)), nil
	case OpNe:
		return value.BoolVal(!ip.looseEquals(a, b)), nil
	case OpStrictEq:
		return value.BoolVal(value.StrictEquals(a, b) || (a.IsString() && b.IsString() && stringText(a) == stringText(b))), nil
	case OpStrictNe:
		return value.BoolVal(!(value.StrictEquals(a, b) || (a.IsString() && b.IsString() && stringText(a) == stringText(b)))), nil
	case OpAdd:
		return ip.add(a, b)
	}

	if a.IsBigInt() || b.IsBigInt() {
		if op == OpLt || op == OpLe || op == OpGt || op == OpGe {
			return ip.compareRelational(op, a, b)
		}
		if !a.IsBigInt() || !b.IsBigInt() {
			return value.Value{}, rterr.TypeError("cannot mix BigInt and other types in arithmetic")
		}
		return ip.bigIntBinaryOp(op, bigIntOf(a), bigIntOf(b))
	}

	switch op {
	case OpLt, OpLe, OpGt, OpGe:
		return ip.compareRelational(op, a, b)
	}

	x, err := ip.ToNumber(a)
	if err != nil {
		return value.Value{}, err
	}
	y, err := ip.ToNumber(b)
	if err != nil {
		return value.Value{}, err
	}

	switch op {
	case OpSub:
		return value.Num(x - y), nil
	case OpMul:
		return value.Num(x * y), nil
	case OpDiv:
		return value.Num(x / y), nil
	case OpMod:
		return value.Num(math.Mod(x, y)), nil
	case OpExp:
		return value.Num(math.Pow(x, y)), nil
	case OpShl:
		return value.Num(float64(toInt32(x) << (toUint32(y) & 31))), nil
	case OpShr:
		return value.Num(float64(toInt32(x) >> (toUint32(y) & 31))), nil
	case OpUshr:
		return value.Num(float64(toUint32(x) >> (toUint32(y) & 31))), nil
	case OpAnd:
		return value.Num(float64(toInt32(x) & toInt32(y))), nil
	case OpOr:
		return value.Num(float64(toInt32(x) | toInt32(y))), nil
	case OpXor:
		return value.Num(float64(toInt32(x) ^ toInt32(y))), nil
	default:
		return value.Value{}, rterr.NewFatal(nil, "unhandled binary opcode %s", op)
	}
}

// add implements the `+` operator's ToPrimitive-then-dispatch algorithm:
// string concatenation if either operand's primitive is a string, numeric
// addition (or BigInt addition) otherwise.
func (ip *Interpreter) add(a, b value.Value) (value.Value, error) {
	pa, err := ip.ToPrimitive(a, "default")
	if err != nil {
		return value.Value{}, err
	}
	pb, err := ip.ToPrimitive(b, "default")
	if err != nil {
		return value.Value{}, err
	}
	if pa.IsString() || pb.IsString() {
		sa, err := ip.ToStringValue(pa)
		if err != nil {
			return value.Value{}, err
		}
		sb, err := ip.ToStringValue(pb)
		if err != nil {
			return value.Value{}, err
		}
		return ip.NewString(stringText(sa) + stringText(sb)), nil
	}
	if pa.IsBigInt() || pb.IsBigInt() {
		if !pa.IsBigInt() || !pb.IsBigInt() {
			return value.Value{}, rterr.TypeError("cannot mix BigInt and other types in arithmetic")
		}
		return ip.NewBigInt(bigIntOf(pa).Add(bigIntOf(pb))), nil
	}
	x, err := ip.ToNumber(pa)
	if err != nil {
		return value.Value{}, err
	}
	y, err := ip.ToNumber(pb)
	if err != nil {
		return value.Value{}, err
	}
	return value.Num(x + y), nil
}

func stringText(v value.Value) string {
	if v.Tag() == value.IndexString {
		return strpool.StringOfIndex(v.AsIndexStr())
	}
	return jsStringOf(v).String()
}

func (ip *Interpreter) bigIntBinaryOp(op OpCode, a, b *bigint.Int) (value.Value, error) {
	switch op {
	case OpSub:
		return ip.NewBigInt(a.Sub(b)), nil
	case OpMul:
		return ip.NewBigInt(a.Mul(b)), nil
	case OpDiv:
		q, _, err := a.DivMod(b)
		if err != nil {
			return value.Value{}, rterr.RangeError("%v", err)
		}
		return ip.NewBigInt(q), nil
	case OpMod:
		_, r, err := a.DivMod(b)
		if err != nil {
			return value.Value{}, rterr.RangeError("%v", err)
		}
		return ip.NewBigInt(r), nil
	case OpExp:
		r, err := a.Exp(b)
		if err != nil {
			return value.Value{}, rterr.RangeError("%v", err)
		}
		return ip.NewBigInt(r), nil
	case OpShl:
		return ip.NewBigInt(a.ShiftLeft(uint(b.ToInt64()))), nil
	case OpShr:
		return ip.NewBigInt(a.ShiftRight(uint(b.ToInt64()))), nil
	case OpUshr:
		return value.Value{}, bigint.UnsignedShiftRightError()
	case OpAnd:
		return ip.NewBigInt(a.And(b)), nil
	case OpOr:
		return ip.NewBigInt(a.Or(b)), nil
	case OpXor:
		return ip.NewBigInt(a.Xor(b)), nil
	default:
		return value.Value{}, rterr.NewFatal(nil, "unhandled BigInt binary opcode %s", op)
	}
}

func (ip *Interpreter) compareRelational(op OpCode, a, b value.Value) (value.Value, error) {
	if a.IsBigInt() && b.IsBigInt() {
		c := bigIntOf(a).Cmp(bigIntOf(b))
		return value.BoolVal(applyCompare(op, c)), nil
	}
	pa, err := ip.ToPrimitive(a, "number")
	if err != nil {
		return value.Value{}, err
	}
	pb, err := ip.ToPrimitive(b, "number")
	if err != nil {
		return value.Value{}, err
	}
	if pa.IsString() && pb.IsString() {
		c := 0
		sa, sb := stringText(pa), stringText(pb)
		switch {
		case sa < sb:
			c = -1
		case sa > sb:
			c = 1
		}
		return value.BoolVal(applyCompare(op, c)), nil
	}
	x, err := ip.ToNumber(pa)
	if err != nil {
		return value.Value{}, err
	}
	y, err := ip.ToNumber(pb)
	if err != nil {
		return value.Value{}, err
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return value.BoolVal(false), nil
	}
	c := 0
	switch {
	case x < y:
		c = -1
	case x > y:
		c = 1
	}
	return value.BoolVal(applyCompare(op, c)), nil
}

func applyCompare(op OpCode, c int) bool {
	switch op {
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	default:
		return false
	}
}

// looseEquals implements the `==` abstract equality algorithm's common
// cases; object/primitive coercion recurses through ToPrimitive.
func (ip *Interpreter) looseEquals(a, b value.Value) bool {
	if a.Tag() == b.Tag() || (a.IsString() && b.IsString()) {
		return value.StrictEquals(a, b) || (a.IsString() && b.IsString() && stringText(a) == stringText(b))
	}
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() || b.IsNullish() {
		return false
	}
	if a.IsNumber() && b.IsBigInt() {
		return bigIntOf(b).ToFloat64() == a.AsNum()
	}
	if a.IsBigInt() && b.IsNumber() {
		return ip.looseEquals(b, a)
	}
	if a.IsObject() && !b.IsObject() {
		pa, err := ip.ToPrimitive(a, "default")
		if err != nil {
			return false
		}
		return ip.looseEquals(pa, b)
	}
	if b.IsObject() && !a.IsObject() {
		return ip.looseEquals(b, a)
	}
	na, err1 := ip.ToNumber(a)
	nb, err2 := ip.ToNumber(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return na == nb
}

func (ip *Interpreter) unaryOp(op OpCode, v value.Value) (value.Value, error) {
	switch op {
	case OpNot:
		return value.BoolVal(!ip.ToBoolean(v)), nil
	case OpTypeof:
		return ip.NewString(ip.TypeofString(v)), nil
	}
	if v.IsBigInt() {
		switch op {
		case OpNeg:
			return ip.NewBigInt(bigIntOf(v).Neg()), nil
		case OpReverse:
			return ip.NewBigInt(bigIntOf(v).Not()), nil
		}
	}
	n, err := ip.ToNumber(v)
	if err != nil {
		return value.Value{}, err
	}
	switch op {
	case OpNeg:
		return value.Num(-n), nil
	case OpReverse:
		return value.Num(float64(^toInt32(n))), nil
	case OpInc:
		return value.Num(n + 1), nil
	case OpDec:
		return value.Num(n - 1), nil
	default:
		return value.Value{}, rterr.NewFatal(nil, "unhandled unary opcode %s", op)
	}
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(uint32(int64(f)))
}

func toUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint32(int64(f))
}
