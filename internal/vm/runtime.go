package vm

import (
	"math"
	"strconv"

	"github.com/goquill/goquill/internal/bigint"
	"github.com/goquill/goquill/internal/env"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/job"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// Interpreter is the bytecode dispatch core: it owns the heap and
// string pool every allocation goes through, the realm's well-known
// prototypes new literals/closures are built against, and implements
// object.Invoker so accessor calls and Proxy traps can call back into
// running bytecode without object importing vm.
//
// Split into Interpreter (the dispatch engine, one per realm) and Context
// (one per running-or-suspended call chain) so a generator's own native
// stack doesn't have to be a field of the engine itself.
type Interpreter struct {
	Heap    *gc.Heap
	Strings *strpool.Pool

	ObjectProto   value.Value
	ArrayProto    value.Value
	FunctionProto value.Value
	BigIntProto   value.Value
	PromiseProto  value.Value

	Global *env.Global

	// Jobs is the microtask queue await/.then schedule reactions onto;
	// runtime.NewRealm wires in the Runtime's queue, which runtime.New
	// registers as a gc.Heap root.
	Jobs *job.Queue
}

// bigIntBox wraps a *bigint.Int as a gc.Thing so BigInt values can live on
// the heap like every other reference-typed value — the bigint package itself is
// pure arithmetic with no heap dependency, so this package supplies the
// missing gc.Thing wiring.
type bigIntBox struct {
	v *bigint.Int
}

func (b *bigIntBox) Scan(func(gc.Handle)) {}
func (b *bigIntBox) Finalize()            {}

func (ip *Interpreter) NewBigInt(v *bigint.Int) value.Value {
	return value.BigIntHandle(ip.Heap.Alloc(&bigIntBox{v: v}))
}

func bigIntOf(v value.Value) *bigint.Int {
	return v.Handle().Thing().(*bigIntBox).v
}

// NewString allocates a String value from a Go string.
func (ip *Interpreter) NewString(s string) value.Value {
	return value.StrHandle(value.NewJSString(ip.Heap, s))
}

func jsStringOf(v value.Value) *value.JSString {
	return v.Handle().Thing().(*value.JSString)
}

// Intern exposes the interpreter's string pool for property-key lookups.
func (ip *Interpreter) Intern(s string) strpool.Interned { return ip.Strings.Intern(s) }

// Invoke implements object.Invoker: an ordinary (non-tail, non-super) call.
func (ip *Interpreter) Invoke(fn value.Value, this value.Value, args []value.Value) (value.Value, error) {
	obj, ok := ip.asCallable(fn)
	if !ok {
		return value.Undef(), rterr.TypeError("value is not a function")
	}
	return obj.Call(ip, this, args)
}

// Construct implements object.Invoker's [[Construct]] entry point.
func (ip *Interpreter) Construct(fn value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	obj, ok := ip.asConstructor(fn)
	if !ok {
		return value.Undef(), rterr.TypeError("value is not a constructor")
	}
	return obj.Construct(ip, args, newTarget)
}

func (ip *Interpreter) asCallable(v value.Value) (object.Object, bool) {
	if !v.IsObject() || v.Handle().Nil() {
		return nil, false
	}
	obj, ok := v.Handle().Thing().(object.Object)
	if !ok || !obj.IsCallable() {
		return nil, false
	}
	return obj, true
}

func (ip *Interpreter) asConstructor(v value.Value) (object.Object, bool) {
	obj, ok := ip.asCallable(v)
	if !ok || !obj.IsConstructor() {
		return nil, false
	}
	return obj, true
}

// ToBoolean implements ToBoolean (used by jump_true/jump_false/not/&&/||).
func (ip *Interpreter) ToBoolean(v value.Value) bool {
	switch v.Tag() {
	case value.Undefined, value.Null:
		return false
	case value.Bool:
		return v.AsBool()
	case value.Number:
		n := v.AsNum()
		return n != 0 && !math.IsNaN(n)
	case value.IndexString:
		return true
	case value.String:
		return jsStringOf(v).Len() > 0
	case value.BigInt:
		return !bigIntOf(v).IsZero()
	default:
		return true // object, symbol, private-name
	}
}

// ToNumber implements ToNumber for the arithmetic ops.
func (ip *Interpreter) ToNumber(v value.Value) (float64, error) {
	switch v.Tag() {
	case value.Undefined:
		return math.NaN(), nil
	case value.Null:
		return 0, nil
	case value.Bool:
		if v.AsBool() {
			return 1, nil
		}
		return 0, nil
	case value.Number:
		return v.AsNum(), nil
	case value.IndexString:
		return float64(v.AsIndexStr()), nil
	case value.String:
		s := jsStringOf(v).String()
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN(), nil
		}
		return f, nil
	case value.BigInt:
		return 0, rterr.TypeError("cannot convert a BigInt to a number")
	case value.Object:
		prim, err := ip.ToPrimitive(v, "number")
		if err != nil {
			return 0, err
		}
		return ip.ToNumber(prim)
	default:
		return math.NaN(), rterr.TypeError("cannot convert %s to a number", v.Tag())
	}
}

// ToPrimitive applies OrdinaryToPrimitive, trying valueOf/toString (or the
// reverse for hint "string") against an object.
func (ip *Interpreter) ToPrimitive(v value.Value, hint string) (value.Value, error) {
	if !v.IsObject() {
		return v, nil
	}
	methods := []string{"valueOf", "toString"}
	if hint == "string" {
		methods = []string{"toString", "valueOf"}
	}
	obj, ok := v.Handle().Thing().(object.Object)
	if !ok {
		return value.Undef(), rterr.TypeError("cannot convert object to primitive value")
	}
	for _, name := range methods {
		key := propkeys.StringKey(ip.Intern(name))
		m, err := obj.Get(ip, key, v)
		if err != nil {
			return value.Value{}, err
		}
		if callable, ok := ip.asCallable(m); ok {
			result, err := callable.Call(ip, v, nil)
			if err != nil {
				return value.Value{}, err
			}
			if !result.IsObject() {
				return result, nil
			}
		}
	}
	return value.Value{}, rterr.TypeError("cannot convert object to primitive value")
}

// ToStringValue implements ToString, producing a String value (used by
// string concatenation and template-literal-equivalent opcodes).
func (ip *Interpreter) ToStringValue(v value.Value) (value.Value, error) {
	switch v.Tag() {
	case value.String, value.IndexString:
		return v, nil
	case value.Undefined:
		return ip.NewString("undefined"), nil
	case value.Null:
		return ip.NewString("null"), nil
	case value.Bool:
		if v.AsBool() {
			return ip.NewString("true"), nil
		}
		return ip.NewString("false"), nil
	case value.Number:
		return ip.NewString(formatNumber(v.AsNum())), nil
	case value.BigInt:
		return ip.NewString(bigIntOf(v).ToString(10)), nil
	case value.Symbol:
		return value.Value{}, rterr.TypeError("cannot convert a Symbol to a string")
	case value.Object:
		prim, err := ip.ToPrimitive(v, "string")
		if err != nil {
			return value.Value{}, err
		}
		return ip.ToStringValue(prim)
	default:
		return value.Value{}, rterr.TypeError("cannot convert %s to a string", v.Tag())
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ordinaryCreateFromConstructor implements OrdinaryCreateFromConstructor:
// read new.target's "prototype" own property, falling back to
// Object.prototype if it is absent or not an object.
func (ip *Interpreter) ordinaryCreateFromConstructor(newTarget value.Value) (value.Value, error) {
	proto := ip.ObjectProto
	if newTarget.IsObject() {
		obj, ok := newTarget.Handle().Thing().(object.Object)
		if ok {
			p, err := obj.Get(ip, propkeys.StringKey(ip.Intern("prototype")), newTarget)
			if err != nil {
				return value.Value{}, err
			}
			if p.IsObject() {
				proto = p
			}
		}
	}
	inst := object.NewOrdinary(proto)
	h := ip.Heap.Alloc(inst)
	inst.SetSelf(h)
	return value.ObjectHandle(h), nil
}

// TypeofString implements the `typeof` operator's string result.
func (ip *Interpreter) TypeofString(v value.Value) string {
	switch v.Tag() {
	case value.Undefined:
		return "undefined"
	case value.Null:
		return "object"
	case value.Bool:
		return "boolean"
	case value.Number:
		return "number"
	case value.String, value.IndexString:
		return "string"
	case value.Symbol:
		return "symbol"
	case value.BigInt:
		return "bigint"
	case value.Object:
		if obj, ok := v.Handle().Thing().(object.Object); ok && obj.IsCallable() {
			return "function"
		}
		return "object"
	default:
		return "object"
	}
}
