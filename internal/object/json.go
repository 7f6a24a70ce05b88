package object

import (
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/goquill/goquill/internal/gc"
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// Factories supplies the object/array construction and string-interning
// hooks JSON parsing needs; object has no realm of its own to allocate
// against, so the caller (the runtime's JSON.parse/JSON.stringify built-ins)
// passes these through rather than this package importing runtime.
type Factories struct {
	ObjectProto value.Value
	ArrayProto  value.Value
	Intern      func(s string) strpool.Interned
	Alloc       func(Object) value.Value // heap.Alloc + SetSelf, wrapped as ObjectHandle
	NewString   func(s string) value.Value // heap-allocates a JSString, wrapped as a String value
}

// ParseJSON decodes a JSON document into the Value tree JSON.parse builds,
// using tidwall/gjson for the scan.
func ParseJSON(data string, f Factories) (value.Value, error) {
	if !gjson.Valid(data) {
		return value.Value{}, rterr.SyntaxError("invalid JSON")
	}
	return fromGJSON(gjson.Parse(data), f), nil
}

func fromGJSON(r gjson.Result, f Factories) value.Value {
	switch r.Type {
	case gjson.Null:
		return value.Nul()
	case gjson.False:
		return value.BoolVal(false)
	case gjson.True:
		return value.BoolVal(true)
	case gjson.Number:
		return value.Num(r.Num)
	case gjson.String:
		return f.NewString(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			var elems []value.Value
			r.ForEach(func(_, v gjson.Result) bool {
				elems = append(elems, fromGJSON(v, f))
				return true
			})
			arr := NewArray(f.ArrayProto, f.Intern("length"), elems)
			return f.Alloc(arr)
		}
		obj := NewOrdinary(f.ObjectProto)
		r.ForEach(func(k, v gjson.Result) bool {
			key := propkeys.StringKey(f.Intern(k.Str))
			child := fromGJSON(v, f)
			obj.props[key] = DataDescriptor(child, true, true, true)
			obj.keys.Add(key)
			return true
		})
		return f.Alloc(obj)
	default:
		return value.Undef()
	}
}

// StringReader is implemented by value representations that can render
// their UTF-16 content as UTF-8 (value.JSString), kept as a narrow
// interface so this package need not import the concrete string type.
type StringReader interface {
	String() string
}

// StringifyJSON encodes v as JSON text using tidwall/sjson to build the
// document incrementally, key by key, mirroring JSON.stringify's walk of
// own enumerable properties in insertion order. readString
// recovers a Go string from a value.Value already known to be a String.
func StringifyJSON(inv Invoker, v value.Value, readString func(value.Value) string) (string, error) {
	return stringifyValue(inv, v, readString)
}

func stringifyValue(inv Invoker, v value.Value, readString func(value.Value) string) (string, error) {
	switch {
	case v.IsUndefined():
		return "", nil // caller omits undefined-valued properties entirely
	case v.IsNull():
		return "null", nil
	case v.Tag() == value.Bool:
		if v.AsBool() {
			return "true", nil
		}
		return "false", nil
	case v.IsNumber():
		return strconv.FormatFloat(v.AsNum(), 'g', -1, 64), nil
	case v.IsString():
		raw, err := sjson.Set("", "x", readString(v))
		if err != nil {
			return "", err
		}
		return gjson.Get(raw, "x").Raw, nil
	case v.IsObject():
		obj, ok := v.Handle().Thing().(Object)
		if !ok {
			return "null", nil
		}
		if arr, ok := obj.(*Array); ok {
			return stringifyArray(inv, arr, readString)
		}
		return stringifyObject(inv, obj, readString)
	default:
		return "", nil // Symbol/BigInt/PrivateName: not JSON-serialisable
	}
}

// selfer is satisfied by every Object implementation in this package (each
// embeds Ordinary's SetSelf/Self, or, for Proxy, defines its own) — used
// here only to recover the receiver value for a Get call during stringify.
type selfer interface{ Self() gc.Handle }

func stringifyObject(inv Invoker, obj Object, readString func(value.Value) string) (string, error) {
	doc := "{}"
	self := value.Undef()
	if s, ok := obj.(selfer); ok {
		self = value.ObjectHandle(s.Self())
	}
	for _, key := range obj.OwnPropertyKeys() {
		if key.Kind() == propkeys.KindSymbol {
			continue
		}
		desc, ok := obj.GetOwnProperty(key)
		if !ok || !desc.Enumerable {
			continue
		}
		v, err := obj.Get(inv, key, self)
		if err != nil {
			return "", err
		}
		raw, err := stringifyValue(inv, v, readString)
		if err != nil {
			return "", err
		}
		if raw == "" {
			continue // undefined-valued properties are omitted, per JSON.stringify
		}
		var name string
		if key.Kind() == propkeys.KindIndex {
			name = strconv.FormatUint(uint64(key.Index()), 10)
		} else {
			name = key.Str().Text()
		}
		doc, err = sjson.SetRaw(doc, escapeSjsonPath(name), raw)
		if err != nil {
			return "", err
		}
	}
	return doc, nil
}

// escapeSjsonPath backslash-escapes sjson's path metacharacters (".", "*",
// "?") so a property name containing them addresses one key rather than
// being parsed as a wildcard or nested path.
func escapeSjsonPath(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '\\':
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}

func stringifyArray(inv Invoker, arr *Array, readString func(value.Value) string) (string, error) {
	doc := "[]"
	n := arr.Length()
	for i := uint32(0); i < n; i++ {
		elem, err := arr.Get(inv, propkeys.IndexKey(i), value.Undef())
		if err != nil {
			return "", err
		}
		raw, err := stringifyValue(inv, elem, readString)
		if err != nil {
			return "", err
		}
		if raw == "" {
			raw = "null"
		}
		doc, err = sjson.SetRaw(doc, strconv.Itoa(int(i)), raw)
		if err != nil {
			return "", err
		}
	}
	return doc, nil
}
