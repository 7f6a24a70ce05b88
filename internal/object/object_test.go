package object

import (
	"testing"

	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// noopInvoker satisfies Invoker for tests that never exercise an accessor
// or a callable property.
type noopInvoker struct{}

func (noopInvoker) Invoke(fn, this value.Value, args []value.Value) (value.Value, error) {
	return value.Undef(), nil
}
func (noopInvoker) Construct(fn value.Value, args []value.Value, newTarget value.Value) (value.Value, error) {
	return value.Undef(), nil
}

func allocOrdinary(h *gc.Heap, proto value.Value) (*Ordinary, value.Value) {
	o := NewOrdinary(proto)
	handle := h.Alloc(o)
	o.SetSelf(handle)
	return o, value.ObjectHandle(handle)
}

func TestOrdinary_DefineAndGetDataProperty(t *testing.T) {
	h := gc.NewHeap()
	pool := strpool.New()
	_, objVal := allocOrdinary(h, value.Nul())
	obj := objVal.Handle().Thing().(Object)
	inv := noopInvoker{}

	key := propkeys.StringKey(pool.Intern("x"))
	ok, err := obj.DefineOwnProperty(inv, key, DataDescriptor(value.Num(42), true, true, true))
	if err != nil || !ok {
		t.Fatalf("DefineOwnProperty failed: ok=%v err=%v", ok, err)
	}
	got, err := obj.Get(inv, key, objVal)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !got.IsNumber() || got.AsNum() != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

// TestOrdinary_NonConfigurableRejectsRedefine exercises the Validate+Apply
// algorithm's core invariant: a non-configurable, non-writable data property
// cannot be redefined to a different value.
func TestOrdinary_NonConfigurableRejectsRedefine(t *testing.T) {
	h := gc.NewHeap()
	pool := strpool.New()
	_, objVal := allocOrdinary(h, value.Nul())
	obj := objVal.Handle().Thing().(Object)
	inv := noopInvoker{}

	key := propkeys.StringKey(pool.Intern("frozen"))
	if _, err := obj.DefineOwnProperty(inv, key, DataDescriptor(value.Num(1), false, true, false)); err != nil {
		t.Fatal(err)
	}
	ok, err := obj.DefineOwnProperty(inv, key, DataDescriptor(value.Num(2), false, true, false))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected redefinition of non-configurable non-writable property to fail")
	}
}

// TestOrdinary_PrototypeCycleRejected checks prototype-chain acyclicity:
// SetPrototypeOf must refuse to introduce a cycle.
func TestOrdinary_PrototypeCycleRejected(t *testing.T) {
	h := gc.NewHeap()
	_, aVal := allocOrdinary(h, value.Nul())
	_, bVal := allocOrdinary(h, value.Nul())
	a := aVal.Handle().Thing().(Object)
	b := bVal.Handle().Thing().(Object)

	if ok, err := a.SetPrototypeOf(bVal); err != nil || !ok {
		t.Fatalf("a.SetPrototypeOf(b) failed: ok=%v err=%v", ok, err)
	}
	ok, err := b.SetPrototypeOf(aVal)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected cycle b->a->b to be rejected")
	}
}

// TestOrdinary_OwnPropertyKeysOrder checks own-key ordering: integer
// indices ascending, then strings in insertion order, then symbols.
func TestOrdinary_OwnPropertyKeysOrder(t *testing.T) {
	h := gc.NewHeap()
	pool := strpool.New()
	_, objVal := allocOrdinary(h, value.Nul())
	obj := objVal.Handle().Thing().(Object)
	inv := noopInvoker{}

	must := func(key propkeys.Key) {
		if _, err := obj.DefineOwnProperty(inv, key, DataDescriptor(value.Undef(), true, true, true)); err != nil {
			t.Fatal(err)
		}
	}
	must(propkeys.StringKey(pool.Intern("b")))
	must(propkeys.IndexKey(5))
	must(propkeys.StringKey(pool.Intern("a")))
	must(propkeys.IndexKey(1))

	keys := obj.OwnPropertyKeys()
	if len(keys) != 4 {
		t.Fatalf("expected 4 keys, got %d", len(keys))
	}
	if keys[0].Kind() != propkeys.KindIndex || keys[0].Index() != 1 {
		t.Fatalf("expected index 1 first, got %#v", keys[0])
	}
	if keys[1].Kind() != propkeys.KindIndex || keys[1].Index() != 5 {
		t.Fatalf("expected index 5 second, got %#v", keys[1])
	}
	if keys[2].Kind() != propkeys.KindString || keys[2].Str().Text() != "b" {
		t.Fatalf("expected \"b\" third (insertion order), got %#v", keys[2])
	}
	if keys[3].Kind() != propkeys.KindString || keys[3].Str().Text() != "a" {
		t.Fatalf("expected \"a\" fourth (insertion order), got %#v", keys[3])
	}
}

func TestArray_LengthTracksHighestIndexPlusOne(t *testing.T) {
	h := gc.NewHeap()
	pool := strpool.New()
	inv := noopInvoker{}
	arr := NewArray(value.Nul(), pool.Intern("length"), nil)
	handle := h.Alloc(arr)
	arr.SetSelf(handle)
	arrVal := value.ObjectHandle(handle)

	if _, err := arr.Set(inv, propkeys.IndexKey(3), value.Num(1), arrVal); err != nil {
		t.Fatal(err)
	}
	if arr.Length() != 4 {
		t.Fatalf("expected length 4 after setting index 3, got %d", arr.Length())
	}
}

func TestArray_SetLengthTruncatesElements(t *testing.T) {
	h := gc.NewHeap()
	pool := strpool.New()
	inv := noopInvoker{}
	arr := NewArray(value.Nul(), pool.Intern("length"), []value.Value{value.Num(1), value.Num(2), value.Num(3)})
	handle := h.Alloc(arr)
	arr.SetSelf(handle)

	ok, err := arr.DefineOwnProperty(inv, arr.lengthKey, DataDescriptor(value.Num(1), true, false, false))
	if err != nil || !ok {
		t.Fatalf("setLength failed: ok=%v err=%v", ok, err)
	}
	if arr.Length() != 1 {
		t.Fatalf("expected length 1, got %d", arr.Length())
	}
	if _, has := arr.GetOwnProperty(propkeys.IndexKey(2)); has {
		t.Fatal("expected index 2 to be deleted by length truncation")
	}
}

func TestTypedArray_OutOfRangeGetIsUndefined(t *testing.T) {
	h := gc.NewHeap()
	buf := NewArrayBuffer(value.Nul(), 8)
	h.Alloc(buf)
	ta := NewTypedArray(value.Nul(), buf, 0, Int32Element, 2)
	h.Alloc(ta)
	inv := noopInvoker{}

	v, err := ta.Get(inv, propkeys.IndexKey(10), value.Undef())
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsUndefined() {
		t.Fatalf("expected undefined for out-of-range index, got %v", v)
	}
}

func TestTypedArray_StoreAndLoadRoundTrip(t *testing.T) {
	h := gc.NewHeap()
	buf := NewArrayBuffer(value.Nul(), 8)
	h.Alloc(buf)
	ta := NewTypedArray(value.Nul(), buf, 0, Float64Element, 1)
	h.Alloc(ta)
	inv := noopInvoker{}

	if _, err := ta.Set(inv, propkeys.IndexKey(0), value.Num(3.5), value.Undef()); err != nil {
		t.Fatal(err)
	}
	v, err := ta.Get(inv, propkeys.IndexKey(0), value.Undef())
	if err != nil {
		t.Fatal(err)
	}
	if v.AsNum() != 3.5 {
		t.Fatalf("expected 3.5 round-trip, got %v", v.AsNum())
	}
}

func TestTypedArray_DetachedBufferIndexInvalid(t *testing.T) {
	h := gc.NewHeap()
	buf := NewArrayBuffer(value.Nul(), 8)
	h.Alloc(buf)
	ta := NewTypedArray(value.Nul(), buf, 0, Int32Element, 2)
	h.Alloc(ta)
	buf.Detach()

	if ta.validIndex(0) {
		t.Fatal("expected no index to be valid once the backing buffer is detached")
	}
}
