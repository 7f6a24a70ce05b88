// Package gc implements the runtime's untyped allocator and mark-and-sweep
// collector. Every heap-managed entity ("thing") is reachable
// only through a Handle; Handles are the sole pointer type GC-traced code is
// allowed to hold onto across a potential allocation.
package gc

import "unsafe"

// Thing is implemented by every GC-managed heap entity: strings, symbols,
// bigints, property-key lists, objects, environments, scripts, and the
// various execution contexts.
//
// Scan must report every Handle the thing directly holds by calling visit
// for each one; it must not recurse into referents itself (the collector's
// blacken phase does the recursion via its own worklist).
type Thing interface {
	// Scan enumerates the thing's direct Handle references.
	Scan(visit func(Handle))
	// Finalize runs once, right before the thing's memory is reclaimed.
	// Most things have a no-op Finalize; native resources override it.
	Finalize()
}

// header is embedded at the front of every heap allocation's bookkeeping
// record. next/prev form the doubly-linked generation list; marked and
// permanent are kept as two separate bools rather than packed flag bits,
// and there is no per-thing weak flag (weak references live in
// Heap.weakRefs instead).
type header struct {
	next, prev *header
	thing      Thing
	marked     bool
	permanent  bool
}

// Handle is a typed, GC-traced pointer to a Thing. It is the only pointer
// type that may be stored in a Value, a native-stack slot, or another
// Thing's fields — never a bare *T to heap memory.
type Handle struct {
	h *header
}

// Nil reports whether the handle does not refer to any thing.
func (r Handle) Nil() bool { return r.h == nil }

// Thing returns the underlying Thing, or nil for a Nil handle.
func (r Handle) Thing() Thing {
	if r.h == nil {
		return nil
	}
	return r.h.thing
}

// Equal reports whether two handles refer to the same thing.
func (r Handle) Equal(o Handle) bool { return r.h == o.h }

// Identity returns a value unique to this handle's allocation, stable for
// the thing's lifetime. Used as a Symbol's or PrivateName's property-key
// identity (propkeys.SymbolKey), which must distinguish allocations rather
// than compare their contents.
func (r Handle) Identity() uint64 { return uint64(uintptr(unsafe.Pointer(r.h))) }

// Heap owns the generation list, the allocation counter that triggers GC,
// the weak-reference list, and the finalization registry list. An embedder
// creates exactly one Heap per runtime.Runtime — never a package-level
// singleton.
type Heap struct {
	head, tail   *header
	count        int
	highWater    int
	gcDisabled   int // nesting counter; DisableGC/EnableGC pair
	roots        []RootProvider
	weakRefs     []*WeakRef
	finalizers   *FinalizationRegistry
	lastGCFreed  int
	lastGCMarked int
	cycles       int
}

// RootProvider is implemented by anything the collector must trace as a
// root: native stacks, context chains, the job queue, the interned-string
// tables. Heap.AddRoot registers one; it stays registered for the Heap's
// lifetime (roots are created once per context/stack and outlive GC cycles).
type RootProvider interface {
	// ScanRoots calls visit for every Handle the provider currently holds live.
	ScanRoots(visit func(Handle))
}

const defaultHighWater = 4096

// NewHeap creates an empty heap with the default high-water mark.
func NewHeap() *Heap {
	return &Heap{
		highWater:  defaultHighWater,
		finalizers: newFinalizationRegistry(),
	}
}

// SetHighWaterMark overrides the allocation count that triggers an automatic
// collection. A value <= 0 disables automatic collection (tests and
// DisableGC/EnableGC-bracketed code call CollectGarbage explicitly instead).
func (h *Heap) SetHighWaterMark(n int) { h.highWater = n }

// AddRoot registers a root provider traced on every GC cycle.
func (h *Heap) AddRoot(r RootProvider) { h.roots = append(h.roots, r) }

// RemoveRoot unregisters a root provider (e.g. a native stack being torn down).
func (h *Heap) RemoveRoot(r RootProvider) {
	for i, existing := range h.roots {
		if existing == r {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// Alloc wraps thing in a new Handle, links it into the generation list, and
// triggers a collection if the allocation count has crossed the high-water
// mark and GC is not disabled.
func (h *Heap) Alloc(thing Thing) Handle {
	hd := &header{thing: thing}
	if h.tail != nil {
		h.tail.next = hd
		hd.prev = h.tail
	} else {
		h.head = hd
	}
	h.tail = hd
	h.count++

	if h.highWater > 0 && h.gcDisabled == 0 && h.count >= h.highWater {
		h.CollectGarbage()
	}
	return Handle{h: hd}
}

// AllocPermanent allocates a thing that is never swept, regardless of
// reachability (used for realm intrinsics and other process-lifetime
// objects that should always be treated as rooted).
func (h *Heap) AllocPermanent(thing Thing) Handle {
	r := h.Alloc(thing)
	r.h.permanent = true
	return r
}

// DisableGC increments the disable-nesting counter; while disabled no
// automatic collection runs even if allocations exceed the high-water mark.
// Used while growing the value stack so a reallocation never collects over
// a half-built structure.
func (h *Heap) DisableGC() { h.gcDisabled++ }

// EnableGC decrements the disable-nesting counter.
func (h *Heap) EnableGC() {
	if h.gcDisabled > 0 {
		h.gcDisabled--
	}
}

// Count returns the number of live things currently allocated.
func (h *Heap) Count() int { return h.count }

// Stats describes the outcome of the most recent CollectGarbage call.
type Stats struct {
	Marked int
	Freed  int
	Cycles int
}

// LastStats reports the outcome of the most recent collection.
func (h *Heap) LastStats() Stats {
	return Stats{Marked: h.lastGCMarked, Freed: h.lastGCFreed, Cycles: h.cycles}
}
