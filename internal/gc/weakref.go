package gc

// WeakRef is a runtime-wide weak reference entry: {base, referent, on-final
// callback}. The base keeps the entry itself alive (and is
// therefore a GC root); the referent is not traced through the entry, so
// when nothing else keeps it alive it dies and the callback fires once.
type WeakRef struct {
	base     Handle
	referent Handle
	onFinal  func()
}

// NewWeakRef registers a new weak reference on the heap. base is retained
// as a root (mirroring WeakRef/FinalizationRegistry's own liveness in
// ECMAScript); referent is the value being weakly observed.
func (h *Heap) NewWeakRef(base, referent Handle, onFinal func()) *WeakRef {
	wr := &WeakRef{base: base, referent: referent, onFinal: onFinal}
	h.weakRefs = append(h.weakRefs, wr)
	return wr
}

// Deref returns the referent if it is still alive, or the zero Handle if it
// has already been collected.
func (wr *WeakRef) Deref() (Handle, bool) {
	if wr.referent.h == nil {
		return Handle{}, false
	}
	// A WeakRef only reflects liveness as of the last completed GC cycle;
	// between cycles the referent is still reachable through whatever
	// rooted it, so returning it here is always sound.
	return wr.referent, true
}

// Unregister removes the weak reference before it would naturally fire,
// used when an embedder explicitly drops interest in the referent.
func (wr *WeakRef) Unregister(h *Heap) {
	for i, existing := range h.weakRefs {
		if existing == wr {
			h.weakRefs = append(h.weakRefs[:i], h.weakRefs[i+1:]...)
			return
		}
	}
}
