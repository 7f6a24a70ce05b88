package gc

type testThing struct {
	refs     []Handle
	finalize func()
}

func (t *testThing) Scan(visit func(Handle)) {
	for _, h := range t.refs {
		visit(h)
	}
}

func (t *testThing) Finalize() {
	if t.finalize != nil {
		t.finalize()
	}
}

type rootSet struct{ handles []Handle }

func (r *rootSet) ScanRoots(visit func(Handle)) {
	for _, h := range r.handles {
		visit(h)
	}
}

func newTestHeap() *Heap {
	h := NewHeap()
	h.SetHighWaterMark(0) // never collect automatically; tests call CollectGarbage explicitly
	return h
}
