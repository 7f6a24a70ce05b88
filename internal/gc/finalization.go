package gc

// FinalizationRegistry holds finalization bookkeeping entries, each with an
// optional opaque unregister token, in one flat slice that both Unregister
// and the sweep phase scan linearly.
type FinalizationRegistry struct {
	entries []*finalizationEntry
	enqueue func(cb func())
}

type finalizationEntry struct {
	target         Handle
	heldValue      Handle
	unregisterTok  Handle
	callback       func(held Handle)
	hasUnregister  bool
}

func newFinalizationRegistry() *FinalizationRegistry {
	return &FinalizationRegistry{}
}

// SetJobEnqueuer installs the hook used to schedule a finalization callback
// as a microtask once its target has died. runtime.Runtime wires this to its
// job.Queue at construction time so package gc never imports package job.
func (fr *FinalizationRegistry) SetJobEnqueuer(enqueue func(cb func())) {
	fr.enqueue = enqueue
}

// Register adds an entry: when target is collected, callback(heldValue) is
// scheduled as a microtask. If unregisterTok is non-nil, a later Unregister
// call with an equal handle removes the entry before it ever fires.
func (fr *FinalizationRegistry) Register(target, heldValue Handle, unregisterTok Handle, callback func(held Handle)) {
	fr.entries = append(fr.entries, &finalizationEntry{
		target:        target,
		heldValue:     heldValue,
		unregisterTok: unregisterTok,
		callback:      callback,
		hasUnregister: !unregisterTok.Nil(),
	})
}

// Unregister removes every entry registered with a token equal to tok.
// Reports whether at least one entry was removed.
func (fr *FinalizationRegistry) Unregister(tok Handle) bool {
	removed := false
	live := fr.entries[:0]
	for _, e := range fr.entries {
		if e.hasUnregister && e.unregisterTok.Equal(tok) {
			removed = true
			continue
		}
		live = append(live, e)
	}
	fr.entries = live
	return removed
}

// scanRoots marks every entry's heldValue and unregisterTok as a root; the
// target itself is deliberately NOT marked (that is the point of a
// finalization registry: it observes death, it doesn't prevent it).
func (fr *FinalizationRegistry) scanRoots(visit func(Handle)) {
	for _, e := range fr.entries {
		visit(e.heldValue)
		if e.hasUnregister {
			visit(e.unregisterTok)
		}
	}
}

// solve runs after the mark phase: any entry whose target did not survive
// is removed and its callback is scheduled as a microtask.
func (fr *FinalizationRegistry) solve() {
	live := fr.entries[:0]
	for _, e := range fr.entries {
		if e.target.h != nil && !e.target.h.marked {
			held, cb := e.heldValue, e.callback
			if fr.enqueue != nil {
				fr.enqueue(func() { cb(held) })
			}
			continue
		}
		live = append(live, e)
	}
	fr.entries = live
}

// Finalizers returns the heap's single FinalizationRegistry bookkeeping
// list; every Register/Unregister call goes through this one list.
func (h *Heap) Finalizers() *FinalizationRegistry { return h.finalizers }
