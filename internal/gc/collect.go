package gc

// CollectGarbage runs one full tri-phase mark-and-sweep cycle: gray (clear
// marks, mark roots), blacken (worklist scan of every marked thing), sweep
// (weak-solve then free).
func (h *Heap) CollectGarbage() {
	h.cycles++

	// Gray phase: clear every mark, then mark roots.
	for hd := h.head; hd != nil; hd = hd.next {
		hd.marked = hd.permanent
	}

	var worklist []*header
	mark := func(r Handle) {
		if r.h == nil || r.h.marked {
			return
		}
		r.h.marked = true
		worklist = append(worklist, r.h)
	}

	for _, root := range h.roots {
		root.ScanRoots(mark)
	}
	for _, wr := range h.weakRefs {
		mark(wr.base)
	}
	h.finalizers.scanRoots(mark)

	// Blacken phase: iterative worklist, never native recursion, so a deep
	// object graph cannot blow the Go call stack.
	for len(worklist) > 0 {
		n := len(worklist) - 1
		hd := worklist[n]
		worklist = worklist[:n]
		hd.thing.Scan(mark)
	}

	marked := 0
	for hd := h.head; hd != nil; hd = hd.next {
		if hd.marked {
			marked++
		}
	}

	// Sweep phase, sub-phase 1: weak solve.
	h.solveWeakRefs()
	h.finalizers.solve()

	// Sweep phase, sub-phase 2: free.
	freed := h.sweepFree()

	h.lastGCMarked = marked
	h.lastGCFreed = freed
}

// Prunable is implemented by things that need special handling when they
// are unmarked but not yet safe to free outright — namely suspended
// generator/async contexts, whose native stack must be torn down with
// iterator-close disabled rather than immediately reclaimed. Prune returns true once the thing has
// nothing left to trace and sweepFree may free it like any other thing.
type Prunable interface {
	Prune() (done bool)
}

// sweepFree walks the generation list, unlinking and finalizing every
// unmarked thing, and returns the number freed. Unmarked Prunable things get
// one Prune() call per cycle instead of being freed immediately; they are
// only unlinked once Prune reports done.
func (h *Heap) sweepFree() int {
	freed := 0
	hd := h.head
	for hd != nil {
		next := hd.next
		if !hd.marked {
			if p, ok := hd.thing.(Prunable); ok && !p.Prune() {
				hd = next
				continue
			}
			h.unlink(hd)
			hd.thing.Finalize()
			freed++
			h.count--
		}
		hd = next
	}
	return freed
}

func (h *Heap) unlink(hd *header) {
	if hd.prev != nil {
		hd.prev.next = hd.next
	} else {
		h.head = hd.next
	}
	if hd.next != nil {
		hd.next.prev = hd.prev
	} else {
		h.tail = hd.prev
	}
	hd.next, hd.prev = nil, nil
}

// solveWeakRefs removes any weak reference whose referent did not survive
// the mark phase, firing its on-final callback exactly once.
func (h *Heap) solveWeakRefs() {
	live := h.weakRefs[:0]
	for _, wr := range h.weakRefs {
		if wr.referent.h != nil && !wr.referent.h.marked {
			wr.referent = Handle{}
			if wr.onFinal != nil {
				wr.onFinal()
			}
			continue
		}
		live = append(live, wr)
	}
	h.weakRefs = live
}
