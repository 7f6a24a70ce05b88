package gc

import "testing"

// TestFinalization_FiresOnlyAfterTargetDies verifies a registry entry's
// callback is scheduled exactly once, only once its target is unreachable,
// and that the held value it closes over survives to be passed.
func TestFinalization_FiresOnlyAfterTargetDies(t *testing.T) {
	h := newTestHeap()

	target := h.Alloc(&testThing{})
	held := h.Alloc(&testThing{})

	var firedWith Handle
	fireCount := 0
	h.Finalizers().SetJobEnqueuer(func(cb func()) { cb() })
	h.Finalizers().Register(target, held, Handle{}, func(hv Handle) {
		fireCount++
		firedWith = hv
	})

	// target was never rooted, so the very first cycle already finds it
	// unreachable and fires the callback.
	h.CollectGarbage()
	if fireCount != 1 {
		t.Fatalf("fireCount = %d, want 1", fireCount)
	}
	if !firedWith.Equal(held) {
		t.Fatal("callback did not receive the registered held value")
	}

	// The entry was removed once it fired; a later cycle must not re-fire it.
	h.CollectGarbage()
	if fireCount != 1 {
		t.Fatalf("callback fired again on a later cycle, fireCount = %d", fireCount)
	}
}

// TestFinalization_UnregisterPreventsFiring verifies Unregister removes an
// entry before it can ever fire.
func TestFinalization_UnregisterPreventsFiring(t *testing.T) {
	h := newTestHeap()

	target := h.Alloc(&testThing{})
	held := h.Alloc(&testThing{})
	tok := h.Alloc(&testThing{})

	fired := false
	h.Finalizers().SetJobEnqueuer(func(cb func()) { cb() })
	h.Finalizers().Register(target, held, tok, func(Handle) { fired = true })

	if !h.Finalizers().Unregister(tok) {
		t.Fatal("Unregister reported no entry removed")
	}

	h.CollectGarbage()
	h.CollectGarbage()

	if fired {
		t.Fatal("callback fired for an unregistered entry")
	}
}
