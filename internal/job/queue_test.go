package job

import (
	"testing"

	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/value"
)

type scanStub struct{}

func (scanStub) Scan(func(gc.Handle)) {}
func (scanStub) Finalize()             {}

// TestFIFO_RunsInEnqueueOrder verifies property #10 (job ordering): jobs run
// in the order they were enqueued, never interleaved or reordered, even when
// a running job enqueues more work.
func TestFIFO_RunsInEnqueueOrder(t *testing.T) {
	q := New()
	var order []int

	q.Enqueue(value.Num(1), func(value.Value) { order = append(order, 1) })
	q.Enqueue(value.Num(2), func(value.Value) {
		order = append(order, 2)
		// Enqueued mid-drain: must run after 3, which was already queued
		// ahead of it, not jump the line.
		q.Enqueue(value.Num(4), func(value.Value) { order = append(order, 4) })
	})
	q.Enqueue(value.Num(3), func(value.Value) { order = append(order, 3) })

	q.Drain()

	want := []int{1, 2, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEmpty_ReflectsPendingCount(t *testing.T) {
	q := New()
	if !q.Empty() {
		t.Fatal("new queue should be empty")
	}
	q.Enqueue(value.Undef(), func(value.Value) {})
	if q.Empty() || q.Len() != 1 {
		t.Fatalf("Len() = %d, Empty() = %v, want 1, false", q.Len(), q.Empty())
	}
	q.RunOne()
	if !q.Empty() || q.Len() != 0 {
		t.Fatal("queue should be empty after draining its only job")
	}
}

func TestScanRoots_VisitsPendingArgHandles(t *testing.T) {
	heap := gc.NewHeap()
	heap.SetHighWaterMark(0)
	h := heap.Alloc(scanStub{})

	q := New()
	q.Enqueue(value.StrHandle(h), func(value.Value) {})

	visited := 0
	q.ScanRoots(func(got gc.Handle) {
		visited++
		if !got.Equal(h) {
			t.Fatal("ScanRoots visited the wrong handle")
		}
	})
	if visited != 1 {
		t.Fatalf("ScanRoots visited %d handles, want 1", visited)
	}
}
