// Package runtime is the embedder-facing façade: it owns the heap, the
// microtask queue, and the interned-string table a process's realms share,
// and wires them together the way each piece's own doc comments already
// specify (gc.FinalizationRegistry.SetJobEnqueuer's contract in particular).
package runtime

import (
	"os"

	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/job"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// Runtime is one process-wide (or test-wide) execution environment: a
// single heap and job queue, and zero or more Realms, each with its own
// global object and intrinsics but sharing the heap/queue/string pool.
type Runtime struct {
	opts    *Options
	Heap    *gc.Heap
	Jobs    *job.Queue
	Strings *strpool.Pool
}

// New creates a Runtime, wiring its job queue into the heap as a GC root
// and into the finalization registry's job enqueuer exactly as
// gc.FinalizationRegistry.SetJobEnqueuer's doc comment specifies.
func New(opts ...Option) *Runtime {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.stdout == nil {
		o.stdout = os.Stdout
	}

	heap := gc.NewHeap()
	if o.gcHighWaterMark > 0 {
		heap.SetHighWaterMark(o.gcHighWaterMark)
	}
	jobs := job.New()
	heap.AddRoot(jobs)
	heap.Finalizers().SetJobEnqueuer(func(cb func()) {
		jobs.Enqueue(value.Undef(), func(value.Value) { cb() })
	})

	return &Runtime{
		opts:    o,
		Heap:    heap,
		Jobs:    jobs,
		Strings: strpool.New(),
	}
}

// RunJobs drains the microtask queue, running every job (including ones a
// running job itself enqueues) until none remain — the embedder's "tick"
// entry point, called once per event-loop turn or, for a one-shot script
// evaluation, once after the top-level call returns.
func (r *Runtime) RunJobs() { r.Jobs.Drain() }
