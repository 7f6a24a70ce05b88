// Package job implements the runtime's microtask queue: the FIFO job list
// that Promise reactions and resumed async continuations are scheduled onto,
// so `await` and `.then` run on a later tick rather than inline with the
// opcode that triggered them.
package job

import (
	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/value"
)

// entry is one pending microtask: Arg is kept alongside Run rather than
// captured only inside its closure so the queue can report it to the
// collector as a root between enqueue and drain.
type entry struct {
	arg value.Value
	run func(value.Value)
}

// Queue is a runtime-wide FIFO of pending jobs. An embedder creates exactly
// one Queue per runtime.Runtime and registers it with gc.Heap.AddRoot,
// mirroring every other per-runtime root (native stacks, context chains,
// interned-string tables).
type Queue struct {
	pending []entry
}

// New creates an empty job queue.
func New() *Queue { return &Queue{} }

// Enqueue appends a job to the back of the queue.
func (q *Queue) Enqueue(arg value.Value, run func(value.Value)) {
	q.pending = append(q.pending, entry{arg: arg, run: run})
}

// Len reports how many jobs are waiting.
func (q *Queue) Len() int { return len(q.pending) }

// Empty reports whether the queue has no pending jobs.
func (q *Queue) Empty() bool { return len(q.pending) == 0 }

// RunOne pops and runs the oldest pending job, reporting whether one ran.
func (q *Queue) RunOne() bool {
	if len(q.pending) == 0 {
		return false
	}
	e := q.pending[0]
	q.pending = q.pending[1:]
	e.run(e.arg)
	return true
}

// Drain runs jobs in FIFO order until the queue is empty, including jobs
// enqueued by a job while it runs (e.g. a chained .then handler).
func (q *Queue) Drain() {
	for q.RunOne() {
	}
}

// ScanRoots implements gc.RootProvider: every pending job's argument value
// must survive until it runs even if nothing else on the heap still
// references it — a settled promise the script already dropped, but whose
// reaction is still queued.
func (q *Queue) ScanRoots(visit func(gc.Handle)) {
	for _, e := range q.pending {
		if h := e.arg.Handle(); !h.Nil() {
			visit(h)
		}
	}
}
