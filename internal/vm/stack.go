package vm

import "github.com/goquill/goquill/internal/value"

// NativeStack is the two-vector native stack every running or suspended
// context owns: a contiguous value-slot area pushed by bump, and a
// LIFO of structured States, each remembering the value-stack high-water it
// must restore on pop — a single state-stack unifying what would otherwise
// be separate exception-handler and finally-block tracking.
type NativeStack struct {
	Values []value.Value
	States []State
}

// NewNativeStack allocates a native stack with modest default capacities as
// a starting reservation.
func NewNativeStack() *NativeStack {
	return &NativeStack{
		Values: make([]value.Value, 0, 256),
		States: make([]State, 0, 16),
	}
}

func (s *NativeStack) Push(v value.Value) { s.Values = append(s.Values, v) }

func (s *NativeStack) Pop() value.Value {
	n := len(s.Values) - 1
	v := s.Values[n]
	s.Values = s.Values[:n]
	return v
}

func (s *NativeStack) Peek() value.Value { return s.Values[len(s.Values)-1] }

func (s *NativeStack) PeekAt(depthFromTop int) value.Value {
	return s.Values[len(s.Values)-1-depthFromTop]
}

// Save returns the current high-water mark; Restore truncates back to it.
// Every function that mutates Values must pair a Save on entry with a
// Restore on every exit path, success and failure alike — skipping this on
// an error path would leave dangling value-stack slots visible to a later
// push, a soundness bug the design calls out explicitly.
func (s *NativeStack) Save() int { return len(s.Values) }

func (s *NativeStack) Restore(depth int) { s.Values = s.Values[:depth] }

// PushState pushes a state, stamping it with the current value high-water.
func (s *NativeStack) PushState(st State) {
	st.SaveDepth = len(s.Values)
	s.States = append(s.States, st)
}

func (s *NativeStack) TopState() *State { return &s.States[len(s.States)-1] }

func (s *NativeStack) HasStates() bool { return len(s.States) > 0 }

// PopState pops the top state and restores the value stack to the
// high-water it recorded on push.
func (s *NativeStack) PopState() State {
	n := len(s.States) - 1
	st := s.States[n]
	s.States = s.States[:n]
	s.Values = s.Values[:st.SaveDepth]
	return st
}

// UnwindTo pops states down to (not including) frameBase, running the
// error-unwind deinit protocol: try-states receive the pending error via
// onTry; every other state is simply discarded after its deinit hook runs
// (onDeinit may be nil for states with no side effect to undo).
func (s *NativeStack) UnwindTo(frameBase int, pending value.Value, onTry func(*State) bool, onDeinit func(*State)) bool {
	for len(s.States) > frameBase {
		st := s.TopState()
		if st.Kind == StateTry && onTry != nil {
			st.PendingValue = pending
			st.Pending = PendingThrow
			if onTry(st) {
				return true
			}
		}
		if onDeinit != nil {
			onDeinit(st)
		}
		s.PopState()
	}
	return false
}
