package vm

import (
	"github.com/goquill/goquill/internal/env"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/value"
)

// StateKind tags the ten state records a running or suspended context's
// state stack can hold.
type StateKind uint8

const (
	StateLexEnv StateKind = iota
	StateForIn
	StateForOf
	StateArrayAssi
	StateClass
	StateCall
	StateArray
	StateObject
	StateObjectAssi
	StateTry
)

// TryPhase is the TRY state's current sub-phase.
type TryPhase uint8

const (
	TryPhaseBody TryPhase = iota
	TryPhaseCatch
	TryPhaseFinally
	TryPhaseEnd
)

// PendingOp is what a finally block must do once it finishes running,
// carried by a TRY state across the finally sub-phase.
type PendingOp uint8

const (
	PendingNone PendingOp = iota
	PendingThrow
	PendingReturn
	PendingJump
)

// State is one entry of a context's state stack: a structured
// operation in progress, tagged by Kind, carrying the value-stack
// high-water mark it must restore on pop.
type State struct {
	Kind      StateKind
	SaveDepth int // Values length to restore to when this state is popped

	// LexEnv
	OuterEnv env.Environment

	// ForIn / ForOf
	Keys     []value.Value // remaining enumerable keys, for-in
	Iterator value.Value   // iterator object, for-of
	Done     bool

	// ArrayAssi / Array literal
	Dest     value.Value
	NextIdx  int

	// Class
	Prototype      value.Value
	Constructor    value.Value
	PrivateEnv     int
	InstanceFields []object.FieldInit

	// Call
	Callee   value.Value
	This     value.Value
	ArgBase  int
	ArgCount int
	IsSuper  bool
	IsNew    bool

	// Object / ObjectAssi
	Source   value.Value
	Consumed map[string]bool

	// Try
	Phase        TryPhase
	Pending      PendingOp
	PendingValue value.Value
	CatchIP      int
	FinallyIP    int
	JumpTarget   int
	HasCatch     bool
	HasFinally   bool
}

// Scan reports the gc-traceable values a state pins so the interpreter's
// root provider can keep them alive across a collection (the value stack
// itself is already traced; this covers fields a State holds out-of-band).
func (s *State) Scan(visit func(value.Value)) {
	visit(s.Dest)
	visit(s.Iterator)
	visit(s.Prototype)
	visit(s.Constructor)
	visit(s.Callee)
	visit(s.This)
	visit(s.Source)
	visit(s.PendingValue)
	for _, k := range s.Keys {
		visit(k)
	}
	for _, f := range s.InstanceFields {
		visit(f.Init)
	}
}
