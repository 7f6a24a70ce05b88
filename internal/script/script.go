// Package script implements the Script image: the
// read-only, load-time-validated record the interpreter consumes. A script
// is serialised as ten parallel tables; indices in bytecode operands are
// bounded by their table size, validated once at load rather than on every
// access at run time.
//
// Since this core has no parser, scripts are
// built directly through Builder by a hand-written test assembler or by a
// future front-end translating a parsed AST into these same ten tables.
//
// Generalised from a flat instruction slice plus a constants slice and a
// parallel line-number slice into a full ten-table image.
package script

import (
	"github.com/goquill/goquill/internal/value"
)

// FunctionFlags packs the per-function boolean attributes: strict, arrow,
// async, generator, class-constructor, derived.
type FunctionFlags uint8

const (
	FlagStrict FunctionFlags = 1 << iota
	FlagArrow
	FlagAsync
	FlagGenerator
	FlagClassConstructor
	FlagDerivedConstructor
)

func (f FunctionFlags) Has(bit FunctionFlags) bool { return f&bit != 0 }

// FunctionEntry is one row of the function table: everything the
// interpreter needs to set up a call frame for this function, without
// touching source text.
type FunctionEntry struct {
	RegisterCount int
	CodeStart     int // inclusive byte offset into Script.Code
	CodeEnd       int // exclusive
	ParamCount    int
	NameIndex     int // index into Constants, or -1 for an anonymous function
	Flags         FunctionFlags
	DeclGroup     int // index into Declarations naming this function's own bindings
}

// LineInfoEntry maps a byte offset to a source line; entries are sorted by
// offset ascending, and the line for a given IP is the
// entry with the largest offset <= IP (found by LineForIP's binary search).
type LineInfoEntry struct {
	Offset int
	Line   int
}

// BindingGroupKind distinguishes the different binding collections a
// declaration-table entry can describe.
type BindingGroupKind uint8

const (
	GroupVar BindingGroupKind = iota
	GroupLexical
	GroupParameter
	GroupFunctionDecl
)

// BindingEntry names one binding within a declaration group: the
// constant-pool index of its name, whether it is immutable (const), and
// whether it must be initialized eagerly to undefined at group
// instantiation (var/function) versus left in TDZ until its initializer
// runs (let/const).
type BindingEntry struct {
	NameIndex     int
	Immutable     bool
	TDZ           bool
}

// DeclarationGroup is one row of the declaration table: a named collection
// of bindings instantiated together when a scope is entered.
type DeclarationGroup struct {
	Kind     BindingGroupKind
	Bindings []BindingEntry
}

// BindingRef is one row of the binding-reference table: a bytecode operand
// resolves a binding by referencing one of these rows rather than carrying
// a name directly. The interpreter resolves the name through the
// environment chain on every access; no resolved depth is cached.
type BindingRef struct {
	NameIndex int
}

// PropertyRef is one row of the property-reference table: a bytecode
// operand addressing a fixed, non-computed property name.
type PropertyRef struct {
	NameIndex int
}

// PrivateIdentifier is one row of the private-identifier table: a `#name`
// reference's constant-pool index plus whether it names a method (looked
// up read-only on the prototype/static side) versus a field or accessor
// (looked up in a per-instance private environment).
type PrivateIdentifier struct {
	NameIndex int
	IsMethod  bool
}

// PrivateEnvironment is one row of the private-environment table: the set
// of PrivateIdentifier indices a class body declares, consulted when
// constructing instances of that class.
type PrivateEnvironment struct {
	Identifiers []int
}

// Script is the read-only image the interpreter executes.
// Every slice here is populated once at Builder.Build time and never
// mutated afterward — concurrent execution of independently-instantiated
// contexts against the same Script is therefore safe without locking.
type Script struct {
	Constants           []value.Value
	Code                []byte
	LineInfo            []LineInfoEntry
	Functions           []FunctionEntry
	Declarations        []DeclarationGroup
	BindingRefs         []BindingRef
	PropertyRefs        []PropertyRef
	PrivateIdentifiers  []PrivateIdentifier
	PrivateEnvironments []PrivateEnvironment
	// FuncTree holds, for each function index, the indices of the function
	// declarations nested lexically within it.
	FuncTree [][]int

	SourceName string
}

// Toplevel returns the script's entry-point function, always index 0.
func (s *Script) Toplevel() *FunctionEntry { return &s.Functions[0] }

// LineForIP returns the source line for a bytecode offset, the entry with
// the largest Offset <= ip. LineInfo must be sorted by
// Offset ascending, an invariant Builder.Build enforces.
func (s *Script) LineForIP(ip int) int {
	lo, hi := 0, len(s.LineInfo)-1
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if s.LineInfo[mid].Offset <= ip {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if len(s.LineInfo) == 0 {
		return 0
	}
	return s.LineInfo[best].Line
}
