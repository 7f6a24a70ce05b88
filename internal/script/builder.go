package script

import (
	"fmt"

	"github.com/goquill/goquill/internal/value"
)

// Builder assembles a Script one table row at a time and validates the
// cross-table index invariants at Build time rather than on every opcode
// dispatch: a load-time-checked, run-time-trusted split applied here
// across all ten tables.
type Builder struct {
	s Script
}

// NewBuilder starts a fresh script under construction for the given source
// name (used only for diagnostics).
func NewBuilder(sourceName string) *Builder {
	return &Builder{s: Script{SourceName: sourceName}}
}

// AddConstant appends a constant and returns its index.
func (b *Builder) AddConstant(v value.Value) int {
	b.s.Constants = append(b.s.Constants, v)
	return len(b.s.Constants) - 1
}

// EmitCode appends raw bytecode bytes, returning the offset they start at.
func (b *Builder) EmitCode(code ...byte) int {
	off := len(b.s.Code)
	b.s.Code = append(b.s.Code, code...)
	return off
}

// AddLine records that byte offset off begins source line.
// Entries must be added in non-decreasing offset order.
func (b *Builder) AddLine(off, line int) {
	b.s.LineInfo = append(b.s.LineInfo, LineInfoEntry{Offset: off, Line: line})
}

// AddFunction appends a function-table row and returns its index. Index 0
// must be the toplevel (Script.Toplevel assumes this).
func (b *Builder) AddFunction(fn FunctionEntry) int {
	b.s.Functions = append(b.s.Functions, fn)
	return len(b.s.Functions) - 1
}

// AddDeclarationGroup appends a binding-group row and returns its index.
func (b *Builder) AddDeclarationGroup(g DeclarationGroup) int {
	b.s.Declarations = append(b.s.Declarations, g)
	return len(b.s.Declarations) - 1
}

// AddBindingRef appends a binding-reference row and returns its index.
func (b *Builder) AddBindingRef(r BindingRef) int {
	b.s.BindingRefs = append(b.s.BindingRefs, r)
	return len(b.s.BindingRefs) - 1
}

// AddPropertyRef appends a property-reference row and returns its index.
func (b *Builder) AddPropertyRef(r PropertyRef) int {
	b.s.PropertyRefs = append(b.s.PropertyRefs, r)
	return len(b.s.PropertyRefs) - 1
}

// AddPrivateIdentifier appends a private-identifier row and returns its index.
func (b *Builder) AddPrivateIdentifier(p PrivateIdentifier) int {
	b.s.PrivateIdentifiers = append(b.s.PrivateIdentifiers, p)
	return len(b.s.PrivateIdentifiers) - 1
}

// AddPrivateEnvironment appends a private-environment row and returns its index.
func (b *Builder) AddPrivateEnvironment(p PrivateEnvironment) int {
	b.s.PrivateEnvironments = append(b.s.PrivateEnvironments, p)
	return len(b.s.PrivateEnvironments) - 1
}

// SetFuncTree installs the function-nesting tree: FuncTree[i] lists the
// indices of functions declared lexically inside function i.
func (b *Builder) SetFuncTree(tree [][]int) { b.s.FuncTree = tree }

// Build validates every cross-table index and returns the finished,
// read-only Script, or an error naming the first violated invariant.
func (b *Builder) Build() (*Script, error) {
	s := b.s

	if len(s.Functions) == 0 {
		return nil, fmt.Errorf("script: no toplevel function")
	}

	for i, fn := range s.Functions {
		if fn.CodeStart < 0 || fn.CodeEnd > len(s.Code) || fn.CodeStart > fn.CodeEnd {
			return nil, fmt.Errorf("script: function %d has out-of-range code span [%d,%d)", i, fn.CodeStart, fn.CodeEnd)
		}
		if fn.NameIndex >= len(s.Constants) {
			return nil, fmt.Errorf("script: function %d name index %d out of range", i, fn.NameIndex)
		}
		if fn.DeclGroup != -1 && (fn.DeclGroup < 0 || fn.DeclGroup >= len(s.Declarations)) {
			return nil, fmt.Errorf("script: function %d decl group %d out of range", i, fn.DeclGroup)
		}
	}

	for i, g := range s.Declarations {
		for j, bind := range g.Bindings {
			if bind.NameIndex < 0 || bind.NameIndex >= len(s.Constants) {
				return nil, fmt.Errorf("script: declaration group %d binding %d name index out of range", i, j)
			}
		}
	}

	for i, r := range s.BindingRefs {
		if r.NameIndex < 0 || r.NameIndex >= len(s.Constants) {
			return nil, fmt.Errorf("script: binding ref %d name index out of range", i)
		}
	}
	for i, r := range s.PropertyRefs {
		if r.NameIndex < 0 || r.NameIndex >= len(s.Constants) {
			return nil, fmt.Errorf("script: property ref %d name index out of range", i)
		}
	}
	for i, p := range s.PrivateIdentifiers {
		if p.NameIndex < 0 || p.NameIndex >= len(s.Constants) {
			return nil, fmt.Errorf("script: private identifier %d name index out of range", i)
		}
	}
	for i, p := range s.PrivateEnvironments {
		for _, idx := range p.Identifiers {
			if idx < 0 || idx >= len(s.PrivateIdentifiers) {
				return nil, fmt.Errorf("script: private environment %d references out-of-range identifier %d", i, idx)
			}
		}
	}

	for i := 1; i < len(s.LineInfo); i++ {
		if s.LineInfo[i].Offset < s.LineInfo[i-1].Offset {
			return nil, fmt.Errorf("script: line info not sorted by offset at entry %d", i)
		}
	}

	return &s, nil
}
