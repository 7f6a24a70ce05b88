package env

import (
	rterr "github.com/goquill/goquill/internal/errors"
	"github.com/goquill/goquill/internal/strpool"
	"github.com/goquill/goquill/internal/value"
)

// indirectBinding is a module re-export: resolving it forwards to another
// module's environment and binding name instead of holding a value of its
// own.
type indirectBinding struct {
	target     Environment
	targetName strpool.Interned
}

// Module is the module environment record: declarative
// bindings for the module's own top-level declarations, plus indirect
// bindings for `export { x } from "other"` re-exports, and `this` is always
// undefined per ECMAScript module semantics.
type Module struct {
	Declarative
	indirect map[strpool.Interned]indirectBinding
}

// NewModule creates a module environment. Modules have no outer lexical
// environment of their own other than the realm's global environment,
// passed here as outer.
func NewModule(outer Environment) *Module {
	return &Module{Declarative: *NewDeclarative(outer), indirect: make(map[strpool.Interned]indirectBinding)}
}

// CreateIndirectBinding installs a re-export that forwards reads to
// target's binding targetName.
func (e *Module) CreateIndirectBinding(name strpool.Interned, target Environment, targetName strpool.Interned) {
	e.indirect[name] = indirectBinding{target: target, targetName: targetName}
}

func (e *Module) HasBinding(name strpool.Interned) (bool, error) {
	if _, ok := e.indirect[name]; ok {
		return true, nil
	}
	return e.Declarative.HasBinding(name)
}

func (e *Module) GetBindingValue(name strpool.Interned, strict bool) (value.Value, error) {
	if ind, ok := e.indirect[name]; ok {
		return ind.target.GetBindingValue(ind.targetName, true)
	}
	return e.Declarative.GetBindingValue(name, strict)
}

// SetMutableBinding rejects writes to a re-exported name: module bindings
// created via export/import are immutable from the importing side — every
// subsequent set throws TypeError in strict mode.
func (e *Module) SetMutableBinding(name strpool.Interned, v value.Value, strict bool) error {
	if _, ok := e.indirect[name]; ok {
		return rterr.TypeError("assignment to immutable module binding '" + name.Text() + "'")
	}
	return e.Declarative.SetMutableBinding(name, v, strict)
}

func (e *Module) DeleteBinding(strpool.Interned) (bool, error) {
	return false, rterr.NewFatal(nil, "module bindings are never deletable")
}

func (e *Module) HasThisBinding() bool                 { return true }
func (e *Module) GetThisBinding() (value.Value, error) { return value.Undef(), nil }
