package vm

import (
	"github.com/goquill/goquill/internal/env"
	"github.com/goquill/goquill/internal/script"
)

// InstallPromiseProto wires Promise.prototype.then/catch against
// ip.PromiseProto. Exported for runtime.Realm's bootstrap, which is the
// only caller outside this package (a realm owns exactly one Interpreter
// and calls this once, after setting PromiseProto).
func (ip *Interpreter) InstallPromiseProto() { ip.installPromiseProto() }

// InstantiateToplevelDeclarations runs function-environment-instantiation
// for a script's toplevel function. Exported so runtime.Realm can prepare a
// script's global-scope var/function/let/const bindings before running its
// first frame, the same step closureRecord.dispatch runs for an ordinary
// call.
func (ip *Interpreter) InstantiateToplevelDeclarations(s *script.Script, fn *script.FunctionEntry, e env.Environment) error {
	return ip.instantiateDeclarations(s, fn, e)
}
