package runtime

import (
	"fmt"
	"io"
	"strconv"

	"github.com/goquill/goquill/internal/env"
	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/object"
	"github.com/goquill/goquill/internal/propkeys"
	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
	"github.com/goquill/goquill/internal/vm"
)

// Realm is one global environment: its own well-known prototypes, global
// object, and vm.Interpreter, sharing the owning Runtime's heap, job queue,
// and string pool.
type Realm struct {
	rt *Runtime
	IP *vm.Interpreter
}

// globalEnvRoot adapts env.Global (a gc.Thing, Scan(visit func(gc.Handle)))
// to gc.RootProvider (ScanRoots(visit func(gc.Handle))) so the global
// environment's lexical (let/const) top-level bindings survive collection
// even though nothing else holds a Handle to the environment itself.
type globalEnvRoot struct{ g *env.Global }

func (r globalEnvRoot) ScanRoots(visit func(gc.Handle)) { r.g.Scan(visit) }

// NewRealm bootstraps a fresh global environment: Object/Array/Function/
// BigInt/Promise prototypes, a global object, console/print built-ins, and
// returns the vm.Interpreter driving it.
func (rt *Runtime) NewRealm() *Realm {
	ip := &vm.Interpreter{Heap: rt.Heap, Strings: rt.Strings, Jobs: rt.Jobs}

	objectProto := object.NewOrdinary(value.Nul())
	ip.ObjectProto = value.ObjectHandle(rt.Heap.AllocPermanent(objectProto))
	objectProto.SetSelf(ip.ObjectProto.Handle())

	functionProto := object.NewOrdinary(ip.ObjectProto)
	ip.FunctionProto = value.ObjectHandle(rt.Heap.AllocPermanent(functionProto))
	functionProto.SetSelf(ip.FunctionProto.Handle())

	arrayProto := object.NewArray(ip.ObjectProto, ip.Strings.Intern("length"), nil)
	ip.ArrayProto = value.ObjectHandle(rt.Heap.AllocPermanent(arrayProto))
	arrayProto.SetSelf(ip.ArrayProto.Handle())

	if rt.opts.Feature("bigint") {
		bigIntProto := object.NewOrdinary(ip.ObjectProto)
		ip.BigIntProto = value.ObjectHandle(rt.Heap.AllocPermanent(bigIntProto))
		bigIntProto.SetSelf(ip.BigIntProto.Handle())
	}

	if rt.opts.Feature("promise") {
		promiseProto := object.NewOrdinary(ip.ObjectProto)
		ip.PromiseProto = value.ObjectHandle(rt.Heap.AllocPermanent(promiseProto))
		promiseProto.SetSelf(ip.PromiseProto.Handle())
		ip.InstallPromiseProto()
	}

	globalObj := object.NewOrdinary(ip.ObjectProto)
	globalObjVal := value.ObjectHandle(rt.Heap.AllocPermanent(globalObj))
	globalObj.SetSelf(globalObjVal.Handle())

	global := env.NewGlobal(globalObjVal, ip, ip.Intern)
	ip.Global = global
	rt.Heap.AddRoot(globalEnvRoot{global})

	r := &Realm{rt: rt, IP: ip}
	r.installHostBuiltins(rt.opts.stdout)
	return r
}

// installHostBuiltins wires console.log/print against the realm's global
// object, the smallest possible host surface an embedded script needs to
// produce observable output, grounded on the reference engine's
// SetOutput(io.Writer)-plus-registered-function pattern.
func (r *Realm) installHostBuiltins(stdout io.Writer) {
	ip := r.IP
	globalObj, ok := ip.Global.GlobalObject().Handle().Thing().(object.Object)
	if !ok {
		return
	}

	logFn := object.NewNativeFunction(ip.FunctionProto, "log", 0, func(inv object.Invoker, this value.Value, newTarget value.Value, args []value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			sv, err := ip.ToStringValue(a)
			if err != nil {
				return value.Value{}, err
			}
			parts[i] = valueText(sv)
		}
		fmt.Fprintln(stdout, joinSpace(parts))
		return value.Undef(), nil
	})
	logH := ip.Heap.Alloc(logFn)
	logFn.SetSelf(logH)

	console := object.NewOrdinary(ip.ObjectProto)
	consoleH := ip.Heap.Alloc(console)
	console.SetSelf(consoleH)
	_, _ = console.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("log")), object.DataDescriptor(value.ObjectHandle(logH), true, false, true))

	_, _ = globalObj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("console")), object.DataDescriptor(value.ObjectHandle(consoleH), true, false, true))
	_, _ = globalObj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("print")), object.DataDescriptor(value.ObjectHandle(logH), true, false, true))
	_, _ = globalObj.DefineOwnProperty(ip, propkeys.StringKey(ip.Intern("globalThis")), object.DataDescriptor(ip.Global.GlobalObject(), true, false, false))
}

func valueText(v value.Value) string {
	if v.Tag() == value.IndexString {
		return strconv.FormatUint(uint64(v.AsIndexStr()), 10)
	}
	if js, ok := v.Handle().Thing().(*value.JSString); ok {
		return js.String()
	}
	return ""
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

// Run instantiates s's toplevel function as a script context and runs it to
// completion, then drains the job queue once (the embedder's one-shot
// evaluation entry point, as opposed to RunJobs' per-tick use for a host
// running an event loop across multiple Run calls).
func (r *Realm) Run(s *script.Script) (value.Value, error) {
	toplevel := s.Toplevel()
	fnEnv := env.NewFunctionEnvironment(r.IP.Global, env.NormalFunction, env.ThisInitialized, value.Undef(), value.Undef(), value.Undef())
	if err := fnEnv.BindThisValue(r.IP.Global.GlobalObject()); err != nil {
		return value.Value{}, err
	}
	ctx := vm.NewScriptContext()
	ctx.PushFrame(&vm.Frame{
		Script:    s,
		Func:      toplevel,
		IP:        toplevel.CodeStart,
		Registers: make([]value.Value, toplevel.RegisterCount),
		Env:       fnEnv,
		This:      r.IP.Global.GlobalObject(),
	})
	if err := r.IP.InstantiateToplevelDeclarations(s, toplevel, fnEnv); err != nil {
		return value.Value{}, err
	}
	r.IP.Heap.AddRoot(ctx)
	result, err := r.IP.Run(ctx)
	r.IP.Heap.RemoveRoot(ctx)
	if err != nil {
		return value.Value{}, err
	}
	r.rt.RunJobs()
	return result, nil
}
