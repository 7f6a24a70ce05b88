package vm

import (
	"testing"

	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
)

// TestClass_InstanceFieldRunsBeforeConstructorBody exercises the full
// class-literal construction pipeline — push_class, default_constr,
// inst_field_add, set_af_field, class_init — and the ordering set_af_field
// exists to guarantee: an instance field initializer runs against the
// freshly created `this` before the constructor body's first instruction,
// so the body can observe the field's value.
//
// The class literal is assembled by calling classOp directly rather than
// through a decoded instruction stream: OpDefaultConstr's closure needs the
// built *script.Script to name its function index, so there is no way to
// first emit a constant-pool closure and then assemble bytecode that
// references it without the script already existing.
func TestClass_InstanceFieldRunsBeforeConstructorBody(t *testing.T) {
	tr := newTestRuntime()
	ip := tr.ip

	b := script.NewBuilder("class")
	cX := b.AddConstant(ip.NewString("x"))
	xKey := b.AddPropertyRef(script.PropertyRef{NameIndex: cX})
	cY := b.AddConstant(ip.NewString("y"))
	yKey := b.AddPropertyRef(script.PropertyRef{NameIndex: cY})
	c42 := b.AddConstant(value.Num(42))
	c1 := b.AddConstant(value.Num(1))

	// Field initializer: x = 42.
	var initCode asm
	initCode.withB(OpLoadValue, uint16(c42)).simple(OpReturnValue)
	initStart := b.EmitCode(initCode.code...)
	fieldFnIdx := b.AddFunction(script.FunctionEntry{
		CodeStart: initStart, CodeEnd: initStart + len(initCode.code), NameIndex: -1, DeclGroup: -1,
	})

	// Constructor body: this.y = this.x + 1. Only 43 if the field ran
	// first; NaN (undefined + 1) if the ordering regresses.
	var ctorCode asm
	ctorCode.simple(OpLoadThis).
		simple(OpLoadThis).
		withB(OpPropGet, uint16(xKey)).
		withB(OpLoadValue, uint16(c1)).
		simple(OpAdd).
		withB(OpPropSet, uint16(yKey)).
		simple(OpReturnValue)
	ctorStart := b.EmitCode(ctorCode.code...)
	ctorFnIdx := b.AddFunction(script.FunctionEntry{
		CodeStart: ctorStart, CodeEnd: ctorStart + len(ctorCode.code), NameIndex: -1, DeclGroup: -1,
		Flags: script.FlagClassConstructor,
	})

	// An extra toplevel-style entry at Functions[2]; it is never run here.
	// (Script.Toplevel reads Functions[0], the field initializer in this script.)
	var top asm
	top.simple(OpLoadUndef).simple(OpReturnValue)
	topStart := b.EmitCode(top.code...)
	b.AddFunction(script.FunctionEntry{CodeStart: topStart, CodeEnd: topStart + len(top.code), NameIndex: -1, DeclGroup: -1})

	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	frame := &Frame{Script: s, Env: tr.global}
	vs := NewNativeStack()

	if err := ip.classOp(OpPushClass, frame, 0, 0, vs); err != nil {
		t.Fatalf("push_class: %v", err)
	}
	if err := ip.classOp(OpDefaultConstr, frame, ctorFnIdx&0xFF, ctorFnIdx>>8, vs); err != nil {
		t.Fatalf("default_constr: %v", err)
	}
	fieldClosure := ip.MakeClosure(s, fieldFnIdx, tr.global, value.Undef())
	vs.Push(fieldClosure)
	if err := ip.classOp(OpInstFieldAdd, frame, 0, xKey, vs); err != nil {
		t.Fatalf("inst_field_add: %v", err)
	}
	if err := ip.classOp(OpSetAfField, frame, 0, 0, vs); err != nil {
		t.Fatalf("set_af_field: %v", err)
	}
	if err := ip.classOp(OpClassInit, frame, 0, 0, vs); err != nil {
		t.Fatalf("class_init: %v", err)
	}

	ctorVal := vs.Pop()
	ctorObj, ok := asObject(ctorVal)
	if !ok || !ctorObj.IsConstructor() {
		t.Fatal("class_init did not leave a constructor on the stack")
	}

	instance, err := ctorObj.Construct(ip, nil, ctorVal)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	instObj, ok := asObject(instance)
	if !ok {
		t.Fatal("constructed value is not an object")
	}
	y, err := instObj.Get(ip, fixedNameKey(ip, "y"), instance)
	if err != nil {
		t.Fatalf("reading .y: %v", err)
	}
	if y.AsNum() != 43 {
		t.Fatalf("instance.y = %v, want 43 (42 from the field initializer, plus 1 from the constructor body)", y.AsNum())
	}
}
