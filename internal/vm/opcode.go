// Package vm implements the bytecode interpreter core: opcode encoding, the
// native value/state stack, execution contexts, and the dispatch loop.
//
// Instructions are a 32-bit fixed-width encoding (8-bit opcode, two operand
// fields), decoded with a handful of free accessor functions and dispatched
// through one big switch. The opcode set is this core's own — the families
// and op names its own execution model calls for (Load/Unary/Binary/
// Binding/Property/Control/Calls/Concurrency/State-push-pop/Literals/
// Classes/Patterns/Scope).
package vm

// OpCode identifies a bytecode instruction.
type OpCode byte

// Instruction is a fixed-width 32-bit bytecode word: [8-bit opcode][8-bit A]
// [16-bit B], with an alternate three-byte-operand layout for opcodes that
// need A/B/C instead of A/B (e.g. a ternary register op).
type Instruction uint32

const (
	OpLoadUndef OpCode = iota
	OpLoadNull
	OpLoadTrue
	OpLoadFalse
	OpLoadThis
	OpLoadSuperCtor
	OpLoadNewTarget
	OpLoadArg
	OpLoadRestArgs
	OpLoadValue // constant-pool index in B
	OpLoadRegexp

	OpNeg
	OpReverse // bitwise not of an integer value
	OpNot
	OpInc
	OpDec
	OpTypeof
	OpTypeofBinding

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpShl
	OpShr
	OpUshr
	OpAnd
	OpOr
	OpXor
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpStrictEq
	OpStrictNe
	OpHasProp
	OpInstanceof

	OpBindingResolve
	OpBindingInit
	OpBindingSet
	OpBindingGet
	OpDelBinding

	OpPropGet
	OpPropGetExpr
	OpPropSet
	OpPropSetExpr
	OpSuperPropGet
	OpSuperPropSet
	OpPrivGet
	OpPrivSet
	OpDelProp

	OpJump
	OpJumpTrue
	OpJumpFalse
	OpReturnValue
	OpThrow
	OpDebugger

	OpPushCall
	OpArgAdd
	OpSpreadArgsAdd
	OpCall
	OpTailCall
	OpEval
	OpTailEval
	OpPushSuperCall
	OpSuperCall
	OpPushNew
	OpNew

	OpYield
	OpYieldIterStart
	OpYieldIterNext
	OpAwait

	OpPushLexEnv
	OpPopState
	OpPushEnum
	OpPushIter
	OpPushAsyncIter
	OpForStep
	OpAsyncForStep
	OpIterRest
	OpPushTry
	OpCatchError
	OpFinally
	OpTryEnd

	OpPushNewArray
	OpArrayElision
	OpArrayAdd
	OpArraySpread
	OpPushNewObject
	OpObjectAdd
	OpObjectAddFunc
	OpObjectSpread
	OpObjectMethodAdd
	OpObjectGetterAdd
	OpObjectSetterAdd
	OpPushConcat

	OpPushClass
	OpConstrCreate
	OpDefaultConstr
	OpDerivedDefaultConstr
	OpMethodAdd
	OpGetterAdd
	OpSetterAdd
	OpStaticMethodAdd
	OpStaticGetterAdd
	OpStaticSetterAdd
	OpFieldAdd
	OpInstFieldAdd
	OpSetAfField
	OpStaticBlockAdd
	OpSetPrivEnv
	OpClassInit

	OpPushArrayAssi
	OpNextArrayItem
	OpGetArrayItem
	OpRestArrayItems
	OpPushObjectAssi
	OpGetObjectProp
	OpGetObjectPropExpr
	OpRestObjectProps

	OpPushWith
	OpSetProto
	OpDup

	opCodeCount
)

var opCodeNames = [opCodeCount]string{
	OpLoadUndef: "load_undef", OpLoadNull: "load_null", OpLoadTrue: "load_true",
	OpLoadFalse: "load_false", OpLoadThis: "load_this", OpLoadSuperCtor: "load_super_ctor",
	OpLoadNewTarget: "load_new_target", OpLoadArg: "load_arg", OpLoadRestArgs: "load_rest_args",
	OpLoadValue: "load_value", OpLoadRegexp: "load_regexp",

	OpNeg: "negative", OpReverse: "reverse", OpNot: "not", OpInc: "inc", OpDec: "dec",
	OpTypeof: "typeof", OpTypeofBinding: "typeof_binding",

	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod", OpExp: "exp",
	OpShl: "shl", OpShr: "shr", OpUshr: "ushr", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge", OpEq: "eq", OpNe: "ne",
	OpStrictEq: "strict_eq", OpStrictNe: "strict_ne", OpHasProp: "has_prop", OpInstanceof: "instanceof",

	OpBindingResolve: "binding_resolve", OpBindingInit: "binding_init",
	OpBindingSet: "binding_set", OpBindingGet: "binding_get", OpDelBinding: "del_binding",

	OpPropGet: "prop_get", OpPropGetExpr: "prop_get_expr", OpPropSet: "prop_set",
	OpPropSetExpr: "prop_set_expr", OpSuperPropGet: "super_prop_get", OpSuperPropSet: "super_prop_set",
	OpPrivGet: "priv_get", OpPrivSet: "priv_set", OpDelProp: "del_prop",

	OpJump: "jump", OpJumpTrue: "jump_true", OpJumpFalse: "jump_false",
	OpReturnValue: "return_value", OpThrow: "throw", OpDebugger: "debugger",

	OpPushCall: "push_call", OpArgAdd: "arg_add", OpSpreadArgsAdd: "spread_args_add",
	OpCall: "call", OpTailCall: "tail_call", OpEval: "eval", OpTailEval: "tail_eval",
	OpPushSuperCall: "push_super_call", OpSuperCall: "super_call", OpPushNew: "push_new", OpNew: "new",

	OpYield: "yield", OpYieldIterStart: "yield_iter_start", OpYieldIterNext: "yield_iter_next",
	OpAwait: "await",

	OpPushLexEnv: "push_lex_env", OpPopState: "pop_state", OpPushEnum: "push_enum",
	OpPushIter: "push_iter", OpPushAsyncIter: "push_async_iter", OpForStep: "for_step",
	OpAsyncForStep: "async_for_step", OpIterRest: "iter_rest", OpPushTry: "push_try",
	OpCatchError: "catch_error", OpFinally: "finally", OpTryEnd: "try_end",

	OpPushNewArray: "push_new_array", OpArrayElision: "array_elision", OpArrayAdd: "array_add",
	OpArraySpread: "array_spread", OpPushNewObject: "push_new_object", OpObjectAdd: "object_add",
	OpObjectAddFunc: "object_add_func", OpObjectSpread: "object_spread",
	OpObjectMethodAdd: "object_method_add", OpObjectGetterAdd: "object_getter_add",
	OpObjectSetterAdd: "object_setter_add", OpPushConcat: "push_concat",

	OpPushClass: "push_class", OpConstrCreate: "constr_create", OpDefaultConstr: "default_constr",
	OpDerivedDefaultConstr: "derived_default_constr", OpMethodAdd: "method_add",
	OpGetterAdd: "getter_add", OpSetterAdd: "setter_add", OpStaticMethodAdd: "static_method_add",
	OpStaticGetterAdd: "static_getter_add", OpStaticSetterAdd: "static_setter_add",
	OpFieldAdd: "field_add", OpInstFieldAdd: "inst_field_add", OpSetAfField: "set_af_field",
	OpStaticBlockAdd: "static_block_add", OpSetPrivEnv: "set_priv_env", OpClassInit: "class_init",

	OpPushArrayAssi: "push_array_assi", OpNextArrayItem: "next_array_item",
	OpGetArrayItem: "get_array_item", OpRestArrayItems: "rest_array_items",
	OpPushObjectAssi: "push_object_assi", OpGetObjectProp: "get_object_prop",
	OpGetObjectPropExpr: "get_object_prop_expr", OpRestObjectProps: "rest_object_props",

	OpPushWith: "push_with", OpSetProto: "set_proto", OpDup: "dup",
}

func (op OpCode) String() string {
	if int(op) < len(opCodeNames) && opCodeNames[op] != "" {
		return opCodeNames[op]
	}
	return "unknown"
}

// MakeInstruction encodes an opcode with one 16-bit operand.
func MakeInstruction(op OpCode, a byte, b uint16) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(b)<<16)
}

// MakeSimpleInstruction encodes an opcode that takes no operands.
func MakeSimpleInstruction(op OpCode) Instruction { return Instruction(op) }

// MakeInstructionABC encodes an opcode with three byte-wide operands, used by
// the few ops (e.g. ternary register moves) that need more than one index.
func MakeInstructionABC(op OpCode, a, b, c byte) Instruction {
	return Instruction(uint32(op) | uint32(a)<<8 | uint32(b)<<16 | uint32(c)<<24)
}

func (i Instruction) OpCode() OpCode   { return OpCode(i & 0xFF) }
func (i Instruction) A() byte          { return byte((i >> 8) & 0xFF) }
func (i Instruction) B() uint16        { return uint16((i >> 16) & 0xFFFF) }
func (i Instruction) SignedB() int16   { return int16(i.B()) }
func (i Instruction) C() byte          { return byte((i >> 24) & 0xFF) }

func (i Instruction) String() string { return i.OpCode().String() }

// encodeInstruction appends an instruction's four bytes, little-endian, to
// the script's byte-code stream — the representation Script.Code stores and
// the Interpreter's fetch step reads back with decodeInstruction.
func encodeInstruction(code []byte, inst Instruction) []byte {
	return append(code, byte(inst), byte(inst>>8), byte(inst>>16), byte(inst>>24))
}

func decodeInstruction(code []byte, ip int) Instruction {
	return Instruction(uint32(code[ip]) | uint32(code[ip+1])<<8 | uint32(code[ip+2])<<16 | uint32(code[ip+3])<<24)
}
