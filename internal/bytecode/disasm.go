package bytecode

import (
	"fmt"
	"io"
	"strconv"

	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
	"github.com/goquill/goquill/internal/vm"
)

// Disassembler renders a Script's code table as human-readable text, one
// function at a time, for cmd/goquill's disasm subcommand and for debugging
// a hand-built test script.
type Disassembler struct {
	w io.Writer
	s *script.Script
}

func NewDisassembler(s *script.Script, w io.Writer) *Disassembler {
	return &Disassembler{w: w, s: s}
}

// Disassemble prints every function in the script in table order.
func (d *Disassembler) Disassemble() {
	fmt.Fprintf(d.w, "== %s ==\n", d.s.SourceName)
	fmt.Fprintf(d.w, "functions: %d  constants: %d  code bytes: %d\n\n",
		len(d.s.Functions), len(d.s.Constants), len(d.s.Code))

	if len(d.s.Constants) > 0 {
		fmt.Fprintf(d.w, "constants:\n")
		for i, c := range d.s.Constants {
			fmt.Fprintf(d.w, "  [%4d] %s\n", i, constantText(c))
		}
		fmt.Fprintln(d.w)
	}

	for i, fn := range d.s.Functions {
		name := "<anonymous>"
		if fn.NameIndex >= 0 && fn.NameIndex < len(d.s.Constants) {
			name = constantText(d.s.Constants[fn.NameIndex])
		}
		fmt.Fprintf(d.w, "function #%d %s (params=%d regs=%d flags=%s)\n",
			i, name, fn.ParamCount, fn.RegisterCount, flagsText(fn.Flags))
		d.DisassembleRange(fn.CodeStart, fn.CodeEnd)
		fmt.Fprintln(d.w)
	}
}

// DisassembleRange prints every instruction in [start, end).
func (d *Disassembler) DisassembleRange(start, end int) {
	for ip := start; ip < end; ip += 4 {
		d.DisassembleInstruction(ip)
	}
}

// DisassembleInstruction prints the single instruction beginning at byte
// offset ip (a four-byte-aligned Code index).
func (d *Disassembler) DisassembleInstruction(ip int) {
	if ip < 0 || ip+4 > len(d.s.Code) {
		fmt.Fprintf(d.w, "  %04d  <out of range>\n", ip)
		return
	}
	inst := vm.Instruction(uint32(d.s.Code[ip]) | uint32(d.s.Code[ip+1])<<8 |
		uint32(d.s.Code[ip+2])<<16 | uint32(d.s.Code[ip+3])<<24)
	op := inst.OpCode()

	fmt.Fprintf(d.w, "  %04d %4d  %-20s", ip, d.s.LineForIP(ip), op.String())
	switch {
	case op == vm.OpLoadValue && int(inst.B()) < len(d.s.Constants):
		fmt.Fprintf(d.w, " ; a=%d b=%d (%s)", inst.A(), inst.B(), constantText(d.s.Constants[inst.B()]))
	case isJumpOp(op):
		fmt.Fprintf(d.w, " ; a=%d target=%04d", inst.A(), ip+4+int(inst.SignedB())*4)
	default:
		fmt.Fprintf(d.w, " ; a=%d b=%d c=%d", inst.A(), inst.B(), inst.C())
	}
	fmt.Fprintln(d.w)
}

func isJumpOp(op vm.OpCode) bool {
	switch op {
	case vm.OpJump, vm.OpJumpTrue, vm.OpJumpFalse:
		return true
	default:
		return false
	}
}

// constantText renders a constant-pool entry for disassembly output. Only
// the value kinds Serializer can write as constants appear here, so this
// never needs to handle an Object/Symbol/PrivateName tag.
func constantText(v value.Value) string {
	switch v.Tag() {
	case value.Undefined:
		return "undefined"
	case value.Null:
		return "null"
	case value.Bool:
		return strconv.FormatBool(v.AsBool())
	case value.Number:
		return strconv.FormatFloat(v.AsNum(), 'g', -1, 64)
	case value.IndexString:
		return strconv.FormatUint(uint64(v.AsIndexStr()), 10)
	case value.String:
		if js, ok := v.Handle().Thing().(*value.JSString); ok {
			return strconv.Quote(js.String())
		}
		return `""`
	case value.BigInt:
		if bi, ok := v.Handle().Thing().(interface{ ToString(int) string }); ok {
			return bi.ToString(10) + "n"
		}
		return "0n"
	default:
		return "<" + v.Tag().String() + ">"
	}
}

func flagsText(f script.FunctionFlags) string {
	names := []struct {
		bit  script.FunctionFlags
		name string
	}{
		{script.FlagStrict, "strict"},
		{script.FlagArrow, "arrow"},
		{script.FlagAsync, "async"},
		{script.FlagGenerator, "generator"},
		{script.FlagClassConstructor, "ctor"},
		{script.FlagDerivedConstructor, "derived-ctor"},
	}
	out := ""
	for _, n := range names {
		if f.Has(n.bit) {
			if out != "" {
				out += ","
			}
			out += n.name
		}
	}
	if out == "" {
		return "none"
	}
	return out
}
