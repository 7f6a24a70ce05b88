// Package bytecode serializes a script.Script to and from a flat binary
// image, so cmd/goquill can load a compiled program from disk without this
// core ever needing a source-text parser.
//
// File format (.gqc)
// ===================
//
// Header (8 bytes):
//   - Magic number: "GQSC" (4 bytes)
//   - Version major/minor/patch: uint8 each (3 bytes)
//   - Reserved: uint8 (1 byte)
//
// Body: SourceName, then the ten Script tables, each length-prefixed, in the
// order Constants, Code, LineInfo, Functions, Declarations, BindingRefs,
// PropertyRefs, PrivateIdentifiers, PrivateEnvironments, FuncTree.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/goquill/goquill/internal/bigint"
	"github.com/goquill/goquill/internal/script"
	"github.com/goquill/goquill/internal/value"
	"github.com/goquill/goquill/internal/vm"
)

const (
	// MagicNumber identifies a goquill compiled-script image.
	MagicNumber = "GQSC"

	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// Version identifies a bytecode image's format generation.
type Version struct {
	Major, Minor, Patch uint8
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// IsCompatible reports whether a reader built at version v can load an image
// written at version other: majors must match exactly, and a reader can load
// anything at or below its own minor.
func (v Version) IsCompatible(other Version) bool {
	return v.Major == other.Major && other.Minor <= v.Minor
}

// CurrentVersion is the format version this build writes.
func CurrentVersion() Version {
	return Version{Major: VersionMajor, Minor: VersionMinor, Patch: VersionPatch}
}

// valueTag identifies a serialized constant's shape. Distinct from
// value.Tag since only a subset of value kinds can be constant-pool entries
// at all: an Object, Symbol, or PrivateName is always runtime-allocated and
// never appears in a Script's Constants table.
type valueTag uint8

const (
	tagUndefined valueTag = iota
	tagNull
	tagBool
	tagNumber
	tagIndexString
	tagString
	tagBigInt
)

// Serializer writes and reads script.Script images at CurrentVersion.
type Serializer struct{}

func NewSerializer() *Serializer { return &Serializer{} }

// Serialize encodes a Script to its binary image.
func (s *Serializer) Serialize(sc *script.Script) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := s.writeHeader(buf); err != nil {
		return nil, fmt.Errorf("bytecode: write header: %w", err)
	}
	if err := s.writeString(buf, sc.SourceName); err != nil {
		return nil, fmt.Errorf("bytecode: write source name: %w", err)
	}
	if err := s.writeConstants(buf, sc.Constants); err != nil {
		return nil, fmt.Errorf("bytecode: write constants: %w", err)
	}
	if err := s.writeBytes(buf, sc.Code); err != nil {
		return nil, fmt.Errorf("bytecode: write code: %w", err)
	}
	if err := s.writeLineInfo(buf, sc.LineInfo); err != nil {
		return nil, fmt.Errorf("bytecode: write line info: %w", err)
	}
	if err := s.writeFunctions(buf, sc.Functions); err != nil {
		return nil, fmt.Errorf("bytecode: write functions: %w", err)
	}
	if err := s.writeDeclarations(buf, sc.Declarations); err != nil {
		return nil, fmt.Errorf("bytecode: write declarations: %w", err)
	}
	if err := s.writeBindingRefs(buf, sc.BindingRefs); err != nil {
		return nil, fmt.Errorf("bytecode: write binding refs: %w", err)
	}
	if err := s.writePropertyRefs(buf, sc.PropertyRefs); err != nil {
		return nil, fmt.Errorf("bytecode: write property refs: %w", err)
	}
	if err := s.writePrivateIdentifiers(buf, sc.PrivateIdentifiers); err != nil {
		return nil, fmt.Errorf("bytecode: write private identifiers: %w", err)
	}
	if err := s.writePrivateEnvironments(buf, sc.PrivateEnvironments); err != nil {
		return nil, fmt.Errorf("bytecode: write private environments: %w", err)
	}
	if err := s.writeFuncTree(buf, sc.FuncTree); err != nil {
		return nil, fmt.Errorf("bytecode: write func tree: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a binary image back into a Script, allocating any
// heap-backed constants (strings, bigints) against ip's heap. ip's
// well-known prototypes must already be initialized (i.e. this is a
// realm's interpreter, not a bare zero-value one).
func (s *Serializer) Deserialize(ip *vm.Interpreter, data []byte) (*script.Script, error) {
	r := bytes.NewReader(data)
	version, err := s.readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: read header: %w", err)
	}
	if !CurrentVersion().IsCompatible(version) {
		return nil, fmt.Errorf("bytecode: incompatible image version: reader is %s, image is %s", CurrentVersion(), version)
	}

	var sc script.Script
	if sc.SourceName, err = s.readString(r); err != nil {
		return nil, fmt.Errorf("bytecode: read source name: %w", err)
	}
	if sc.Constants, err = s.readConstants(ip, r); err != nil {
		return nil, fmt.Errorf("bytecode: read constants: %w", err)
	}
	if sc.Code, err = s.readBytes(r); err != nil {
		return nil, fmt.Errorf("bytecode: read code: %w", err)
	}
	if sc.LineInfo, err = s.readLineInfo(r); err != nil {
		return nil, fmt.Errorf("bytecode: read line info: %w", err)
	}
	if sc.Functions, err = s.readFunctions(r); err != nil {
		return nil, fmt.Errorf("bytecode: read functions: %w", err)
	}
	if sc.Declarations, err = s.readDeclarations(r); err != nil {
		return nil, fmt.Errorf("bytecode: read declarations: %w", err)
	}
	if sc.BindingRefs, err = s.readBindingRefs(r); err != nil {
		return nil, fmt.Errorf("bytecode: read binding refs: %w", err)
	}
	if sc.PropertyRefs, err = s.readPropertyRefs(r); err != nil {
		return nil, fmt.Errorf("bytecode: read property refs: %w", err)
	}
	if sc.PrivateIdentifiers, err = s.readPrivateIdentifiers(r); err != nil {
		return nil, fmt.Errorf("bytecode: read private identifiers: %w", err)
	}
	if sc.PrivateEnvironments, err = s.readPrivateEnvironments(r); err != nil {
		return nil, fmt.Errorf("bytecode: read private environments: %w", err)
	}
	if sc.FuncTree, err = s.readFuncTree(r); err != nil {
		return nil, fmt.Errorf("bytecode: read func tree: %w", err)
	}
	return &sc, nil
}

// ---- header ----

func (s *Serializer) writeHeader(w io.Writer) error {
	if _, err := w.Write([]byte(MagicNumber)); err != nil {
		return err
	}
	v := CurrentVersion()
	return binary.Write(w, binary.LittleEndian, [4]uint8{v.Major, v.Minor, v.Patch, 0})
}

func (s *Serializer) readHeader(r io.Reader) (Version, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return Version{}, err
	}
	if string(magic) != MagicNumber {
		return Version{}, fmt.Errorf("bad magic number: expected %q, got %q", MagicNumber, magic)
	}
	var raw [4]uint8
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return Version{}, err
	}
	return Version{Major: raw[0], Minor: raw[1], Patch: raw[2]}, nil
}

// ---- primitives ----

func (s *Serializer) writeU32(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
func (s *Serializer) readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func (s *Serializer) writeI32(w io.Writer, v int32) error { return s.writeU32(w, uint32(v)) }
func (s *Serializer) readI32(r io.Reader) (int32, error) {
	v, err := s.readU32(r)
	return int32(v), err
}

func (s *Serializer) writeBool(w io.Writer, v bool) error {
	var b uint8
	if v {
		b = 1
	}
	return binary.Write(w, binary.LittleEndian, b)
}

func (s *Serializer) readBool(r io.Reader) (bool, error) {
	var b uint8
	err := binary.Read(r, binary.LittleEndian, &b)
	return b != 0, err
}

func (s *Serializer) writeString(w io.Writer, str string) error {
	if err := s.writeU32(w, uint32(len(str))); err != nil {
		return err
	}
	_, err := io.WriteString(w, str)
	return err
}

func (s *Serializer) readString(r io.Reader) (string, error) {
	n, err := s.readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (s *Serializer) writeBytes(w io.Writer, b []byte) error {
	if err := s.writeU32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func (s *Serializer) readBytes(r io.Reader) ([]byte, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(r, buf)
	return buf, err
}

// ---- constants ----

func (s *Serializer) writeConstants(w io.Writer, vals []value.Value) error {
	if err := s.writeU32(w, uint32(len(vals))); err != nil {
		return err
	}
	for _, v := range vals {
		if err := s.writeConstant(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) writeConstant(w io.Writer, v value.Value) error {
	switch v.Tag() {
	case value.Undefined:
		return binary.Write(w, binary.LittleEndian, uint8(tagUndefined))
	case value.Null:
		return binary.Write(w, binary.LittleEndian, uint8(tagNull))
	case value.Bool:
		if err := binary.Write(w, binary.LittleEndian, uint8(tagBool)); err != nil {
			return err
		}
		return s.writeBool(w, v.AsBool())
	case value.Number:
		if err := binary.Write(w, binary.LittleEndian, uint8(tagNumber)); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.AsNum())
	case value.IndexString:
		if err := binary.Write(w, binary.LittleEndian, uint8(tagIndexString)); err != nil {
			return err
		}
		return s.writeU32(w, v.AsIndexStr())
	case value.String:
		if err := binary.Write(w, binary.LittleEndian, uint8(tagString)); err != nil {
			return err
		}
		js, ok := v.Handle().Thing().(*value.JSString)
		if !ok {
			return fmt.Errorf("string constant has non-JSString backing")
		}
		return s.writeString(w, js.String())
	case value.BigInt:
		if err := binary.Write(w, binary.LittleEndian, uint8(tagBigInt)); err != nil {
			return err
		}
		bi, ok := v.Handle().Thing().(interface{ ToString(int) string })
		if !ok {
			return fmt.Errorf("bigint constant has unexpected backing type")
		}
		return s.writeString(w, bi.ToString(10))
	default:
		return fmt.Errorf("cannot serialize a %s value as a constant (constants are compile-time literals, not runtime-allocated objects)", v.Tag())
	}
}

func (s *Serializer) readConstants(ip *vm.Interpreter, r io.Reader) ([]value.Value, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, n)
	for i := range out {
		if out[i], err = s.readConstant(ip, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Serializer) readConstant(ip *vm.Interpreter, r io.Reader) (value.Value, error) {
	var tag uint8
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return value.Value{}, err
	}
	switch valueTag(tag) {
	case tagUndefined:
		return value.Undef(), nil
	case tagNull:
		return value.Nul(), nil
	case tagBool:
		b, err := s.readBool(r)
		return value.BoolVal(b), err
	case tagNumber:
		var f float64
		err := binary.Read(r, binary.LittleEndian, &f)
		return value.Num(f), err
	case tagIndexString:
		idx, err := s.readU32(r)
		return value.IndexStr(idx), err
	case tagString:
		str, err := s.readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.StrHandle(value.NewJSString(ip.Heap, str)), nil
	case tagBigInt:
		str, err := s.readString(r)
		if err != nil {
			return value.Value{}, err
		}
		n, err := bigint.ParseString(str, 10)
		if err != nil {
			return value.Value{}, fmt.Errorf("bigint constant %q: %w", str, err)
		}
		return ip.NewBigInt(n), nil
	default:
		return value.Value{}, fmt.Errorf("unknown constant tag %d", tag)
	}
}

// ---- line info ----

func (s *Serializer) writeLineInfo(w io.Writer, entries []script.LineInfoEntry) error {
	if err := s.writeU32(w, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.writeI32(w, int32(e.Offset)); err != nil {
			return err
		}
		if err := s.writeI32(w, int32(e.Line)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readLineInfo(r io.Reader) ([]script.LineInfoEntry, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]script.LineInfoEntry, n)
	for i := range out {
		off, err := s.readI32(r)
		if err != nil {
			return nil, err
		}
		line, err := s.readI32(r)
		if err != nil {
			return nil, err
		}
		out[i] = script.LineInfoEntry{Offset: int(off), Line: int(line)}
	}
	return out, nil
}

// ---- functions ----

func (s *Serializer) writeFunctions(w io.Writer, fns []script.FunctionEntry) error {
	if err := s.writeU32(w, uint32(len(fns))); err != nil {
		return err
	}
	for _, fn := range fns {
		for _, n := range []int32{
			int32(fn.RegisterCount), int32(fn.CodeStart), int32(fn.CodeEnd),
			int32(fn.ParamCount), int32(fn.NameIndex), int32(fn.DeclGroup),
		} {
			if err := s.writeI32(w, n); err != nil {
				return err
			}
		}
		if err := binary.Write(w, binary.LittleEndian, uint8(fn.Flags)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readFunctions(r io.Reader) ([]script.FunctionEntry, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]script.FunctionEntry, n)
	for i := range out {
		vals := make([]int32, 6)
		for j := range vals {
			if vals[j], err = s.readI32(r); err != nil {
				return nil, err
			}
		}
		var flags uint8
		if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
			return nil, err
		}
		out[i] = script.FunctionEntry{
			RegisterCount: int(vals[0]), CodeStart: int(vals[1]), CodeEnd: int(vals[2]),
			ParamCount: int(vals[3]), NameIndex: int(vals[4]), DeclGroup: int(vals[5]),
			Flags: script.FunctionFlags(flags),
		}
	}
	return out, nil
}

// ---- declarations ----

func (s *Serializer) writeDeclarations(w io.Writer, groups []script.DeclarationGroup) error {
	if err := s.writeU32(w, uint32(len(groups))); err != nil {
		return err
	}
	for _, g := range groups {
		if err := binary.Write(w, binary.LittleEndian, uint8(g.Kind)); err != nil {
			return err
		}
		if err := s.writeU32(w, uint32(len(g.Bindings))); err != nil {
			return err
		}
		for _, b := range g.Bindings {
			if err := s.writeI32(w, int32(b.NameIndex)); err != nil {
				return err
			}
			if err := s.writeBool(w, b.Immutable); err != nil {
				return err
			}
			if err := s.writeBool(w, b.TDZ); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Serializer) readDeclarations(r io.Reader) ([]script.DeclarationGroup, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]script.DeclarationGroup, n)
	for i := range out {
		var kind uint8
		if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
			return nil, err
		}
		bn, err := s.readU32(r)
		if err != nil {
			return nil, err
		}
		bindings := make([]script.BindingEntry, bn)
		for j := range bindings {
			name, err := s.readI32(r)
			if err != nil {
				return nil, err
			}
			immutable, err := s.readBool(r)
			if err != nil {
				return nil, err
			}
			tdz, err := s.readBool(r)
			if err != nil {
				return nil, err
			}
			bindings[j] = script.BindingEntry{NameIndex: int(name), Immutable: immutable, TDZ: tdz}
		}
		out[i] = script.DeclarationGroup{Kind: script.BindingGroupKind(kind), Bindings: bindings}
	}
	return out, nil
}

// ---- flat int-index tables ----

func (s *Serializer) writeBindingRefs(w io.Writer, refs []script.BindingRef) error {
	if err := s.writeU32(w, uint32(len(refs))); err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.writeI32(w, int32(ref.NameIndex)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readBindingRefs(r io.Reader) ([]script.BindingRef, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]script.BindingRef, n)
	for i := range out {
		v, err := s.readI32(r)
		if err != nil {
			return nil, err
		}
		out[i] = script.BindingRef{NameIndex: int(v)}
	}
	return out, nil
}

func (s *Serializer) writePropertyRefs(w io.Writer, refs []script.PropertyRef) error {
	if err := s.writeU32(w, uint32(len(refs))); err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.writeI32(w, int32(ref.NameIndex)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readPropertyRefs(r io.Reader) ([]script.PropertyRef, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]script.PropertyRef, n)
	for i := range out {
		v, err := s.readI32(r)
		if err != nil {
			return nil, err
		}
		out[i] = script.PropertyRef{NameIndex: int(v)}
	}
	return out, nil
}

func (s *Serializer) writePrivateIdentifiers(w io.Writer, ps []script.PrivateIdentifier) error {
	if err := s.writeU32(w, uint32(len(ps))); err != nil {
		return err
	}
	for _, p := range ps {
		if err := s.writeI32(w, int32(p.NameIndex)); err != nil {
			return err
		}
		if err := s.writeBool(w, p.IsMethod); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readPrivateIdentifiers(r io.Reader) ([]script.PrivateIdentifier, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]script.PrivateIdentifier, n)
	for i := range out {
		name, err := s.readI32(r)
		if err != nil {
			return nil, err
		}
		method, err := s.readBool(r)
		if err != nil {
			return nil, err
		}
		out[i] = script.PrivateIdentifier{NameIndex: int(name), IsMethod: method}
	}
	return out, nil
}

func (s *Serializer) writePrivateEnvironments(w io.Writer, ps []script.PrivateEnvironment) error {
	if err := s.writeU32(w, uint32(len(ps))); err != nil {
		return err
	}
	for _, p := range ps {
		if err := s.writeIntSlice(w, p.Identifiers); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readPrivateEnvironments(r io.Reader) ([]script.PrivateEnvironment, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]script.PrivateEnvironment, n)
	for i := range out {
		ids, err := s.readIntSlice(r)
		if err != nil {
			return nil, err
		}
		out[i] = script.PrivateEnvironment{Identifiers: ids}
	}
	return out, nil
}

func (s *Serializer) writeFuncTree(w io.Writer, tree [][]int) error {
	if err := s.writeU32(w, uint32(len(tree))); err != nil {
		return err
	}
	for _, children := range tree {
		if err := s.writeIntSlice(w, children); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readFuncTree(r io.Reader) ([][]int, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([][]int, n)
	for i := range out {
		if out[i], err = s.readIntSlice(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Serializer) writeIntSlice(w io.Writer, vals []int) error {
	if err := s.writeU32(w, uint32(len(vals))); err != nil {
		return err
	}
	for _, v := range vals {
		if err := s.writeI32(w, int32(v)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readIntSlice(r io.Reader) ([]int, error) {
	n, err := s.readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i := range out {
		v, err := s.readI32(r)
		if err != nil {
			return nil, err
		}
		out[i] = int(v)
	}
	return out, nil
}
