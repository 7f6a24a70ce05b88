package object

import (
	"github.com/goquill/goquill/internal/gc"
	"github.com/goquill/goquill/internal/value"
)

// PrimitiveKind identifies which primitive type a PrimitiveWrapper boxes.
type PrimitiveKind uint8

const (
	BooleanPrimitive PrimitiveKind = iota
	NumberPrimitive
	SymbolPrimitive
	BigIntPrimitive
)

// PrimitiveWrapper is the Boolean/Number/Symbol/BigInt exotic object
//: an ordinary object that additionally carries a
// [[PrimitiveValue]] internal slot, consulted by valueOf/toString built-ins
// and by ToPrimitive's OrdinaryToPrimitive fallback. Unlike StringWrapper it
// has no index properties of its own — it only adds the slot.
type PrimitiveWrapper struct {
	Ordinary
	Kind      PrimitiveKind
	Primitive value.Value
}

// NewPrimitiveWrapper boxes v (which must already carry the tag matching
// kind) behind the given prototype.
func NewPrimitiveWrapper(proto value.Value, kind PrimitiveKind, v value.Value) *PrimitiveWrapper {
	return &PrimitiveWrapper{Ordinary: *NewOrdinary(proto), Kind: kind, Primitive: v}
}

func (p *PrimitiveWrapper) Scan(visit func(gc.Handle)) {
	p.Ordinary.Scan(visit)
	if !p.Primitive.Handle().Nil() {
		visit(p.Primitive.Handle())
	}
}
