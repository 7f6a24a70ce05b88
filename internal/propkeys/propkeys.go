// Package propkeys implements the ordered property-key set backing every
// object's own-keys list. Keys come in three kinds — integer index, string, symbol —
// and iteration always yields them in that order: indices ascending, strings
// and symbols each in insertion order, with re-insertion of an existing key
// never moving it.
//
// A parallel order-preserving key slice sits beside the lookup map,
// generalised here to three key kinds instead of one.
package propkeys

import "github.com/goquill/goquill/internal/strpool"

// Kind discriminates a Key.
type Kind uint8

const (
	KindIndex Kind = iota
	KindString
	KindSymbol
)

// Key is one property key: either a canonical array index, an interned
// string, or a symbol identity (a uint64 the caller derives from the
// symbol's allocation, e.g. gc.Handle.Identity, so two symbols with the same
// description stay distinct keys).
type Key struct {
	kind  Kind
	index uint32
	str   strpool.Interned
	sym   uint64 // symbol identity: the gc.Handle's address bits, set by caller
}

func IndexKey(i uint32) Key                { return Key{kind: KindIndex, index: i} }
func StringKey(s strpool.Interned) Key     { return Key{kind: KindString, str: s} }
func SymbolKey(identity uint64) Key        { return Key{kind: KindSymbol, sym: identity} }
func (k Key) Kind() Kind                   { return k.kind }
func (k Key) Index() uint32                { return k.index }
func (k Key) Str() strpool.Interned        { return k.str }
func (k Key) SymbolIdentity() uint64       { return k.sym }

// Equal reports whether two keys name the same property.
func (k Key) Equal(o Key) bool {
	if k.kind != o.kind {
		return false
	}
	switch k.kind {
	case KindIndex:
		return k.index == o.index
	case KindString:
		return k.str.Equal(o.str)
	default:
		return k.sym == o.sym
	}
}

// List is an insertion-ordered set of property keys, iterated in the
// mandated order: integer indices ascending, then strings in insertion
// order, then symbols in insertion order.
type List struct {
	indices []uint32
	strs    []strpool.Interned
	syms    []Key
	seen    map[Key]bool
}

// New creates an empty key list.
func New() *List { return &List{seen: make(map[Key]bool)} }

// Add inserts key if not already present; re-adding an existing key is a
// no-op that does not change its position.
func (l *List) Add(key Key) {
	if l.seen[key] {
		return
	}
	l.seen[key] = true
	switch key.kind {
	case KindIndex:
		// Keep indices sorted on insert so iteration order falls out
		// directly without a sort pass; each insert scans linearly for its
		// position.
		i := 0
		for i < len(l.indices) && l.indices[i] < key.index {
			i++
		}
		l.indices = append(l.indices, 0)
		copy(l.indices[i+1:], l.indices[i:])
		l.indices[i] = key.index
	case KindString:
		l.strs = append(l.strs, key.str)
	case KindSymbol:
		l.syms = append(l.syms, key)
	}
}

// Remove deletes key from the list, if present.
func (l *List) Remove(key Key) {
	if !l.seen[key] {
		return
	}
	delete(l.seen, key)
	switch key.kind {
	case KindIndex:
		for i, idx := range l.indices {
			if idx == key.index {
				l.indices = append(l.indices[:i], l.indices[i+1:]...)
				return
			}
		}
	case KindString:
		for i, s := range l.strs {
			if s.Equal(key.str) {
				l.strs = append(l.strs[:i], l.strs[i+1:]...)
				return
			}
		}
	case KindSymbol:
		for i, s := range l.syms {
			if s.Equal(key) {
				l.syms = append(l.syms[:i], l.syms[i+1:]...)
				return
			}
		}
	}
}

// Has reports whether key is in the list.
func (l *List) Has(key Key) bool { return l.seen[key] }

// Keys returns every key in own-property-keys order.
func (l *List) Keys() []Key {
	out := make([]Key, 0, len(l.indices)+len(l.strs)+len(l.syms))
	for _, i := range l.indices {
		out = append(out, IndexKey(i))
	}
	for _, s := range l.strs {
		out = append(out, StringKey(s))
	}
	out = append(out, l.syms...)
	return out
}

// Len returns the total number of keys.
func (l *List) Len() int { return len(l.indices) + len(l.strs) + len(l.syms) }
