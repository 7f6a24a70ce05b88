// Package strpool interns property-key strings so that own-property lookup
// can use pointer equality instead of byte comparison.
package strpool

import "sync"

// Interned is the pointer-comparable handle a Pool hands back. Two Interned
// values compare equal with == if and only if they name the same key.
type Interned struct {
	entry *entry
}

type entry struct {
	text string
}

// Equal reports pointer equality — the fast path every property lookup uses.
func (i Interned) Equal(o Interned) bool { return i.entry == o.entry }

// Text returns the key's text.
func (i Interned) Text() string {
	if i.entry == nil {
		return ""
	}
	return i.entry.text
}

// Pool is a single runtime's interning table, plus the index-string fast
// path for property keys that are canonical decimal integers in
// [0, 2^32-2].
//
// One Pool lives on runtime.Runtime; it is never a package-level singleton.
type Pool struct {
	mu   sync.Mutex
	byID map[string]*entry
}

// New creates an empty interning pool.
func New() *Pool {
	return &Pool{byID: make(map[string]*entry)}
}

// Intern returns the canonical Interned handle for s, allocating a new
// entry on first use.
func (p *Pool) Intern(s string) Interned {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.byID[s]; ok {
		return Interned{entry: e}
	}
	e := &entry{text: s}
	p.byID[s] = e
	return Interned{entry: e}
}

// MaxIndexString is the largest value an IndexString tag may hold; ECMAScript
// reserves 2^32-1 (the maximum array length) as "not a valid index".
const MaxIndexString uint32 = 0xFFFF_FFFE

// IndexStringOf reports whether s is the canonical decimal representation of
// an integer in [0, MaxIndexString] — e.g. "0", "42", but not "00", "-1", or
// "4294967295". On success it returns the integer value.
func IndexStringOf(s string) (uint32, bool) {
	if s == "" || len(s) > 10 {
		return 0, false
	}
	if s[0] == '0' && len(s) > 1 {
		return 0, false // "00", "01", ... are not canonical
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + uint64(c-'0')
		if v > uint64(MaxIndexString) {
			return 0, false
		}
	}
	return uint32(v), true
}

// StringOfIndex renders an index string back to its canonical decimal text.
func StringOfIndex(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
