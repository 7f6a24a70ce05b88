package value

import (
	"golang.org/x/text/unicode/norm"

	"github.com/goquill/goquill/internal/gc"
)

// JSString is the GC-thing backing a String value: a unicode code-unit
// array. Static marks strings sourced from the script image's constant
// table; the collector does not read it, so such strings are traced and
// freed like any other thing.
type JSString struct {
	units  []uint16 // UTF-16 code units, matching ECMAScript string semantics
	Static bool
}

// NewJSString allocates a JSString thing on the heap from a Go string.
func NewJSString(h *gc.Heap, s string) gc.Handle {
	return h.Alloc(&JSString{units: utf16Units(s)})
}

// NewJSStringFromUnits allocates directly from a UTF-16 unit slice (used by
// string-concatenation and slicing built-ins to avoid round-tripping through
// UTF-8).
func NewJSStringFromUnits(h *gc.Heap, units []uint16) gc.Handle {
	cp := make([]uint16, len(units))
	copy(cp, units)
	return h.Alloc(&JSString{units: cp})
}

func (s *JSString) Scan(func(gc.Handle)) {}
func (s *JSString) Finalize()            {}

// Units returns the string's UTF-16 code units.
func (s *JSString) Units() []uint16 { return s.units }

// Len returns the string length in UTF-16 code units (what ECMAScript's
// `.length` reports).
func (s *JSString) Len() int { return len(s.units) }

// String renders the JSString back to a Go string (lossy for unpaired
// surrogates, which are replaced with U+FFFD at the UTF-8 boundary).
func (s *JSString) String() string { return utf16ToUTF8(s.units) }

// Normalize applies Unicode Normalization Form f ("NFC", "NFD", "NFKC",
// "NFKD") as the String.prototype.normalize built-in requires, via
// golang.org/x/text/unicode/norm.
func (s *JSString) Normalize(f string) *JSString {
	var nf norm.Form
	switch f {
	case "NFD":
		nf = norm.NFD
	case "NFKC":
		nf = norm.NFKC
	case "NFKD":
		nf = norm.NFKD
	default:
		nf = norm.NFC
	}
	normalized := nf.String(s.String())
	return &JSString{units: utf16Units(normalized)}
}

// Symbol is the GC-thing backing a Symbol value. description is the
// optional human-readable label; identity is the value's own pointer
// (Symbols never compare equal across distinct allocations).
type Symbol struct {
	Description string
	HasDesc     bool
}

func NewSymbol(h *gc.Heap, description string, hasDesc bool) gc.Handle {
	return h.Alloc(&Symbol{Description: description, HasDesc: hasDesc})
}

func (s *Symbol) Scan(func(gc.Handle)) {}
func (s *Symbol) Finalize()            {}

// PrivateName is the GC-thing backing a PrivateName value: a unique
// identifier scoped to one class body.
type PrivateName struct {
	Description string
}

func NewPrivateName(h *gc.Heap, description string) gc.Handle {
	return h.Alloc(&PrivateName{Description: description})
}

func (p *PrivateName) Scan(func(gc.Handle)) {}
func (p *PrivateName) Finalize()            {}

func utf16Units(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		if r > 0xFFFF {
			r -= 0x10000
			hi := uint16(0xD800 + (r >> 10))
			lo := uint16(0xDC00 + (r & 0x3FF))
			units = append(units, hi, lo)
		} else {
			units = append(units, uint16(r))
		}
	}
	return units
}

func utf16ToUTF8(units []uint16) string {
	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			lo := units[i+1]
			if lo >= 0xDC00 && lo <= 0xDFFF {
				r := (rune(u-0xD800) << 10) + rune(lo-0xDC00) + 0x10000
				runes = append(runes, r)
				i++
				continue
			}
		}
		if u >= 0xD800 && u <= 0xDFFF {
			runes = append(runes, 0xFFFD)
			continue
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}
