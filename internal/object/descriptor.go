// Package object implements the ECMAScript object model: the ordinary-object ops vtable and its specialisations (array,
// string-wrapper, integer-indexed/TypedArray, proxy, primitive wrapper).
//
// Every kind (prototype pointer + property map, array's dense part +
// length semantics, the specialised set/record kinds) dispatches through a
// shared interface: one Object interface with 13 named ops, instead of
// per-kind bespoke methods.
package object

import "github.com/goquill/goquill/internal/value"

// Descriptor is a property descriptor: the Has* flags track which fields
// were explicitly supplied by the originating operation,
// since "absent" and "present but false" are different things throughout
// the Validate+Apply algorithm.
type Descriptor struct {
	HasValue        bool
	HasWritable     bool
	HasGet          bool
	HasSet          bool
	HasEnumerable   bool
	HasConfigurable bool

	Value value.Value
	Get   value.Value // callable Object value, or Undefined
	Set   value.Value // callable Object value, or Undefined

	Writable     bool
	Enumerable   bool
	Configurable bool
}

// IsAccessor reports whether d describes an accessor property.
func (d *Descriptor) IsAccessor() bool { return d.HasGet || d.HasSet }

// IsData reports whether d describes a data property.
func (d *Descriptor) IsData() bool { return d.HasValue || d.HasWritable }

// IsGeneric reports whether d describes neither (a descriptor that only
// touches enumerable/configurable, e.g. `Object.defineProperty(o,k,{})`).
func (d *Descriptor) IsGeneric() bool { return !d.IsAccessor() && !d.IsData() }

// DataDescriptor builds a fully-specified data-property descriptor.
func DataDescriptor(v value.Value, writable, enumerable, configurable bool) *Descriptor {
	return &Descriptor{
		HasValue: true, HasWritable: true, HasEnumerable: true, HasConfigurable: true,
		Value: v, Writable: writable, Enumerable: enumerable, Configurable: configurable,
	}
}

// AccessorDescriptor builds a fully-specified accessor-property descriptor.
func AccessorDescriptor(get, set value.Value, enumerable, configurable bool) *Descriptor {
	return &Descriptor{
		HasGet: true, HasSet: true, HasEnumerable: true, HasConfigurable: true,
		Get: get, Set: set, Enumerable: enumerable, Configurable: configurable,
	}
}

// clone returns a shallow copy, used whenever an op must mutate a
// descriptor it was handed without aliasing the caller's copy.
func (d *Descriptor) clone() *Descriptor {
	cp := *d
	return &cp
}
