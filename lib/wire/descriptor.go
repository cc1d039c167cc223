package wire

import (
	"fmt"
	"strings"
)

// Field is one block of a composite layout: Count consecutive elements of
// Type, starting at byte Offset of the host instance.
type Field struct {
	Offset uintptr
	Type   Descriptor
	Count  int
}

// Descriptor describes how one element of a value type is laid out in host
// memory and on the wire. A descriptor is either primitive (a Kind plus the
// size the kind occupies in host memory) or composite (an ordered list of
// fields). Descriptors are immutable values; the zero Descriptor is invalid.
type Descriptor struct {
	kind     Kind
	extent   uintptr // bytes of one element in host memory
	wireSize int     // bytes of one element on the wire
	fields   []Field
}

// primitive creates the descriptor of a primitive kind stored in hostSize bytes
func primitive(kind Kind, hostSize uintptr) Descriptor {
	return Descriptor{
		kind:     kind,
		extent:   hostSize,
		wireSize: kind.Size(),
	}
}

// composite creates a composite descriptor, fields are copied
func composite(extent uintptr, fields []Field) Descriptor {
	d := Descriptor{
		kind:   KindComposite,
		extent: extent,
		fields: append([]Field(nil), fields...),
	}
	for _, f := range fields {
		d.wireSize += f.Count * f.Type.wireSize
	}
	return d
}

// Kind returns the wire kind (KindComposite for composite layouts)
func (d Descriptor) Kind() Kind {
	return d.kind
}

// IsValid reports whether the descriptor describes anything
func (d Descriptor) IsValid() bool {
	return d.kind != KindInvalid
}

// IsPrimitive reports whether the descriptor is a single primitive element
func (d Descriptor) IsPrimitive() bool {
	return d.kind.IsPrimitive()
}

// Extent returns the size of one element in host memory
func (d Descriptor) Extent() uintptr {
	return d.extent
}

// WireSize returns the packed size of one element on the wire
func (d Descriptor) WireSize() int {
	return d.wireSize
}

// Fields returns a copy of the fields of a composite descriptor
func (d Descriptor) Fields() []Field {
	return append([]Field(nil), d.fields...)
}

// Equal reports whether two descriptors describe the same layout
func (d Descriptor) Equal(o Descriptor) bool {
	if d.kind != o.kind || d.extent != o.extent || d.wireSize != o.wireSize || len(d.fields) != len(o.fields) {
		return false
	}
	for i := range d.fields {
		a, b := d.fields[i], o.fields[i]
		if a.Offset != b.Offset || a.Count != b.Count || !a.Type.Equal(b.Type) {
			return false
		}
	}
	return true
}

// String returns a compact signature of the layout, e.g. "{0:float64x3,24:int32}"
func (d Descriptor) String() string {
	if d.kind != KindComposite {
		return d.kind.String()
	}

	var sb strings.Builder
	sb.WriteString("{")
	for i, f := range d.fields {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("%d:%s", f.Offset, f.Type.String()))
		if f.Count != 1 {
			sb.WriteString(fmt.Sprintf("x%d", f.Count))
		}
	}
	sb.WriteString("}")
	return sb.String()
}
