package wire

import (
	"encoding/binary"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"math"
	"unsafe"
)

// hostLittleEndian is true if the host byte order matches the wire byte order
var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// Codec marshals slices of T according to a descriptor.
//
// Wire format: elements are packed one after another without padding, every
// primitive in little endian. A bool is sent as a 4 byte integer (0 or 1), Go
// int and uint as 8 byte integers.
type Codec[T any] struct {
	desc Descriptor
}

// PrimitiveCodec returns the codec of a scalar type
func PrimitiveCodec[T Scalar]() Codec[T] {
	return Codec[T]{desc: DescriptorFor[T]()}
}

// Descriptor returns the layout used by the codec
func (c Codec[T]) Descriptor() Descriptor {
	return c.desc
}

// Size returns the number of wire bytes needed for n elements
func (c Codec[T]) Size(n int) int {
	return n * c.desc.wireSize
}

// Count returns the number of elements encoded in n wire bytes
func (c Codec[T]) Count(n int) int {
	if c.desc.wireSize == 0 {
		return 0
	}
	return n / c.desc.wireSize
}

// Append encodes vals and appends the result to dst
func (c Codec[T]) Append(dst []byte, vals []T) []byte {
	if len(vals) == 0 {
		return dst
	}

	if c.rawCopy() {
		return append(dst, asBytes(vals)...)
	}

	stride := unsafe.Sizeof(vals[0])
	base := unsafe.Pointer(unsafe.SliceData(vals))
	for i := range vals {
		dst = appendElem(dst, unsafe.Add(base, uintptr(i)*stride), c.desc)
	}
	return dst
}

// Decode decodes len(dst) elements from src into dst.
// It fails with a count mismatch if src holds fewer elements.
func (c Codec[T]) Decode(src []byte, dst []T) error {
	need := c.Size(len(dst))
	if len(src) < need {
		return common.NewError(common.RetCCountMismatch,
			"payload of %d bytes too short for %d elements of %s", len(src), len(dst), c.desc)
	}
	if len(dst) == 0 {
		return nil
	}

	if c.rawCopy() {
		copy(asBytes(dst), src[:need])
		return nil
	}

	stride := unsafe.Sizeof(dst[0])
	base := unsafe.Pointer(unsafe.SliceData(dst))
	pos := 0
	for i := range dst {
		pos = decodeElem(src, pos, unsafe.Add(base, uintptr(i)*stride), c.desc)
	}
	return nil
}

// rawCopy reports whether host memory and wire bytes are identical
func (c Codec[T]) rawCopy() bool {
	return hostLittleEndian &&
		c.desc.IsPrimitive() &&
		c.desc.kind != KindBool &&
		c.desc.extent == uintptr(c.desc.wireSize)
}

// asBytes views the memory of a slice as bytes
func asBytes[T any](vals []T) []byte {
	var zero T
	size := int(unsafe.Sizeof(zero)) * len(vals)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(vals))), size)
}

// --------------------------------------------------------------------------
// Element encoding
// --------------------------------------------------------------------------

// appendElem encodes the element at p
func appendElem(dst []byte, p unsafe.Pointer, d Descriptor) []byte {
	if d.kind != KindComposite {
		return appendPrimitive(dst, p, d)
	}
	for _, f := range d.fields {
		for i := 0; i < f.Count; i++ {
			dst = appendElem(dst, unsafe.Add(p, f.Offset+uintptr(i)*f.Type.extent), f.Type)
		}
	}
	return dst
}

// decodeElem decodes one element from src[pos:] into p and returns the new position
func decodeElem(src []byte, pos int, p unsafe.Pointer, d Descriptor) int {
	if d.kind != KindComposite {
		decodePrimitive(src[pos:pos+d.wireSize], p, d)
		return pos + d.wireSize
	}
	for _, f := range d.fields {
		for i := 0; i < f.Count; i++ {
			pos = decodeElem(src, pos, unsafe.Add(p, f.Offset+uintptr(i)*f.Type.extent), f.Type)
		}
	}
	return pos
}

func appendPrimitive(dst []byte, p unsafe.Pointer, d Descriptor) []byte {
	le := binary.LittleEndian

	switch d.kind {
	case KindBool:
		var v uint32
		if *(*uint8)(p) != 0 {
			v = 1
		}
		return le.AppendUint32(dst, v)
	case KindInt8, KindUint8:
		return append(dst, *(*uint8)(p))
	case KindInt16, KindUint16:
		return le.AppendUint16(dst, *(*uint16)(p))
	case KindInt32, KindUint32, KindFloat32:
		return le.AppendUint32(dst, *(*uint32)(p))
	case KindInt64:
		if d.extent == 4 {
			return le.AppendUint64(dst, uint64(int64(*(*int32)(p))))
		}
		return le.AppendUint64(dst, *(*uint64)(p))
	case KindUint64:
		if d.extent == 4 {
			return le.AppendUint64(dst, uint64(*(*uint32)(p)))
		}
		return le.AppendUint64(dst, *(*uint64)(p))
	case KindFloat64:
		return le.AppendUint64(dst, *(*uint64)(p))
	case KindComplex64:
		c := *(*complex64)(p)
		dst = le.AppendUint32(dst, math.Float32bits(real(c)))
		return le.AppendUint32(dst, math.Float32bits(imag(c)))
	case KindComplex128:
		c := *(*complex128)(p)
		dst = le.AppendUint64(dst, math.Float64bits(real(c)))
		return le.AppendUint64(dst, math.Float64bits(imag(c)))
	default:
		return dst
	}
}

func decodePrimitive(src []byte, p unsafe.Pointer, d Descriptor) {
	le := binary.LittleEndian

	switch d.kind {
	case KindBool:
		*(*bool)(p) = le.Uint32(src) != 0
	case KindInt8, KindUint8:
		*(*uint8)(p) = src[0]
	case KindInt16, KindUint16:
		*(*uint16)(p) = le.Uint16(src)
	case KindInt32, KindUint32, KindFloat32:
		*(*uint32)(p) = le.Uint32(src)
	case KindInt64, KindUint64:
		if d.extent == 4 {
			*(*uint32)(p) = uint32(le.Uint64(src))
			return
		}
		*(*uint64)(p) = le.Uint64(src)
	case KindFloat64:
		*(*uint64)(p) = le.Uint64(src)
	case KindComplex64:
		*(*complex64)(p) = complex(math.Float32frombits(le.Uint32(src)), math.Float32frombits(le.Uint32(src[4:])))
	case KindComplex128:
		*(*complex128)(p) = complex(math.Float64frombits(le.Uint64(src)), math.Float64frombits(le.Uint64(src[8:])))
	}
}
