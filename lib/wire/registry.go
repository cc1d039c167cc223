package wire

import (
	"github.com/puzpuzpuz/xsync/v3"
	"reflect"
)

// Scalar is the set of types with a primitive wire descriptor.
// A value of a Scalar type travels as one element, a []T of a Scalar T as
// a homogeneous sequence of elements.
type Scalar interface {
	~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 |
		~complex64 | ~complex128
}

// Integer is the set of integer types
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Float is the set of floating point types
type Float interface {
	~float32 | ~float64
}

// Number is the set of ordered numeric types, the domain of the reduction operators
type Number interface {
	Integer | Float
}

// descriptors caches the descriptor of every primitive type used so far
var descriptors = xsync.NewMapOf[reflect.Type, Descriptor]()

// DescriptorFor returns the descriptor of the scalar type T.
// The result depends only on T, so every rank resolves the same descriptor.
func DescriptorFor[T Scalar]() Descriptor {
	t := reflect.TypeFor[T]()
	if d, ok := descriptors.Load(t); ok {
		return d
	}
	d, _ := descriptorOf(t)
	d, _ = descriptors.LoadOrStore(t, d)
	return d
}

// DescriptorOf returns the primitive descriptor of a reflected type.
// It returns false for types that are not primitive.
func DescriptorOf(t reflect.Type) (Descriptor, bool) {
	if d, ok := descriptors.Load(t); ok {
		return d, true
	}
	d, ok := descriptorOf(t)
	if !ok {
		return Descriptor{}, false
	}
	d, _ = descriptors.LoadOrStore(t, d)
	return d, true
}

// descriptorOf maps the reflect kind of t to its wire kind.
// Go int and uint always travel as 64 bit values, whatever the host size is.
func descriptorOf(t reflect.Type) (Descriptor, bool) {
	var k Kind
	switch t.Kind() {
	case reflect.Bool:
		k = KindBool
	case reflect.Int8:
		k = KindInt8
	case reflect.Int16:
		k = KindInt16
	case reflect.Int32:
		k = KindInt32
	case reflect.Int, reflect.Int64:
		k = KindInt64
	case reflect.Uint8:
		k = KindUint8
	case reflect.Uint16:
		k = KindUint16
	case reflect.Uint32:
		k = KindUint32
	case reflect.Uint, reflect.Uint64:
		k = KindUint64
	case reflect.Float32:
		k = KindFloat32
	case reflect.Float64:
		k = KindFloat64
	case reflect.Complex64:
		k = KindComplex64
	case reflect.Complex128:
		k = KindComplex128
	default:
		return Descriptor{}, false
	}
	return primitive(k, t.Size()), true
}
