package wire

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"reflect"
	"sync/atomic"
)

var Logger = logger.GetLogger("wire")

// Registrar records committed composite layouts with the message substrate
// and returns the id the layout is known under.
type Registrar interface {
	RegisterType(d Descriptor) (uint64, error)
}

// --------------------------------------------------------------------------
// Builder (describe phase)
// --------------------------------------------------------------------------

// Builder holds a validated composite layout for values of type T that has
// not been committed yet. A builder can not be used for any transfer, only
// the *Type returned by Commit can.
type Builder[T any] struct {
	desc      Descriptor
	committed atomic.Bool
}

// Contiguous describes T as count consecutive elements of the scalar type E,
// e.g. Contiguous[[3]float64, float64](3).
func Contiguous[T any, E Scalar](count int) (*Builder[T], error) {
	return ContiguousOf[T](DescriptorFor[E](), count)
}

// ContiguousOf describes T as count consecutive elements of elem. elem may
// itself be composite (see Type.Descriptor).
func ContiguousOf[T any](elem Descriptor, count int) (*Builder[T], error) {
	return Struct[T]([]int{count}, []uintptr{0}, []Descriptor{elem})
}

// Struct describes T field by field. The three slices must have equal length:
// field i consists of blockLengths[i] elements of types[i] starting at byte
// offsets[i] of T (use unsafe.Offsetof to obtain offsets). Fields may not
// reach past the end of T.
func Struct[T any](blockLengths []int, offsets []uintptr, types []Descriptor) (*Builder[T], error) {
	if len(blockLengths) != len(offsets) || len(offsets) != len(types) {
		return nil, common.NewError(common.RetCMalformedLayout,
			"field arrays differ in length (block lengths %d, offsets %d, types %d)",
			len(blockLengths), len(offsets), len(types))
	}
	if len(types) == 0 {
		return nil, common.NewError(common.RetCMalformedLayout, "layout without fields")
	}

	extent := reflect.TypeFor[T]().Size()

	fields := make([]Field, len(types))
	for i := range types {
		if !types[i].IsValid() {
			return nil, common.NewError(common.RetCMalformedLayout, "field %d has no type", i)
		}
		if blockLengths[i] < 1 {
			return nil, common.NewError(common.RetCMalformedLayout,
				"field %d has block length %d", i, blockLengths[i])
		}
		end := offsets[i] + uintptr(blockLengths[i])*types[i].Extent()
		if end > extent {
			return nil, common.NewError(common.RetCMalformedLayout,
				"field %d ends at byte %d, type is %d bytes", i, end, extent)
		}
		fields[i] = Field{Offset: offsets[i], Type: types[i], Count: blockLengths[i]}
	}

	return &Builder[T]{desc: composite(extent, fields)}, nil
}

// Reflect describes T from its Go type: every field of a primitive type,
// array of primitives or nested struct becomes part of the layout. Fields of
// any other type (pointers, slices, strings, maps, ...) are not transferred.
func Reflect[T any]() (*Builder[T], error) {
	t := reflect.TypeFor[T]()
	d, ok := reflectDescriptor(t)
	if !ok {
		return nil, common.NewError(common.RetCMalformedLayout, "type %s has no transferable fields", t)
	}
	if d.kind != KindComposite {
		d = composite(t.Size(), []Field{{Offset: 0, Type: d, Count: 1}})
	}
	return &Builder[T]{desc: d}, nil
}

// reflectDescriptor derives the layout of t
func reflectDescriptor(t reflect.Type) (Descriptor, bool) {
	if d, ok := DescriptorOf(t); ok {
		return d, true
	}

	switch t.Kind() {
	case reflect.Array:
		elem, ok := reflectDescriptor(t.Elem())
		if !ok || t.Len() == 0 {
			return Descriptor{}, false
		}
		return composite(t.Size(), []Field{{Offset: 0, Type: elem, Count: t.Len()}}), true
	case reflect.Struct:
		var fields []Field
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			d, ok := reflectDescriptor(sf.Type)
			if !ok {
				continue
			}
			fields = append(fields, Field{Offset: sf.Offset, Type: d, Count: 1})
		}
		if len(fields) == 0 {
			return Descriptor{}, false
		}
		return composite(t.Size(), fields), true
	default:
		return Descriptor{}, false
	}
}

// Descriptor returns the described layout
func (b *Builder[T]) Descriptor() Descriptor {
	return b.desc
}

// Commit registers the layout and returns the committed type. A builder can
// be committed once; a second Commit fails with AlreadyCommitted. A nil
// registrar commits the layout locally only.
func (b *Builder[T]) Commit(r Registrar) (*Type[T], error) {
	if b == nil || !b.desc.IsValid() {
		return nil, common.NewError(common.RetCMalformedLayout, "commit of an empty builder")
	}
	if b.committed.Swap(true) {
		return nil, common.NewError(common.RetCAlreadyCommitted, "type %s already committed", b.desc)
	}

	var id uint64
	if r != nil {
		var err error
		if id, err = r.RegisterType(b.desc); err != nil {
			b.committed.Store(false)
			return nil, err
		}
	}

	Logger.Debugf("Committed type %s as %d (%d bytes on the wire)", b.desc, id, b.desc.WireSize())
	return &Type[T]{desc: b.desc, id: id, committed: true}, nil
}

// --------------------------------------------------------------------------
// Type (committed phase)
// --------------------------------------------------------------------------

// Type is a committed composite layout for values of type T. Types are
// immutable and may be shared between goroutines.
type Type[T any] struct {
	desc      Descriptor
	id        uint64
	committed bool
}

// Descriptor returns the layout of the type, e.g. to nest it in another Struct
func (t *Type[T]) Descriptor() Descriptor {
	if t == nil {
		return Descriptor{}
	}
	return t.desc
}

// ID returns the id the type was registered under
func (t *Type[T]) ID() uint64 {
	if t == nil {
		return 0
	}
	return t.id
}

// Committed reports whether the type went through Commit
func (t *Type[T]) Committed() bool {
	return t != nil && t.committed
}

// Codec returns the codec of the type. It fails with TypeNotCommitted for
// a type that was not obtained from Commit.
func (t *Type[T]) Codec() (Codec[T], error) {
	if !t.Committed() {
		return Codec[T]{}, common.NewError(common.RetCTypeNotCommitted, "type used before commit")
	}
	return Codec[T]{desc: t.desc}, nil
}
