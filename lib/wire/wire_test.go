package wire

import (
	"errors"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
	"unsafe"
)

// roundTrip encodes and decodes vals with the primitive codec of T
func roundTrip[T Scalar](t *testing.T, vals ...T) {
	t.Helper()
	codec := PrimitiveCodec[T]()

	data := codec.Append(nil, vals)
	require.Len(t, data, codec.Size(len(vals)))
	require.Equal(t, len(vals), codec.Count(len(data)))

	out := make([]T, len(vals))
	require.NoError(t, codec.Decode(data, out))
	require.Equal(t, vals, out)
}

func TestPrimitiveRoundTrip(t *testing.T) {
	t.Run("bool", func(t *testing.T) { roundTrip(t, true, false, true) })
	t.Run("int", func(t *testing.T) { roundTrip(t, 0, -1, math.MaxInt, math.MinInt) })
	t.Run("int8", func(t *testing.T) { roundTrip[int8](t, 0, -128, 127) })
	t.Run("int16", func(t *testing.T) { roundTrip[int16](t, -32768, 12345) })
	t.Run("int32", func(t *testing.T) { roundTrip[int32](t, 15, -15, math.MaxInt32) })
	t.Run("int64", func(t *testing.T) { roundTrip[int64](t, 15, math.MinInt64) })
	t.Run("uint", func(t *testing.T) { roundTrip[uint](t, 0, math.MaxUint) })
	t.Run("uint8", func(t *testing.T) { roundTrip[uint8](t, 0, 255) })
	t.Run("uint16", func(t *testing.T) { roundTrip[uint16](t, 65535) })
	t.Run("uint32", func(t *testing.T) { roundTrip[uint32](t, math.MaxUint32) })
	t.Run("uint64", func(t *testing.T) { roundTrip[uint64](t, math.MaxUint64) })
	t.Run("float32", func(t *testing.T) { roundTrip[float32](t, 1.5, -0.25, math.MaxFloat32) })
	t.Run("float64", func(t *testing.T) { roundTrip(t, 1.5, math.Inf(-1), math.SmallestNonzeroFloat64) })
	t.Run("complex64", func(t *testing.T) { roundTrip[complex64](t, complex(1, -2)) })
	t.Run("complex128", func(t *testing.T) { roundTrip(t, complex(1.5, 2.5)) })

	type celsius float64
	t.Run("named", func(t *testing.T) { roundTrip[celsius](t, 21.5, -3) })
}

func TestWireBytes(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want []byte
	}{
		{"int32", PrimitiveCodec[int32]().Append(nil, []int32{15}), []byte{15, 0, 0, 0}},
		{"int16 negative", PrimitiveCodec[int16]().Append(nil, []int16{-2}), []byte{0xfe, 0xff}},
		{"int is 8 bytes", PrimitiveCodec[int]().Append(nil, []int{1}), []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{"bool is 4 bytes", PrimitiveCodec[bool]().Append(nil, []bool{true, false}), []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{"float32", PrimitiveCodec[float32]().Append(nil, []float32{1}), []byte{0, 0, 0x80, 0x3f}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.data)
		})
	}
}

func TestBoolDecodesNonZeroAsTrue(t *testing.T) {
	out := make([]bool, 3)
	require.NoError(t, PrimitiveCodec[bool]().Decode([]byte{0, 0, 0, 0, 7, 0, 0, 0, 0, 1, 0, 0}, out))
	require.Equal(t, []bool{false, true, true}, out)
}

func TestDescriptorFor(t *testing.T) {
	d := DescriptorFor[bool]()
	require.Equal(t, KindBool, d.Kind())
	require.Equal(t, uintptr(1), d.Extent())
	require.Equal(t, 4, d.WireSize())
	require.True(t, d.IsPrimitive())

	require.Equal(t, KindInt64, DescriptorFor[int]().Kind())
	require.Equal(t, KindUint64, DescriptorFor[uint]().Kind())
	require.True(t, DescriptorFor[float64]().Equal(DescriptorFor[float64]()))
	require.False(t, DescriptorFor[float64]().Equal(DescriptorFor[int64]()))

	require.False(t, Descriptor{}.IsValid())
	require.Equal(t, 0, KindComposite.Size())
}

func TestDecodeTooShort(t *testing.T) {
	out := make([]int64, 2)
	err := PrimitiveCodec[int64]().Decode(make([]byte, 12), out)
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrCountMismatch))
}

// particle is the composite used by the layout tests
type particle struct {
	Mass     float64
	Charge   int32
	Pos      [3]float32
	Flag     bool
	Comment  string // not transferred
	Momentum [2]float64
}

func particleBuilder(t *testing.T) *Builder[particle] {
	var p particle
	b, err := Struct[particle](
		[]int{1, 1, 3, 1, 2},
		[]uintptr{
			unsafe.Offsetof(p.Mass),
			unsafe.Offsetof(p.Charge),
			unsafe.Offsetof(p.Pos),
			unsafe.Offsetof(p.Flag),
			unsafe.Offsetof(p.Momentum),
		},
		[]Descriptor{
			DescriptorFor[float64](),
			DescriptorFor[int32](),
			DescriptorFor[float32](),
			DescriptorFor[bool](),
			DescriptorFor[float64](),
		},
	)
	require.NoError(t, err)
	return b
}

func TestStructRoundTrip(t *testing.T) {
	typ, err := particleBuilder(t).Commit(nil)
	require.NoError(t, err)
	require.True(t, typ.Committed())

	codec, err := typ.Codec()
	require.NoError(t, err)
	require.Equal(t, 8+4+12+4+16, codec.Descriptor().WireSize())

	in := []particle{
		{Mass: 1.5, Charge: -1, Pos: [3]float32{1, 2, 3}, Flag: true, Comment: "a", Momentum: [2]float64{4, 5}},
		{Mass: 2, Charge: 2, Pos: [3]float32{-1, -2, -3}, Comment: "b"},
	}
	data := codec.Append(nil, in)
	require.Len(t, data, 2*44)

	out := make([]particle, 2)
	require.NoError(t, codec.Decode(data, out))

	// The comment is not part of the layout
	for i := range in {
		in[i].Comment = ""
	}
	require.Equal(t, in, out)
}

func TestReflectMatchesStruct(t *testing.T) {
	reflected, err := Reflect[particle]()
	require.NoError(t, err)
	require.Equal(t, particleBuilder(t).Descriptor().WireSize(), reflected.Descriptor().WireSize())

	typ, err := reflected.Commit(nil)
	require.NoError(t, err)
	codec, err := typ.Codec()
	require.NoError(t, err)

	in := []particle{{Mass: 3, Charge: 7, Pos: [3]float32{1, 1, 1}, Momentum: [2]float64{9, 8}}}
	out := make([]particle, 1)
	require.NoError(t, codec.Decode(codec.Append(nil, in), out))
	require.Equal(t, in, out)

	_, err = Reflect[struct{ S string }]()
	require.True(t, errors.Is(err, common.ErrMalformedLayout))
}

func TestContiguous(t *testing.T) {
	b, err := Contiguous[[4]int32, int32](4)
	require.NoError(t, err)
	typ, err := b.Commit(nil)
	require.NoError(t, err)
	codec, err := typ.Codec()
	require.NoError(t, err)

	in := [][4]int32{{1, 2, 3, 4}, {5, 6, 7, 8}}
	data := codec.Append(nil, in)
	require.Equal(t, PrimitiveCodec[int32]().Append(nil, []int32{1, 2, 3, 4, 5, 6, 7, 8}), data)

	out := make([][4]int32, 2)
	require.NoError(t, codec.Decode(data, out))
	require.Equal(t, in, out)

	// More elements than the type holds
	_, err = Contiguous[[4]int32, int32](5)
	require.True(t, errors.Is(err, common.ErrMalformedLayout))
}

func TestNestedComposite(t *testing.T) {
	type vec struct{ X, Y float64 }
	type segment struct {
		ID   uint16
		From vec
		To   vec
	}

	vb, err := Reflect[vec]()
	require.NoError(t, err)
	vecType, err := vb.Commit(nil)
	require.NoError(t, err)

	var s segment
	sb, err := Struct[segment](
		[]int{1, 2},
		[]uintptr{unsafe.Offsetof(s.ID), unsafe.Offsetof(s.From)},
		[]Descriptor{DescriptorFor[uint16](), vecType.Descriptor()},
	)
	require.NoError(t, err)
	segType, err := sb.Commit(nil)
	require.NoError(t, err)
	codec, err := segType.Codec()
	require.NoError(t, err)
	require.Equal(t, 2+32, codec.Descriptor().WireSize())

	in := []segment{{ID: 3, From: vec{1, 2}, To: vec{3, 4}}}
	out := make([]segment, 1)
	require.NoError(t, codec.Decode(codec.Append(nil, in), out))
	require.Equal(t, in, out)
}

func TestMalformedLayouts(t *testing.T) {
	f64 := DescriptorFor[float64]()

	testCases := []struct {
		name         string
		blockLengths []int
		offsets      []uintptr
		types        []Descriptor
	}{
		{"length mismatch", []int{1, 1}, []uintptr{0}, []Descriptor{f64, f64}},
		{"no fields", nil, nil, nil},
		{"field past end", []int{1}, []uintptr{12}, []Descriptor{f64}},
		{"block too long", []int{3}, []uintptr{0}, []Descriptor{f64}},
		{"zero block length", []int{0}, []uintptr{0}, []Descriptor{f64}},
		{"invalid type", []int{1}, []uintptr{0}, []Descriptor{{}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Struct[[2]float64](tc.blockLengths, tc.offsets, tc.types)
			require.Error(t, err)
			require.True(t, errors.Is(err, common.ErrMalformedLayout), "got %v", err)
		})
	}
}

// recordingRegistrar remembers every registered layout
type recordingRegistrar struct {
	types []Descriptor
	fail  bool
}

func (r *recordingRegistrar) RegisterType(d Descriptor) (uint64, error) {
	if r.fail {
		return 0, common.NewError(common.RetCFinalized, "closed")
	}
	r.types = append(r.types, d)
	return uint64(len(r.types)), nil
}

func TestCommitLifecycle(t *testing.T) {
	r := &recordingRegistrar{}
	b := particleBuilder(t)

	typ, err := b.Commit(r)
	require.NoError(t, err)
	require.Equal(t, uint64(1), typ.ID())
	require.Len(t, r.types, 1)

	// Second commit of the same builder
	_, err = b.Commit(r)
	require.True(t, errors.Is(err, common.ErrAlreadyCommitted))
	require.Len(t, r.types, 1)

	// A failed registration leaves the builder uncommitted
	b2 := particleBuilder(t)
	_, err = b2.Commit(&recordingRegistrar{fail: true})
	require.Error(t, err)
	_, err = b2.Commit(r)
	require.NoError(t, err)

	// Types that did not come from Commit are rejected
	var zero Type[particle]
	_, err = zero.Codec()
	require.True(t, errors.Is(err, common.ErrTypeNotCommitted))

	var nilType *Type[particle]
	_, err = nilType.Codec()
	require.True(t, errors.Is(err, common.ErrTypeNotCommitted))
}

func TestDescriptorString(t *testing.T) {
	b, err := Contiguous[[3]float64, float64](3)
	require.NoError(t, err)
	require.Equal(t, "{0:float64x3}", b.Descriptor().String())
	require.Equal(t, "int32", DescriptorFor[int32]().String())
}
