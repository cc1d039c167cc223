package mpi

import (
	"github.com/ValentinKolb/dMPI/lib/fabric"
	"github.com/ValentinKolb/dMPI/lib/wire"
	"github.com/ValentinKolb/dMPI/rpc/common"
)

// Every collective must be called by every rank of the communicator, in the
// same order. No rank returns from a collective before all ranks entered it
// as far as the data flow requires.

// --------------------------------------------------------------------------
// Broadcast
// --------------------------------------------------------------------------

// Bcast returns the value of root at every rank. The value passed by other
// ranks is ignored.
func Bcast[T wire.Scalar](c Comm, value T, root int) (T, error) {
	codec := wire.PrimitiveCodec[T]()
	var zero T

	var payload []byte
	if c.Rank() == root {
		payload = encode(codec, []T{value})
	}
	msg, err := c.env.fabric.Bcast(c.group, root, 1, payload)
	if err != nil {
		return zero, err
	}
	return decodeScalar(codec, msg)
}

// BcastSlice returns the slice of root at every rank. The length only has to
// be known at root.
func BcastSlice[T wire.Scalar](c Comm, vals []T, root int) ([]T, error) {
	return bcastSlice(c, wire.PrimitiveCodec[T](), vals, root)
}

// BcastTyped is BcastSlice for a committed composite type
func BcastTyped[T any](c Comm, typ *wire.Type[T], vals []T, root int) ([]T, error) {
	codec, err := typ.Codec()
	if err != nil {
		return nil, err
	}
	return bcastSlice(c, codec, vals, root)
}

func bcastSlice[T any](c Comm, codec wire.Codec[T], vals []T, root int) ([]T, error) {
	var payload []byte
	count := 0
	if c.Rank() == root {
		payload = encode(codec, vals)
		count = len(vals)
	}
	msg, err := c.env.fabric.Bcast(c.group, root, count, payload)
	if err != nil {
		return nil, err
	}
	return decodeSlice(codec, msg)
}

// --------------------------------------------------------------------------
// Reduction
// --------------------------------------------------------------------------

// Reduce combines the values of every rank with op. The result is returned at
// root; the value returned at every other rank is unspecified.
func Reduce[T wire.Number](c Comm, value T, op Op, root int) (T, error) {
	out, err := ReduceSlice(c, []T{value}, op, root)
	if err != nil || len(out) == 0 {
		var zero T
		return zero, err
	}
	return out[0], nil
}

// ReduceSlice combines the slices of every rank element wise. All slices must
// have the same length. The result is returned at root, every other rank
// receives nil.
func ReduceSlice[T wire.Number](c Comm, vals []T, op Op, root int) ([]T, error) {
	codec := wire.PrimitiveCodec[T]()
	combine, err := combiner(op, codec)
	if err != nil {
		return nil, err
	}

	acc, err := c.env.fabric.Reduce(c.group, root, len(vals), encode(codec, vals), combine)
	if err != nil || acc == nil {
		return nil, err
	}
	out := make([]T, codec.Count(len(acc)))
	if err := codec.Decode(acc, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Allreduce combines the values of every rank with op and returns the result
// at every rank
func Allreduce[T wire.Number](c Comm, value T, op Op) (T, error) {
	out, err := AllreduceSlice(c, []T{value}, op)
	if err != nil {
		var zero T
		return zero, err
	}
	return out[0], nil
}

// AllreduceSlice combines the slices of every rank element wise and returns
// the result at every rank. All slices must have the same length.
func AllreduceSlice[T wire.Number](c Comm, vals []T, op Op) ([]T, error) {
	codec := wire.PrimitiveCodec[T]()
	combine, err := combiner(op, codec)
	if err != nil {
		return nil, err
	}

	acc, err := c.env.fabric.Allreduce(c.group, len(vals), encode(codec, vals), combine)
	if err != nil {
		return nil, err
	}
	out := make([]T, codec.Count(len(acc)))
	if err := codec.Decode(acc, out); err != nil {
		return nil, err
	}
	if len(out) != len(vals) {
		return nil, common.NewError(common.RetCCountMismatch,
			"all-reduce of %d elements returned %d", len(vals), len(out))
	}
	return out, nil
}

// --------------------------------------------------------------------------
// All-to-all
// --------------------------------------------------------------------------

// Alltoall sends value to every rank and returns the values of all ranks in
// rank order
func Alltoall[T wire.Scalar](c Comm, value T) ([]T, error) {
	vals := make([]T, c.Size())
	for i := range vals {
		vals[i] = value
	}
	return AlltoallSlice(c, vals)
}

// AlltoallSlice splits vals into Size() equal blocks and sends block r to
// rank r. It returns the blocks every rank sent to the calling rank,
// concatenated in rank order. len(vals) must be a multiple of Size() and
// equal at every rank.
func AlltoallSlice[T wire.Scalar](c Comm, vals []T) ([]T, error) {
	codec := wire.PrimitiveCodec[T]()
	size := c.Size()
	if len(vals)%size != 0 {
		// Take part without blocks, so the other ranks fail instead of waiting
		_, _ = c.env.fabric.Alltoall(c.group, nil, nil)
		return nil, common.NewError(common.RetCCountMismatch,
			"%d elements can not be split into %d blocks", len(vals), size)
	}
	block := len(vals) / size

	blocks := make([][]byte, size)
	counts := make([]int, size)
	for r := range blocks {
		blocks[r] = encode(codec, vals[r*block:(r+1)*block])
		counts[r] = block
	}

	msgs, err := c.env.fabric.Alltoall(c.group, blocks, counts)
	if err != nil {
		return nil, err
	}
	return concat(codec, msgs)
}

// --------------------------------------------------------------------------
// Gather / Scatter
// --------------------------------------------------------------------------

// Gather collects the value of every rank at root, in rank order. Every other
// rank receives nil.
func Gather[T wire.Scalar](c Comm, value T, root int) ([]T, error) {
	return GatherSlice(c, []T{value}, root)
}

// GatherSlice concatenates the slices of every rank at root, in rank order.
// Every other rank receives nil.
func GatherSlice[T wire.Scalar](c Comm, vals []T, root int) ([]T, error) {
	return gatherSlice(c, wire.PrimitiveCodec[T](), vals, root)
}

// GatherTyped is GatherSlice for a committed composite type
func GatherTyped[T any](c Comm, typ *wire.Type[T], vals []T, root int) ([]T, error) {
	codec, err := typ.Codec()
	if err != nil {
		return nil, err
	}
	return gatherSlice(c, codec, vals, root)
}

func gatherSlice[T any](c Comm, codec wire.Codec[T], vals []T, root int) ([]T, error) {
	msgs, err := c.env.fabric.Gather(c.group, root, len(vals), encode(codec, vals))
	if err != nil || msgs == nil {
		return nil, err
	}
	return concat(codec, msgs)
}

// Scatter sends vals[r] from root to rank r and returns the value of the
// calling rank. vals is only read at root and must hold Size() values.
func Scatter[T wire.Scalar](c Comm, vals []T, root int) (T, error) {
	var zero T
	out, err := ScatterSlice(c, vals, root)
	if err != nil {
		return zero, err
	}
	if len(out) != 1 {
		return zero, common.NewError(common.RetCCountMismatch, "scatter delivered %d values, expected 1", len(out))
	}
	return out[0], nil
}

// ScatterSlice splits vals at root into Size() equal slices and sends slice r
// to rank r. vals is only read at root; its length must be a multiple of Size().
func ScatterSlice[T wire.Scalar](c Comm, vals []T, root int) ([]T, error) {
	return scatterSlice(c, wire.PrimitiveCodec[T](), vals, root)
}

// ScatterTyped is ScatterSlice for a committed composite type
func ScatterTyped[T any](c Comm, typ *wire.Type[T], vals []T, root int) ([]T, error) {
	codec, err := typ.Codec()
	if err != nil {
		return nil, err
	}
	return scatterSlice(c, codec, vals, root)
}

func scatterSlice[T any](c Comm, codec wire.Codec[T], vals []T, root int) ([]T, error) {
	var chunks [][]byte
	var counts []int

	if c.Rank() == root {
		size := c.Size()
		if len(vals)%size != 0 {
			// Release the other ranks, they fail with CountMismatch as well
			_, _ = c.env.fabric.Scatter(c.group, root, nil, nil)
			return nil, common.NewError(common.RetCCountMismatch,
				"%d elements can not be scattered over %d ranks", len(vals), size)
		}
		part := len(vals) / size
		chunks = make([][]byte, size)
		counts = make([]int, size)
		for r := range chunks {
			chunks[r] = encode(codec, vals[r*part:(r+1)*part])
			counts[r] = part
		}
	}

	msg, err := c.env.fabric.Scatter(c.group, root, chunks, counts)
	if err != nil {
		return nil, err
	}
	return decodeSlice(codec, msg)
}

// concat decodes messages and concatenates their elements
func concat[T any](codec wire.Codec[T], msgs []fabric.Message) ([]T, error) {
	total := 0
	for _, msg := range msgs {
		total += msg.Count
	}
	out := make([]T, total)
	pos := 0
	for _, msg := range msgs {
		if err := codec.Decode(msg.Payload, out[pos:pos+msg.Count]); err != nil {
			return nil, err
		}
		pos += msg.Count
	}
	return out, nil
}
