package mpi

import (
	"github.com/ValentinKolb/dMPI/lib/fabric"
	"github.com/ValentinKolb/dMPI/lib/wire"
)

// Wildcards for receives and probes
const (
	AnySource = fabric.AnySource
	AnyTag    = fabric.AnyTag
)

// MaxTag is the largest tag a message can carry
const MaxTag = fabric.MaxTag

// --------------------------------------------------------------------------
// Blocking send
// --------------------------------------------------------------------------

// Send sends a single value to dest. It returns once value was handed to the
// transport.
func Send[T wire.Scalar](c Comm, value T, dest, tag int) error {
	codec := wire.PrimitiveCodec[T]()
	return c.env.fabric.Send(c.group, dest, tag, 1, encoder(codec, []T{value}))
}

// SendSlice sends vals as one message to dest. The receiver does not need to
// know len(vals) upfront, see RecvSlice.
func SendSlice[T wire.Scalar](c Comm, vals []T, dest, tag int) error {
	codec := wire.PrimitiveCodec[T]()
	return c.env.fabric.Send(c.group, dest, tag, len(vals), encoder(codec, vals))
}

// SendTyped sends vals laid out by the committed type typ
func SendTyped[T any](c Comm, typ *wire.Type[T], vals []T, dest, tag int) error {
	codec, err := typ.Codec()
	if err != nil {
		return err
	}
	return c.env.fabric.Send(c.group, dest, tag, len(vals), encoder(codec, vals))
}

// --------------------------------------------------------------------------
// Blocking receive
// --------------------------------------------------------------------------

// Recv receives a single value from source. source may be AnySource and tag
// may be AnyTag; the status tells which message was received.
func Recv[T wire.Scalar](c Comm, source, tag int) (T, Status, error) {
	var zero T
	msg, err := c.env.fabric.Recv(c.group, source, tag)
	if err != nil {
		return zero, Status{}, err
	}
	v, err := decodeScalar(wire.PrimitiveCodec[T](), msg)
	return v, statusOf(msg), err
}

// RecvSlice receives a message of unknown length from source. It probes for
// the message first and allocates exactly the announced number of elements.
func RecvSlice[T wire.Scalar](c Comm, source, tag int) ([]T, Status, error) {
	return recvSized(c, wire.PrimitiveCodec[T](), source, tag)
}

// RecvTyped receives a message of unknown length laid out by typ
func RecvTyped[T any](c Comm, typ *wire.Type[T], source, tag int) ([]T, Status, error) {
	codec, err := typ.Codec()
	if err != nil {
		return nil, Status{}, err
	}
	return recvSized(c, codec, source, tag)
}

// recvSized runs the probe then receive protocol
func recvSized[T any](c Comm, codec wire.Codec[T], source, tag int) ([]T, Status, error) {
	f := c.env.fabric

	probed, err := f.Probe(c.group, source, tag)
	if err != nil {
		return nil, Status{}, err
	}
	out := make([]T, probed.Count)

	// Receive exactly the probed message, even if source or tag were wildcards
	msg, err := f.Recv(c.group, probed.Source, probed.Tag)
	if err != nil {
		return nil, Status{}, err
	}
	if err := codec.Decode(msg.Payload, out); err != nil {
		return nil, statusOf(msg), err
	}
	return out, statusOf(msg), nil
}

// --------------------------------------------------------------------------
// Non-blocking send
// --------------------------------------------------------------------------

// Isend starts sending a single value to dest
func Isend[T wire.Scalar](c Comm, value T, dest, tag int) *Request[T] {
	codec := wire.PrimitiveCodec[T]()
	op := c.env.fabric.Isend(c.group, dest, tag, 1, encoder(codec, []T{value}))
	return newSendRequest(c, op, value, Status{Source: dest, Tag: tag, Count: 1})
}

// IsendSlice starts sending vals to dest. vals belongs to the request until
// Wait returned: it is read while the message is written.
func IsendSlice[T wire.Scalar](c Comm, vals []T, dest, tag int) *Request[[]T] {
	codec := wire.PrimitiveCodec[T]()
	op := c.env.fabric.Isend(c.group, dest, tag, len(vals), encoder(codec, vals))
	return newSendRequest(c, op, vals, Status{Source: dest, Tag: tag, Count: len(vals)})
}

// IsendTyped starts sending vals laid out by typ, see IsendSlice
func IsendTyped[T any](c Comm, typ *wire.Type[T], vals []T, dest, tag int) *Request[[]T] {
	codec, err := typ.Codec()
	if err != nil {
		return failedRequest[[]T](err)
	}
	op := c.env.fabric.Isend(c.group, dest, tag, len(vals), encoder(codec, vals))
	return newSendRequest(c, op, vals, Status{Source: dest, Tag: tag, Count: len(vals)})
}

// --------------------------------------------------------------------------
// Non-blocking receive
// --------------------------------------------------------------------------

// Irecv posts a receive of a single value. The value is available from
// Result once Wait returned.
func Irecv[T wire.Scalar](c Comm, source, tag int) *Request[T] {
	codec := wire.PrimitiveCodec[T]()
	op := c.env.fabric.Irecv(c.group, source, tag)
	return newRecvRequest(c, op, func(msg fabric.Message) (T, error) {
		return decodeScalar(codec, msg)
	})
}

// IrecvSlice posts a receive of a message of any length
func IrecvSlice[T wire.Scalar](c Comm, source, tag int) *Request[[]T] {
	codec := wire.PrimitiveCodec[T]()
	op := c.env.fabric.Irecv(c.group, source, tag)
	return newRecvRequest(c, op, func(msg fabric.Message) ([]T, error) {
		return decodeSlice(codec, msg)
	})
}

// IrecvTyped posts a receive of a message laid out by typ
func IrecvTyped[T any](c Comm, typ *wire.Type[T], source, tag int) *Request[[]T] {
	codec, err := typ.Codec()
	if err != nil {
		return failedRequest[[]T](err)
	}
	op := c.env.fabric.Irecv(c.group, source, tag)
	return newRecvRequest(c, op, func(msg fabric.Message) ([]T, error) {
		return decodeSlice(codec, msg)
	})
}

// --------------------------------------------------------------------------
// Probe
// --------------------------------------------------------------------------

// Probe blocks until a message matching (source, tag) arrived and returns its
// status without receiving it
func Probe(c Comm, source, tag int) (Status, error) {
	msg, err := c.env.fabric.Probe(c.group, source, tag)
	if err != nil {
		return Status{}, err
	}
	return statusOf(msg), nil
}

// Iprobe is the non-blocking variant of Probe, it reports whether a matching
// message arrived
func Iprobe(c Comm, source, tag int) (Status, bool, error) {
	msg, ok, err := c.env.fabric.Iprobe(c.group, source, tag)
	if err != nil || !ok {
		return Status{}, false, err
	}
	return statusOf(msg), true, nil
}

func statusOf(msg fabric.Message) Status {
	return Status{Source: msg.Source, Tag: msg.Tag, Count: msg.Count}
}
