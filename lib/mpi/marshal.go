package mpi

import (
	"github.com/ValentinKolb/dMPI/lib/fabric"
	"github.com/ValentinKolb/dMPI/lib/wire"
)

// encode marshals vals into a new buffer
func encode[T any](codec wire.Codec[T], vals []T) []byte {
	return codec.Append(make([]byte, 0, codec.Size(len(vals))), vals)
}

// encoder returns the encode function of an in-flight send. It reads vals
// when the message is written, vals is owned by the send until then.
func encoder[T any](codec wire.Codec[T], vals []T) fabric.EncodeFunc {
	return func() ([]byte, error) {
		return encode(codec, vals), nil
	}
}

// decodeSlice unmarshals all elements of a message
func decodeSlice[T any](codec wire.Codec[T], msg fabric.Message) ([]T, error) {
	out := make([]T, msg.Count)
	if err := codec.Decode(msg.Payload, out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeScalar unmarshals the first element of a message
func decodeScalar[T any](codec wire.Codec[T], msg fabric.Message) (T, error) {
	var out [1]T
	err := codec.Decode(msg.Payload, out[:])
	return out[0], err
}
