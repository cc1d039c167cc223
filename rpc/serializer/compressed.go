package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/klauspost/compress/zstd"
)

// Marker bytes prepended by the compressed serializer
const (
	markerPlain byte = 0
	markerZstd  byte = 1
)

// NewCompressedSerializer wraps a serializer and compresses every serialized
// envelope of at least minBytes with zstd. Smaller envelopes are sent as they
// are, prefixed by a marker byte so the receiver knows how to read them.
func NewCompressedSerializer(inner IRPCSerializer, minBytes int) (IRPCSerializer, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &compressedSerializerImpl{
		inner:    inner,
		minBytes: minBytes,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// compressedSerializerImpl implements IRPCSerializer on top of another serializer.
// EncodeAll and DecodeAll are safe for concurrent use, so one instance serves all peers.
type compressedSerializerImpl struct {
	inner    IRPCSerializer
	minBytes int
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c *compressedSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	raw, err := c.inner.Serialize(env)
	if err != nil {
		return nil, err
	}

	if len(raw) < c.minBytes {
		out := make([]byte, 0, len(raw)+1)
		out = append(out, markerPlain)
		return append(out, raw...), nil
	}

	out := make([]byte, 1, len(raw)/2+1)
	out[0] = markerZstd
	return c.encoder.EncodeAll(raw, out), nil
}

func (c *compressedSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	if len(b) < 1 {
		return fmt.Errorf("data too short for compression marker")
	}

	switch b[0] {
	case markerPlain:
		return c.inner.Deserialize(b[1:], env)
	case markerZstd:
		raw, err := c.decoder.DecodeAll(b[1:], nil)
		if err != nil {
			return fmt.Errorf("failed to decompress envelope: %w", err)
		}
		return c.inner.Deserialize(raw, env)
	default:
		return fmt.Errorf("unknown compression marker %d", b[0])
	}
}
