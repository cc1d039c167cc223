package serializer

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
)

// DefaultCompressionMinBytes is used if compression is enabled without a threshold
const DefaultCompressionMinBytes = 4 * 1024

// New creates a serializer by name (binary, json, gob)
func New(name string) (IRPCSerializer, error) {
	switch name {
	case "binary", "":
		return NewBinarySerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, common.NewError(common.RetCUnsupportedFormat, "invalid serializer %s", name)
	}
}

// NewFromConfig creates the serializer described by the world configuration,
// wrapped with compression if configured
func NewFromConfig(config common.WorldConfig) (IRPCSerializer, error) {
	s, err := New(config.Serializer)
	if err != nil {
		return nil, err
	}

	switch config.Compression {
	case "", "none":
		return s, nil
	case "zstd":
		minBytes := config.CompressionMinBytes
		if minBytes <= 0 {
			minBytes = DefaultCompressionMinBytes
		}
		return NewCompressedSerializer(s, minBytes)
	default:
		return nil, common.NewError(common.RetCUnsupportedFormat, "invalid compression %s", config.Compression)
	}
}
