package serializer

import "github.com/ValentinKolb/dMPI/rpc/common"

// IRPCSerializer is the interface for all envelope serializers
type IRPCSerializer interface {
	// Serialize serializes an Envelope into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(env common.Envelope) ([]byte, error)
	// Deserialize deserializes a byte array into an Envelope
	// The payload of the resulting envelope never aliases b, so b may be
	// reused by the caller once Deserialize returns
	Deserialize(b []byte, env *common.Envelope) error
}
