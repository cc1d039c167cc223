package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
//
// Layout (big endian):
//   - 1 byte:  frame kind
//   - 1 byte:  flags
//   - 16 byte: context (uint32), src (int32), dst (int32), tag (int32)
//   - 4 byte:  count (only if hasCount)
//   - 8 byte:  seq (only if hasSeq)
//   - 4 byte + N byte: payload (only if hasPayload)
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasCount   byte = 1 << 0
	hasSeq     byte = 1 << 1
	hasPayload byte = 1 << 2
)

const binaryHeaderSize = 18

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(env))

	// Write frame kind
	result[0] = byte(env.Kind)

	// Write the fixed matching fields
	binary.BigEndian.PutUint32(result[2:6], env.Context)
	binary.BigEndian.PutUint32(result[6:10], uint32(env.Src))
	binary.BigEndian.PutUint32(result[10:14], uint32(env.Dst))
	binary.BigEndian.PutUint32(result[14:18], uint32(env.Tag))

	var flags byte = 0
	pos := binaryHeaderSize

	// Handle Count
	if env.Count > 0 {
		flags |= hasCount
		binary.BigEndian.PutUint32(result[pos:pos+4], env.Count)
		pos += 4
	}

	// Handle Seq
	if env.Seq > 0 {
		flags |= hasSeq
		binary.BigEndian.PutUint64(result[pos:pos+8], env.Seq)
		pos += 8
	}

	// Handle Payload
	if env.Payload != nil {
		flags |= hasPayload
		payloadLen := len(env.Payload)

		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(payloadLen))
		pos += 4

		copy(result[pos:pos+payloadLen], env.Payload)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, env *common.Envelope) error {
	// Check minimum size
	if len(data) < binaryHeaderSize {
		return fmt.Errorf("data too short for envelope header")
	}

	env.Kind = common.FrameKind(data[0])
	flags := data[1]

	env.Context = binary.BigEndian.Uint32(data[2:6])
	env.Src = int32(binary.BigEndian.Uint32(data[6:10]))
	env.Dst = int32(binary.BigEndian.Uint32(data[10:14]))
	env.Tag = int32(binary.BigEndian.Uint32(data[14:18]))

	pos := binaryHeaderSize

	// Read Count if present
	if flags&hasCount != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for count")
		}
		env.Count = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	} else {
		env.Count = 0
	}

	// Read Seq if present
	if flags&hasSeq != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for seq")
		}
		env.Seq = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		env.Seq = 0
	}

	// Read Payload if present
	if flags&hasPayload != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for payload length")
		}

		payloadLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if pos+payloadLen > len(data) {
			return fmt.Errorf("data too short for payload data")
		}

		// The payload is always copied, data belongs to the transport's buffer pool
		env.Payload = make([]byte, payloadLen)
		copy(env.Payload, data[pos:pos+payloadLen])
	} else {
		env.Payload = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(env common.Envelope) int {
	size := binaryHeaderSize

	if env.Count > 0 {
		size += 4
	}
	if env.Seq > 0 {
		size += 8
	}
	if env.Payload != nil {
		size += 4 + len(env.Payload)
	}

	return size
}
