// Package serializer converts envelopes to and from bytes for the peer
// transports. It defines a common interface and multiple implementations.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format with a fixed 18 byte header
//     (kind, flags, context, source, destination, tag) followed by the optional
//     count, sequence number and payload. Recommended for production use.
//
//   - gobSerializerImpl: Go's gob encoding. Larger frames, no advantage over
//     the binary format, kept for compatibility checks.
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging frames on the wire.
//
//   - compressedSerializerImpl: wraps any of the above and compresses envelopes
//     above a size threshold with zstd (github.com/klauspost/compress).
//
// The payload itself is produced by the wire package; serializers treat it as
// opaque bytes and always copy it on Deserialize, so the transport may reuse
// its read buffers.
//
// Thread Safety:
//
//	All serializer implementations are safe for concurrent use across
//	multiple goroutines without additional synchronization.
package serializer
