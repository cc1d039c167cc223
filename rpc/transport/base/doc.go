// Package base provides a foundation for the stream based peer transports of
// dMPI, implementing the peer mesh independent of the specific network
// protocol (TCP, Unix sockets). It serves as a base layer that is extended
// with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - One outbound connection per peer rank, dialed with backoff at startup
//   - Frame-based message protocol carrying the source rank and a sequence number
//   - In-order delivery of the frames of one connection
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that keeps one connection per
//     peer rank. Connect dials every peer concurrently and retries peers that are
//     not listening yet, so the ranks of a world may start in any order.
//
//   - serverTransport: Core server implementation that accepts connections and
//     passes every frame to the registered handler together with its source rank.
//     A resent frame reuses its sequence number, the server drops numbers it has
//     already delivered for that source rank, whichever connection they arrive on.
//
// Frame Format:
//
//	8 bytes source rank | 8 bytes sequence number | 4 bytes length | payload
//	(all integers big endian)
//
// Performance Optimizations:
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse read buffers, reducing
//     GC pressure and memory allocations.
//
//   - Frame Batching: The transport uses net.Buffers to reduce syscalls when
//     writing frames, combining header and payload into a single write operation.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to one peer are serialized by a
//	mutex, while the server creates a dedicated goroutine for each connection.
//	The handler is called inline by that goroutine, which is what keeps the frames
//	of one peer in order.
package base
