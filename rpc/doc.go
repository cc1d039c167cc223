// Package rpc provides the peer-to-peer frame layer underneath dMPI. It moves
// opaque frames between the ranks of a world and knows nothing about tags,
// contexts or matching; that is the job of lib/fabric.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the layers,
//     including the Envelope frame format, the world configuration, the
//     error codes and logging.
//
//   - transport: Peer communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP and an in-process hub for tests and local worlds).
//
//   - serializer: Envelope serialization with multiple format options (Binary, JSON, GOB),
//     optionally wrapped with zstd compression.
package rpc
