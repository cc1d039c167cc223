// Package transport defines the interfaces and abstractions for moving frames
// between the ranks of a dMPI world. It provides a common contract that all
// transport implementations must fulfill, so the message fabric stays
// independent of the medium that carries its bytes.
//
// The package focuses on:
//   - Defining clear interfaces for the inbound and outbound half of the peer mesh
//   - Rank based addressing (every rank is reachable under its index in the endpoint list)
//   - Enabling multiple transport implementations (TCP, Unix sockets, HTTP, in-memory)
//
// Key Components:
//
//   - IPeerClientTransport: Interface for the outbound side that connects to
//     every peer and sends frames addressed by rank.
//
//   - IPeerServerTransport: Interface for the inbound side that accepts frames
//     from peers and passes them to the registered handler.
//
//   - PeerHandleFunc: Function type for frame handling callbacks.
//
// Ordering:
//
//	Every implementation delivers the frames of one sender in the order that
//	sender wrote them. The fabric relies on this to provide ordered
//	(source, tag, communicator) matching.
package transport
