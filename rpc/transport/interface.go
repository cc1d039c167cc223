package transport

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// PeerHandleFunc is a function type that handles incoming frames
// This function is called by a server transport layer when a frame is received.
// It takes the rank of the sending peer and the raw frame as parameters.
// The frame is only valid for the duration of the call, the transport may
// reuse the underlying buffer once the handler returns.
// Frames from the same peer are passed to the handler in the order they were sent.
type PeerHandleFunc func(source int, frame []byte)

// IPeerServerTransport is the inbound half of the peer mesh
type IPeerServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler must be registered before Listen is called
	RegisterHandler(handler PeerHandleFunc)
	// Listen starts accepting frames on the endpoint of config.Rank
	// It blocks until Close is called or the listener fails
	Listen(config common.WorldConfig) error
	// Close stops the listener and drops all inbound connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IPeerClientTransport is the outbound half of the peer mesh
type IPeerClientTransport interface {
	// Connect establishes a connection to every other rank of the world
	// Peers that are not up yet are retried until the connect timeout expires
	Connect(config common.WorldConfig) error
	// Send delivers a frame to the rank dest
	// Send is safe for concurrent use, but frames are only guaranteed to
	// arrive in order if the caller serializes sends to the same destination
	Send(dest int, frame []byte) error
	// Close closes all outbound connections
	Close() error
}
