// Package unix implements the peer transport of dMPI on top of Unix domain
// sockets. It provides optimized communication for ranks running on the same
// machine.
//
// This package extends the base transport layer with Unix socket-specific
// connectors while inheriting the frame protocol, dial backoff and ordered
// delivery from the base package. Every endpoint is a socket path; a stale
// socket file left behind by an earlier run is removed before listening.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners and accepts connections
//
// Performance Characteristics:
//
//   - Default buffer size: 64 KB, optimized for local communication patterns
//   - Reduced overhead: Eliminates TCP/IP stack processing for better performance
//   - Lower latency: Direct kernel-mediated IPC avoids network subsystem overhead
package unix
