// Package tcp implements the TCP socket based peer transport of dMPI. It
// provides concrete implementations of the base package's connector interfaces
// for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting
// its frame protocol, buffer reuse and dial backoff. See the base package
// documentation for detailed information on the underlying mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector.
//     The socket options of TCPConf and SocketConf (no delay, keep alive,
//     linger, buffer sizes) are applied to every outbound connection.
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// The default server buffer size is set to 512 KB, which provides good performance
// for typical workloads, but can be customized for specific use cases.
package tcp
