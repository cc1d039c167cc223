// Package http implements an HTTP-based peer transport for dMPI. It provides
// concrete implementations of the transport interfaces defined in the parent
// package, carrying every frame as the body of one POST request.
//
// The package focuses on:
//   - Client-side transport posting frames to the endpoint of the destination rank
//   - Server-side transport receiving frames and passing them to the handler
//   - Sender identification and duplicate detection through the URL path (POST /{source}/{seq})
//
// Key Components:
//
//   - httpClientTransport: Implements IPeerClientTransport. Send only returns
//     once the peer has accepted the frame, so the frames one rank sends to
//     another are delivered in order. Connect polls the health route of every
//     peer until it answers, so the ranks may start in any order.
//
//   - httpServerTransport: Implements IPeerServerTransport, setting up an HTTP
//     server that passes the body of every request to the registered handler.
//
// Endpoints may be given as host:port or as a full http url.
//
// This transport trades throughput for simple integration with existing HTTP
// infrastructure (proxies, load balancers with sticky routing, debugging tools).
package http
