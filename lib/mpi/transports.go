package mpi

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	"github.com/ValentinKolb/dMPI/rpc/transport/http"
	"github.com/ValentinKolb/dMPI/rpc/transport/tcp"
	"github.com/ValentinKolb/dMPI/rpc/transport/unix"
)

// NewTransports creates the peer transports of a socket based transport by
// name (tcp, unix, http). The in-memory transport connects ranks of the same
// process and is passed with WithTransports instead.
func NewTransports(config common.WorldConfig) (transport.IPeerServerTransport, transport.IPeerClientTransport, error) {
	bufferSize := config.Transport.ReadBufferSize

	switch config.Transport.Name {
	case "tcp", "":
		if bufferSize > 0 {
			return tcp.NewTCPServerTransport(bufferSize), tcp.NewTCPClientTransport(), nil
		}
		return tcp.NewTCPDefaultServerTransport(), tcp.NewTCPClientTransport(), nil
	case "unix":
		if bufferSize > 0 {
			return unix.NewUnixServerTransport(bufferSize), unix.NewUnixClientTransport(), nil
		}
		return unix.NewUnixDefaultServerTransport(), unix.NewUnixClientTransport(), nil
	case "http":
		return http.NewHttpServerTransport(), http.NewHttpClientTransport(), nil
	case "mem":
		return nil, nil, common.NewError(common.RetCInvalidConfig, "the mem transport needs a hub, pass it with WithTransports")
	default:
		return nil, nil, common.NewError(common.RetCUnsupportedFormat, "invalid transport %s", config.Transport.Name)
	}
}
