package transport_test

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	"github.com/ValentinKolb/dMPI/rpc/transport/http"
	"github.com/ValentinKolb/dMPI/rpc/transport/mem"
	"github.com/ValentinKolb/dMPI/rpc/transport/tcp"
	"github.com/ValentinKolb/dMPI/rpc/transport/unix"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// mesh holds the transports of every rank of a test world
type mesh struct {
	servers []transport.IPeerServerTransport
	clients []transport.IPeerClientTransport
}

type meshFactory func(t *testing.T, size int) (mesh, []string)

// freePorts returns n tcp endpoints on localhost that are free right now
func freePorts(t *testing.T, n int) []string {
	endpoints := make([]string, n)
	for i := range endpoints {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		endpoints[i] = l.Addr().String()
		require.NoError(t, l.Close())
	}
	return endpoints
}

var meshFactories = map[string]meshFactory{
	"mem": func(t *testing.T, size int) (mesh, []string) {
		hub := mem.NewHub(size)
		m := mesh{}
		for i := 0; i < size; i++ {
			m.servers = append(m.servers, hub.Server(i))
			m.clients = append(m.clients, hub.Client(i))
		}
		return m, nil
	},
	"tcp": func(t *testing.T, size int) (mesh, []string) {
		m := mesh{}
		for i := 0; i < size; i++ {
			m.servers = append(m.servers, tcp.NewTCPDefaultServerTransport())
			m.clients = append(m.clients, tcp.NewTCPClientTransport())
		}
		return m, freePorts(t, size)
	},
	"unix": func(t *testing.T, size int) (mesh, []string) {
		dir := t.TempDir()
		m := mesh{}
		endpoints := make([]string, size)
		for i := 0; i < size; i++ {
			m.servers = append(m.servers, unix.NewUnixDefaultServerTransport())
			m.clients = append(m.clients, unix.NewUnixClientTransport())
			endpoints[i] = filepath.Join(dir, fmt.Sprintf("rank-%d.sock", i))
		}
		return m, endpoints
	},
	"http": func(t *testing.T, size int) (mesh, []string) {
		m := mesh{}
		for i := 0; i < size; i++ {
			m.servers = append(m.servers, http.NewHttpServerTransport())
			m.clients = append(m.clients, http.NewHttpClientTransport())
		}
		return m, freePorts(t, size)
	},
}

// received collects the frames one rank got, per source
type received struct {
	mu     sync.Mutex
	frames map[int][]uint64
}

func (r *received) handle(source int, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[source] = append(r.frames[source], binary.LittleEndian.Uint64(frame))
}

func (r *received) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		n += len(f)
	}
	return n
}

// TestTransportsDeliverInOrder starts a small world on every transport, lets every
// rank send a numbered sequence of frames to every other rank and checks that the
// frames arrive complete, from the right source and in order.
func TestTransportsDeliverInOrder(t *testing.T) {
	const size = 3
	const frames = 50

	for name, factory := range meshFactories {
		t.Run(name, func(t *testing.T) {
			m, endpoints := factory(t, size)

			results := make([]*received, size)
			listenErrs := make(chan error, size)
			for rank := 0; rank < size; rank++ {
				results[rank] = &received{frames: map[int][]uint64{}}
				m.servers[rank].RegisterHandler(results[rank].handle)

				config := common.WorldConfig{
					Rank:      rank,
					Size:      size,
					Endpoints: endpoints,
					Transport: common.TransportConfig{Name: name, ConnectTimeoutSecond: 10, RetryCount: 3},
				}
				go func(server transport.IPeerServerTransport) {
					listenErrs <- server.Listen(config)
				}(m.servers[rank])
			}

			// Connect and send from every rank concurrently
			var g errgroup.Group
			for rank := 0; rank < size; rank++ {
				g.Go(func() error {
					config := common.WorldConfig{
						Rank:      rank,
						Size:      size,
						Endpoints: endpoints,
						Transport: common.TransportConfig{Name: name, ConnectTimeoutSecond: 10, RetryCount: 3},
					}
					if err := m.clients[rank].Connect(config); err != nil {
						return err
					}
					for dest := 0; dest < size; dest++ {
						if dest == rank {
							continue
						}
						for i := uint64(1); i <= frames; i++ {
							frame := make([]byte, 8)
							binary.LittleEndian.PutUint64(frame, i)
							if err := m.clients[rank].Send(dest, frame); err != nil {
								return err
							}
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			// Wait for the last frames to be handled
			expected := (size - 1) * frames
			require.Eventually(t, func() bool {
				for _, r := range results {
					if r.count() != expected {
						return false
					}
				}
				return true
			}, 10*time.Second, 10*time.Millisecond)

			for rank, r := range results {
				for source := 0; source < size; source++ {
					if source == rank {
						require.Empty(t, r.frames[source])
						continue
					}
					require.Len(t, r.frames[source], frames, "rank %d from %d", rank, source)
					for i, v := range r.frames[source] {
						require.Equal(t, uint64(i+1), v, "rank %d from %d out of order", rank, source)
					}
				}
			}

			for rank := 0; rank < size; rank++ {
				require.NoError(t, m.clients[rank].Close())
				require.NoError(t, m.servers[rank].Close())
			}
			for rank := 0; rank < size; rank++ {
				select {
				case err := <-listenErrs:
					require.NoError(t, err)
				case <-time.After(5 * time.Second):
					t.Fatalf("listen did not return after close")
				}
			}
		})
	}
}

// TestSendToUnknownRank checks that sends outside the world fail
func TestSendToUnknownRank(t *testing.T) {
	hub := mem.NewHub(2)
	client := hub.Client(0)
	require.Error(t, client.Send(5, []byte{1}))
	require.Error(t, client.Send(-1, []byte{1}))

	// rank 1 never listened
	require.Error(t, client.Send(1, []byte{1}))
}
