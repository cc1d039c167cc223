package mem

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	"github.com/ValentinKolb/dMPI/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/peer")

// Hub connects the ranks of one in-process world
// Every rank gets its server and client transport from the same hub.
type Hub struct {
	size  int
	peers []*peer
}

// peer is the inbound side of one rank
type peer struct {
	handler transport.PeerHandleFunc
	mu      sync.RWMutex // Held while the handler runs, so Close waits for running handlers
	closed  bool
	ready   chan struct{} // Closed by Listen
	done    chan struct{} // Closed by Close
	once    sync.Once
}

// NewHub creates a hub for a world of the given size
func NewHub(size int) *Hub {
	peers := make([]*peer, size)
	for i := range peers {
		peers[i] = &peer{
			ready: make(chan struct{}),
			done:  make(chan struct{}),
		}
	}
	return &Hub{size: size, peers: peers}
}

// Size returns the size of the world served by the hub
func (h *Hub) Size() int {
	return h.size
}

// Server returns the server transport of the given rank
func (h *Hub) Server(rank int) transport.IPeerServerTransport {
	return &serverTransport{hub: h, rank: rank}
}

// Client returns the client transport of the given rank
func (h *Hub) Client(rank int) transport.IPeerClientTransport {
	return &clientTransport{hub: h, rank: rank}
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

type serverTransport struct {
	hub     *Hub
	rank    int
	handler transport.PeerHandleFunc
}

func (t *serverTransport) RegisterHandler(handler transport.PeerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.WorldConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	if t.rank < 0 || t.rank >= t.hub.size {
		return fmt.Errorf("rank %d outside of hub [0, %d)", t.rank, t.hub.size)
	}

	p := t.hub.peers[t.rank]
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.handler = t.handler
	p.mu.Unlock()

	close(p.ready)
	Logger.Debugf("Rank %d listening on in-memory hub", t.rank)

	<-p.done
	return nil
}

func (t *serverTransport) Close() error {
	if t.rank < 0 || t.rank >= t.hub.size {
		return nil
	}
	p := t.hub.peers[t.rank]
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.handler = nil
		p.mu.Unlock()
		close(p.done)
	})
	return nil
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

type clientTransport struct {
	hub  *Hub
	rank int
}

// Connect waits until every other rank of the hub is listening
func (t *clientTransport) Connect(config common.WorldConfig) error {
	if config.Size != t.hub.size {
		return fmt.Errorf("world size %d does not match hub size %d", config.Size, t.hub.size)
	}

	timeoutSec := config.Transport.ConnectTimeoutSecond
	if timeoutSec <= 0 {
		timeoutSec = base.DefaultConnectTimeoutSecond
	}
	timeout := time.After(time.Duration(timeoutSec) * time.Second)

	for rank, p := range t.hub.peers {
		if rank == t.rank {
			continue
		}
		select {
		case <-p.ready:
		case <-p.done:
			return fmt.Errorf("rank %d closed before it was reachable", rank)
		case <-timeout:
			return fmt.Errorf("rank %d not reachable after %d sec", rank, timeoutSec)
		}
	}
	return nil
}

// Send calls the handler of the destination in the goroutine of the caller
func (t *clientTransport) Send(dest int, frame []byte) error {
	if dest < 0 || dest >= t.hub.size {
		return fmt.Errorf("no rank %d in hub", dest)
	}
	p := t.hub.peers[dest]

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || p.handler == nil {
		return fmt.Errorf("rank %d is not listening", dest)
	}
	p.handler(t.rank, frame)
	return nil
}

func (t *clientTransport) Close() error {
	return nil
}
