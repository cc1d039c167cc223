package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener on the given endpoint and returns it
	Listen(endpoint string, config common.WorldConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.PeerHandleFunc
	config     common.WorldConfig
	listener   net.Listener
	listenerMu sync.Mutex
	conns      *xsync.MapOf[net.Conn, struct{}]
	sources    *xsync.MapOf[uint64, *sourceState]
	bufferPool *sync.Pool
	bufferSize int
	closed     atomic.Bool
	wg         sync.WaitGroup
}

// sourceState tracks the last delivered sequence number of one source rank.
// It is shared by all connections of that rank, a reconnecting peer resends
// its last frame on a new connection.
type sourceState struct {
	mu      sync.Mutex
	lastSeq uint64
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport
// Every accepted connection reads into a buffer of bufferSize bytes taken from a pool.
// Frames larger than the buffer are read into a temporary allocation.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IPeerServerTransport {
	if bufferSize < frameHeaderSize {
		bufferSize = frameHeaderSize
	}

	return &serverTransport{
		connector:  connector,
		bufferSize: bufferSize,
		conns:      xsync.NewMapOf[net.Conn, struct{}](),
		sources:    xsync.NewMapOf[uint64, *sourceState](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPeerServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.PeerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.WorldConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	if config.Rank < 0 || config.Rank >= len(config.Endpoints) {
		return fmt.Errorf("no endpoint for rank %d", config.Rank)
	}
	t.config = config
	t.sources.Clear()
	endpoint := config.Endpoints[config.Rank]

	// Create listener using the connector
	listener, err := t.connector.Listen(endpoint, config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}

	t.listenerMu.Lock()
	if t.closed.Load() {
		t.listenerMu.Unlock()
		listener.Close()
		return nil
	}
	t.listener = listener
	t.listenerMu.Unlock()

	Logger.Infof("Rank %d accepting %s peers on %s", config.Rank, t.connector.GetName(), endpoint)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		// Handle the connection in a goroutine
		t.conns.Store(conn, struct{}{})
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.listenerMu.Lock()
	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	t.listenerMu.Unlock()

	// Drop all inbound connections, the reader goroutines exit on the read error
	t.conns.Range(func(conn net.Conn, _ struct{}) bool {
		conn.Close()
		return true
	})
	t.wg.Wait()

	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection reads the frames of one peer connection
// The handler runs inline, so frames of one connection are delivered in order.
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.wg.Done()
	defer t.conns.Delete(conn)
	defer conn.Close()

	// Get a buffer from the pool for the lifetime of the connection
	buf := t.bufferPool.Get().([]byte)
	defer t.bufferPool.Put(buf)

	for {
		source, seq, data, err := readFrame(conn, buf)

		// Case EOF: Connection closed by peer
		if err == io.EOF || t.closed.Load() {
			Logger.Debugf("Connection from %s closed", conn.RemoteAddr())
			return
		}

		// Case error: log and close connection
		if err != nil {
			Logger.Errorf("Error reading frame: %v", err)
			return
		}

		t.deliver(source, seq, data)
	}
}

// deliver hands a frame to the handler unless the source already delivered a frame
// with the same or a higher sequence number. Frames without a sequence number
// (seq 0) are always delivered.
func (t *serverTransport) deliver(source, seq uint64, data []byte) {
	if seq == 0 {
		t.handler(int(source), data)
		return
	}

	state, _ := t.sources.LoadOrCompute(source, func() *sourceState {
		return &sourceState{}
	})

	// The lock is held across the handler so that a frame delivered over a new
	// connection cannot overtake one still being handled for an old connection
	state.mu.Lock()
	defer state.mu.Unlock()

	if seq <= state.lastSeq {
		Logger.Debugf("Dropping duplicate frame %d from rank %d (last %d)", seq, source, state.lastSeq)
		return
	}
	state.lastSeq = seq
	t.handler(int(source), data)
}
