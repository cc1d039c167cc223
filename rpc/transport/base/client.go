package base

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/peer")

// DefaultConnectTimeoutSecond is used if the config does not set a connect timeout
const DefaultConnectTimeoutSecond = 30

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.WorldConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// peerConnection represents the outbound connection to a single rank
type peerConnection struct {
	rank     int
	endpoint string
	conn     net.Conn
	connMu   sync.Mutex // Protects the connection
	sendMu   sync.Mutex // Serializes frames to this rank, retries included
	seq      uint64     // Protected by sendMu
	parent   *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector IClientConnector
	config    common.WorldConfig
	peers     []*peerConnection // Indexed by rank, nil for the own rank
	stopping  atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IPeerClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPeerClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.WorldConfig) error {
	if len(config.Endpoints) != config.Size {
		return fmt.Errorf("expected %d endpoints, got %d", config.Size, len(config.Endpoints))
	}

	// Store the config
	t.config = config
	t.stopping.Store(false)

	// Close all existing connections
	t.closeConnections()

	timeoutSec := config.Transport.ConnectTimeoutSecond
	if timeoutSec <= 0 {
		timeoutSec = DefaultConnectTimeoutSecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	peers := make([]*peerConnection, config.Size)

	// Dial all peers concurrently, peers that are not up yet are retried until the deadline
	g, ctx := errgroup.WithContext(ctx)
	for rank, endpoint := range config.Endpoints {
		if rank == config.Rank {
			continue
		}

		peer := &peerConnection{
			rank:     rank,
			endpoint: endpoint,
			parent:   t,
		}
		peers[rank] = peer

		g.Go(func() error {
			if err := peer.dial(ctx); err != nil {
				return fmt.Errorf("rank %d: %w", peer.rank, err)
			}
			Logger.Debugf("Rank %d connected to rank %d at %s", config.Rank, peer.rank, peer.endpoint)
			return nil
		})
	}

	t.peers = peers

	if err := g.Wait(); err != nil {
		t.closeConnections()
		return fmt.Errorf("failed to connect to peers: %w", err)
	}

	Logger.Infof("Rank %d connected to %d peers using %s transport",
		config.Rank, config.Size-1, t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(dest int, frame []byte) error {
	if dest < 0 || dest >= len(t.peers) || t.peers[dest] == nil {
		return fmt.Errorf("no connection to rank %d", dest)
	}
	peer := t.peers[dest]

	// A frame keeps its sequence number across retries, the receiver drops
	// copies that were already delivered before the connection broke
	peer.sendMu.Lock()
	defer peer.sendMu.Unlock()
	peer.seq++
	seq := peer.seq

	// We always try at least once, and up to maxRetries times
	maxRetries := t.config.Transport.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if t.stopping.Load() {
			return fmt.Errorf("transport closed")
		}

		err := peer.write(seq, frame)
		if err == nil {
			return nil
		}

		lastErr = err
		Logger.Debugf("Send attempt %d/%d to rank %d failed: %v", i+1, maxRetries, dest, err)

		if i < maxRetries-1 {
			// Exponential backoff with a small random jitter (+-10%)
			time.Sleep(jitter(backoffMs))
			backoffMs *= 2

			// Try to restore the connection
			if err := peer.reconnect(); err != nil {
				lastErr = err
			}
		}
	}

	// All attempts failed
	return fmt.Errorf("failed to send frame to rank %d after %d attempts: %v", dest, maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	for _, peer := range t.peers {
		if peer == nil {
			continue
		}
		peer.connMu.Lock()
		if peer.conn != nil {
			peer.conn.Close()
			peer.conn = nil
		}
		peer.connMu.Unlock()
	}
}

// jitter returns the backoff duration with a small random jitter (+-10%)
func jitter(backoffMs int) time.Duration {
	j := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
	return time.Duration(j) * time.Millisecond
}

// write sends one frame with the given sequence number over the connection of the peer
func (c *peerConnection) write(seq uint64, frame []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Test if connection is still valid
	if c.conn == nil {
		return fmt.Errorf("connection is closed")
	}

	// Set write timeout
	if c.parent.config.TimeoutSecond > 0 {
		timeout := time.Duration(c.parent.config.TimeoutSecond) * time.Second
		if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}

	return writeFrame(c.conn, uint64(c.parent.config.Rank), seq, frame)
}

// dial connects to the peer, retrying with exponential backoff until ctx is done
func (c *peerConnection) dial(ctx context.Context) error {
	backoffMs := 20
	for {
		err := c.reconnect()
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%v (last error: %v)", ctx.Err(), err)
		case <-time.After(jitter(backoffMs)):
		}

		if backoffMs < 1000 {
			backoffMs *= 2
		}
	}
}

// reconnect establishes or restores a connection to the endpoint
func (c *peerConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	// Connect to the endpoint
	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", c.endpoint, err)
	}

	c.conn = conn
	return nil
}
