package base

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/stretchr/testify/require"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testConnector speaks plain tcp. The first frame written over it reaches the
// server but the write still reports an error, like a connection that breaks
// before the sender learns about the delivery.
type testConnector struct {
	failed atomic.Bool
}

func (c *testConnector) Listen(endpoint string, _ common.WorldConfig) (net.Listener, error) {
	return net.Listen("tcp", endpoint)
}

func (c *testConnector) Connect(endpoint string) (net.Conn, error) {
	conn, err := net.Dial("tcp", endpoint)
	if err != nil {
		return nil, err
	}
	return &lossyConn{Conn: conn, connector: c}, nil
}

func (c *testConnector) UpgradeConnection(net.Conn, common.WorldConfig) error { return nil }

func (c *testConnector) GetName() string { return "test" }

type lossyConn struct {
	net.Conn
	connector *testConnector
	writes    int
}

func (c *lossyConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.writes++
	// header and payload are written separately, fail after the payload of the first frame
	if err == nil && c.writes == 2 && c.connector.failed.CompareAndSwap(false, true) {
		return n, net.ErrClosed
	}
	return n, err
}

// collector records the frames handed to the server handler
type collector struct {
	mu     sync.Mutex
	frames []string
}

func (c *collector) handle(_ int, frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(frame))
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func freeEndpoint(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := l.Addr().String()
	require.NoError(t, l.Close())
	return endpoint
}

func startServer(t *testing.T, connector IServerConnector, config common.WorldConfig) (*collector, func()) {
	frames := &collector{}
	server := NewBaseServerTransport(connector, 64)
	server.RegisterHandler(frames.handle)

	done := make(chan error, 1)
	go func() { done <- server.Listen(config) }()

	// Wait for the listener
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", config.Endpoints[config.Rank])
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 5*time.Second, 10*time.Millisecond)

	return frames, func() {
		require.NoError(t, server.Close())
		require.NoError(t, <-done)
	}
}

// TestResendAfterLostWriteIsDeliveredOnce breaks the connection right after the first
// frame went out. The client resends it over a new connection with the same sequence
// number and the server delivers it only once.
func TestResendAfterLostWriteIsDeliveredOnce(t *testing.T) {
	connector := &testConnector{}
	endpoints := []string{freeEndpoint(t), freeEndpoint(t)}
	transportConfig := common.TransportConfig{ConnectTimeoutSecond: 5, RetryCount: 3}

	frames, stop := startServer(t, connector, common.WorldConfig{Rank: 1, Size: 2, Endpoints: endpoints, Transport: transportConfig})
	defer stop()

	client := NewBaseClientTransport(connector)
	require.NoError(t, client.Connect(common.WorldConfig{Rank: 0, Size: 2, Endpoints: endpoints, Transport: transportConfig}))
	defer client.Close()

	require.NoError(t, client.Send(1, []byte("first")))
	require.True(t, connector.failed.Load())
	require.NoError(t, client.Send(1, []byte("second")))

	require.Eventually(t, func() bool {
		return len(frames.get()) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	// Give a stray duplicate time to show up
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []string{"first", "second"}, frames.get())
}

// TestDuplicateSequenceAcrossConnections writes frames by hand over two connections
// of the same source rank and checks the per source bookkeeping of the server.
func TestDuplicateSequenceAcrossConnections(t *testing.T) {
	endpoints := []string{freeEndpoint(t), freeEndpoint(t), freeEndpoint(t)}
	frames, stop := startServer(t, &testConnector{}, common.WorldConfig{Rank: 0, Size: 3, Endpoints: endpoints})
	defer stop()

	first, err := net.Dial("tcp", endpoints[0])
	require.NoError(t, err)
	defer first.Close()
	second, err := net.Dial("tcp", endpoints[0])
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, writeFrame(first, 1, 1, []byte("a")))
	require.Eventually(t, func() bool { return len(frames.get()) == 1 }, 5*time.Second, 10*time.Millisecond)

	// same sequence number over a new connection is a resend
	require.NoError(t, writeFrame(second, 1, 1, []byte("a")))
	require.NoError(t, writeFrame(second, 1, 2, []byte("b")))

	// another source has its own numbering
	require.NoError(t, writeFrame(second, 2, 1, []byte("c")))

	// frames without a sequence number are never dropped
	require.NoError(t, writeFrame(second, 2, 0, []byte("d")))
	require.NoError(t, writeFrame(second, 2, 0, []byte("d")))

	require.Eventually(t, func() bool { return len(frames.get()) >= 5 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []string{"a", "b", "c", "d", "d"}, frames.get())
}
