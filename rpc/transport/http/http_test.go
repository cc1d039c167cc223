package http

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"
)

func freeEndpoint(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := l.Addr().String()
	require.NoError(t, l.Close())
	return endpoint
}

type collector struct {
	mu     sync.Mutex
	frames []string
}

func (c *collector) handle(source int, frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, fmt.Sprintf("%d:%s", source, frame))
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func startServer(t *testing.T, config common.WorldConfig) *collector {
	frames := &collector{}
	server := NewHttpServerTransport()
	server.RegisterHandler(frames.handle)

	done := make(chan error, 1)
	go func() { done <- server.Listen(config) }()
	t.Cleanup(func() {
		require.NoError(t, server.Close())
		require.NoError(t, <-done)
	})

	healthURL := baseURL(config.Endpoints[config.Rank]) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	return frames
}

func post(t *testing.T, url string, body string) int {
	resp, err := http.Post(url, "application/octet-stream", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

// TestResentFrameIsAcknowledgedButDeliveredOnce posts a frame twice with the same
// sequence number, as a client does when the first response got lost.
func TestResentFrameIsAcknowledgedButDeliveredOnce(t *testing.T) {
	endpoints := []string{freeEndpoint(t), freeEndpoint(t), freeEndpoint(t)}
	frames := startServer(t, common.WorldConfig{Rank: 0, Size: 3, Endpoints: endpoints})
	url := baseURL(endpoints[0])

	require.Equal(t, http.StatusOK, post(t, url+"/1/1", "a"))
	require.Equal(t, http.StatusOK, post(t, url+"/1/1", "a"))
	require.Equal(t, http.StatusOK, post(t, url+"/1/2", "b"))
	require.Equal(t, http.StatusOK, post(t, url+"/2/1", "c"))

	require.Equal(t, http.StatusBadRequest, post(t, url+"/7/1", "x"))
	require.Equal(t, http.StatusBadRequest, post(t, url+"/1/next", "x"))

	require.Equal(t, []string{"1:a", "1:b", "2:c"}, frames.get())
}

// TestCloseWhileSending closes the client while other goroutines keep sending.
// Sends either succeed or report the closed transport.
func TestCloseWhileSending(t *testing.T) {
	endpoints := []string{freeEndpoint(t), freeEndpoint(t)}
	transportConfig := common.TransportConfig{ConnectTimeoutSecond: 5, RetryCount: 1}
	frames := startServer(t, common.WorldConfig{Rank: 1, Size: 2, Endpoints: endpoints, Transport: transportConfig})

	client := NewHttpClientTransport()
	require.NoError(t, client.Connect(common.WorldConfig{Rank: 0, Size: 2, Endpoints: endpoints, Transport: transportConfig}))
	require.NoError(t, client.Send(1, []byte("x")))

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for j := 0; j < 20; j++ {
				_ = client.Send(1, []byte("y"))
			}
			return nil
		})
	}
	g.Go(func() error {
		time.Sleep(5 * time.Millisecond)
		return client.Close()
	})
	require.NoError(t, g.Wait())

	require.Error(t, client.Send(1, []byte("z")))
	require.NoError(t, client.Close())
	require.NotContains(t, frames.get(), "0:z")
	require.Equal(t, "0:x", frames.get()[0])
}
