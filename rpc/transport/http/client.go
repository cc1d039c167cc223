package http

import (
	"bytes"
	"context"
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	"github.com/ValentinKolb/dMPI/rpc/transport/base"
	"golang.org/x/sync/errgroup"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func NewHttpClientTransport() transport.IPeerClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	state atomic.Pointer[clientState] // nil until connected and after Close
}

// clientState is replaced as a whole on Connect and Close, so Send never sees a half closed transport
type clientState struct {
	peers      []*httpPeer // Indexed by rank
	source     int
	client     *http.Client
	retryCount int
}

// httpPeer is the outbound side of a single rank
type httpPeer struct {
	url    string
	sendMu sync.Mutex // Serializes frames to this rank, retries included
	seq    uint64     // Protected by sendMu
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPeerClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.WorldConfig) error {
	if len(config.Endpoints) != config.Size {
		return fmt.Errorf("expected %d endpoints, got %d", config.Size, len(config.Endpoints))
	}

	// Build the base url of every peer
	peers := make([]*httpPeer, len(config.Endpoints))
	for i, endpoint := range config.Endpoints {
		peers[i] = &httpPeer{url: baseURL(endpoint)}
	}

	// Create client with default transport
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 2,
		},
	}
	if config.TimeoutSecond > 0 {
		client.Timeout = time.Duration(config.TimeoutSecond) * time.Second
	}

	state := &clientState{
		peers:      peers,
		source:     config.Rank,
		client:     client,
		retryCount: config.Transport.RetryCount,
	}
	if state.retryCount < 1 {
		state.retryCount = 1
	}

	timeoutSec := config.Transport.ConnectTimeoutSecond
	if timeoutSec <= 0 {
		timeoutSec = base.DefaultConnectTimeoutSecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	// Wait until every peer serves requests, the ranks of a world may start in any order
	g, ctx := errgroup.WithContext(ctx)
	for rank := range peers {
		if rank == config.Rank {
			continue
		}
		g.Go(func() error {
			return state.awaitPeer(ctx, rank)
		})
	}
	if err := g.Wait(); err != nil {
		client.CloseIdleConnections()
		return fmt.Errorf("failed to reach peers: %w", err)
	}

	if old := t.state.Swap(state); old != nil {
		old.client.CloseIdleConnections()
	}

	Logger.Infof("Rank %d reached %d peers using http transport", config.Rank, config.Size-1)
	return nil
}

// Send posts the frame to the peer and waits for it to be accepted.
// Frames to the same peer are therefore delivered one after another.
// A frame keeps its sequence number across retries, the receiver drops
// copies it already delivered.
func (t *httpClientTransport) Send(dest int, frame []byte) error {
	state := t.state.Load()
	if state == nil {
		return fmt.Errorf("http transport not connected")
	}
	if dest < 0 || dest >= len(state.peers) {
		return fmt.Errorf("no endpoint for rank %d", dest)
	}
	peer := state.peers[dest]

	peer.sendMu.Lock()
	defer peer.sendMu.Unlock()
	peer.seq++

	// Create the complete URL
	requestURL := fmt.Sprintf("%s/%d/%d", peer.url, state.source, peer.seq)

	var err error
	backoffMs := 50
	for i := 0; i < state.retryCount; i++ {
		if t.state.Load() != state {
			return fmt.Errorf("transport closed")
		}
		if err = state.post(requestURL, frame); err == nil {
			return nil
		}
		if i < state.retryCount-1 {
			time.Sleep(time.Duration(backoffMs) * time.Millisecond)
			backoffMs *= 2
		}
	}
	return err
}

func (t *httpClientTransport) Close() error {
	if state := t.state.Swap(nil); state != nil {
		state.client.CloseIdleConnections()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// post sends a single frame
func (s *clientState) post(requestURL string, frame []byte) error {
	httpResponse, err := s.client.Post(requestURL, "application/octet-stream", bytes.NewReader(frame))
	if err != nil {
		return err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Drain the body so the connection can be reused
	_, _ = io.Copy(io.Discard, httpResponse.Body)

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return fmt.Errorf("http error: %s", httpResponse.Status)
	}
	return nil
}

// awaitPeer polls the health route of a peer until it answers or ctx is done
func (s *clientState) awaitPeer(ctx context.Context, rank int) error {
	healthURL := s.peers[rank].url + "/health"
	backoffMs := 20
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := s.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("http error: %s", resp.Status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rank %d: %v (last error: %v)", rank, ctx.Err(), err)
		case <-time.After(time.Duration(backoffMs) * time.Millisecond):
		}
		if backoffMs < 1000 {
			backoffMs *= 2
		}
	}
}

// baseURL turns an endpoint (host:port or url) into a base url without trailing slash
func baseURL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

// listenAddr strips the scheme of an endpoint
func listenAddr(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}
