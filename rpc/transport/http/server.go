package http

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/peer")

func NewHttpServerTransport() transport.IPeerServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler  transport.PeerHandleFunc
	config   common.WorldConfig
	server   *http.Server
	serverMu sync.Mutex
	closed   bool

	// handlerMu serializes the handler, the http server runs every connection in its own goroutine
	handlerMu sync.Mutex
	lastSeq   []uint64 // Last delivered sequence number per source rank, protected by handlerMu
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPeerServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.PeerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.WorldConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	if config.Rank < 0 || config.Rank >= len(config.Endpoints) {
		return fmt.Errorf("no endpoint for rank %d", config.Rank)
	}
	t.config = config
	t.handlerMu.Lock()
	t.lastSeq = make([]uint64, config.Size)
	t.handlerMu.Unlock()
	addr := listenAddr(config.Endpoints[config.Rank])

	// Create a new HTTP server
	mux := http.NewServeMux()

	// Register handler
	if t.config.LogLevel == "debug" {
		mux.HandleFunc("POST /{source}/{seq}", loggerMiddleware(t.handleFrame))
	} else {
		mux.HandleFunc("POST /{source}/{seq}", t.handleFrame)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.serverMu.Lock()
	if t.closed {
		t.serverMu.Unlock()
		return nil
	}
	t.server = &http.Server{Addr: addr, Handler: mux}
	server := t.server
	t.serverMu.Unlock()

	Logger.Infof("Rank %d accepting http peers on %s", config.Rank, addr)

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (t *httpServerTransport) Close() error {
	t.serverMu.Lock()
	defer t.serverMu.Unlock()

	t.closed = true
	if t.server == nil {
		return nil
	}
	return t.server.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleFrame reads one frame from the request body and passes it to the handler
func (t *httpServerTransport) handleFrame(w http.ResponseWriter, r *http.Request) {
	// Parse source from request
	source, err := strconv.Atoi(r.PathValue("source"))

	// Check if source is valid
	if err != nil || source < 0 || source >= t.config.Size {
		http.Error(w, "Invalid source rank", http.StatusBadRequest)
		return
	}
	seq, err := strconv.ParseUint(r.PathValue("seq"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid sequence number", http.StatusBadRequest)
		return
	}

	// Read request body
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	// The response is only written once the handler returned, the sender
	// waits for it before posting the next frame
	t.handlerMu.Lock()
	if seq == 0 || seq > t.lastSeq[source] {
		if seq != 0 {
			t.lastSeq[source] = seq
		}
		t.handler(source, body)
	} else {
		// A retry of a frame whose response got lost, acknowledge it again
		Logger.Debugf("Dropping duplicate frame %d from rank %d", seq, source)
	}
	t.handlerMu.Unlock()

	w.WriteHeader(http.StatusOK)
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
