package mpi

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dMPI/lib/fabric"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/serializer"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	vm "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
	"net/http"
	"sync"
	"time"
)

var Logger = logger.GetLogger("mpi")

// Env is the membership of the calling process in its world. It is acquired
// once with Init and released with Finalize; the release is also registered
// with atexit, so atexit.Exit releases it on every exit path.
type Env struct {
	config  common.WorldConfig
	fabric  *fabric.Fabric
	metrics *http.Server
	onAbort func(code int)

	exitHandler atexit.HandlerID
	releaseOnce sync.Once
	releaseErr  error
}

// Option configures Init
type Option func(*options)

type options struct {
	server     transport.IPeerServerTransport
	client     transport.IPeerClientTransport
	serializer serializer.IRPCSerializer
	onAbort    func(code int)
}

// WithTransports sets the peer transports instead of creating them from the config
func WithTransports(server transport.IPeerServerTransport, client transport.IPeerClientTransport) Option {
	return func(o *options) {
		o.server = server
		o.client = client
	}
}

// WithSerializer sets the envelope serializer instead of creating it from the config
func WithSerializer(s serializer.IRPCSerializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

// WithAbortHandler replaces the default reaction to an abort, which is
// atexit.Exit with the abort code. The handler runs after the environment was
// released.
func WithAbortHandler(handler func(code int)) Option {
	return func(o *options) {
		o.onAbort = handler
	}
}

// Init joins the world described by config. It returns once every rank of the
// world called Init.
func Init(config common.WorldConfig, opts ...Option) (*Env, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(config); err != nil {
		return nil, err
	}
	if config.JobID == "" {
		config.JobID = xid.New().String()
	}

	o := options{onAbort: atexit.Exit}
	for _, opt := range opts {
		opt(&o)
	}

	if o.server == nil || o.client == nil {
		server, client, err := NewTransports(config)
		if err != nil {
			return nil, err
		}
		o.server, o.client = server, client
	}
	if o.serializer == nil {
		s, err := serializer.NewFromConfig(config)
		if err != nil {
			return nil, err
		}
		o.serializer = s
	}

	env := &Env{
		config:  config,
		onAbort: o.onAbort,
	}
	env.fabric = fabric.New(config, o.server, o.client, o.serializer)
	env.fabric.SetAbortHandler(env.handleAbort)

	if err := env.fabric.Start(); err != nil {
		return nil, err
	}
	if config.MetricsEndpoint != "" {
		env.serveMetrics(config.MetricsEndpoint)
	}

	// Every rank is reachable once every rank passed Start
	if err := env.fabric.Barrier(env.fabric.World()); err != nil {
		env.release(false)
		return nil, fmt.Errorf("rank %d failed to synchronize with the world: %w", config.Rank, err)
	}

	env.exitHandler = atexit.Register(func() {
		env.release(false)
	})

	if config.Rank == 0 {
		Logger.Infof("World initialized:\n%s", config.String())
	}
	return env, nil
}

// Finalize leaves the world. It synchronizes with every other rank first and
// can be called more than once; only the first call has an effect. Every
// operation started after Finalize fails with ErrFinalized.
func (e *Env) Finalize() error {
	_ = e.exitHandler.Cancel()
	return e.release(true)
}

// Abort terminates every member of c. The ranks of c stop with the abort
// handler (atexit.Exit(code) by default); with the default handler Abort does
// not return.
func (e *Env) Abort(c Comm, code int) {
	e.fabric.Abort(c.group, code)
}

// World returns the communicator of all ranks
func (e *Env) World() Comm {
	return e.Comm(World)
}

// Self returns the communicator containing only the calling process
func (e *Env) Self() Comm {
	return e.Comm(Self)
}

// Comm resolves a scope to its communicator
func (e *Env) Comm(scope Scope) Comm {
	switch scope {
	case Self:
		return Comm{env: e, scope: scope, group: e.fabric.Self()}
	default:
		return Comm{env: e, scope: World, group: e.fabric.World()}
	}
}

// Config returns the world configuration
func (e *Env) Config() common.WorldConfig {
	return e.config
}

// Stats returns the traffic statistics of this rank
func (e *Env) Stats() fabric.StatsSnapshot {
	return e.fabric.Stats().Snapshot()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// release tears the environment down once
func (e *Env) release(graceful bool) error {
	e.releaseOnce.Do(func() {
		if e.metrics != nil {
			_ = e.metrics.Close()
		}
		e.releaseErr = e.fabric.Close(graceful)
		if e.releaseErr != nil {
			Logger.Warningf("Rank %d left the world with error: %v", e.config.Rank, e.releaseErr)
		} else {
			Logger.Debugf("Rank %d finalized", e.config.Rank)
		}
	})
	return e.releaseErr
}

// handleAbort is called by the fabric once the world is aborted
func (e *Env) handleAbort(code int) {
	_ = e.exitHandler.Cancel()
	e.release(false)
	if e.onAbort != nil {
		e.onAbort(code)
	}
}

// serveMetrics exposes the process metrics in Prometheus format
func (e *Env) serveMetrics(endpoint string) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		vm.WritePrometheus(w, true)
	})

	e.metrics = &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := e.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics endpoint %s failed: %v", endpoint, err)
		}
	}()
	Logger.Infof("Serving metrics on %s/metrics", endpoint)
}
