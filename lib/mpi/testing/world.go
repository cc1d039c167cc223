package testing

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/lib/mpi"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/transport/mem"
	"golang.org/x/sync/errgroup"
	"net"
	"path/filepath"
	"testing"
)

// WorldFactory returns the configuration and the init options of every rank
// of a world of the given size
type WorldFactory func(t testing.TB, size int) ([]common.WorldConfig, [][]mpi.Option)

// baseConfig returns the configuration of one rank
func baseConfig(rank, size int, transport string, endpoints []string) common.WorldConfig {
	return common.WorldConfig{
		Rank:      rank,
		Size:      size,
		Endpoints: endpoints,
		JobID:     fmt.Sprintf("test-%s-%d", transport, size),
		Transport: common.TransportConfig{
			Name:                 transport,
			RetryCount:           3,
			ConnectTimeoutSecond: 10,
			TCPConf:              common.TCPConf{TCPNoDelay: true},
		},
		TimeoutSecond: 10,
		Serializer:    "binary",
		LogLevel:      "error",
	}
}

// MemWorld connects the ranks through an in-memory hub
func MemWorld(t testing.TB, size int) ([]common.WorldConfig, [][]mpi.Option) {
	hub := mem.NewHub(size)
	configs := make([]common.WorldConfig, size)
	opts := make([][]mpi.Option, size)
	for rank := range configs {
		configs[rank] = baseConfig(rank, size, "mem", nil)
		opts[rank] = []mpi.Option{mpi.WithTransports(hub.Server(rank), hub.Client(rank))}
	}
	return configs, opts
}

// SocketWorld returns a factory connecting the ranks through a socket
// transport (tcp, unix or http) on the local host
func SocketWorld(transport string) WorldFactory {
	return func(t testing.TB, size int) ([]common.WorldConfig, [][]mpi.Option) {
		var endpoints []string
		switch transport {
		case "unix":
			dir := t.TempDir()
			for rank := 0; rank < size; rank++ {
				endpoints = append(endpoints, filepath.Join(dir, fmt.Sprintf("rank-%d.sock", rank)))
			}
		default:
			endpoints = freeEndpoints(t, size)
		}

		configs := make([]common.WorldConfig, size)
		for rank := range configs {
			configs[rank] = baseConfig(rank, size, transport, endpoints)
		}
		return configs, make([][]mpi.Option, size)
	}
}

// CompressedWorld wraps a factory and enables zstd compression of every
// envelope above minBytes
func CompressedWorld(factory WorldFactory, minBytes int) WorldFactory {
	return func(t testing.TB, size int) ([]common.WorldConfig, [][]mpi.Option) {
		configs, opts := factory(t, size)
		for i := range configs {
			configs[i].Compression = "zstd"
			configs[i].CompressionMinBytes = minBytes
		}
		return configs, opts
	}
}

// StartWorld initializes every rank of a world concurrently and finalizes
// them when the test ends. Aborts do not exit the test binary, the abort
// code is reported through codes (if not nil).
func StartWorld(t testing.TB, size int, factory WorldFactory, codes chan<- int) []*mpi.Env {
	t.Helper()

	configs, opts := factory(t, size)
	envs := make([]*mpi.Env, size)

	var g errgroup.Group
	for rank := range envs {
		rankOpts := append(opts[rank], mpi.WithAbortHandler(func(code int) {
			if codes != nil {
				codes <- code
			}
		}))
		g.Go(func() error {
			env, err := mpi.Init(configs[rank], rankOpts...)
			envs[rank] = env
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("failed to start world of %d ranks: %v", size, err)
	}

	t.Cleanup(func() {
		var g errgroup.Group
		for _, env := range envs {
			g.Go(env.Finalize)
		}
		if err := g.Wait(); err != nil {
			t.Logf("finalize failed: %v", err)
		}
	})
	return envs
}

// RunWorld calls fn with the world communicator of every rank concurrently
// and fails the test with the first error
func RunWorld(t testing.TB, envs []*mpi.Env, fn func(c mpi.Comm) error) {
	t.Helper()

	var g errgroup.Group
	for _, env := range envs {
		g.Go(func() error {
			c := env.World()
			if err := fn(c); err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

// freeEndpoints returns n tcp endpoints on localhost that are free right now
func freeEndpoints(t testing.TB, n int) []string {
	endpoints := make([]string, n)
	for i := range endpoints {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("no free port: %v", err)
		}
		endpoints[i] = l.Addr().String()
		_ = l.Close()
	}
	return endpoints
}
