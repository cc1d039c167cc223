package testing

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/lib/mpi"
	"github.com/ValentinKolb/dMPI/lib/mpi/conformance"
	"testing"
)

// WorldSizes are the world sizes the conformance suite runs with
var WorldSizes = []int{1, 2, 3, 4}

// RunConformanceTests runs every conformance check in worlds of every size of
// WorldSizes created by factory
func RunConformanceTests(t *testing.T, name string, factory WorldFactory) {
	t.Run(name, func(t *testing.T) {
		for _, size := range WorldSizes {
			t.Run(fmt.Sprintf("Size=%d", size), func(t *testing.T) {
				envs := StartWorld(t, size, factory, nil)

				for _, check := range conformance.Checks() {
					t.Run(check.Name, func(t *testing.T) {
						RunWorld(t, envs, check.Run)
					})
				}
			})
		}
	})
}

// RunMPIBenchmarks runs the point-to-point and collective benchmarks in a
// world of two ranks created by factory
func RunMPIBenchmarks(b *testing.B, name string, factory WorldFactory) {
	b.Run(name, func(b *testing.B) {
		envs := StartWorld(b, 2, factory, nil)

		b.Run("PingPong", func(b *testing.B) {
			benchmarkPingPong(b, envs, 1)
		})

		b.Run("PingPong(1KB)", func(b *testing.B) {
			benchmarkPingPong(b, envs, 1024/8)
		})

		b.Run("PingPong(64KB)", func(b *testing.B) {
			benchmarkPingPong(b, envs, 64*1024/8)
		})

		b.Run("Allreduce", func(b *testing.B) {
			benchmarkAllreduce(b, envs)
		})

		b.Run("Barrier", func(b *testing.B) {
			benchmarkBarrier(b, envs)
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for a round trip of n float64 values between rank 0 and 1
func benchmarkPingPong(b *testing.B, envs []*mpi.Env, n int) {
	buf := make([]float64, n)
	b.SetBytes(int64(16 * n))
	b.ResetTimer()

	RunWorld(b, envs, func(c mpi.Comm) error {
		peer := 1 - c.Rank()
		for i := 0; i < b.N; i++ {
			if c.Rank() == 0 {
				if err := mpi.SendSlice(c, buf, peer, 0); err != nil {
					return err
				}
				if _, _, err := mpi.RecvSlice[float64](c, peer, 0); err != nil {
					return err
				}
				continue
			}
			in, _, err := mpi.RecvSlice[float64](c, peer, 0)
			if err != nil {
				return err
			}
			if err := mpi.SendSlice(c, in, peer, 0); err != nil {
				return err
			}
		}
		return nil
	})
}

// Benchmark for an all-reduce of a single value
func benchmarkAllreduce(b *testing.B, envs []*mpi.Env) {
	b.ResetTimer()

	RunWorld(b, envs, func(c mpi.Comm) error {
		for i := 0; i < b.N; i++ {
			if _, err := mpi.Allreduce(c, i, mpi.Sum); err != nil {
				return err
			}
		}
		return nil
	})
}

// Benchmark for a barrier
func benchmarkBarrier(b *testing.B, envs []*mpi.Env) {
	b.ResetTimer()

	RunWorld(b, envs, func(c mpi.Comm) error {
		for i := 0; i < b.N; i++ {
			if err := c.Barrier(); err != nil {
				return err
			}
		}
		return nil
	})
}
