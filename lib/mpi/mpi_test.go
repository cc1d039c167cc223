package mpi_test

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dMPI/lib/mpi"
	mpitesting "github.com/ValentinKolb/dMPI/lib/mpi/testing"
	"github.com/ValentinKolb/dMPI/lib/wire"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	mpitesting.RunConformanceTests(t, "Mem", mpitesting.MemWorld)
	mpitesting.RunConformanceTests(t, "Mem(zstd)", mpitesting.CompressedWorld(mpitesting.MemWorld, 16))
	mpitesting.RunConformanceTests(t, "TCP", mpitesting.SocketWorld("tcp"))
	mpitesting.RunConformanceTests(t, "Unix", mpitesting.SocketWorld("unix"))
	mpitesting.RunConformanceTests(t, "HTTP", mpitesting.SocketWorld("http"))
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	_, err := mpi.Init(common.WorldConfig{Rank: 2, Size: 2, Transport: common.TransportConfig{Name: "mem"}})
	require.ErrorIs(t, err, mpi.ErrInvalidConfig)

	_, err = mpi.Init(common.WorldConfig{Rank: 0, Size: 1, Transport: common.TransportConfig{Name: "mem"}})
	require.ErrorIs(t, err, mpi.ErrInvalidConfig)

	_, err = mpi.Init(common.WorldConfig{Rank: 0, Size: 1, Endpoints: []string{"x"}, Transport: common.TransportConfig{Name: "carrier-pigeon"}})
	require.ErrorIs(t, err, mpi.ErrUnsupportedFormat)

	_, err = mpi.Init(common.WorldConfig{Rank: 0, Size: 1, Endpoints: []string{"x"}, Serializer: "yaml"})
	require.ErrorIs(t, err, mpi.ErrUnsupportedFormat)
}

func TestInvalidRankAndTag(t *testing.T) {
	envs := mpitesting.StartWorld(t, 2, mpitesting.MemWorld, nil)
	c := envs[0].World()

	require.ErrorIs(t, mpi.Send(c, 1, 2, 0), mpi.ErrInvalidRank)
	require.ErrorIs(t, mpi.SendSlice(c, []int{1}, -1, 0), mpi.ErrInvalidRank)
	require.ErrorIs(t, mpi.Send(c, 1, 1, -2), mpi.ErrInvalidTag)

	_, _, err := mpi.Recv[int](c, 7, 0)
	require.ErrorIs(t, err, mpi.ErrInvalidRank)

	_, err = mpi.Isend(c, 1.0, 9, 0).Wait()
	require.ErrorIs(t, err, mpi.ErrInvalidRank)

	_, err = mpi.Bcast(c, 1, 5)
	require.ErrorIs(t, err, mpi.ErrInvalidRank)

	_, err = mpi.Probe(c, 3, 0)
	require.ErrorIs(t, err, mpi.ErrInvalidRank)

	// Tags beyond 32 bit are rejected instead of wrapping onto another tag
	require.ErrorIs(t, mpi.Send(c, int32(15), 1, 1<<32), mpi.ErrInvalidTag)
	require.ErrorIs(t, mpi.Send(c, int32(15), 1, mpi.MaxTag+1), mpi.ErrInvalidTag)
	_, _, err = mpi.Recv[int32](c, 1, mpi.MaxTag+1)
	require.ErrorIs(t, err, mpi.ErrInvalidTag)
	_, _, err = mpi.RecvSlice[int32](c, 1, -5)
	require.ErrorIs(t, err, mpi.ErrInvalidTag)
	_, err = mpi.Probe(c, 1, -5)
	require.ErrorIs(t, err, mpi.ErrInvalidTag)
	_, _, err = mpi.Iprobe(c, mpi.AnySource, 1<<32)
	require.ErrorIs(t, err, mpi.ErrInvalidTag)
}

func TestRequests(t *testing.T) {
	envs := mpitesting.StartWorld(t, 2, mpitesting.MemWorld, nil)

	mpitesting.RunWorld(t, envs, func(c mpi.Comm) error {
		if c.Rank() == 0 {
			a := mpi.Isend(c, int16(1), 1, 1)
			b := mpi.IsendSlice(c, []int16{2, 3}, 1, 2)
			statuses, err := mpi.WaitAll(a, b)
			if err != nil {
				return err
			}
			require.Equal(t, []mpi.Status{{Source: 1, Tag: 1, Count: 1}, {Source: 1, Tag: 2, Count: 2}}, statuses)
			require.Equal(t, int16(1), a.Result())
			require.Equal(t, []int16{2, 3}, b.Result())

			_, err = a.Wait()
			require.ErrorIs(t, err, mpi.ErrRequestCompleted)
			return nil
		}

		// Posted in the opposite order of the sends
		second := mpi.IrecvSlice[int16](c, 0, 2)
		first := mpi.Irecv[int16](c, 0, 1)
		require.Empty(t, second.Result())

		statuses, err := mpi.WaitAll(first, second)
		if err != nil {
			return err
		}
		require.True(t, first.Test())
		require.Equal(t, 1, statuses[0].Count)
		require.Equal(t, 2, statuses[1].Count)
		require.Equal(t, int16(1), first.Result())
		require.Equal(t, []int16{2, 3}, second.Result())
		require.NotEmpty(t, first.ID())
		return nil
	})
}

func TestIprobe(t *testing.T) {
	envs := mpitesting.StartWorld(t, 2, mpitesting.MemWorld, nil)

	mpitesting.RunWorld(t, envs, func(c mpi.Comm) error {
		if c.Rank() == 1 {
			_, ok, err := mpi.Iprobe(c, 0, 3)
			require.NoError(t, err)
			require.False(t, ok)
			if err := c.Barrier(); err != nil {
				return err
			}

			var status mpi.Status
			require.Eventually(t, func() bool {
				status, ok, err = mpi.Iprobe(c, mpi.AnySource, 3)
				return err == nil && ok
			}, 5*time.Second, time.Millisecond)
			require.Equal(t, mpi.Status{Source: 0, Tag: 3, Count: 4}, status)

			got, _, err := mpi.RecvSlice[uint64](c, status.Source, status.Tag)
			require.NoError(t, err)
			require.Equal(t, []uint64{1, 2, 3, 4}, got)
			return nil
		}
		if err := c.Barrier(); err != nil {
			return err
		}
		return mpi.SendSlice(c, []uint64{1, 2, 3, 4}, 1, 3)
	})
}

func TestTypedRequiresCommit(t *testing.T) {
	envs := mpitesting.StartWorld(t, 1, mpitesting.MemWorld, nil)
	c := envs[0].World()

	var uncommitted *wire.Type[[2]int32]
	require.ErrorIs(t, mpi.SendTyped(c, uncommitted, [][2]int32{{1, 2}}, 0, 0), mpi.ErrTypeNotCommitted)

	_, err := mpi.IrecvTyped(c, &wire.Type[[2]int32]{}, 0, 0).Wait()
	require.ErrorIs(t, err, mpi.ErrTypeNotCommitted)

	_, err = mpi.BcastTyped(c, uncommitted, nil, 0)
	require.ErrorIs(t, err, mpi.ErrTypeNotCommitted)

	b, err := wire.Contiguous[[2]int32, int32](2)
	require.NoError(t, err)
	typ, err := b.Commit(c)
	require.NoError(t, err)

	req := mpi.IsendTyped(c, typ, [][2]int32{{1, 2}, {3, 4}}, 0, 5)
	got, status, err := mpi.RecvTyped(c, typ, 0, 5)
	require.NoError(t, err)
	_, err = req.Wait()
	require.NoError(t, err)
	require.Equal(t, 2, status.Count)
	require.Equal(t, [][2]int32{{1, 2}, {3, 4}}, got)

	scattered, err := mpi.ScatterTyped(c, typ, [][2]int32{{5, 6}}, 0)
	require.NoError(t, err)
	require.Equal(t, [][2]int32{{5, 6}}, scattered)
}

func TestInvalidReductionAndCounts(t *testing.T) {
	envs := mpitesting.StartWorld(t, 2, mpitesting.MemWorld, nil)

	mpitesting.RunWorld(t, envs, func(c mpi.Comm) error {
		_, err := mpi.Allreduce(c, 1, mpi.Op(42))
		require.ErrorIs(t, err, mpi.ErrInvalidOp)

		_, err = mpi.AlltoallSlice(c, []int{1, 2, 3})
		require.ErrorIs(t, err, mpi.ErrCountMismatch)

		// Only root sees the bad length, the other rank must not wait forever
		_, err = mpi.ScatterSlice(c, []int{1, 2, 3}, 0)
		require.ErrorIs(t, err, mpi.ErrCountMismatch)

		// Only rank 1 holds a bad length
		vals := []int{1, 2}
		if c.Rank() == 1 {
			vals = []int{1, 2, 3}
		}
		_, err = mpi.AlltoallSlice(c, vals)
		require.ErrorIs(t, err, mpi.ErrCountMismatch)

		// The world is still usable
		sum, err := mpi.Allreduce(c, 2, mpi.Sum)
		require.NoError(t, err)
		require.Equal(t, 4, sum)
		return nil
	})
}

func TestFinalize(t *testing.T) {
	envs := mpitesting.StartWorld(t, 2, mpitesting.MemWorld, nil)

	mpitesting.RunWorld(t, envs, func(c mpi.Comm) error {
		require.NoError(t, c.Env().Finalize())
		require.NoError(t, c.Env().Finalize())

		require.ErrorIs(t, mpi.Send(c, 1, 1-c.Rank(), 0), mpi.ErrFinalized)
		_, _, err := mpi.Recv[int](c, mpi.AnySource, mpi.AnyTag)
		require.ErrorIs(t, err, mpi.ErrFinalized)
		return nil
	})
}

func TestAbort(t *testing.T) {
	const size = 3
	codes := make(chan int, size)
	envs := mpitesting.StartWorld(t, size, mpitesting.MemWorld, codes)

	errs := make(chan error, size-1)
	for _, env := range envs[1:] {
		go func() {
			_, _, err := mpi.Recv[int](env.World(), 0, 0)
			errs <- err
		}()
	}

	envs[0].World().Abort(7)

	for i := 0; i < size; i++ {
		select {
		case code := <-codes:
			require.Equal(t, 7, code)
		case <-time.After(5 * time.Second):
			t.Fatalf("abort reached %d of %d ranks", i, size)
		}
	}
	for i := 0; i < size-1; i++ {
		require.ErrorIs(t, <-errs, mpi.ErrAborted)
	}
}

func TestStats(t *testing.T) {
	envs := mpitesting.StartWorld(t, 2, mpitesting.MemWorld, nil)

	mpitesting.RunWorld(t, envs, func(c mpi.Comm) error {
		if c.Rank() == 0 {
			req := mpi.IsendSlice(c, make([]float64, 128), 1, 0)
			_, err := req.Wait()
			return err
		}
		_, _, err := mpi.RecvSlice[float64](c, 0, 0)
		return err
	})

	sender := envs[0].Stats()
	require.Positive(t, sender.FramesSent)
	require.GreaterOrEqual(t, sender.BytesSent, int64(128*8))
	require.Positive(t, sender.Waits)

	receiver := envs[1].Stats()
	require.GreaterOrEqual(t, receiver.BytesReceived, int64(128*8))
}

func TestMetricsEndpoint(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := l.Addr().String()
	require.NoError(t, l.Close())

	factory := func(t testing.TB, size int) ([]common.WorldConfig, [][]mpi.Option) {
		configs, opts := mpitesting.MemWorld(t, size)
		configs[0].MetricsEndpoint = endpoint
		return configs, opts
	}
	envs := mpitesting.StartWorld(t, 1, factory, nil)
	require.NoError(t, envs[0].World().Barrier())

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + endpoint + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		body = string(data)
		return err == nil && resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, strings.Contains(body, "dmpi_frames_sent_total"))
	require.True(t, strings.Contains(body, `dmpi_collectives_total{op="barrier"}`))
}

func BenchmarkMem(b *testing.B) {
	mpitesting.RunMPIBenchmarks(b, "Mem", mpitesting.MemWorld)
}

func BenchmarkTCP(b *testing.B) {
	mpitesting.RunMPIBenchmarks(b, "TCP", mpitesting.SocketWorld("tcp"))
}
