package perf

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dMPI/cmd/util"
	"github.com/ValentinKolb/dMPI/lib/fabric"
	"github.com/ValentinKolb/dMPI/lib/mpi"
	stats "github.com/ValentinKolb/dMPI/lib/util"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for dMPI worlds",
		Long: util.WrapString(`Measures the latency of a ping-pong between rank 0 and 1 and the duration of the collective operations.
All ranks run the same number of iterations, rank 0 prints the results.`),
		PreRunE: processPerfConfig,
		RunE:    run,
	}
	perfIterations = 1000
	perfSizes      = []int{8, 1024, 64 * 1024}
	perfSkip       = make([]string, 0)
)

// named benchmark result, in the order the benchmarks ran
type result struct {
	test    string
	result  testing.BenchmarkResult
	latency stats.Stats // per iteration, in ns
}

const pingPongTag = 1

func init() {
	key := "iterations"
	PerfCmd.Flags().Int(key, 1000, util.WrapString("Number of iterations of every benchmark"))
	key = "sizes"
	PerfCmd.Flags().String(key, "8,1024,65536", util.WrapString("Payload sizes of the ping-pong benchmarks (in bytes, comma separated)"))
	key = "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. pingpong,bcast)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfIterations = viper.GetInt("iterations")
	if perfIterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", perfIterations)
	}

	perfSizes = perfSizes[:0]
	for _, s := range strings.Split(viper.GetString("sizes"), ",") {
		size, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || size < 0 {
			return fmt.Errorf("invalid payload size %q", s)
		}
		perfSizes = append(perfSizes, size)
	}

	perfSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

func run(_ *cobra.Command, _ []string) error {
	return util.RunWorld(func(env *mpi.Env) error {
		world := env.World()

		if world.Rank() == 0 {
			fmt.Println("Performance testing tool for dMPI worlds")
			fmt.Println()
			fmt.Println("Configuration:")
			config := env.Config()
			fmt.Println(config.String())
			fmt.Printf("Iterations: %d\n", perfIterations)
			fmt.Println()
			fmt.Println("starting tests...")
		}

		results, err := runBenchmarks(world)
		if err != nil {
			return err
		}
		if world.Rank() != 0 {
			return nil
		}

		fmt.Println()
		for _, r := range results {
			printResult(r.test, r.result, r.latency)
		}
		printStats(env.Stats())

		// Write results to csv is specified
		if csvPath := viper.GetString("csv"); csvPath != "" {
			fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
			if err := writeResultsToCSV(csvPath, results, env.Config()); err != nil {
				return err
			}
		}
		return nil
	})
}

// runBenchmarks runs every benchmark that is not skipped at the calling rank
func runBenchmarks(c mpi.Comm) ([]result, error) {
	var results []result

	add := func(test string, bytesPerOp int, fn func(i int) error) error {
		res, latency, err := measure(c, fn)
		if err != nil {
			return fmt.Errorf("%s: %w", test, err)
		}
		res.Bytes = int64(bytesPerOp)
		results = append(results, result{test: test, result: res, latency: latency})
		return nil
	}

	if !shouldSkip("pingpong") && c.Size() > 1 {
		for _, size := range perfSizes {
			payload := make([]byte, size)
			if err := add(fmt.Sprintf("pingpong-%s", formatSize(size)), 2*size, func(int) error {
				return pingPong(c, payload)
			}); err != nil {
				return nil, err
			}
		}
	}

	if !shouldSkip("barrier") {
		if err := add("barrier", 0, func(int) error {
			return c.Barrier()
		}); err != nil {
			return nil, err
		}
	}

	if !shouldSkip("bcast") {
		payload := make([]float64, 1024)
		if err := add("bcast-8KB", 8*len(payload), func(int) error {
			_, err := mpi.BcastSlice(c, payload, 0)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if !shouldSkip("allreduce") {
		if err := add("allreduce", 8, func(i int) error {
			_, err := mpi.Allreduce(c, float64(i), mpi.Sum)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if !shouldSkip("allreduce-vector") {
		vals := make([]float64, 1024)
		if err := add("allreduce-8KB", 8*len(vals), func(int) error {
			_, err := mpi.AllreduceSlice(c, vals, mpi.Sum)
			return err
		}); err != nil {
			return nil, err
		}
	}

	if !shouldSkip("gather") {
		if err := add("gather", 8, func(i int) error {
			_, err := mpi.Gather(c, int64(i), 0)
			return err
		}); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// measure runs fn perfIterations times between two barriers and returns the
// result in the format of the testing package together with the distribution
// of the single iterations. The iteration count is fixed, so every rank runs
// exactly the same sequence of operations.
func measure(c mpi.Comm, fn func(i int) error) (testing.BenchmarkResult, stats.Stats, error) {
	if err := c.Barrier(); err != nil {
		return testing.BenchmarkResult{}, stats.Stats{}, err
	}

	samples := make([]time.Duration, perfIterations)
	start := time.Now()
	for i := range samples {
		iteration := time.Now()
		if err := fn(i); err != nil {
			return testing.BenchmarkResult{}, stats.Stats{}, err
		}
		samples[i] = time.Since(iteration)
	}
	if err := c.Barrier(); err != nil {
		return testing.BenchmarkResult{}, stats.Stats{}, err
	}

	return testing.BenchmarkResult{N: perfIterations, T: time.Since(start)}, stats.NewDurationStats(samples), nil
}

// pingPong sends payload from rank 0 to rank 1 and back, other ranks idle
func pingPong(c mpi.Comm, payload []byte) error {
	switch c.Rank() {
	case 0:
		if err := mpi.SendSlice(c, payload, 1, pingPongTag); err != nil {
			return err
		}
		_, _, err := mpi.RecvSlice[byte](c, 1, pingPongTag)
		return err
	case 1:
		in, _, err := mpi.RecvSlice[byte](c, 0, pingPongTag)
		if err != nil {
			return err
		}
		return mpi.SendSlice(c, in, 0, pingPongTag)
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

func formatSize(size int) string {
	switch {
	case size >= 1024*1024 && size%(1024*1024) == 0:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024 && size%1024 == 0:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}

// printResult prints a single benchmark result
func printResult(test string, result testing.BenchmarkResult, latency stats.Stats) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	line := fmt.Sprintf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
	if result.Bytes > 0 {
		line += fmt.Sprintf("\t%.2f MB/s", float64(result.Bytes)*opsPerSec/1e6)
	}
	line += fmt.Sprintf("\t[min %s, max %s, stddev %s]",
		time.Duration(latency.Min), time.Duration(latency.Max), time.Duration(latency.StdDeviation))
	fmt.Println(line)
}

// printStats prints the traffic statistics of rank 0
func printStats(snapshot fabric.StatsSnapshot) {
	fmt.Println()
	fmt.Println("Traffic (rank 0):")
	fmt.Printf("  %-18s: %d (%d bytes)\n", "Frames Sent", snapshot.FramesSent, snapshot.BytesSent)
	fmt.Printf("  %-18s: %d (%d bytes)\n", "Frames Received", snapshot.FramesReceived, snapshot.BytesReceived)
	fmt.Printf("  %-18s: %d bytes (median %d bytes, p99 %d bytes)\n", "Avg Payload", snapshot.AvgPayload, snapshot.MedianPayload, snapshot.P99Payload)
	fmt.Printf("  %-18s: %d (mean %s, p99 %s)\n", "Waits", snapshot.Waits, snapshot.WaitMean, snapshot.WaitP99)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []result, config common.WorldConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "BytesPerOp",
		"MinNs", "MaxNs", "StdDevNs", "MinMaxRatio",
		"Size", "Transport", "Serializer", "Compression",
		"TimeoutSec", "RetryCount", "Iterations",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, r := range results {
		nsPerOp := math.Max(float64(r.result.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)

		row := []string{
			r.test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.FormatInt(r.result.Bytes, 10),
			fmt.Sprintf("%.0f", r.latency.Min),
			fmt.Sprintf("%.0f", r.latency.Max),
			fmt.Sprintf("%.0f", r.latency.StdDeviation),
			fmt.Sprintf("%.3f", r.latency.MinMaxRatio),
			strconv.Itoa(config.Size),
			config.Transport.Name,
			config.Serializer,
			config.Compression,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(perfIterations),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
