package util

import (
	"math"
	"sync"
	"time"
)

// ----------------------------------------------------------------------------
// Stats
// ----------------------------------------------------------------------------

// Stats summarizes a series of samples (e.g. round trip latencies of a benchmark)
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes the standard deviation, minimum, and maximum values
// from an array of float64 values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	min, max := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	mean := sum / float64(len(values))

	// population standard deviation
	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	minMaxRatio := 1.0
	if max > 0 {
		minMaxRatio = min / max
	}

	return Stats{
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(values))),
		Min:          min,
		Max:          max,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
	}
}

// NewDurationStats summarizes durations in nanoseconds
func NewDurationStats(samples []time.Duration) Stats {
	values := make([]float64, len(samples))
	for i, d := range samples {
		values[i] = float64(d.Nanoseconds())
	}
	return NewStats(values)
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds of the histogram buckets, from 16 bytes
// to 4GB in powers of four. One more bucket holds everything larger.
var sizeBoundaries = []int{
	16, 64, 256, 1024, 4096,
	16384, 65536, 262144, 1048576,
	4194304, 16777216, 67108864,
	268435456, 1073741824, 4294967296,
}

// SizeHistogram tracks the distribution of payload sizes in exponential
// buckets. It is safe for concurrent use.
type SizeHistogram struct {
	mutex   sync.RWMutex
	buckets []int64
	count   int64
	sum     int64
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		buckets: make([]int64, len(sizeBoundaries)+1),
	}
}

// AddSample adds a payload size to the histogram
func (h *SizeHistogram) AddSample(size int) {
	bucket := len(sizeBoundaries)
	for i, boundary := range sizeBoundaries {
		if size <= boundary {
			bucket = i
			break
		}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.buckets[bucket]++
	h.count++
	h.sum += int64(size)
}

// Average returns the mean of all samples
func (h *SizeHistogram) Average() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// Median estimates the median of all samples
func (h *SizeHistogram) Median() int {
	return h.Percentile(50)
}

// Percentile estimates the given percentile (0-100) of all samples as the
// middle of the bucket the percentile falls into
func (h *SizeHistogram) Percentile(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	cumulative := int64(0)
	for i, count := range h.buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		switch {
		case i == 0:
			return sizeBoundaries[0] / 2
		case i < len(sizeBoundaries):
			return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
		default:
			return sizeBoundaries[len(sizeBoundaries)-1] * 2
		}
	}
	return int(h.sum / h.count)
}
