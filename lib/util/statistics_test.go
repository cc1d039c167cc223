package util

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestNewStats(t *testing.T) {
	testCases := []struct {
		name   string
		values []float64
		want   Stats
	}{
		{
			name:   "Empty",
			values: nil,
			want:   Stats{},
		},
		{
			name:   "Single value",
			values: []float64{4},
			want:   Stats{Min: 4, Max: 4, Mean: 4, MinMaxRatio: 1},
		},
		{
			name:   "Symmetric values",
			values: []float64{2, 4, 4, 4, 5, 5, 7, 9},
			want:   Stats{StdDeviation: 2, Min: 2, Max: 9, Mean: 5, MinMaxRatio: 2.0 / 9.0},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewStats(tc.values)
			if math.Abs(got.StdDeviation-tc.want.StdDeviation) > 1e-9 ||
				got.Min != tc.want.Min || got.Max != tc.want.Max ||
				math.Abs(got.Mean-tc.want.Mean) > 1e-9 ||
				math.Abs(got.MinMaxRatio-tc.want.MinMaxRatio) > 1e-9 {
				t.Errorf("Expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestNewDurationStats(t *testing.T) {
	got := NewDurationStats([]time.Duration{time.Microsecond, 3 * time.Microsecond})
	if got.Min != 1000 || got.Max != 3000 || got.Mean != 2000 || got.StdDeviation != 1000 {
		t.Errorf("Unexpected stats %+v", got)
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()

	if h.Average() != 0 || h.Median() != 0 || h.Percentile(99) != 0 {
		t.Fatalf("Expected empty histogram")
	}

	// Add samples concurrently
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h.AddSample(8)
			}
		}()
	}
	wg.Wait()

	if h.Average() != 8 {
		t.Errorf("Expected average 8, got %d", h.Average())
	}

	// All samples are in the first bucket (<= 16 bytes)
	if h.Median() != 8 {
		t.Errorf("Expected median estimate 8, got %d", h.Median())
	}

	// Large samples move the upper percentiles
	for i := 0; i < 400; i++ {
		h.AddSample(100_000)
	}
	if p := h.Percentile(99); p < 65536 {
		t.Errorf("Expected p99 estimate above 64KB, got %d", p)
	}
	if p := h.Percentile(101); p != 0 {
		t.Errorf("Expected 0 for an invalid percentile, got %d", p)
	}

	// Larger than every boundary
	h.AddSample(1 << 33)
	if p := h.Percentile(100); p != 2*4294967296 {
		t.Errorf("Expected estimate of the overflow bucket, got %d", p)
	}
}
