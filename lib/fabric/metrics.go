package fabric

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/lib/util"
	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"time"
)

// --------------------------------------------------------------------------
// Process-wide metrics (Prometheus exposition)
// --------------------------------------------------------------------------

var (
	framesSentTotal      = vm.NewCounter(`dmpi_frames_sent_total`)
	framesReceivedTotal  = vm.NewCounter(`dmpi_frames_received_total`)
	bytesSentTotal       = vm.NewCounter(`dmpi_payload_bytes_sent_total`)
	bytesReceivedTotal   = vm.NewCounter(`dmpi_payload_bytes_received_total`)
	transportErrorsTotal = vm.NewCounter(`dmpi_transport_errors_total`)
	abortsTotal          = vm.NewCounter(`dmpi_aborts_total`)
	committedTypesTotal  = vm.NewCounter(`dmpi_committed_types_total`)
)

// collectiveCounter returns the counter of a collective operation
func collectiveCounter(op string) *vm.Counter {
	return vm.GetOrCreateCounter(fmt.Sprintf(`dmpi_collectives_total{op=%q}`, op))
}

// --------------------------------------------------------------------------
// Per fabric statistics
// --------------------------------------------------------------------------

// Stats collects the traffic statistics of one fabric
type Stats struct {
	registry      gometrics.Registry
	sent          gometrics.Meter
	received      gometrics.Meter
	sentBytes     gometrics.Counter
	receivedBytes gometrics.Counter
	wait          gometrics.Timer
	sizes         *util.SizeHistogram
}

// StatsSnapshot is a point in time copy of Stats
type StatsSnapshot struct {
	FramesSent     int64         `json:"frames_sent"`
	FramesReceived int64         `json:"frames_received"`
	BytesSent      int64         `json:"bytes_sent"`
	BytesReceived  int64         `json:"bytes_received"`
	SendRate1m     float64       `json:"send_rate_1m"`
	AvgPayload     int           `json:"avg_payload"`
	MedianPayload  int           `json:"median_payload"`
	P99Payload     int           `json:"p99_payload"`
	Waits          int64         `json:"waits"`
	WaitMean       time.Duration `json:"wait_mean"`
	WaitP99        time.Duration `json:"wait_p99"`
}

func newStats() *Stats {
	s := &Stats{
		registry:      gometrics.NewRegistry(),
		sent:          gometrics.NewMeter(),
		received:      gometrics.NewMeter(),
		sentBytes:     gometrics.NewCounter(),
		receivedBytes: gometrics.NewCounter(),
		wait:          gometrics.NewTimer(),
		sizes:         util.NewSizeHistogram(),
	}

	_ = s.registry.Register("frames.sent", s.sent)
	_ = s.registry.Register("frames.received", s.received)
	_ = s.registry.Register("bytes.sent", s.sentBytes)
	_ = s.registry.Register("bytes.received", s.receivedBytes)
	_ = s.registry.Register("wait", s.wait)

	return s
}

// Registry returns the go-metrics registry holding the statistics
func (s *Stats) Registry() gometrics.Registry {
	return s.registry
}

// ObserveWait records the time a caller spent waiting for a completion
func (s *Stats) ObserveWait(d time.Duration) {
	s.wait.Update(d)
}

// recordSent counts an outbound frame with the given payload size
func (s *Stats) recordSent(payload int) {
	s.sent.Mark(1)
	s.sentBytes.Inc(int64(payload))
	s.sizes.AddSample(payload)
	framesSentTotal.Inc()
	bytesSentTotal.Add(payload)
}

// recordReceived counts an inbound frame with the given payload size
func (s *Stats) recordReceived(payload int) {
	s.received.Mark(1)
	s.receivedBytes.Inc(int64(payload))
	framesReceivedTotal.Inc()
	bytesReceivedTotal.Add(payload)
}

// Snapshot returns the current statistics
func (s *Stats) Snapshot() StatsSnapshot {
	wait := s.wait.Snapshot()
	return StatsSnapshot{
		FramesSent:     s.sent.Count(),
		FramesReceived: s.received.Count(),
		BytesSent:      s.sentBytes.Count(),
		BytesReceived:  s.receivedBytes.Count(),
		SendRate1m:     s.sent.Rate1(),
		AvgPayload:     s.sizes.Average(),
		MedianPayload:  s.sizes.Median(),
		P99Payload:     s.sizes.Percentile(99),
		Waits:          wait.Count(),
		WaitMean:       time.Duration(wait.Mean()),
		WaitP99:        time.Duration(wait.Percentile(0.99)),
	}
}

// stop releases the meters of the registry
func (s *Stats) stop() {
	s.registry.UnregisterAll()
}
