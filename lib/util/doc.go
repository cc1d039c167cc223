// Package util provides the small building blocks shared by the dMPI layers.
//
// The package contains:
//   - lockfreempsc: A lock-free Multi-Producer Single-Consumer (MPSC) queue. The
//     fabric uses one queue per peer for outbound frames and one for inbound
//     envelopes, which keeps the frames of one sender in order while never
//     blocking the producer.
//   - statistics: Summary statistics over a series of samples and a SizeHistogram
//     for tracking the payload size distribution of the traffic of a rank.
//
// Features and Guarantees of the MPSC queue:
//
//   - Lock-Free: atomic operations for high throughput and low latency even under high contention
//   - Unbounded Size: the queue can grow to any size as needed, limited only by available memory
//   - Small Footprint: minimal memory overhead per item (two pointers per item)
//   - Thread-Safe writes: Allows any number of goroutines to safely Push() concurrently
//   - Single Consumer: Designed for a single goroutine to consume values (via the Recv() channel).
//   - Per-Producer FIFO: the items of one producer are received in push order. Across
//     concurrent producers the ordering is determined by which producer completes its
//     operation first, not by which producer started first.
package util
