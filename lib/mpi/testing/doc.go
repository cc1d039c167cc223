// Package testing provides reusable worlds, tests and benchmarks for dMPI
// transports.
//
// A WorldFactory describes how the ranks of a world are connected (MemWorld,
// SocketWorld("tcp"), ...). StartWorld initializes every rank of such a world
// in the test process, one goroutine per rank, and finalizes them when the
// test ends.
//
// Example usage:
//
//	func TestTCP(t *testing.T) {
//		testing.RunConformanceTests(t, "TCP", testing.SocketWorld("tcp"))
//	}
//
//	func BenchmarkTCP(b *testing.B) {
//		testing.RunMPIBenchmarks(b, "TCP", testing.SocketWorld("tcp"))
//	}
package testing
