// Package cmd implements the command-line interface of dMPI. Every rank of a
// world runs the same dmpi command with its own rank; the world is described
// by flags or DMPI_ environment variables (e.g. DMPI_RANK, DMPI_ENDPOINTS).
//
// The package is organized into several subpackages:
//
//   - check: Runs the conformance checks of the library in a world
//   - perf: Measures latency and throughput of point-to-point and collective operations
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dmpi -help for a list of all commands.
package cmd
