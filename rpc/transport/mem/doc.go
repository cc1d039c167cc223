// Package mem implements an in-process peer transport for dMPI. All ranks of a
// world live in the same process and share one Hub; a frame is handed to the
// handler of the destination rank directly, without any copying or syscalls.
//
// The hub is used by the test suites and by the --local mode of the CLI, where
// every rank runs as a goroutine.
//
// Ordering:
//
//	Send calls the handler of the destination synchronously, so the frames one
//	goroutine sends to a rank arrive in the order they were sent.
package mem
