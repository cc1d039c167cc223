package mpi

import (
	"github.com/ValentinKolb/dMPI/lib/fabric"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"sync/atomic"
	"time"
)

// Status describes a completed operation: the rank (within the communicator)
// and tag of the message and the number of elements it held. For sends it
// holds the destination, the tag and the number of elements sent.
type Status struct {
	Source int
	Tag    int
	Count  int
}

// Waiter is an operation that can be waited for, see WaitAll
type Waiter interface {
	Wait() (Status, error)
}

// Request is an in-flight non-blocking operation. The buffer handed to a
// non-blocking send belongs to the request until Wait returned; it must not be
// read or written before. Result returns it (or the received value) afterwards.
//
// Every request must be waited for exactly once; a second Wait fails with
// ErrRequestCompleted. There is no timeout, a request whose peer never sends
// blocks Wait forever.
type Request[T any] struct {
	op     *fabric.Op
	stats  *fabric.Stats
	err    error
	decode func(fabric.Message) (T, error)

	status Status // Known upfront for sends
	held   T      // Buffer owned by a send until completion
	value  T
	waited atomic.Bool
}

// newSendRequest tracks a send of held
func newSendRequest[T any](c Comm, op *fabric.Op, held T, status Status) *Request[T] {
	return &Request[T]{op: op, stats: c.env.fabric.Stats(), held: held, status: status}
}

// newRecvRequest tracks a receive whose message is decoded on Wait
func newRecvRequest[T any](c Comm, op *fabric.Op, decode func(fabric.Message) (T, error)) *Request[T] {
	return &Request[T]{op: op, stats: c.env.fabric.Stats(), decode: decode}
}

// failedRequest returns a request that fails with err on Wait
func failedRequest[T any](err error) *Request[T] {
	return &Request[T]{err: err}
}

// Wait blocks until the operation completed and returns its status. Once Wait
// returned, the buffer of the operation belongs to the caller again.
func (r *Request[T]) Wait() (Status, error) {
	if r.waited.Swap(true) {
		return Status{}, common.NewError(common.RetCRequestCompleted, "request already waited for")
	}
	if r.err != nil {
		return Status{}, r.err
	}

	start := time.Now()
	msg, err := r.op.Wait()
	r.stats.ObserveWait(time.Since(start))
	if err != nil {
		return Status{}, err
	}

	if r.decode == nil {
		r.value = r.held
		return r.status, nil
	}

	status := Status{Source: msg.Source, Tag: msg.Tag, Count: msg.Count}
	if r.value, err = r.decode(msg); err != nil {
		return status, err
	}
	return status, nil
}

// Test reports whether the operation completed, without blocking. A request
// still has to be waited for after Test returned true.
func (r *Request[T]) Test() bool {
	if r.err != nil {
		return true
	}
	return r.op.Test()
}

// Result returns the received value of a receive or the buffer of a send.
// It returns the zero value before Wait returned.
func (r *Request[T]) Result() T {
	return r.value
}

// ID returns the id of the operation, as used in debug logs
func (r *Request[T]) ID() string {
	if r.op == nil {
		return ""
	}
	return r.op.ID.String()
}

// WaitAll waits for every request and returns their statuses, index aligned
// with reqs. The requests may complete in any order. It returns the first
// error after every request was waited for.
func WaitAll(reqs ...Waiter) ([]Status, error) {
	statuses := make([]Status, len(reqs))
	var first error
	for i, r := range reqs {
		status, err := r.Wait()
		if err != nil && first == nil {
			first = err
		}
		statuses[i] = status
	}
	return statuses, first
}
