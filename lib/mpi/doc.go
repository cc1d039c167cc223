// Package mpi is the typed message passing surface of dMPI. It exchanges
// scalars and slices of a known element type between the ranks of a world
// without describing wire layouts at the call site.
//
// Lifecycle:
//
//	env, err := mpi.Init(config)
//	if err != nil { ... }
//	defer env.Finalize()
//
//	world := env.World()
//	sum, err := mpi.Allreduce(world, world.Rank(), mpi.Sum)
//
// Init joins the world and returns once every rank joined. Finalize leaves it
// after synchronizing with every other rank; it is also registered with
// github.com/tebeka/atexit, so a program that exits through atexit.Exit
// releases the environment on that path too. Env.Abort terminates every rank
// of a communicator.
//
// Scalar and Sequence Forms:
//
// Every operation comes as a pair: the scalar form (Send, Recv, Bcast, ...)
// transfers one value of a wire.Scalar type, the sequence form (SendSlice,
// RecvSlice, BcastSlice, ...) a []T of a wire.Scalar T. The Typed forms take a
// committed *wire.Type[T] and transfer values of composite type T. The choice
// is made at the call site at compile time; a type that is neither a Scalar
// nor described by a committed wire.Type can not be sent.
//
// Receiving a slice does not require knowing its length: RecvSlice probes for
// the message, allocates exactly the announced number of elements and then
// receives it.
//
// Non-blocking Operations:
//
// Isend, Irecv and their variants return a *Request. The buffer passed to a
// non-blocking send belongs to the request until Wait returned, since the
// message is encoded when it is written to the transport. Every request is
// waited for exactly once; WaitAll waits for several.
//
// Collectives:
//
// Bcast, Reduce, Allreduce, Alltoall, Gather and Scatter must be called by
// every rank of the communicator in the same order. Reduce returns the result
// at root only, the value at every other rank is unspecified.
//
// Limitations:
//
// No type information travels with a message. A receiver that expects a
// different type than the sender used gets corrupted or truncated values, not
// an error. Wait has no deadline.
package mpi
