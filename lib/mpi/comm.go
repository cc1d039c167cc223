package mpi

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/lib/fabric"
	"github.com/ValentinKolb/dMPI/lib/wire"
)

// Scope names a predefined communicator
type Scope int

const (
	World Scope = iota // All ranks
	Self               // The calling process only
)

// String returns the name of the scope
func (s Scope) String() string {
	switch s {
	case World:
		return "world"
	case Self:
		return "self"
	default:
		return "unknown"
	}
}

// Comm is a resolved communicator. It is a small value that can be copied
// freely; resolving it again yields an equal communicator.
type Comm struct {
	env   *Env
	scope Scope
	group fabric.Group
}

// Scope returns the scope the communicator was resolved from
func (c Comm) Scope() Scope {
	return c.scope
}

// Env returns the environment the communicator belongs to
func (c Comm) Env() *Env {
	return c.env
}

// Rank returns the rank of the calling process within the communicator
func (c Comm) Rank() int {
	return c.group.Rank()
}

// Size returns the number of ranks in the communicator
func (c Comm) Size() int {
	return c.group.Size()
}

// Barrier blocks until every rank of the communicator entered the barrier
func (c Comm) Barrier() error {
	return c.env.fabric.Barrier(c.group)
}

// Abort terminates every rank of the communicator, see Env.Abort
func (c Comm) Abort(code int) {
	c.env.Abort(c, code)
}

// RegisterType records a committed composite layout, Comm can be passed to
// wire.Builder.Commit
func (c Comm) RegisterType(d wire.Descriptor) (uint64, error) {
	return c.env.fabric.RegisterType(d)
}

// String returns a short description of the communicator
func (c Comm) String() string {
	return fmt.Sprintf("Comm{%s, rank: %d, size: %d}", c.scope, c.Rank(), c.Size())
}
