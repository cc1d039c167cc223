package fabric

import (
	"fmt"
)

// Contexts of the predefined groups. Collective traffic of a group travels in
// the context with the collective bit set, so point-to-point receives never
// match it.
const (
	ContextWorld uint32 = 0
	ContextSelf  uint32 = 1

	collectiveBit uint32 = 1 << 31
)

// Wildcards for receives and probes
const (
	AnySource = -1
	AnyTag    = -1
)

// Group is a resolved communicator: a matching context and the world ranks of
// its members, indexed by group rank. Groups are small immutable values.
type Group struct {
	context uint32
	rank    int
	members []int
}

// Context returns the matching context of the group
func (g Group) Context() uint32 {
	return g.context
}

// Rank returns the rank of the calling process within the group
func (g Group) Rank() int {
	return g.rank
}

// Size returns the number of members
func (g Group) Size() int {
	return len(g.members)
}

// String returns a short description of the group
func (g Group) String() string {
	return fmt.Sprintf("Group{ctx: %d, rank: %d, size: %d}", g.context, g.rank, len(g.members))
}

// contains reports whether r is a valid rank of the group
func (g Group) contains(r int) bool {
	return r >= 0 && r < len(g.members)
}

// worldRank translates a group rank to a world rank
func (g Group) worldRank(r int) int {
	return g.members[r]
}

// collective returns the group with its collective context
func (g Group) collective() Group {
	g.context |= collectiveBit
	return g
}
