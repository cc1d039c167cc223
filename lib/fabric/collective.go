package fabric

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
)

// Tags of the collective operations within the collective context of a group
const (
	tagBcast = iota + 1
	tagReduce
	tagGather
	tagScatter
	tagAlltoall
	tagBarrier
	tagScatterFailed
	tagAlltoallFailed
)

// CombineFunc combines two encoded contributions of a reduction. It must be
// associative; it may reuse the memory of acc for the result.
type CombineFunc func(acc, in []byte) ([]byte, error)

// Bcast replicates the payload of root to every member. Every member returns
// the message of root, the payload of non-root members is ignored.
//
// Members are arranged in a binomial tree rooted at root: a member receives
// from its parent and forwards to its children, so the payload crosses
// log2(size) hops.
func (f *Fabric) Bcast(g Group, root, count int, payload []byte) (Message, error) {
	if !g.contains(root) {
		return Message{}, common.NewError(common.RetCInvalidRank, "root %d not in %s", root, g)
	}
	collectiveCounter("bcast").Inc()
	c := g.collective()
	size := c.Size()
	vr := (c.rank - root + size) % size

	msg := Message{Source: root, Tag: tagBcast, Count: count, Payload: payload}

	// Receive from the parent, the member that differs in the lowest set bit
	mask := 1
	for mask < size {
		if vr&mask != 0 {
			parent := (vr - mask + root) % size
			in, err := f.recvBytes(c, parent, tagBcast)
			if err != nil {
				return Message{}, err
			}
			msg = Message{Source: root, Tag: tagBcast, Count: in.Count, Payload: in.Payload}
			break
		}
		mask <<= 1
	}

	// Forward to the children below that bit
	var ops []*Op
	for mask >>= 1; mask > 0; mask >>= 1 {
		if vr+mask < size {
			child := (vr + mask + root) % size
			ops = append(ops, f.sendBytes(c, child, tagBcast, msg.Count, msg.Payload))
		}
	}
	if err := waitOps(ops); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Reduce combines the payloads of every member with combine. The result is
// returned at root only; every other member returns nil.
func (f *Fabric) Reduce(g Group, root, count int, payload []byte, combine CombineFunc) ([]byte, error) {
	if !g.contains(root) {
		return nil, common.NewError(common.RetCInvalidRank, "root %d not in %s", root, g)
	}
	if combine == nil {
		return nil, common.NewError(common.RetCInvalidOp, "reduction without combine function")
	}
	collectiveCounter("reduce").Inc()
	return f.reduce(g.collective(), root, count, payload, combine)
}

// Allreduce combines the payloads of every member and returns the result at
// every member
func (f *Fabric) Allreduce(g Group, count int, payload []byte, combine CombineFunc) ([]byte, error) {
	if combine == nil {
		return nil, common.NewError(common.RetCInvalidOp, "reduction without combine function")
	}
	collectiveCounter("allreduce").Inc()

	acc, err := f.reduce(g.collective(), 0, count, payload, combine)
	if err != nil {
		return nil, err
	}
	msg, err := f.Bcast(g, 0, count, acc)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

// Gather collects the payload of every member at root, indexed by rank.
// Members other than root return nil.
func (f *Fabric) Gather(g Group, root, count int, payload []byte) ([]Message, error) {
	if !g.contains(root) {
		return nil, common.NewError(common.RetCInvalidRank, "root %d not in %s", root, g)
	}
	collectiveCounter("gather").Inc()
	c := g.collective()

	if c.rank != root {
		_, err := f.sendBytes(c, root, tagGather, count, payload).Wait()
		return nil, err
	}

	out := make([]Message, c.Size())
	for r := range out {
		if r == root {
			out[r] = Message{Source: root, Tag: tagGather, Count: count, Payload: payload}
			continue
		}
		msg, err := f.recvBytes(c, r, tagGather)
		if err != nil {
			return nil, err
		}
		out[r] = msg
	}
	return out, nil
}

// Scatter sends chunks[r] (holding counts[r] elements) from root to member r
// and returns the chunk of the calling member. chunks and counts are only
// read at root and must hold one entry per member. If they do not, root
// fails with CountMismatch and every other member does as well, instead of
// waiting for a chunk that never comes.
func (f *Fabric) Scatter(g Group, root int, chunks [][]byte, counts []int) (Message, error) {
	if !g.contains(root) {
		return Message{}, common.NewError(common.RetCInvalidRank, "root %d not in %s", root, g)
	}
	collectiveCounter("scatter").Inc()
	c := g.collective()

	if c.rank != root {
		// Every earlier collective message of root was consumed by its own
		// collective, so the next one is either the chunk or the failure
		msg, err := f.recvBytes(c, root, AnyTag)
		if err != nil {
			return Message{}, err
		}
		if msg.Tag == tagScatterFailed {
			return Message{}, common.NewError(common.RetCCountMismatch, "root %d failed to scatter", root)
		}
		return msg, nil
	}

	if len(chunks) != c.Size() || len(counts) != c.Size() {
		err := common.NewError(common.RetCCountMismatch,
			"scatter over %d members needs %d chunks, got %d", c.Size(), c.Size(), len(chunks))
		f.notifyFailure(c, tagScatterFailed)
		return Message{}, err
	}
	ops := make([]*Op, 0, c.Size()-1)
	for r := range chunks {
		if r == root {
			continue
		}
		ops = append(ops, f.sendBytes(c, r, tagScatter, counts[r], chunks[r]))
	}
	if err := waitOps(ops); err != nil {
		return Message{}, err
	}
	return Message{Source: root, Tag: tagScatter, Count: counts[root], Payload: chunks[root]}, nil
}

// Alltoall sends blocks[r] to member r and returns the blocks every member
// sent to the calling member, indexed by source rank. A member whose blocks
// do not hold one entry per member fails with CountMismatch; it still
// receives the blocks of the others, and every other member fails too.
func (f *Fabric) Alltoall(g Group, blocks [][]byte, counts []int) ([]Message, error) {
	c := g.collective()
	collectiveCounter("alltoall").Inc()

	var failure error
	var ops []*Op
	if len(blocks) != c.Size() || len(counts) != c.Size() {
		failure = common.NewError(common.RetCCountMismatch,
			"all-to-all over %d members needs %d blocks, got %d", c.Size(), c.Size(), len(blocks))
		f.notifyFailure(c, tagAlltoallFailed)
	} else {
		ops = make([]*Op, 0, c.Size()-1)
		for r := range blocks {
			if r == c.rank {
				continue
			}
			ops = append(ops, f.sendBytes(c, r, tagAlltoall, counts[r], blocks[r]))
		}
	}

	out := make([]Message, c.Size())
	for r := range out {
		if r == c.rank {
			if failure == nil {
				out[r] = Message{Source: r, Tag: tagAlltoall, Count: counts[r], Payload: blocks[r]}
			}
			continue
		}
		msg, err := f.recvBytes(c, r, AnyTag)
		if err != nil {
			return nil, err
		}
		if msg.Tag == tagAlltoallFailed && failure == nil {
			failure = common.NewError(common.RetCCountMismatch, "member %d failed to send its blocks", r)
		}
		out[r] = msg
	}
	if err := waitOps(ops); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return out, nil
}

// Barrier returns once every member entered the barrier
func (f *Fabric) Barrier(g Group) error {
	collectiveCounter("barrier").Inc()
	c := g.collective()
	size := c.Size()
	if size == 1 {
		return f.Err()
	}

	// Fan in at rank 0, then fan out
	if c.rank != 0 {
		if _, err := f.sendBytes(c, 0, tagBarrier, 0, nil).Wait(); err != nil {
			return err
		}
		_, err := f.recvBytes(c, 0, tagBarrier)
		return err
	}

	for r := 1; r < size; r++ {
		if _, err := f.recvBytes(c, r, tagBarrier); err != nil {
			return err
		}
	}
	ops := make([]*Op, 0, size-1)
	for r := 1; r < size; r++ {
		ops = append(ops, f.sendBytes(c, r, tagBarrier, 0, nil))
	}
	return waitOps(ops)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// reduce runs a binomial tree reduction in the collective context c
func (f *Fabric) reduce(c Group, root, count int, payload []byte, combine CombineFunc) ([]byte, error) {
	size := c.Size()
	vr := (c.rank - root + size) % size
	acc := payload

	for mask := 1; mask < size; mask <<= 1 {
		if vr&mask != 0 {
			parent := (vr - mask + root) % size
			if _, err := f.sendBytes(c, parent, tagReduce, count, acc).Wait(); err != nil {
				return nil, err
			}
			return nil, nil
		}
		if vr+mask < size {
			child := (vr + mask + root) % size
			in, err := f.recvBytes(c, child, tagReduce)
			if err != nil {
				return nil, err
			}
			if acc, err = combine(acc, in.Payload); err != nil {
				return nil, err
			}
		}
	}
	return acc, nil
}

// notifyFailure tells every other member of c that the calling member can not
// take part in the current collective
func (f *Fabric) notifyFailure(c Group, tag int) {
	ops := make([]*Op, 0, c.Size()-1)
	for r := 0; r < c.Size(); r++ {
		if r != c.rank {
			ops = append(ops, f.sendBytes(c, r, tag, 0, nil))
		}
	}
	if err := waitOps(ops); err != nil {
		Logger.Warningf("Rank %d failed to report a collective failure: %v", f.rank, err)
	}
}

// waitOps waits for every op and returns the first error
func waitOps(ops []*Op) error {
	var first error
	for _, op := range ops {
		if _, err := op.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
