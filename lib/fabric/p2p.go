package fabric

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
	"math"
)

// MaxTag is the largest user tag, tags travel as 32 bit integers
const MaxTag = math.MaxInt32

// --------------------------------------------------------------------------
// Point-to-point
// --------------------------------------------------------------------------

// Isend starts sending count elements to the group rank dest. encode produces
// the payload on the writer of dest; it is called at most once. The returned
// op completes once the frame was handed to the transport.
func (f *Fabric) Isend(g Group, dest, tag, count int, encode EncodeFunc) *Op {
	if !g.contains(dest) {
		return failedOp(common.NewError(common.RetCInvalidRank, "destination %d not in %s", dest, g))
	}
	if err := checkTag(tag, false); err != nil {
		return failedOp(err)
	}
	env := common.NewDataEnvelope(g.context, g.rank, dest, tag, count, nil)
	return f.enqueue(g.worldRank(dest), env, encode)
}

// Send sends count elements to dest and waits until the frame was handed to
// the transport (buffered send semantics).
func (f *Fabric) Send(g Group, dest, tag, count int, encode EncodeFunc) error {
	_, err := f.Isend(g, dest, tag, count, encode).Wait()
	return err
}

// Irecv posts a receive for a message from source with tag. Both may be the
// wildcards AnySource and AnyTag.
func (f *Fabric) Irecv(g Group, source, tag int) *Op {
	if source != AnySource && !g.contains(source) {
		return failedOp(common.NewError(common.RetCInvalidRank, "source %d not in %s", source, g))
	}
	if err := checkTag(tag, true); err != nil {
		return failedOp(err)
	}
	op := newOp()
	f.mailbox(g.context).post(source, tag, op)
	return op
}

// Recv blocks until a message from source with tag arrived
func (f *Fabric) Recv(g Group, source, tag int) (Message, error) {
	return f.Irecv(g, source, tag).Wait()
}

// Probe blocks until a message matching (source, tag) is queued and returns
// its envelope without payload. The message stays queued, a following Recv
// with the returned Source and Tag receives it.
func (f *Fabric) Probe(g Group, source, tag int) (Message, error) {
	if source != AnySource && !g.contains(source) {
		return Message{}, common.NewError(common.RetCInvalidRank, "source %d not in %s", source, g)
	}
	if err := checkTag(tag, true); err != nil {
		return Message{}, err
	}
	return f.mailbox(g.context).probe(source, tag)
}

// Iprobe is the non-blocking variant of Probe
func (f *Fabric) Iprobe(g Group, source, tag int) (Message, bool, error) {
	if source != AnySource && !g.contains(source) {
		return Message{}, false, common.NewError(common.RetCInvalidRank, "source %d not in %s", source, g)
	}
	if err := checkTag(tag, true); err != nil {
		return Message{}, false, err
	}
	return f.mailbox(g.context).iprobe(source, tag)
}

// Pending returns the number of posted receives and of queued messages that
// no receive matched yet, in the point-to-point context of g
func (f *Fabric) Pending(g Group) (posted, unexpected int) {
	return f.mailbox(g.context).pending()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// checkTag validates a user tag. AnyTag is only valid where a receive may match any tag.
func checkTag(tag int, wildcard bool) error {
	if wildcard && tag == AnyTag {
		return nil
	}
	if tag < 0 || tag > MaxTag {
		return common.NewError(common.RetCInvalidTag, "tag %d outside of [0, %d]", tag, MaxTag)
	}
	return nil
}

// sendBytes queues an already encoded payload without validating the tag.
// It is used by the collectives, which own the tags of their context.
func (f *Fabric) sendBytes(g Group, dest, tag, count int, payload []byte) *Op {
	env := common.NewDataEnvelope(g.context, g.rank, dest, tag, count, payload)
	return f.enqueue(g.worldRank(dest), env, nil)
}

// recvBytes receives from an exact source and tag
func (f *Fabric) recvBytes(g Group, source, tag int) (Message, error) {
	op := newOp()
	f.mailbox(g.context).post(source, tag, op)
	return op.Wait()
}
