package fabric

import (
	"github.com/ValentinKolb/dMPI/lib/util"
	"github.com/ValentinKolb/dMPI/rpc/common"
)

// EncodeFunc produces the payload of an outbound message. It runs on the
// writer of the destination, so the values it reads stay owned by the
// in-flight operation until the operation completes.
type EncodeFunc func() ([]byte, error)

// outFrame is one queued outbound message
type outFrame struct {
	env    *common.Envelope
	encode EncodeFunc
	op     *Op
}

// peerQueue orders the outbound messages of one destination
type peerQueue struct {
	dest  int
	seq   uint64
	queue *util.LockFreeMPSC[outFrame]
	done  chan struct{}
}

func newPeerQueue(dest int) *peerQueue {
	return &peerQueue{
		dest:  dest,
		queue: util.NewLockFreeMPSC[outFrame](),
		done:  make(chan struct{}),
	}
}

// enqueue queues a message for dest and returns the op tracking it
func (f *Fabric) enqueue(dest int, env *common.Envelope, encode EncodeFunc) *Op {
	op := newOp()
	if err := f.Err(); err != nil {
		op.complete(Message{}, err)
		return op
	}
	if f.outbound == nil {
		op.complete(Message{}, common.NewError(common.RetCFinalized, "fabric not started"))
		return op
	}

	if !f.outbound[dest].queue.Push(&outFrame{env: env, encode: encode, op: op}) {
		op.complete(Message{}, common.NewError(common.RetCFinalized, "rank %d left the world", f.rank))
	}
	return op
}

// write is the writer goroutine of one destination
func (f *Fabric) write(q *peerQueue) {
	defer close(q.done)

	for item := range q.queue.Recv() {
		item.op.complete(Message{}, f.transmit(q, item))
	}
}

// transmit encodes and sends a single message
func (f *Fabric) transmit(q *peerQueue, item *outFrame) error {
	if err := f.Err(); err != nil {
		return err
	}

	env := *item.env
	if item.encode != nil {
		payload, err := item.encode()
		if err != nil {
			return err
		}
		env.Payload = payload
	}
	q.seq++
	env.Seq = q.seq

	// Loopback, the message never leaves the process
	if q.dest == f.rank {
		f.stats.recordSent(len(env.Payload))
		f.stats.recordReceived(len(env.Payload))
		if !f.inbound.Push(&env) {
			return common.NewError(common.RetCFinalized, "rank %d left the world", f.rank)
		}
		return nil
	}

	frame, err := f.serializer.Serialize(env)
	if err != nil {
		return common.NewError(common.RetCTransport, "failed to serialize %s: %v", env, err)
	}
	if err := f.client.Send(q.dest, frame); err != nil {
		transportErrorsTotal.Inc()
		Logger.Errorf("Rank %d failed to send %s: %v", f.rank, env, err)
		return common.NewError(common.RetCTransport, "send to rank %d failed: %v", q.dest, err)
	}
	f.stats.recordSent(len(env.Payload))

	Logger.Debugf("Rank %d sent op %s: %s", f.rank, item.op.ID, env)
	return nil
}
