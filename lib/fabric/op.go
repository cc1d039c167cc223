package fabric

import (
	"github.com/rs/xid"
	"sync"
)

// Message is a matched inbound message. Source is the rank of the sender
// within the group the message was received in.
type Message struct {
	Source  int
	Tag     int
	Count   int
	Payload []byte
}

// Op tracks one in-flight point-to-point operation. It completes exactly once,
// either with a message (receives) or an empty message (sends), or with an error.
type Op struct {
	ID   xid.ID
	done chan struct{}
	once sync.Once
	msg  Message
	err  error
}

func newOp() *Op {
	return &Op{
		ID:   xid.New(),
		done: make(chan struct{}),
	}
}

// failedOp returns an op that is already completed with err
func failedOp(err error) *Op {
	op := newOp()
	op.complete(Message{}, err)
	return op
}

// complete finishes the op, later calls are ignored
func (o *Op) complete(msg Message, err error) {
	o.once.Do(func() {
		o.msg = msg
		o.err = err
		close(o.done)
	})
}

// Done returns a channel that is closed once the op completed
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the op completed and returns its result
func (o *Op) Wait() (Message, error) {
	<-o.done
	return o.msg, o.err
}

// Test reports whether the op completed, without blocking
func (o *Op) Test() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}
