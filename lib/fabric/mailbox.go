package fabric

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
	"sync"
)

// postedRecv is a receive waiting for a matching message
type postedRecv struct {
	source int
	tag    int
	op     *Op
}

// probeResult is the answer to a blocking probe
type probeResult struct {
	msg Message
	err error
}

// probeWaiter is a blocking probe waiting for a matching message
type probeWaiter struct {
	source int
	tag    int
	ch     chan probeResult
}

// mailbox matches the inbound messages of one context against receives.
// Posted receives are matched in post order, unexpected messages in arrival
// order, which keeps (source, tag) pairs in send order.
type mailbox struct {
	mu         sync.Mutex
	posted     []*postedRecv
	unexpected []*common.Envelope
	probes     []*probeWaiter
	err        error
}

func newMailbox(err error) *mailbox {
	return &mailbox{err: err}
}

// matches reports whether an envelope satisfies a (source, tag) pattern
func matches(source, tag int, env *common.Envelope) bool {
	return (source == AnySource || source == int(env.Src)) &&
		(tag == AnyTag || tag == int(env.Tag))
}

func toMessage(env *common.Envelope) Message {
	return Message{
		Source:  int(env.Src),
		Tag:     int(env.Tag),
		Count:   int(env.Count),
		Payload: env.Payload,
	}
}

// deliver hands an inbound envelope to the first matching posted receive or
// queues it as unexpected
func (m *mailbox) deliver(env *common.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.posted {
		if matches(p.source, p.tag, env) {
			m.posted = append(m.posted[:i], m.posted[i+1:]...)
			p.op.complete(toMessage(env), nil)
			return
		}
	}

	m.unexpected = append(m.unexpected, env)

	// Wake up matching probes, the message stays queued
	remaining := m.probes[:0]
	for _, w := range m.probes {
		if matches(w.source, w.tag, env) {
			msg := toMessage(env)
			msg.Payload = nil
			w.ch <- probeResult{msg: msg}
			continue
		}
		remaining = append(remaining, w)
	}
	m.probes = remaining
}

// post registers a receive. It completes immediately if a matching message is queued.
func (m *mailbox) post(source, tag int, op *Op) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		op.complete(Message{}, m.err)
		return
	}
	if env := m.take(source, tag); env != nil {
		op.complete(toMessage(env), nil)
		return
	}
	m.posted = append(m.posted, &postedRecv{source: source, tag: tag, op: op})
}

// take removes and returns the first queued message matching the pattern
func (m *mailbox) take(source, tag int) *common.Envelope {
	for i, env := range m.unexpected {
		if matches(source, tag, env) {
			m.unexpected = append(m.unexpected[:i], m.unexpected[i+1:]...)
			return env
		}
	}
	return nil
}

// peek returns the first queued message matching the pattern without removing it
func (m *mailbox) peek(source, tag int) (Message, bool) {
	for _, env := range m.unexpected {
		if matches(source, tag, env) {
			msg := toMessage(env)
			msg.Payload = nil
			return msg, true
		}
	}
	return Message{}, false
}

// iprobe looks for a matching queued message without blocking
func (m *mailbox) iprobe(source, tag int) (Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Message{}, false, m.err
	}
	msg, ok := m.peek(source, tag)
	return msg, ok, nil
}

// probe blocks until a matching message is queued
func (m *mailbox) probe(source, tag int) (Message, error) {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return Message{}, m.err
	}
	if msg, ok := m.peek(source, tag); ok {
		m.mu.Unlock()
		return msg, nil
	}
	w := &probeWaiter{source: source, tag: tag, ch: make(chan probeResult, 1)}
	m.probes = append(m.probes, w)
	m.mu.Unlock()

	res := <-w.ch
	return res.msg, res.err
}

// fail completes every pending receive and probe with err and rejects new ones
func (m *mailbox) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return
	}
	m.err = err

	for _, p := range m.posted {
		p.op.complete(Message{}, err)
	}
	m.posted = nil

	for _, w := range m.probes {
		w.ch <- probeResult{err: err}
	}
	m.probes = nil
}

// pending returns the number of posted receives and queued messages
func (m *mailbox) pending() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted), len(m.unexpected)
}
