package fabric

import (
	"fmt"
	"github.com/ValentinKolb/dMPI/lib/util"
	"github.com/ValentinKolb/dMPI/lib/wire"
	"github.com/ValentinKolb/dMPI/rpc/common"
	"github.com/ValentinKolb/dMPI/rpc/serializer"
	"github.com/ValentinKolb/dMPI/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("fabric")

// drainTimeout bounds how long Close waits for queued frames to be written
const drainTimeout = 10 * time.Second

// Fabric connects the calling process with the other ranks of its world. It
// owns the peer transports, an ordered outbound queue per destination, the
// inbound dispatcher and the mailboxes that match messages against receives.
type Fabric struct {
	config     common.WorldConfig
	rank       int
	size       int
	serializer serializer.IRPCSerializer
	server     transport.IPeerServerTransport
	client     transport.IPeerClientTransport

	inbound        *util.LockFreeMPSC[common.Envelope]
	dispatcherDone chan struct{}
	outbound       []*peerQueue // Indexed by world rank, including the own rank (loopback)
	mailboxes      *xsync.MapOf[uint32, *mailbox]
	types          *xsync.MapOf[uint64, wire.Descriptor]
	nextTypeID     atomic.Uint64
	stats          *Stats

	failure   atomic.Pointer[common.Error]
	started   atomic.Bool
	closed    atomic.Bool
	listenErr chan error

	abortMu sync.Mutex
	onAbort func(code int)
}

// New creates the fabric of the given rank. Nothing is started before Start.
func New(config common.WorldConfig, server transport.IPeerServerTransport, client transport.IPeerClientTransport, s serializer.IRPCSerializer) *Fabric {
	return &Fabric{
		config:         config,
		rank:           config.Rank,
		size:           config.Size,
		serializer:     s,
		server:         server,
		client:         client,
		inbound:        util.NewLockFreeMPSC[common.Envelope](),
		dispatcherDone: make(chan struct{}),
		mailboxes:      xsync.NewMapOf[uint32, *mailbox](),
		types:          xsync.NewMapOf[uint64, wire.Descriptor](),
		stats:          newStats(),
		listenErr:      make(chan error, 1),
	}
}

// SetAbortHandler sets the function called once the world is aborted, either
// by this rank or by a peer. It receives the abort code.
func (f *Fabric) SetAbortHandler(handler func(code int)) {
	f.abortMu.Lock()
	defer f.abortMu.Unlock()
	f.onAbort = handler
}

// Start begins listening, connects to every peer and starts the dispatcher
// and the writers. It returns once every peer is reachable.
func (f *Fabric) Start() error {
	if f.started.Swap(true) {
		return fmt.Errorf("fabric already started")
	}

	// Inbound: transport -> inbound queue -> dispatcher -> mailboxes
	go f.dispatch()

	f.server.RegisterHandler(f.handleFrame)
	go func() {
		f.listenErr <- f.server.Listen(f.config)
	}()

	if err := f.client.Connect(f.config); err != nil {
		// A listener that failed to start is the more useful error
		select {
		case lerr := <-f.listenErr:
			if lerr != nil {
				err = lerr
			}
		default:
		}
		f.closed.Store(true)
		f.fail(common.NewError(common.RetCTransport, "rank %d failed to join the world", f.rank))
		f.inbound.Close()
		f.server.Close()
		f.stats.stop()
		return common.NewError(common.RetCTransport, "rank %d failed to join the world: %v", f.rank, err)
	}

	// Outbound: one ordered queue and writer per destination
	f.outbound = make([]*peerQueue, f.size)
	for dest := range f.outbound {
		f.outbound[dest] = newPeerQueue(dest)
		go f.write(f.outbound[dest])
	}

	Logger.Debugf("Rank %d joined world of size %d", f.rank, f.size)
	return nil
}

// Rank returns the world rank of the calling process
func (f *Fabric) Rank() int {
	return f.rank
}

// Size returns the size of the world
func (f *Fabric) Size() int {
	return f.size
}

// World returns the group of all ranks
func (f *Fabric) World() Group {
	members := make([]int, f.size)
	for i := range members {
		members[i] = i
	}
	return Group{context: ContextWorld, rank: f.rank, members: members}
}

// Self returns the group containing only the calling process
func (f *Fabric) Self() Group {
	return Group{context: ContextSelf, rank: 0, members: []int{f.rank}}
}

// Stats returns the traffic statistics
func (f *Fabric) Stats() *Stats {
	return f.stats
}

// Err returns the error all operations fail with once the fabric is closed or
// aborted, or nil
func (f *Fabric) Err() error {
	if e := f.failure.Load(); e != nil {
		return e
	}
	return nil
}

// RegisterType records a committed composite layout and returns its id
func (f *Fabric) RegisterType(d wire.Descriptor) (uint64, error) {
	if err := f.Err(); err != nil {
		return 0, err
	}
	id := f.nextTypeID.Add(1)
	f.types.Store(id, d)
	committedTypesTotal.Inc()
	return id, nil
}

// Type returns a committed layout by id
func (f *Fabric) Type(id uint64) (wire.Descriptor, bool) {
	return f.types.Load(id)
}

// Close leaves the world. A graceful close first synchronizes with every other
// rank, so no rank tears down its transports while peers still send to it.
// Pending operations fail with ErrFinalized.
func (f *Fabric) Close(graceful bool) error {
	if f.closed.Swap(true) {
		return nil
	}

	var err error
	if graceful && f.started.Load() && f.Err() == nil {
		if berr := f.Barrier(f.World()); berr != nil {
			err = fmt.Errorf("final barrier failed: %w", berr)
		}
	}

	// Write what is queued, the writers exit once their queue is drained
	deadline := time.After(drainTimeout)
	for _, q := range f.outbound {
		q.queue.Close()
	}
	for _, q := range f.outbound {
		select {
		case <-q.done:
		case <-deadline:
			Logger.Warningf("Rank %d: frames to rank %d not written before close", f.rank, q.dest)
		}
	}

	f.fail(common.NewError(common.RetCFinalized, "rank %d left the world", f.rank))

	if cerr := f.client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if serr := f.server.Close(); serr != nil && err == nil {
		err = serr
	}
	if f.started.Load() {
		if lerr := <-f.listenErr; lerr != nil && err == nil {
			err = lerr
		}
	}

	f.inbound.Close()
	if f.started.Load() {
		<-f.dispatcherDone
	}
	f.stats.stop()

	Logger.Debugf("Rank %d closed", f.rank)
	return err
}

// Abort terminates every member of the group: every other member receives an
// abort frame, pending operations on this rank fail with ErrAborted and the
// abort handler is called with code.
func (f *Fabric) Abort(g Group, code int) {
	Logger.Errorf("Rank %d aborts %s with code %d", f.rank, g, code)
	abortsTotal.Inc()

	env := common.NewAbortEnvelope(g.context, f.rank, code)
	frame, err := f.serializer.Serialize(*env)
	if err == nil {
		for _, member := range g.members {
			if member == f.rank {
				continue
			}
			if err := f.client.Send(member, frame); err != nil {
				Logger.Warningf("Failed to deliver abort to rank %d: %v", member, err)
			}
		}
	}

	f.fail(common.NewError(common.RetCAborted, "rank %d aborted with code %d", f.rank, code))
	f.callAbortHandler(code)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// fail moves the fabric into its terminal state, the first error wins
func (f *Fabric) fail(err *common.Error) {
	if !f.failure.CompareAndSwap(nil, err) {
		return
	}
	f.mailboxes.Range(func(_ uint32, m *mailbox) bool {
		m.fail(err)
		return true
	})
}

// callAbortHandler runs the abort handler, if any
func (f *Fabric) callAbortHandler(code int) {
	f.abortMu.Lock()
	handler := f.onAbort
	f.abortMu.Unlock()

	if handler != nil {
		handler(code)
	}
}

// mailbox returns the mailbox of a context
func (f *Fabric) mailbox(context uint32) *mailbox {
	m, _ := f.mailboxes.LoadOrCompute(context, func() *mailbox {
		var err error
		if e := f.failure.Load(); e != nil {
			err = e
		}
		return newMailbox(err)
	})
	return m
}

// handleFrame is the transport handler: it decodes a frame and queues it for the dispatcher
func (f *Fabric) handleFrame(source int, frame []byte) {
	env := &common.Envelope{}
	if err := f.serializer.Deserialize(frame, env); err != nil {
		Logger.Errorf("Rank %d dropped undecodable frame from rank %d: %v", f.rank, source, err)
		return
	}
	f.stats.recordReceived(len(env.Payload))

	if !f.inbound.Push(env) {
		Logger.Debugf("Rank %d dropped frame from rank %d after close", f.rank, source)
	}
}

// dispatch routes every inbound envelope to its mailbox
func (f *Fabric) dispatch() {
	defer close(f.dispatcherDone)

	for env := range f.inbound.Recv() {
		switch env.Kind {
		case common.FrameTAbort:
			f.handleAbort(env)
		case common.FrameTData:
			f.mailbox(env.Context).deliver(env)
		default:
			Logger.Warningf("Rank %d ignores frame of kind %s", f.rank, env.Kind)
		}
	}
}

// handleAbort processes an abort frame of a peer. The handler runs on its own
// goroutine, it may tear down the fabric (and with it the dispatcher).
func (f *Fabric) handleAbort(env *common.Envelope) {
	code := int(env.Tag)
	Logger.Errorf("Rank %d aborted by rank %d with code %d", f.rank, env.Src, code)
	abortsTotal.Inc()

	f.fail(common.NewError(common.RetCAborted, "aborted by rank %d with code %d", env.Src, code))
	go f.callAbortHandler(code)
}
