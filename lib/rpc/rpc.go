package rpc

import (
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/time/rate"

	"github.com/go-fabrpc/go-fabrpc/lib/config"
	"github.com/go-fabrpc/go-fabrpc/lib/hugealloc"
	"github.com/go-fabrpc/go-fabrpc/lib/nexus"
	"github.com/go-fabrpc/go-fabrpc/lib/session"
	"github.com/go-fabrpc/go-fabrpc/lib/transport"
)

var log = logger.GetGoI2PLogger()

// smRetxBurst caps how many retransmissions one event-loop turn may emit.
const smRetxBurst = 4

// SmHandler receives session events on the client side of a connection:
// Connected and ConnectFailed resolve a connect attempt, Disconnected
// resolves a teardown. Called synchronously from the owner's event loop; it
// must not block and must not call back into session operations.
type SmHandler func(sessionNum int, event session.EventType, code session.ErrCode, userCtx interface{})

// tokenOutcome is the dedup verdict remembered for a connect token.
type tokenOutcome uint8

const (
	tokenPending tokenOutcome = iota
	tokenFinalized
)

// Compile-time check that Rpc implements nexus.Hook
var _ nexus.Hook = (*Rpc)(nil)

// Rpc is one session-management instance. All methods except EnqueuePacket
// must be called from the single goroutine that owns the event loop.
type Rpc struct {
	id     uint8
	nexus  *nexus.Nexus
	trans  transport.Transport
	client *nexus.Client
	alloc  *hugealloc.Allocator
	cfg    *config.RpcConfig

	smQ smQueue

	// sessions is the append-only slot array. Nil entries are tombstones.
	sessions []*session.Session

	// tokenMap deduplicates connect attempts across the reconnect/teardown
	// races of the unreliable control channel. Cleared only by
	// ResetTokenTable.
	tokenMap map[session.Token]tokenOutcome

	// recvsAvailable is the receive-credit pool shared by all sessions.
	recvsAvailable int

	handler SmHandler
	userCtx interface{}

	pending     map[session.Token]*pendingReq
	retxLimiter *rate.Limiter

	faults faults
	closed bool
}

// New builds an Rpc on the given Nexus and registers its packet hook. A nil
// cfg uses defaults; a nil handler is allowed for pure server instances.
func New(nx *nexus.Nexus, rpcID uint8, handler SmHandler, userCtx interface{}, cfg *config.RpcConfig) (*Rpc, error) {
	if nx == nil {
		return nil, ErrNilNexus
	}
	if cfg == nil {
		cfg = config.DefaultRpcConfig()
	}
	kind, err := transport.ParseKind(cfg.Transport)
	if err != nil {
		return nil, oops.Errorf("rpc %d: %w", rpcID, err)
	}
	trans, err := transport.New(kind, cfg.PhyPort, cfg.DataBindAddr)
	if err != nil {
		return nil, oops.Errorf("rpc %d: constructing transport: %w", rpcID, err)
	}
	client, err := nexus.NewClient()
	if err != nil {
		trans.Close()
		return nil, oops.Errorf("rpc %d: constructing sm client: %w", rpcID, err)
	}
	r := &Rpc{
		id:             rpcID,
		nexus:          nx,
		trans:          trans,
		client:         client,
		alloc:          hugealloc.New(uint64(cfg.AllocCapacityMB)<<20, cfg.NumaNode),
		cfg:            cfg,
		tokenMap:       make(map[session.Token]tokenOutcome),
		recvsAvailable: cfg.RxRingEntries,
		handler:        handler,
		userCtx:        userCtx,
		pending:        make(map[session.Token]*pendingReq),
		retxLimiter:    rate.NewLimiter(rate.Every(cfg.SmRetxInterval), smRetxBurst),
	}
	if err := nx.RegisterHook(r); err != nil {
		client.Close()
		trans.Close()
		return nil, oops.Errorf("rpc %d: registering hook: %w", rpcID, err)
	}
	log.WithFields(logger.Fields{
		"at":        "rpc.New",
		"rpc_id":    rpcID,
		"transport": kind.String(),
		"phy_port":  cfg.PhyPort,
		"host_addr": nx.HostAddr(),
	}).Debug("rpc_created")
	return r, nil
}

// RpcID implements nexus.Hook.
func (r *Rpc) RpcID() uint8 {
	return r.id
}

// EnqueuePacket implements nexus.Hook. Called from the Nexus receive
// goroutine.
func (r *Rpc) EnqueuePacket(pkt *session.Packet) {
	r.smQ.enqueue(pkt)
}

// HostAddr returns the control-plane address peers reach this Rpc's process
// by.
func (r *Rpc) HostAddr() string {
	return r.nexus.HostAddr()
}

// Alloc exposes the Rpc's memory budget. The data path carves its buffers
// here; tests hoard from it to provoke exhaustion.
func (r *Rpc) Alloc() *hugealloc.Allocator {
	return r.alloc
}

// NumSessions returns the table length including tombstones.
func (r *Rpc) NumSessions() int {
	return len(r.sessions)
}

// ActiveSessions returns the number of live slots.
func (r *Rpc) ActiveSessions() int {
	n := 0
	for _, s := range r.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

// RecvsAvailable returns the free receive credits.
func (r *Rpc) RecvsAvailable() int {
	return r.recvsAvailable
}

// sessionWorkingSetBytes is the memory one session reserves for its life.
func (r *Rpc) sessionWorkingSetBytes() uint64 {
	return uint64(r.cfg.SessionCredits) * uint64(r.trans.MTU())
}

// releaseSessionResources returns the session's credits and memory to their
// pools. Idempotent; the session's credit count is the source of truth.
func (r *Rpc) releaseSessionResources(s *session.Session) {
	if s.Credits == 0 {
		return
	}
	r.recvsAvailable += s.Credits
	r.alloc.Release(uint64(s.Credits) * uint64(r.trans.MTU()))
	s.Credits = 0
}

// invokeHandler fires the application callback, if any.
func (r *Rpc) invokeHandler(sn int, ev session.EventType, code session.ErrCode) {
	if r.handler == nil {
		return
	}
	r.handler(sn, ev, code, r.userCtx)
}

// ResetTokenTable forgets every remembered connect-token verdict. This is an
// administrative recovery action: afterwards, peers may connect again with
// tokens that were already finalized. Session slots are unaffected and stay
// never-reused.
func (r *Rpc) ResetTokenTable() {
	n := len(r.tokenMap)
	r.tokenMap = make(map[session.Token]tokenOutcome)
	log.WithFields(logger.Fields{
		"at":      "(Rpc) ResetTokenTable",
		"rpc_id":  r.id,
		"cleared": n,
	}).Warn("token_table_reset")
}

// Close unregisters the packet hook and releases the Rpc's resources. Live
// sessions are not torn down over the wire; peers discover the loss through
// their own timeouts.
func (r *Rpc) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.nexus.UnregisterHook(r.id)
	if live := r.ActiveSessions(); live > 0 {
		log.WithFields(logger.Fields{
			"at":     "(Rpc) Close",
			"rpc_id": r.id,
			"live":   live,
		}).Warn("closing_with_live_sessions")
	}
	err := r.client.Close()
	if terr := r.trans.Close(); err == nil {
		err = terr
	}
	if aerr := r.alloc.Close(); err == nil {
		err = aerr
	}
	log.WithFields(logger.Fields{
		"at":     "(Rpc) Close",
		"rpc_id": r.id,
	}).Debug("rpc_closed")
	return err
}
