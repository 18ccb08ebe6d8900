package rpc

import (
	"time"

	"github.com/go-i2p/logger"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
	"github.com/go-fabrpc/go-fabrpc/lib/util"
)

// eventLoopIdleSleep keeps the polling variant of the loop from spinning a
// core when no packets arrive.
const eventLoopIdleSleep = 100 * time.Microsecond

// pendingReq is an unacknowledged connect or disconnect request owned by a
// client session. It is retransmitted until the matching response arrives.
type pendingReq struct {
	pkt    *session.Packet
	dest   string
	lastTx time.Time
}

// RunEventLoopOnce drains the packet mailbox, dispatches everything in
// arrival order, and retransmits overdue session-management requests. It
// never blocks.
func (r *Rpc) RunEventLoopOnce() {
	if r.smQ.pendingCount() > 0 {
		for _, pkt := range r.smQ.drain() {
			r.dispatchSmPacket(pkt)
		}
	}
	r.retxPendingSm()
}

// RunEventLoop runs the event loop for at least the given duration. Useful
// for simple servers and tests; latency-sensitive callers run
// RunEventLoopOnce from their own loop.
func (r *Rpc) RunEventLoop(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		r.RunEventLoopOnce()
		time.Sleep(eventLoopIdleSleep)
	}
}

// dispatchSmPacket routes one control packet to its handler. An invalid type
// cannot come from the wire (unmarshal rejects it), so hitting one here is a
// defect in in-process delivery.
func (r *Rpc) dispatchSmPacket(pkt *session.Packet) {
	r.assertNotSelfSent(pkt)
	log.WithFields(logger.Fields{
		"at":     "(Rpc) dispatchSmPacket",
		"rpc_id": r.id,
		"type":   pkt.Type.String(),
		"token":  pkt.Token.String(),
	}).Debug("sm_packet_dispatch")
	switch pkt.Type {
	case session.PacketConnectReq:
		r.handleConnectReq(pkt)
	case session.PacketConnectResp:
		r.handleConnectResp(pkt)
	case session.PacketDisconnectReq:
		r.handleDisconnectReq(pkt)
	case session.PacketDisconnectResp:
		r.handleDisconnectResp(pkt)
	default:
		util.Panicf("rpc %d: dispatching invalid sm packet type %d", r.id, uint8(pkt.Type))
	}
}

// assertNotSelfSent panics if the packet's originator is this Rpc itself.
// The control plane never routes a packet back to its sender; seeing one
// means the process is corrupting its own mailbox.
func (r *Rpc) assertNotSelfSent(pkt *session.Packet) {
	origin := &pkt.Server
	if pkt.Type.IsRequest() {
		origin = &pkt.Client
	}
	if origin.RpcID == r.id && origin.Host() == r.nexus.HostAddr() {
		util.Panicf("rpc %d: received own sm packet %s", r.id, pkt.Type.String())
	}
}

// registerPendingSm records a request for retransmission until its response
// arrives.
func (r *Rpc) registerPendingSm(tok session.Token, pkt *session.Packet, dest string) {
	r.pending[tok] = &pendingReq{pkt: pkt, dest: dest, lastTx: time.Now()}
}

// clearPendingSm stops retransmitting the request identified by its token.
func (r *Rpc) clearPendingSm(tok session.Token) {
	delete(r.pending, tok)
}

// retxPendingSm resends requests whose response is overdue. The limiter
// bounds control-plane traffic when many sessions are waiting at once.
func (r *Rpc) retxPendingSm() {
	if len(r.pending) == 0 {
		return
	}
	now := time.Now()
	for tok, req := range r.pending {
		if now.Sub(req.lastTx) < r.cfg.SmRetxInterval {
			continue
		}
		if !r.retxLimiter.Allow() {
			return
		}
		if err := r.client.Send(req.pkt, req.dest); err != nil {
			log.WithFields(logger.Fields{
				"at":     "(Rpc) retxPendingSm",
				"rpc_id": r.id,
				"token":  tok.String(),
				"dest":   req.dest,
			}).WithError(err).Warn("sm_retx_failed")
			continue
		}
		req.lastTx = now
		log.WithFields(logger.Fields{
			"at":     "(Rpc) retxPendingSm",
			"rpc_id": r.id,
			"type":   req.pkt.Type.String(),
			"token":  tok.String(),
		}).Debug("sm_packet_retransmitted")
	}
}
