package rpc

import (
	"github.com/go-i2p/logger"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
	"github.com/go-fabrpc/go-fabrpc/lib/transport"
	"github.com/go-fabrpc/go-fabrpc/lib/util"
)

// handleConnectReq runs the server-side admission pipeline. Every request
// produces exactly one response, except requests for tokens that already
// reached a final verdict, which are dropped. Check order is part of the
// protocol: a refused client learns the first failing condition.
func (r *Rpc) handleConnectReq(pkt *session.Packet) {
	lf := logger.Fields{
		"at":     "(Rpc) handleConnectReq",
		"rpc_id": r.id,
		"client": pkt.Client.String(),
		"token":  pkt.Token.String(),
	}

	// The request names the server's physical port. A request that reached
	// the right Rpc on the wrong port is refused, not dropped, so the client
	// fails fast instead of retransmitting.
	if pkt.Server.PhyPort != r.trans.PhyPort() {
		log.WithFields(lf).Warn("connect_refused_invalid_remote_port")
		r.sendConnectRefusal(pkt, session.ErrCodeInvalidRemotePort)
		return
	}

	// Both endpoints must speak this Rpc's transport.
	if pkt.Server.TransportKind != r.trans.Kind() || pkt.Client.TransportKind != r.trans.Kind() {
		log.WithFields(lf).Warn("connect_refused_invalid_transport")
		r.sendConnectRefusal(pkt, session.ErrCodeInvalidTransport)
		return
	}

	// Retransmitted connect request for a live session: resend the stored
	// verdict instead of creating a second session.
	if _, s := r.findServerSession(&pkt.Client); s != nil {
		log.WithFields(lf).Debug("connect_req_duplicate_resend")
		resp := pkt.Response(session.ErrCodeNoError)
		resp.Server = s.Server
		r.sendSmPacket(&resp, pkt.Client.Host())
		return
	}

	// The token reached a final verdict and its session is gone. A response
	// would resurrect a connection the peer already tore down, so say
	// nothing.
	if r.tokenMap[pkt.Token] == tokenFinalized {
		log.WithFields(lf).Debug("connect_req_dropped_token_finalized")
		return
	}

	if r.recvsAvailable < r.cfg.SessionCredits {
		log.WithFields(lf).Warn("connect_refused_recvs_exhausted")
		r.sendConnectRefusal(pkt, session.ErrCodeRecvsExhausted)
		return
	}

	// Capacity counts tombstones. Slots are never reused, so a table that
	// has ever held MaxSessions sessions is full forever.
	if len(r.sessions) >= r.cfg.MaxSessions {
		log.WithFields(lf).Warn("connect_refused_too_many_sessions")
		r.sendConnectRefusal(pkt, session.ErrCodeTooManySessions)
		return
	}

	route, err := r.resolveRemoteRoute(&pkt.Client.RoutingInfo)
	if err != nil {
		log.WithFields(lf).WithError(err).Warn("connect_refused_routing_resolution")
		r.sendConnectRefusal(pkt, session.ErrCodeRoutingResolutionFailure)
		return
	}

	server := pkt.Server
	server.SessionNum = uint16(len(r.sessions))
	if err := r.trans.FillRoutingInfo(&server.RoutingInfo); err != nil {
		log.WithFields(lf).WithError(err).Warn("connect_refused_local_routing_fill")
		r.sendConnectRefusal(pkt, session.ErrCodeRoutingResolutionFailure)
		return
	}

	// Credits and memory commit together or not at all.
	r.recvsAvailable -= r.cfg.SessionCredits
	if err := r.alloc.Reserve(r.sessionWorkingSetBytes()); err != nil {
		r.recvsAvailable += r.cfg.SessionCredits
		log.WithFields(lf).WithError(err).Warn("connect_refused_out_of_memory")
		r.sendConnectRefusal(pkt, session.ErrCodeOutOfMemory)
		return
	}

	s := session.NewSession(session.RoleServer, pkt.Client, server, pkt.Token, r.cfg.SessionCredits)
	s.Route = route
	r.sessions = append(r.sessions, s)
	r.tokenMap[pkt.Token] = tokenPending

	resp := pkt.Response(session.ErrCodeNoError)
	resp.Server = s.Server
	r.sendSmPacket(&resp, pkt.Client.Host())
	log.WithFields(logger.Fields{
		"at":          "(Rpc) handleConnectReq",
		"rpc_id":      r.id,
		"session_num": s.Server.SessionNum,
		"client":      pkt.Client.String(),
		"token":       pkt.Token.String(),
	}).Debug("connect_accepted")
}

// handleConnectResp resolves a client session's connect attempt. Duplicate
// responses after the first terminal outcome are dropped, so the application
// callback fires at most once per attempt.
func (r *Rpc) handleConnectResp(pkt *session.Packet) {
	sn := int(pkt.Client.SessionNum)
	if sn >= len(r.sessions) {
		util.Panicf("rpc %d: connect response names session %d, table has %d slots",
			r.id, sn, len(r.sessions))
	}
	s := r.sessions[sn]
	if s == nil {
		log.WithFields(logger.Fields{
			"at":          "(Rpc) handleConnectResp",
			"rpc_id":      r.id,
			"session_num": sn,
		}).Debug("connect_resp_dropped_tombstone")
		return
	}
	if !s.IsClient() || s.Token != pkt.Token ||
		!s.Client.Matches(&pkt.Client) || !s.Server.SamePeer(&pkt.Server) {
		util.Panicf("rpc %d: connect response %s does not match session %s",
			r.id, pkt.String(), s.String())
	}
	if s.State != session.StateConnectInProgress {
		log.WithFields(logger.Fields{
			"at":          "(Rpc) handleConnectResp",
			"rpc_id":      r.id,
			"session_num": sn,
			"state":       s.State.String(),
		}).Debug("connect_resp_dropped_state_advanced")
		return
	}

	r.clearPendingSm(s.Token)

	if pkt.ErrCode.IsError() {
		s.State = session.StateError
		r.releaseSessionResources(s)
		log.WithFields(logger.Fields{
			"at":          "(Rpc) handleConnectResp",
			"rpc_id":      r.id,
			"session_num": sn,
			"err_code":    pkt.ErrCode.String(),
		}).Warn("connect_failed_by_server")
		r.invokeHandler(sn, session.EventConnectFailed, pkt.ErrCode)
		return
	}

	route, err := r.resolveRemoteRoute(&pkt.Server.RoutingInfo)
	if err != nil {
		s.State = session.StateError
		r.releaseSessionResources(s)
		log.WithFields(logger.Fields{
			"at":          "(Rpc) handleConnectResp",
			"rpc_id":      r.id,
			"session_num": sn,
		}).WithError(err).Warn("connect_failed_server_route_unresolvable")
		r.invokeHandler(sn, session.EventConnectFailed, session.ErrCodeRoutingResolutionFailure)
		return
	}

	s.Server = pkt.Server
	s.Route = route
	s.State = session.StateConnected
	log.WithFields(logger.Fields{
		"at":                 "(Rpc) handleConnectResp",
		"rpc_id":             r.id,
		"session_num":        sn,
		"server_session_num": pkt.Server.SessionNum,
	}).Debug("connect_completed")
	r.invokeHandler(sn, session.EventConnected, session.ErrCodeNoError)
}

// sendConnectRefusal answers a connect request with a negative verdict.
func (r *Rpc) sendConnectRefusal(pkt *session.Packet, code session.ErrCode) {
	resp := pkt.Response(code)
	r.sendSmPacket(&resp, pkt.Client.Host())
}

// sendSmPacket hands one packet to the control-plane client. Send failures
// are logged and absorbed; the retransmission machinery or the peer's own
// retry covers the loss.
func (r *Rpc) sendSmPacket(pkt *session.Packet, dest string) {
	if err := r.client.Send(pkt, dest); err != nil {
		log.WithFields(logger.Fields{
			"at":     "(Rpc) sendSmPacket",
			"rpc_id": r.id,
			"type":   pkt.Type.String(),
			"dest":   dest,
		}).WithError(err).Warn("sm_send_failed")
	}
}

// resolveRemoteRoute turns a peer's routing info into a data-path route,
// honoring the fault-injection override.
func (r *Rpc) resolveRemoteRoute(ri *transport.RoutingInfo) (transport.Route, error) {
	if r.faults.failResolveRoutingInfo {
		return nil, transport.ErrMalformedRoutingInfo
	}
	return r.trans.ResolveRoutingInfo(ri)
}

// findServerSession scans the live slots for the server-role session created
// for the given client endpoint. Returns (-1, nil) when no such session
// exists.
func (r *Rpc) findServerSession(client *session.Endpoint) (int, *session.Session) {
	for i, s := range r.sessions {
		if s != nil && !s.IsClient() && s.Client.Matches(client) {
			return i, s
		}
	}
	return -1, nil
}
