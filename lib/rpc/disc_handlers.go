package rpc

import (
	"github.com/go-i2p/logger"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
	"github.com/go-fabrpc/go-fabrpc/lib/util"
)

// handleDisconnectReq tears down the server side of a session. The response
// is the commit: once it is sent the slot is a tombstone and the token's
// verdict is final, so a lost response is answered again from the token
// table alone.
func (r *Rpc) handleDisconnectReq(pkt *session.Packet) {
	lf := logger.Fields{
		"at":     "(Rpc) handleDisconnectReq",
		"rpc_id": r.id,
		"client": pkt.Client.String(),
		"token":  pkt.Token.String(),
	}

	idx, s := r.findServerSession(&pkt.Client)
	if s != nil {
		// A live session tears down only with the token that created it.
		if s.Token != pkt.Token {
			log.WithFields(lf).Warn("disconnect_req_dropped_token_mismatch")
			return
		}
		s.State = session.StateDisconnectInProgress
		resp := pkt.Response(session.ErrCodeNoError)
		resp.Server = s.Server
		r.releaseSessionResources(s)
		r.sessions[idx] = nil
		r.tokenMap[pkt.Token] = tokenFinalized
		r.sendSmPacket(&resp, pkt.Client.Host())
		log.WithFields(logger.Fields{
			"at":          "(Rpc) handleDisconnectReq",
			"rpc_id":      r.id,
			"session_num": idx,
			"token":       pkt.Token.String(),
		}).Debug("session_destroyed_by_peer")
		return
	}

	// The session is gone. If this token's teardown already committed, the
	// peer lost our response; acknowledge again. Anything else is a stray.
	if r.tokenMap[pkt.Token] == tokenFinalized {
		log.WithFields(lf).Debug("disconnect_req_reacked")
		resp := pkt.Response(session.ErrCodeNoError)
		r.sendSmPacket(&resp, pkt.Client.Host())
		return
	}
	log.WithFields(lf).Debug("disconnect_req_dropped_unknown")
}

// handleDisconnectResp commits the client side of a teardown. The tombstone
// check makes the commit idempotent under duplicate responses, so the
// Disconnected callback fires exactly once.
func (r *Rpc) handleDisconnectResp(pkt *session.Packet) {
	sn := int(pkt.Client.SessionNum)
	if sn >= len(r.sessions) {
		util.Panicf("rpc %d: disconnect response names session %d, table has %d slots",
			r.id, sn, len(r.sessions))
	}
	s := r.sessions[sn]
	if s == nil {
		log.WithFields(logger.Fields{
			"at":          "(Rpc) handleDisconnectResp",
			"rpc_id":      r.id,
			"session_num": sn,
		}).Debug("disconnect_resp_dropped_tombstone")
		return
	}
	if !s.IsClient() || s.Token != pkt.Token ||
		!s.Client.Matches(&pkt.Client) || !s.Server.Matches(&pkt.Server) {
		util.Panicf("rpc %d: disconnect response %s does not match session %s",
			r.id, pkt.String(), s.String())
	}
	if s.State != session.StateDisconnectInProgress {
		log.WithFields(logger.Fields{
			"at":          "(Rpc) handleDisconnectResp",
			"rpc_id":      r.id,
			"session_num": sn,
			"state":       s.State.String(),
		}).Debug("disconnect_resp_dropped_not_disconnecting")
		return
	}

	r.clearPendingSm(s.Token)
	r.releaseSessionResources(s)
	r.sessions[sn] = nil
	log.WithFields(logger.Fields{
		"at":          "(Rpc) handleDisconnectResp",
		"rpc_id":      r.id,
		"session_num": sn,
	}).Debug("session_destroyed")
	r.invokeHandler(sn, session.EventDisconnected, session.ErrCodeNoError)
}
