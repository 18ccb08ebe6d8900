package rpc

import (
	"net"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
)

// CreateSession starts a connect attempt to the Rpc identified by
// (serverURI, serverRpcID, serverPhyPort), where serverURI is the
// "host:port" address of the server's management listener. It returns the
// local session number immediately; the outcome arrives later through the
// session handler as Connected or ConnectFailed. Resources for the session
// are reserved up front and held until the attempt resolves.
func (r *Rpc) CreateSession(serverURI string, serverRpcID uint8, serverPhyPort uint16) (int, error) {
	if r.handler == nil {
		return -1, ErrSmHandlerRequired
	}
	if _, _, err := net.SplitHostPort(serverURI); err != nil {
		return -1, oops.Errorf("rpc %d: bad server uri %q: %w", r.id, serverURI, err)
	}
	if r.recvsAvailable < r.cfg.SessionCredits {
		return -1, ErrNoReceiveCredits
	}
	if len(r.sessions) >= r.cfg.MaxSessions {
		return -1, ErrTooManySessions
	}

	sn := len(r.sessions)
	client, err := session.NewEndpoint(r.trans.Kind(), r.id, r.trans.PhyPort(),
		uint16(sn), r.nexus.HostAddr())
	if err != nil {
		return -1, oops.Errorf("rpc %d: building client endpoint: %w", r.id, err)
	}
	if err := r.trans.FillRoutingInfo(&client.RoutingInfo); err != nil {
		return -1, oops.Errorf("rpc %d: filling local routing info: %w", r.id, err)
	}
	server, err := session.NewEndpoint(r.trans.Kind(), serverRpcID, serverPhyPort,
		session.InvalidSessionNum, serverURI)
	if err != nil {
		return -1, oops.Errorf("rpc %d: building server endpoint: %w", r.id, err)
	}

	r.recvsAvailable -= r.cfg.SessionCredits
	if err := r.alloc.Reserve(r.sessionWorkingSetBytes()); err != nil {
		r.recvsAvailable += r.cfg.SessionCredits
		return -1, oops.Errorf("rpc %d: reserving session memory: %w", r.id, err)
	}

	tok := session.NewToken()
	s := session.NewSession(session.RoleClient, client, server, tok, r.cfg.SessionCredits)
	r.sessions = append(r.sessions, s)

	req := &session.Packet{
		Type:    session.PacketConnectReq,
		ErrCode: session.ErrCodeNoError,
		Token:   tok,
		Client:  client,
		Server:  server,
	}
	r.registerPendingSm(tok, req, serverURI)
	r.sendSmPacket(req, serverURI)
	log.WithFields(logger.Fields{
		"at":          "(Rpc) CreateSession",
		"rpc_id":      r.id,
		"session_num": sn,
		"server_uri":  serverURI,
		"server_rpc":  serverRpcID,
		"token":       tok.String(),
	}).Debug("connect_started")
	return sn, nil
}

// DestroySession tears down a client session. A connected session starts the
// disconnect handshake and resolves later through the Disconnected event; a
// session stuck in StateError is buried locally with no wire traffic and no
// callback. Attempts still connecting cannot be destroyed until they
// resolve.
func (r *Rpc) DestroySession(sn int) error {
	if sn < 0 || sn >= len(r.sessions) {
		return oops.Errorf("rpc %d: session %d: %w", r.id, sn, ErrInvalidSessionNum)
	}
	s := r.sessions[sn]
	if s == nil {
		return oops.Errorf("rpc %d: session %d: %w", r.id, sn, ErrSessionDestroyed)
	}
	if !s.IsClient() {
		return oops.Errorf("rpc %d: session %d: %w", r.id, sn, ErrNotClientSession)
	}

	switch s.State {
	case session.StateConnectInProgress:
		return oops.Errorf("rpc %d: session %d: %w", r.id, sn, ErrConnectInProgress)
	case session.StateDisconnectInProgress:
		return oops.Errorf("rpc %d: session %d: %w", r.id, sn, ErrDisconnectInProgress)
	case session.StateError:
		r.releaseSessionResources(s)
		r.sessions[sn] = nil
		log.WithFields(logger.Fields{
			"at":          "(Rpc) DestroySession",
			"rpc_id":      r.id,
			"session_num": sn,
		}).Debug("errored_session_buried")
		return nil
	}

	s.State = session.StateDisconnectInProgress
	req := &session.Packet{
		Type:    session.PacketDisconnectReq,
		ErrCode: session.ErrCodeNoError,
		Token:   s.Token,
		Client:  s.Client,
		Server:  s.Server,
	}
	r.registerPendingSm(s.Token, req, s.Server.Host())
	r.sendSmPacket(req, s.Server.Host())
	log.WithFields(logger.Fields{
		"at":          "(Rpc) DestroySession",
		"rpc_id":      r.id,
		"session_num": sn,
		"token":       s.Token.String(),
	}).Debug("disconnect_started")
	return nil
}
