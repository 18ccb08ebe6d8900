package session

import (
	"fmt"

	"github.com/go-fabrpc/go-fabrpc/lib/transport"
)

// Role fixes which side of the connection a Session record describes.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// State is the lifecycle state of a Session.
//
// Client sessions move ConnectInProgress -> Connected -> DisconnectInProgress
// and then leave the table, or ConnectInProgress -> Error when the connect
// attempt is refused. Server sessions exist only in Connected; their teardown
// runs to completion inside one handler call.
type State uint8

const (
	StateConnectInProgress State = iota
	StateConnected
	StateDisconnectInProgress
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnectInProgress:
		return "connect-in-progress"
	case StateConnected:
		return "connected"
	case StateDisconnectInProgress:
		return "disconnect-in-progress"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// EventType identifies a session event delivered to the application handler.
type EventType uint8

const (
	EventConnected EventType = iota
	EventConnectFailed
	EventDisconnected
)

func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect-failed"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// Session is one side's record of a logical connection. A Session occupies
// exactly one slot in its owning Rpc's table; the slot is tombstoned on
// teardown and never reused for the lifetime of the process.
type Session struct {
	Role  Role
	State State

	// Client and Server stay byte-identical to the negotiated endpoint pair
	// for the whole life of the session. The owning Rpc treats any packet
	// that contradicts them as a protocol violation.
	Client Endpoint
	Server Endpoint

	// Token is the connect token of the attempt that created this session.
	Token Token

	// Credits is the number of receive credits this session currently holds
	// out of the owning Rpc's pool. Zero after the resources have been
	// returned.
	Credits int

	// Route is the resolved data-path address of the remote endpoint. Set by
	// the server at commit time and by the client when the connect response
	// arrives.
	Route transport.Route
}

// NewSession builds a session record in its role's birth state: server
// sessions are committed directly as Connected, client sessions start with
// the connect attempt in progress.
func NewSession(role Role, client, server Endpoint, tok Token, credits int) *Session {
	st := StateConnectInProgress
	if role == RoleServer {
		st = StateConnected
	}
	return &Session{
		Role:    role,
		State:   st,
		Client:  client,
		Server:  server,
		Token:   tok,
		Credits: credits,
	}
}

// IsClient reports whether this record describes the client side.
func (s *Session) IsClient() bool {
	return s.Role == RoleClient
}

// IsConnected reports whether the session is established and quiescent.
func (s *Session) IsConnected() bool {
	return s.State == StateConnected
}

// LocalEndpoint returns the endpoint owned by this side.
func (s *Session) LocalEndpoint() *Endpoint {
	if s.Role == RoleClient {
		return &s.Client
	}
	return &s.Server
}

// RemoteEndpoint returns the peer's endpoint.
func (s *Session) RemoteEndpoint() *Endpoint {
	if s.Role == RoleClient {
		return &s.Server
	}
	return &s.Client
}

func (s *Session) String() string {
	return fmt.Sprintf("[%s %s, client %s, server %s]",
		s.Role, s.State, s.Client.String(), s.Server.String())
}
