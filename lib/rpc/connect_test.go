package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-fabrpc/go-fabrpc/lib/config"
	"github.com/go-fabrpc/go-fabrpc/lib/session"
	"github.com/go-fabrpc/go-fabrpc/lib/transport"
)

func TestConnectAcceptCreatesSession(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	client := remoteEndpoint(t, 2, 0, "10.9.9.9:31850")
	tok := tokenFromUint(42)

	deliver(r, connectReqFor(t, r, tok, client))

	require.Equal(t, 1, r.NumSessions())
	s := r.sessions[0]
	require.NotNil(t, s)
	if s.IsClient() {
		t.Error("inbound connect must create a server-role session")
	}
	if !s.IsConnected() {
		t.Errorf("server session state = %s, want Connected", s.State)
	}
	assert.Equal(t, tok, s.Token)
	require.NotNil(t, s.Route, "client routing info must be resolved at accept time")

	resp := popSent(t, r)
	assert.Equal(t, session.PacketConnectResp, resp.Type)
	assert.Equal(t, session.ErrCodeNoError, resp.ErrCode)
	assert.Equal(t, tok, resp.Token)
	if resp.Server.SessionNum != 0 {
		t.Errorf("first session number = %d, want 0", resp.Server.SessionNum)
	}
	if resp.Server.RoutingInfo.IsZero() {
		t.Error("response must carry the server's routing info")
	}
	assert.Equal(t, 0, r.client.SentQueueSize(), "exactly one response per request")

	// Credits and memory are held by the new session.
	assert.Equal(t, 14, r.RecvsAvailable())
	assert.Equal(t, uint64(2*transport.LoopbackMTU), r.alloc.StatUserAlloc())
}

func TestConnectDuplicateResendsVerdict(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	client := remoteEndpoint(t, 2, 3, "10.9.9.9:31850")
	req := connectReqFor(t, r, session.NewToken(), client)

	deliver(r, req)
	first := popSent(t, r)

	// The retransmit must not create a second session or take more credits.
	deliver(r, req)
	second := popSent(t, r)

	assert.Equal(t, 1, r.NumSessions())
	assert.Equal(t, 14, r.RecvsAvailable())
	assert.Equal(t, first.Server.SessionNum, second.Server.SessionNum)
	assert.Equal(t, session.ErrCodeNoError, second.ErrCode)
	assert.Equal(t, first.Token, second.Token)
}

func TestConnectRefusedWrongPhyPort(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	req := connectReqFor(t, r, session.NewToken(), remoteEndpoint(t, 2, 0, "10.9.9.9:1"))
	req.Server.PhyPort = 99

	deliver(r, req)

	resp := popSent(t, r)
	assert.Equal(t, session.ErrCodeInvalidRemotePort, resp.ErrCode)
	assert.Equal(t, 0, r.NumSessions())
	assert.Equal(t, 16, r.RecvsAvailable())
}

func TestConnectRefusedWrongTransport(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	client, err := session.NewEndpoint(transport.KindUDP, 2, 7, 0, "10.9.9.9:1")
	require.NoError(t, err)
	req := connectReqFor(t, r, session.NewToken(), client)

	deliver(r, req)

	resp := popSent(t, r)
	assert.Equal(t, session.ErrCodeInvalidTransport, resp.ErrCode)
	assert.Equal(t, 0, r.NumSessions())
}

func TestConnectRefusedRecvsExhausted(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	r.recvsAvailable = r.cfg.SessionCredits - 1

	deliver(r, connectReqFor(t, r, session.NewToken(), remoteEndpoint(t, 2, 0, "10.9.9.9:1")))

	resp := popSent(t, r)
	assert.Equal(t, session.ErrCodeRecvsExhausted, resp.ErrCode)
	assert.Equal(t, 0, r.NumSessions())
	// The check must not itself consume credits.
	assert.Equal(t, r.cfg.SessionCredits-1, r.recvsAvailable)
}

func TestConnectRefusedTooManySessions(t *testing.T) {
	r := newTestRpc(t, nil, func(cfg *config.RpcConfig) { cfg.MaxSessions = 1 })

	clientA := remoteEndpoint(t, 2, 0, "10.1.1.1:1")
	tokA := session.NewToken()
	deliver(r, connectReqFor(t, r, tokA, clientA))
	popSent(t, r)

	// Tear the session down so only a tombstone remains.
	disc := connectReqFor(t, r, tokA, clientA)
	disc.Type = session.PacketDisconnectReq
	deliver(r, disc)
	popSent(t, r)
	require.Equal(t, 0, r.ActiveSessions())

	// Tombstones still count: slot numbers are never reused.
	deliver(r, connectReqFor(t, r, session.NewToken(), remoteEndpoint(t, 3, 0, "10.2.2.2:1")))
	resp := popSent(t, r)
	assert.Equal(t, session.ErrCodeTooManySessions, resp.ErrCode)
	assert.Equal(t, 1, r.NumSessions())
}

func TestConnectRefusedRoutingResolutionFault(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	r.FaultInjectFailResolveRoutingInfo(true)

	deliver(r, connectReqFor(t, r, session.NewToken(), remoteEndpoint(t, 2, 0, "10.9.9.9:1")))
	resp := popSent(t, r)
	assert.Equal(t, session.ErrCodeRoutingResolutionFailure, resp.ErrCode)
	assert.Equal(t, 0, r.NumSessions())
	assert.Equal(t, 16, r.RecvsAvailable())

	r.FaultInjectFailResolveRoutingInfo(false)
	deliver(r, connectReqFor(t, r, session.NewToken(), remoteEndpoint(t, 2, 0, "10.9.9.9:1")))
	assert.Equal(t, session.ErrCodeNoError, popSent(t, r).ErrCode)
}

func TestConnectRefusedOutOfMemory(t *testing.T) {
	r := newTestRpc(t, nil, nil)

	// Hoard the arena so one session working set no longer fits.
	capacity := uint64(r.cfg.AllocCapacityMB) << 20
	hoard := r.alloc.AllocRaw(capacity - transport.LoopbackMTU)
	require.NotNil(t, hoard)
	before := r.alloc.StatUserAlloc()

	deliver(r, connectReqFor(t, r, session.NewToken(), remoteEndpoint(t, 2, 0, "10.9.9.9:1")))

	resp := popSent(t, r)
	assert.Equal(t, session.ErrCodeOutOfMemory, resp.ErrCode)
	assert.Equal(t, 0, r.NumSessions())
	// All-or-nothing: the credits taken for the attempt came back and the
	// allocator accounting is untouched.
	assert.Equal(t, 16, r.RecvsAvailable())
	assert.Equal(t, before, r.alloc.StatUserAlloc())
}

func TestConnectAfterTeardownIsSilent(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	client := remoteEndpoint(t, 2, 0, "10.9.9.9:1")
	tok := tokenFromUint(42)

	deliver(r, connectReqFor(t, r, tok, client))
	popSent(t, r)

	disc := connectReqFor(t, r, tok, client)
	disc.Type = session.PacketDisconnectReq
	deliver(r, disc)
	popSent(t, r)
	require.Equal(t, 0, r.ActiveSessions())

	// A late retransmit of the original connect must not resurrect the
	// session, and must not be answered.
	deliver(r, connectReqFor(t, r, tok, client))
	assert.Equal(t, 1, r.NumSessions())
	assert.Equal(t, 0, r.client.SentQueueSize())
}

func TestResetTokenTableAllowsReconnect(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	client := remoteEndpoint(t, 2, 0, "10.9.9.9:1")
	tok := tokenFromUint(42)

	deliver(r, connectReqFor(t, r, tok, client))
	popSent(t, r)
	disc := connectReqFor(t, r, tok, client)
	disc.Type = session.PacketDisconnectReq
	deliver(r, disc)
	popSent(t, r)

	r.ResetTokenTable()

	deliver(r, connectReqFor(t, r, tok, client))
	resp := popSent(t, r)
	assert.Equal(t, session.ErrCodeNoError, resp.ErrCode)
	// The revived attempt lands in a new slot; the tombstone stays dead.
	assert.Equal(t, 2, r.NumSessions())
	assert.Nil(t, r.sessions[0])
	require.NotNil(t, r.sessions[1])
	if resp.Server.SessionNum != 1 {
		t.Errorf("reconnect session number = %d, want 1", resp.Server.SessionNum)
	}
}
