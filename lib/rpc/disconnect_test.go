package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
)

// connectedServerSession drives one inbound connect to completion and
// returns the request that created it plus the server's response.
func connectedServerSession(t *testing.T, r *Rpc, tok session.Token, host string) (req, resp session.Packet) {
	t.Helper()
	client := remoteEndpoint(t, 2, 0, host)
	reqp := connectReqFor(t, r, tok, client)
	deliver(r, reqp)
	resp = popSent(t, r)
	require.Equal(t, session.ErrCodeNoError, resp.ErrCode)
	return *reqp, resp
}

func TestDisconnectTearsDownServerSession(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	tok := session.NewToken()
	req, connResp := connectedServerSession(t, r, tok, "10.9.9.9:1")

	credits := r.RecvsAvailable()
	memory := r.alloc.StatUserAlloc()

	disc := session.Packet{
		Type:    session.PacketDisconnectReq,
		ErrCode: session.ErrCodeNoError,
		Token:   tok,
		Client:  req.Client,
		Server:  connResp.Server,
	}
	deliver(r, &disc)

	resp := popSent(t, r)
	assert.Equal(t, session.PacketDisconnectResp, resp.Type)
	assert.Equal(t, session.ErrCodeNoError, resp.ErrCode)
	assert.Equal(t, tok, resp.Token)

	assert.Equal(t, 1, r.NumSessions(), "tombstone keeps the slot occupied")
	assert.Nil(t, r.sessions[0])
	// Every resource the session held is back.
	assert.Equal(t, credits+r.cfg.SessionCredits, r.RecvsAvailable())
	assert.Less(t, r.alloc.StatUserAlloc(), memory)
}

func TestDisconnectReackedAfterCommit(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	tok := session.NewToken()
	req, connResp := connectedServerSession(t, r, tok, "10.9.9.9:1")

	disc := session.Packet{
		Type:   session.PacketDisconnectReq,
		Token:  tok,
		Client: req.Client,
		Server: connResp.Server,
	}
	deliver(r, &disc)
	popSent(t, r)

	// The peer lost our response and asks again: same verdict, no state
	// change, no panic.
	deliver(r, &disc)
	resp := popSent(t, r)
	assert.Equal(t, session.PacketDisconnectResp, resp.Type)
	assert.Equal(t, session.ErrCodeNoError, resp.ErrCode)
	assert.Equal(t, 0, r.ActiveSessions())
	assert.Equal(t, 16, r.RecvsAvailable())
}

func TestDisconnectUnknownTokenDropped(t *testing.T) {
	r := newTestRpc(t, nil, nil)

	disc := session.Packet{
		Type:   session.PacketDisconnectReq,
		Token:  session.NewToken(),
		Client: remoteEndpoint(t, 2, 0, "10.9.9.9:1"),
	}
	var err error
	disc.Server, err = session.NewEndpoint(r.trans.Kind(), r.id, r.trans.PhyPort(), 0, r.nexus.HostAddr())
	require.NoError(t, err)

	deliver(r, &disc)
	assert.Equal(t, 0, r.client.SentQueueSize(), "stray disconnect must be silent")
}

func TestDisconnectWrongTokenLeavesSessionAlive(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	req, connResp := connectedServerSession(t, r, session.NewToken(), "10.9.9.9:1")

	disc := session.Packet{
		Type:   session.PacketDisconnectReq,
		Token:  session.NewToken(), // not the session's token
		Client: req.Client,
		Server: connResp.Server,
	}
	deliver(r, &disc)

	assert.Equal(t, 0, r.client.SentQueueSize())
	assert.Equal(t, 1, r.ActiveSessions())
	require.NotNil(t, r.sessions[0])
	assert.True(t, r.sessions[0].IsConnected())
}
