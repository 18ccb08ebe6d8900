package rpc

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
)

func TestBatchDrainPreservesArrivalOrder(t *testing.T) {
	r := newTestRpc(t, nil, nil)

	hosts := []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"}
	for i, h := range hosts {
		req := connectReqFor(t, r, session.NewToken(), remoteEndpoint(t, uint8(2+i), 0, h))
		cp := *req
		r.EnqueuePacket(&cp)
	}
	require.Equal(t, 3, r.smQ.pendingCount())

	// One turn handles the whole backlog in arrival order.
	r.RunEventLoopOnce()

	assert.Equal(t, 0, r.smQ.pendingCount())
	require.Equal(t, 3, r.NumSessions())
	for i, h := range hosts {
		require.NotNil(t, r.sessions[i])
		if got := r.sessions[i].Client.Host(); got != h {
			t.Errorf("slot %d holds client %s, want %s", i, got, h)
		}
	}
	assert.Equal(t, 3, r.client.SentQueueSize())
}

func TestSmQueueConcurrentEnqueue(t *testing.T) {
	var q smQueue
	var wg sync.WaitGroup
	const workers, perWorker = 8, 50

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				q.enqueue(&session.Packet{Type: session.PacketConnectReq})
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, q.pendingCount())
	pkts := q.drain()
	assert.Len(t, pkts, workers*perWorker)
	assert.Equal(t, 0, q.pendingCount())
	assert.Empty(t, q.drain())
}

func TestRunEventLoopIdlesQuietly(t *testing.T) {
	r := newTestRpc(t, nil, nil)
	// Nothing queued, nothing pending: a turn must be a no-op.
	r.RunEventLoopOnce()
	assert.Equal(t, 0, r.client.SentQueueSize())
	assert.Equal(t, 0, r.NumSessions())
}

func TestSelfSentPacketPanics(t *testing.T) {
	r := newTestRpc(t, nil, nil)

	// A request whose client endpoint names this very rpc means the process
	// fed its own outbound traffic back into its mailbox.
	self, err := session.NewEndpoint(r.trans.Kind(), r.id, r.trans.PhyPort(), 0, r.nexus.HostAddr())
	require.NoError(t, err)
	req := connectReqFor(t, r, session.NewToken(), self)

	r.EnqueuePacket(req)
	assert.Panics(t, func() { r.RunEventLoopOnce() })
}

func TestConnectRespOutOfRangePanics(t *testing.T) {
	r := newTestRpc(t, &recorder{}, nil)

	_, req := startConnect(t, r)
	resp := serverAccept(t, req, 5)
	resp.Client.SessionNum = 7 // no such slot was ever created

	r.EnqueuePacket(&resp)
	assert.Panics(t, func() { r.RunEventLoopOnce() })
}

func TestConnectRespMetadataMismatchPanics(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*session.Packet)
	}{
		{"token", func(p *session.Packet) { p.Token = session.NewToken() }},
		{"client_endpoint", func(p *session.Packet) { p.Client.PhyPort = 42 }},
		{"server_peer", func(p *session.Packet) { p.Server.RpcID = 42 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRpc(t, &recorder{}, nil)
			_, req := startConnect(t, r)
			resp := serverAccept(t, req, 5)
			tt.mutate(&resp)

			r.EnqueuePacket(&resp)
			assert.Panics(t, func() { r.RunEventLoopOnce() })
		})
	}
}

func TestDisconnectRespOutOfRangePanics(t *testing.T) {
	r := newTestRpc(t, &recorder{}, nil)

	var resp session.Packet
	resp.Type = session.PacketDisconnectResp
	resp.Client = remoteEndpoint(t, 1, 3, "10.0.0.1:1")
	resp.Server = remoteEndpoint(t, 9, 0, "10.0.0.2:1")

	r.EnqueuePacket(&resp)
	assert.Panics(t, func() { r.RunEventLoopOnce() })
}

func TestInvalidPacketTypePanics(t *testing.T) {
	r := newTestRpc(t, nil, nil)

	// The wire codec rejects unknown types, so one in the mailbox is an
	// in-process corruption.
	pkt := &session.Packet{Type: session.PacketType(9)}
	pkt.Client = remoteEndpoint(t, 2, 0, "10.0.0.1:1")
	pkt.Server = remoteEndpoint(t, 9, 0, "10.0.0.2:1")

	r.EnqueuePacket(pkt)
	assert.Panics(t, func() { r.RunEventLoopOnce() })
}

func TestEventLoopHandlesBurstOfMixedTraffic(t *testing.T) {
	r := newTestRpc(t, nil, nil)

	// Interleave three connects and a teardown of the second in one batch.
	type peer struct {
		tok    session.Token
		client session.Endpoint
	}
	peers := make([]peer, 3)
	for i := range peers {
		peers[i] = peer{
			tok:    session.NewToken(),
			client: remoteEndpoint(t, uint8(2+i), 0, fmt.Sprintf("10.0.1.%d:1", i+1)),
		}
	}
	for _, p := range peers {
		cp := *connectReqFor(t, r, p.tok, p.client)
		r.EnqueuePacket(&cp)
	}
	disc := connectReqFor(t, r, peers[1].tok, peers[1].client)
	disc.Type = session.PacketDisconnectReq
	r.EnqueuePacket(disc)

	r.RunEventLoopOnce()

	assert.Equal(t, 3, r.NumSessions())
	assert.Equal(t, 2, r.ActiveSessions())
	assert.Nil(t, r.sessions[1], "second session torn down in the same batch")
	assert.Equal(t, 4, r.client.SentQueueSize(), "three accepts and one disconnect ack")
}
