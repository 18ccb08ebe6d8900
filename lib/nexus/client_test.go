package nexus

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
)

func TestClientRecording(t *testing.T) {
	cl, err := NewClient()
	require.NoError(t, err)
	defer cl.Close()
	cl.EnableRecording()

	assert.Equal(t, 0, cl.SentQueueSize())
	_, err = cl.SentQueuePop()
	assert.ErrorIs(t, err, ErrSentQueueEmpty)

	first := testPacket(t, session.PacketConnectReq, 1, 2)
	second := testPacket(t, session.PacketDisconnectReq, 1, 2)
	require.NoError(t, cl.Send(first, "nowhere:1"))
	require.NoError(t, cl.Send(second, "nowhere:1"))
	assert.Equal(t, 2, cl.SentQueueSize())

	got, err := cl.SentQueuePop()
	require.NoError(t, err)
	if got.Token != first.Token {
		t.Error("SentQueuePop() must return packets in send order")
	}
	got, err = cl.SentQueuePop()
	require.NoError(t, err)
	assert.Equal(t, second.Token, got.Token)
	assert.Equal(t, 0, cl.SentQueueSize())
}

func TestClientRecordingSurvivesClose(t *testing.T) {
	cl, err := NewClient()
	require.NoError(t, err)
	cl.EnableRecording()
	require.NoError(t, cl.Send(testPacket(t, session.PacketConnectReq, 1, 2), "x:1"))
	require.NoError(t, cl.Close())

	got, err := cl.SentQueuePop()
	require.NoError(t, err)
	assert.Equal(t, session.PacketConnectReq, got.Type)
}

func TestClientSendAfterClose(t *testing.T) {
	cl, err := NewClient()
	require.NoError(t, err)
	require.NoError(t, cl.Close())
	err = cl.Send(testPacket(t, session.PacketConnectReq, 1, 2), "127.0.0.1:1")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClientSendsWireDatagram(t *testing.T) {
	laddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	sink, err := net.ListenUDP("udp", laddr)
	require.NoError(t, err)
	defer sink.Close()

	cl, err := NewClient()
	require.NoError(t, err)
	defer cl.Close()

	pkt := testPacket(t, session.PacketConnectReq, 1, 2)
	require.NoError(t, cl.Send(pkt, sink.LocalAddr().String()))

	buf := make([]byte, session.PacketWireSize+16)
	sink.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := sink.ReadFromUDP(buf)
	require.NoError(t, err)
	if n != session.PacketWireSize {
		t.Fatalf("datagram size = %d, want %d", n, session.PacketWireSize)
	}

	var got session.Packet
	require.NoError(t, got.UnmarshalBinary(buf[:n]))
	assert.Equal(t, pkt.Token, got.Token)
	if !got.Client.Matches(&pkt.Client) {
		t.Error("client endpoint did not survive the wire")
	}
}
