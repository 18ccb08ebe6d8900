package nexus

import (
	"net"
	"sync"

	"github.com/eapache/queue"
	cb "github.com/emirpasic/gods/queues/circularbuffer"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
)

// egressRingCapacity bounds the datagrams a Client holds between flushes.
// Overwriting the oldest entry under overload is acceptable: unanswered
// management exchanges are retransmitted by their owner.
const egressRingCapacity = 1024

// outbound is one marshaled datagram awaiting flush.
type outbound struct {
	data  []byte
	raddr *net.UDPAddr
}

// Client emits management packets. One Client belongs to one Rpc and is only
// driven from that Rpc's event loop, but the mutex keeps it safe for stray
// concurrent use.
//
// In recording mode nothing touches the wire; sent packets are copied into a
// FIFO for tests to inspect.
type Client struct {
	mu        sync.Mutex
	conn      *net.UDPConn
	egress    *cb.Queue
	addrCache map[string]*net.UDPAddr

	recording bool
	sent      *queue.Queue

	closed bool
}

// NewClient binds the sending socket on an OS-assigned port.
func NewClient() (*Client, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, oops.Errorf("binding sm client socket: %w", err)
	}
	log.WithFields(logger.Fields{
		"at":    "nexus.NewClient",
		"local": conn.LocalAddr().String(),
	}).Debug("sm_client_created")
	return &Client{
		conn:      conn,
		egress:    cb.New(egressRingCapacity),
		addrCache: make(map[string]*net.UDPAddr),
	}, nil
}

// EnableRecording switches the client to capture mode. There is no way back;
// a recording client never sends.
func (c *Client) EnableRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = true
	if c.sent == nil {
		c.sent = queue.New()
	}
	log.Debug("sm client recording enabled")
}

// SentQueueSize returns the number of recorded packets not yet popped.
func (c *Client) SentQueueSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent == nil {
		return 0
	}
	return c.sent.Length()
}

// SentQueuePop removes and returns the oldest recorded packet.
func (c *Client) SentQueuePop() (session.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent == nil || c.sent.Length() == 0 {
		return session.Packet{}, ErrSentQueueEmpty
	}
	return c.sent.Remove().(session.Packet), nil
}

// Send marshals the packet and emits it toward destAddr ("host:port" of the
// peer's Nexus). Never blocks on the socket beyond one non-blocking write per
// queued datagram.
func (c *Client) Send(pkt *session.Packet, destAddr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	if c.recording {
		c.sent.Add(*pkt)
		return nil
	}
	data, err := pkt.MarshalBinary()
	if err != nil {
		return oops.Errorf("marshaling sm packet: %w", err)
	}
	raddr, err := c.resolveLocked(destAddr)
	if err != nil {
		return err
	}
	c.egress.Enqueue(outbound{data: data, raddr: raddr})
	c.flushLocked()
	return nil
}

// resolveLocked caches destination resolution; control-plane peers are
// static for the process lifetime.
func (c *Client) resolveLocked(destAddr string) (*net.UDPAddr, error) {
	if raddr, ok := c.addrCache[destAddr]; ok {
		return raddr, nil
	}
	raddr, err := net.ResolveUDPAddr("udp", destAddr)
	if err != nil {
		return nil, oops.Errorf("resolving sm destination %q: %w", destAddr, err)
	}
	c.addrCache[destAddr] = raddr
	return raddr, nil
}

// flushLocked drains the egress ring. Write failures drop the datagram; the
// channel is unreliable by contract and owners retransmit.
func (c *Client) flushLocked() {
	for !c.egress.Empty() {
		v, _ := c.egress.Dequeue()
		ob := v.(outbound)
		if _, err := c.conn.WriteToUDP(ob.data, ob.raddr); err != nil {
			log.WithFields(logger.Fields{
				"at":    "(Client) flushLocked",
				"dest":  ob.raddr.String(),
				"error": err.Error(),
			}).Warn("sm_send_failed")
		}
	}
}

// Close tears the sending socket down. A recording client keeps its FIFO
// readable after Close.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
