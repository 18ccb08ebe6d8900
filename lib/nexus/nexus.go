package nexus

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-fabrpc/go-fabrpc/lib/config"
	"github.com/go-fabrpc/go-fabrpc/lib/session"
)

var log = logger.GetGoI2PLogger()

// recvPollInterval bounds how long the receive loop sleeps in the kernel
// before rechecking the running flag.
const recvPollInterval = 200 * time.Millisecond

// Nexus owns the process-wide SM UDP listener and routes decoded management
// packets to per-Rpc hooks.
type Nexus struct {
	hostAddr string
	conn     *net.UDPConn

	hookMux sync.RWMutex
	hooks   map[uint8]Hook

	// dropAllRx makes the receive loop discard every datagram. Test and
	// maintenance switch.
	dropAllRx int32 // atomic

	running  bool
	runMux   sync.RWMutex
	loopDone chan struct{}
}

// New binds the SM UDP listener. The advertised host address combines the
// configured advertise host with the actually bound port, so configurations
// with port 0 still advertise something peers can reach.
func New(cfg *config.NexusConfig) (*Nexus, error) {
	if cfg == nil {
		cfg = config.DefaultNexusConfig()
	}
	laddr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr())
	if err != nil {
		return nil, oops.Errorf("resolving sm listen address %q: %w", cfg.ListenAddr(), err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, oops.Errorf("binding sm udp listener: %w", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	hostAddr := net.JoinHostPort(cfg.AdvertiseHost, strconv.Itoa(port))
	log.WithFields(logger.Fields{
		"at":        "nexus.New",
		"listen":    conn.LocalAddr().String(),
		"host_addr": hostAddr,
	}).Debug("nexus_created")
	return &Nexus{
		hostAddr: hostAddr,
		conn:     conn,
		hooks:    make(map[uint8]Hook),
		loopDone: make(chan struct{}),
	}, nil
}

// HostAddr returns the "host:port" peers use to reach this Nexus. Endpoints
// owned by local Rpcs carry it in their host address field.
func (n *Nexus) HostAddr() string {
	return n.hostAddr
}

// Start launches the receive loop.
func (n *Nexus) Start() {
	n.runMux.Lock()
	defer n.runMux.Unlock()
	if n.running {
		log.WithFields(logger.Fields{
			"at":     "(Nexus) Start",
			"reason": "already running",
		}).Error("nexus_start_ignored")
		return
	}
	n.running = true
	go n.recvLoop()
	log.WithFields(logger.Fields{
		"at":        "(Nexus) Start",
		"host_addr": n.hostAddr,
	}).Debug("nexus_started")
}

// Stop asks the receive loop to exit. Safe to call more than once.
func (n *Nexus) Stop() {
	n.runMux.Lock()
	defer n.runMux.Unlock()
	if !n.running {
		return
	}
	n.running = false
	// Kick the blocked read so the loop rechecks the flag promptly.
	n.conn.SetReadDeadline(time.Now())
	log.Debug("nexus stop requested")
}

// Wait blocks until the receive loop has exited.
func (n *Nexus) Wait() {
	<-n.loopDone
}

// Close stops the receive loop and tears the socket down.
func (n *Nexus) Close() error {
	n.Stop()
	n.Wait()
	err := n.conn.Close()
	log.WithFields(logger.Fields{
		"at": "(Nexus) Close",
	}).Debug("nexus_closed")
	return err
}

// RegisterHook installs the mailbox for an rpc id.
func (n *Nexus) RegisterHook(h Hook) error {
	if h == nil {
		return ErrNilHook
	}
	n.hookMux.Lock()
	defer n.hookMux.Unlock()
	id := h.RpcID()
	if _, ok := n.hooks[id]; ok {
		log.WithFields(logger.Fields{
			"at":     "(Nexus) RegisterHook",
			"rpc_id": id,
		}).Error("duplicate_hook_registration")
		return ErrHookExists
	}
	n.hooks[id] = h
	log.WithFields(logger.Fields{
		"at":     "(Nexus) RegisterHook",
		"rpc_id": id,
	}).Debug("hook_registered")
	return nil
}

// UnregisterHook removes the mailbox for an rpc id. Packets for the id are
// dropped afterwards.
func (n *Nexus) UnregisterHook(id uint8) {
	n.hookMux.Lock()
	defer n.hookMux.Unlock()
	delete(n.hooks, id)
	log.WithFields(logger.Fields{
		"at":     "(Nexus) UnregisterHook",
		"rpc_id": id,
	}).Debug("hook_unregistered")
}

// DropAllRx toggles discarding of every received datagram.
func (n *Nexus) DropAllRx(drop bool) {
	if drop {
		atomic.StoreInt32(&n.dropAllRx, 1)
	} else {
		atomic.StoreInt32(&n.dropAllRx, 0)
	}
}

func (n *Nexus) isRunning() bool {
	n.runMux.RLock()
	defer n.runMux.RUnlock()
	return n.running
}

// hookFor routes a packet to the rpc id it is addressed to: requests go to
// the server side, responses back to the client side.
func (n *Nexus) hookFor(pkt *session.Packet) Hook {
	id := pkt.Client.RpcID
	if pkt.IsRequest() {
		id = pkt.Server.RpcID
	}
	n.hookMux.RLock()
	defer n.hookMux.RUnlock()
	return n.hooks[id]
}

func (n *Nexus) recvLoop() {
	defer close(n.loopDone)
	buf := make([]byte, session.PacketWireSize+64)
	for n.isRunning() {
		n.conn.SetReadDeadline(time.Now().Add(recvPollInterval))
		sz, raddr, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.WithFields(logger.Fields{
				"at":    "(Nexus) recvLoop",
				"error": err.Error(),
			}).Warn("sm_read_failed")
			return
		}
		if atomic.LoadInt32(&n.dropAllRx) == 1 {
			log.WithFields(logger.Fields{
				"at":   "(Nexus) recvLoop",
				"from": raddr.String(),
			}).Debug("datagram_dropped_drop_all_rx")
			continue
		}
		pkt := new(session.Packet)
		if err := pkt.UnmarshalBinary(buf[:sz]); err != nil {
			log.WithFields(logger.Fields{
				"at":    "(Nexus) recvLoop",
				"from":  raddr.String(),
				"bytes": sz,
				"error": err.Error(),
			}).Warn("sm_packet_rejected")
			continue
		}
		hook := n.hookFor(pkt)
		if hook == nil {
			log.WithFields(logger.Fields{
				"at":     "(Nexus) recvLoop",
				"from":   raddr.String(),
				"packet": pkt.String(),
			}).Warn("no_hook_for_packet")
			continue
		}
		hook.EnqueuePacket(pkt)
	}
}
