package nexus

import "github.com/go-fabrpc/go-fabrpc/lib/session"

// Hook is the mailbox registration an Rpc installs with its Nexus. The
// receive loop calls EnqueuePacket from its own goroutine, so implementations
// must be safe to call concurrently with the owner's event loop and must not
// block.
type Hook interface {
	// RpcID returns the id this hook receives packets for.
	RpcID() uint8

	// EnqueuePacket hands a decoded management packet to the owner. The
	// packet is owned by the callee afterwards.
	EnqueuePacket(pkt *session.Packet)
}
