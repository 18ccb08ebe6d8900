// Package nexus runs the per-process side of the session-management control
// plane: one UDP listener shared by every Rpc in the process, and the client
// used to emit management packets toward peers.
//
// # Overview
//
// A process creates exactly one Nexus. Each Rpc registers a Hook keyed by its
// rpc id; the Nexus receive loop decodes each datagram into a management
// packet and drops it into the owning Rpc's mailbox. Requests are routed by
// the server endpoint's rpc id, responses by the client endpoint's rpc id.
// Packets for unregistered ids are dropped; the control channel is unreliable
// by contract and senders retransmit.
//
// # Client
//
// Client is the non-blocking sender. Outbound datagrams pass through a
// bounded egress ring so a handler burst cannot block on the socket; when the
// ring is full the oldest datagram is overwritten, which is safe because
// every management exchange is retransmitted until acknowledged.
//
// Recording mode replaces the wire entirely: sent packets are captured in a
// FIFO the caller pops, which is how handler tests assert "exactly one
// response, carrying this verdict" without a network.
//
// # Lifecycle
//
//	nx, err := nexus.New(cfg)
//	nx.Start()
//	defer nx.Close()
//
// Start launches the receive loop; Stop asks it to exit; Wait blocks until it
// has; Close does Stop, Wait and socket teardown.
package nexus
