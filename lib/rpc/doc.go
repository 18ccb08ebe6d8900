// Package rpc implements the session-management side of a fabrpc instance:
// session establishment, deduplication and teardown over an unreliable UDP
// control channel, coordinated with the finite resources the data path owns.
//
// # Overview
//
// An Rpc binds one rpc id on one Nexus, one transport on one physical port,
// one receive-credit pool and one hugepage budget. Its session table is an
// append-only slot array: a slot is assigned when a session is created,
// tombstoned to nil when the session dies, and never reused for the lifetime
// of the process, so late or duplicated packets can never alias a new
// session.
//
// # Event Loop
//
// All session state belongs to one owner goroutine. The Nexus receive loop
// only appends packets to the Rpc's mailbox; the owner drains the mailbox in
// batches from RunEventLoopOnce, dispatches each packet to its handler, and
// retransmits unanswered requests. Handlers never block: every reaction to a
// packet is a state mutation plus at most one response sent through the
// non-blocking control-plane client.
//
// # Failure Model
//
// Handlers refuse operational failures (wrong port, wrong transport,
// exhausted credits, full table, unresolvable routing, exhausted memory) with
// negative responses naming the verdict, and commit nothing on the refused
// attempt. Protocol violations (a packet from this very Rpc, a response
// naming an impossible slot, endpoint metadata that contradicts the stored
// session) are defects: the process panics rather than continue on corrupted
// state.
//
// # Usage
//
//	nx, _ := nexus.New(nil)
//	nx.Start()
//	r, _ := rpc.New(nx, 0, handler, nil, nil)
//	sn, _ := r.CreateSession("server-host:31850", 1, 0)
//	for !done {
//		r.RunEventLoopOnce()
//	}
//	r.DestroySession(sn)
package rpc
