// Package transport abstracts the data-path fabric underneath the session
// layer. The session-management control plane never moves application bytes;
// all it needs from a transport is an identity (kind and physical port) and
// the routing-info contract: fill my local fabric address into an opaque
// fixed-size blob, and resolve a peer's blob into a sendable route.
//
// Two implementations ship here. UDPTransport backs sessions with a kernel
// UDP socket and advertises its address family, IP and port in the routing
// blob. LoopbackTransport is an in-process fabric used by tests and
// single-host setups; its routing blobs carry a process-local tag.
//
// Routing info is deliberately opaque above this package: the session layer
// copies the bytes between packets and sessions but never interprets them.
package transport
