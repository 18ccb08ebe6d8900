package nexus

import "github.com/samber/oops"

var (
	// ErrHookExists is returned when registering an rpc id that already has a
	// hook.
	ErrHookExists = oops.Errorf("hook already registered for rpc id")

	// ErrNilHook is returned when registering a nil hook.
	ErrNilHook = oops.Errorf("nil hook")

	// ErrSentQueueEmpty is returned when popping a recorded packet from an
	// empty queue.
	ErrSentQueueEmpty = oops.Errorf("sent queue is empty")

	// ErrClientClosed is returned when sending through a closed client.
	ErrClientClosed = oops.Errorf("control-plane client is closed")
)
