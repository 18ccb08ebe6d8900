package rpc

import (
	"sync"
	"sync/atomic"

	"github.com/go-fabrpc/go-fabrpc/lib/session"
)

// smQueue is the mailbox between the Nexus receive goroutine and the event
// loop. The receiver appends under the lock; the owner swaps out the whole
// backlog in one lock acquisition and processes it unlocked.
type smQueue struct {
	mu   sync.Mutex
	pkts []*session.Packet
	size int32
}

func (q *smQueue) enqueue(pkt *session.Packet) {
	q.mu.Lock()
	q.pkts = append(q.pkts, pkt)
	atomic.StoreInt32(&q.size, int32(len(q.pkts)))
	q.mu.Unlock()
}

// drain takes the entire backlog. The returned slice is owned by the caller.
func (q *smQueue) drain() []*session.Packet {
	q.mu.Lock()
	pkts := q.pkts
	q.pkts = nil
	atomic.StoreInt32(&q.size, 0)
	q.mu.Unlock()
	return pkts
}

// pendingCount is safe to call without the lock; the event loop uses it to
// skip the mutex on idle turns.
func (q *smQueue) pendingCount() int {
	return int(atomic.LoadInt32(&q.size))
}
