// Package ledger implements the idempotency ledger: first-writer-wins claims
// keyed by (event, aggregate kind, aggregate id).
package ledger

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/reefconnect/scubadex-engine/internal/domain/model"
)

// Ledger records applied (event, aggregate) pairs so redelivery of the same
// event is a no-op per aggregate, however many times the transport retries.
type Ledger interface {
	// TryClaim atomically inserts a claim if absent. Returns true when this
	// caller won the race and must perform the aggregate mutation; false when
	// the pair was already applied (the normal duplicate-suppression path).
	TryClaim(ctx context.Context, eventID string, kind model.AggregateKind, aggregateID string) bool

	// Release removes a claim, allowing the pair to be retried. Only used
	// when the aggregate write failed after a successful claim; otherwise the
	// event would be permanently lost without being reflected.
	Release(ctx context.Context, eventID string, kind model.AggregateKind, aggregateID string)

	Size() int64
}

// keySeparator cannot appear in ids coming off the transport.
const keySeparator = "\x1f"

func claimKey(eventID string, kind model.AggregateKind, aggregateID string) string {
	var b strings.Builder
	b.Grow(len(eventID) + len(kind) + len(aggregateID) + 2)
	b.WriteString(eventID)
	b.WriteString(keySeparator)
	b.WriteString(string(kind))
	b.WriteString(keySeparator)
	b.WriteString(aggregateID)
	return b.String()
}

// node is a doubly-linked list entry; oldest claims sit at the tail and are
// evicted first once the retention bound is reached.
type node struct {
	key  string
	prev *node
	next *node
}

func (n *node) reset() {
	n.key = ""
	n.prev = nil
	n.next = nil
}

// memoryLedger implements Ledger with a map plus an eviction list.
// Bounded mode (maxSize > 0) evicts the oldest claim when full; retention
// must cover at least the transport's maximum redelivery window.
// Unbounded mode (maxSize <= 0) never evicts.
type memoryLedger struct {
	mu       sync.Mutex
	claims   map[string]*node
	head     *node // newest claim
	tail     *node // oldest claim, next eviction victim
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// New creates an in-memory ledger with configuration options.
func New(opts ...Option) Ledger {
	l := &memoryLedger{
		maxSize: 500_000, // default retention
	}

	for _, opt := range opts {
		opt(l)
	}

	l.claims = make(map[string]*node)
	if l.maxSize > 0 {
		l.nodePool = sync.Pool{
			New: func() interface{} {
				return &node{}
			},
		}
	}

	return l
}

// TryClaim atomically inserts a claim if absent.
func (l *memoryLedger) TryClaim(ctx context.Context, eventID string, kind model.AggregateKind, aggregateID string) bool {
	key := claimKey(eventID, kind, aggregateID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.claims[key]; exists {
		return false
	}

	if l.maxSize > 0 {
		if len(l.claims) >= l.maxSize {
			l.evictOldest()
		}

		n := l.nodePool.Get().(*node)
		n.key = key
		n.next = l.head
		if l.head != nil {
			l.head.prev = n
		}
		l.head = n
		if l.tail == nil {
			l.tail = n
		}
		l.claims[key] = n
	} else {
		l.claims[key] = nil
	}
	l.size.Add(1)
	return true
}

// Release removes a claim so the (event, aggregate) pair can be retried.
func (l *memoryLedger) Release(ctx context.Context, eventID string, kind model.AggregateKind, aggregateID string) {
	key := claimKey(eventID, kind, aggregateID)

	l.mu.Lock()
	defer l.mu.Unlock()

	n, exists := l.claims[key]
	if !exists {
		return
	}
	delete(l.claims, key)
	l.size.Add(-1)

	if l.maxSize <= 0 {
		return
	}
	l.unlink(n)
	n.reset()
	l.nodePool.Put(n)
}

// unlink removes n from the eviction list. Caller holds l.mu.
func (l *memoryLedger) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
}

// evictOldest drops the claim least recently inserted. Caller holds l.mu.
func (l *memoryLedger) evictOldest() {
	victim := l.tail
	if victim == nil {
		return
	}
	delete(l.claims, victim.key)
	l.unlink(victim)
	victim.reset()
	l.nodePool.Put(victim)
	l.size.Add(-1)
}

// Size returns the current number of retained claims.
func (l *memoryLedger) Size() int64 {
	return l.size.Load()
}
