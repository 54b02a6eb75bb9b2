// Package queue provides the in-process transport between event ingestion
// and the incremental updater.
//
// The queue is partitioned: an event's partition is derived from its
// PartitionKey, so every event for one user lands on the same partition and
// is consumed by exactly one worker. That serializes per-user processing
// while different users proceed in parallel.
package queue

import (
	"context"
	"hash/fnv"
	"runtime"
	"sync"

	"github.com/reefconnect/scubadex-engine/internal/domain/event"
	"github.com/reefconnect/scubadex-engine/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultPartitionBuffer = 10000
)

// Event represents the payload type flowing through the queue.
type Event = event.Event

// Queue provides non-blocking enqueue and per-partition channel dequeue.
type Queue interface {
	// Enqueue routes an event to its partition.
	// Returns false if the partition is full and the event was not enqueued.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns the channel for one partition. The channel is closed
	// when the queue is closed.
	Dequeue(ctx context.Context, partition int) <-chan Event

	// Partitions returns the fixed partition count.
	Partitions() int

	// Len returns the total number of buffered events across partitions.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	// After closing, no new events can be enqueued and all dequeue channels
	// are closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// PartitionedQueue implements Queue using one buffered channel per partition.
type PartitionedQueue struct {
	partitions     []chan Event
	partitionCount int
	bufferSize     int

	mu     sync.RWMutex
	closed bool
}

// NewPartitionedQueue creates a queue with configuration options.
func NewPartitionedQueue(opts ...Option) *PartitionedQueue {
	q := &PartitionedQueue{
		partitionCount: runtime.NumCPU() * 2,
		bufferSize:     defaultPartitionBuffer,
	}

	for _, opt := range opts {
		opt(q)
	}
	if q.partitionCount < 1 {
		q.partitionCount = 1
	}

	q.partitions = make([]chan Event, q.partitionCount)
	for i := range q.partitions {
		q.partitions[i] = make(chan Event, q.bufferSize)
	}

	metrics.UpdateQueueCapacity(q.partitionCount * q.bufferSize)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// partitionFor hashes the routing key onto a fixed partition. The mapping is
// stable for the queue's lifetime; rebalancing would break per-user ordering.
func (q *PartitionedQueue) partitionFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(q.partitions)))
}

// Enqueue routes an event to its partition without blocking.
func (q *PartitionedQueue) Enqueue(ctx context.Context, e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	part := q.partitions[q.partitionFor(e.PartitionKey())]

	select {
	case part <- e:
		metrics.RecordQueueEnqueue()
		q.updateUsage()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		// Partition full: surface backpressure to the producer rather than
		// block or drop silently.
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "partition_full")
		return false
	}
}

// Dequeue returns the channel for one partition, wrapped to track metrics.
func (q *PartitionedQueue) Dequeue(ctx context.Context, partition int) <-chan Event {
	src := q.partitions[partition]

	dequeueChan := make(chan Event)
	go func() {
		defer close(dequeueChan)
		for e := range src {
			select {
			case dequeueChan <- e:
				metrics.RecordQueueDequeue()
				q.updateUsage()
			case <-ctx.Done():
				return
			}
		}
	}()
	return dequeueChan
}

// Partitions returns the fixed partition count.
func (q *PartitionedQueue) Partitions() int {
	return len(q.partitions)
}

// Len returns the total number of buffered events across partitions.
func (q *PartitionedQueue) Len(_ context.Context) int {
	total := 0
	for _, part := range q.partitions {
		total += len(part)
	}
	return total
}

// Close gracefully shuts down the queue.
func (q *PartitionedQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	for _, part := range q.partitions {
		close(part)
	}
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *PartitionedQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *PartitionedQueue) updateUsage() {
	size := 0
	for _, part := range q.partitions {
		size += len(part)
	}
	capacity := len(q.partitions) * q.bufferSize
	metrics.UpdateQueueSize(size)
	if capacity > 0 {
		metrics.UpdateQueueUtilization(float64(size) / float64(capacity))
	}
}
