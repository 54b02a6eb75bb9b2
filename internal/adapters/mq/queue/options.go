package queue

// Option configures a PartitionedQueue.
type Option func(*PartitionedQueue)

// WithPartitionCount sets the number of partitions. Non-positive values are
// ignored.
func WithPartitionCount(n int) Option {
	return func(q *PartitionedQueue) {
		if n > 0 {
			q.partitionCount = n
		}
	}
}

// WithPartitionBuffer sets the buffered capacity of each partition channel.
// Non-positive values are ignored.
func WithPartitionBuffer(n int) Option {
	return func(q *PartitionedQueue) {
		if n > 0 {
			q.bufferSize = n
		}
	}
}
