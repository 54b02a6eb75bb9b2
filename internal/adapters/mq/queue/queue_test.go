package queue

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/reefconnect/scubadex-engine/internal/domain/event"
)

func makeEvent(id, userID string) Event {
	return Event{
		EventID:       id,
		Type:          event.TypeDiveCreated,
		SubjectUserID: userID,
		OccurredAt:    time.Now(),
		Payload:       event.DiveCreatedPayload{DiveID: "d-" + id, MaxDepthMeters: 10, DurationMinutes: 30},
	}
}

func TestPartitionRouting(t *testing.T) {
	Convey("Given a queue with several partitions", t, func() {
		ctx := context.Background()
		q := NewPartitionedQueue(WithPartitionCount(8), WithPartitionBuffer(64))

		Convey("When many events for one user are enqueued", func() {
			for i := 0; i < 20; i++ {
				So(q.Enqueue(ctx, makeEvent("e-"+string(rune('a'+i)), "u-1")), ShouldBeTrue)
			}

			Convey("Then exactly one partition holds all of them", func() {
				nonEmpty := 0
				for i := 0; i < q.Partitions(); i++ {
					if len(q.partitions[i]) > 0 {
						nonEmpty++
						So(len(q.partitions[i]), ShouldEqual, 20)
					}
				}
				So(nonEmpty, ShouldEqual, 1)
				So(q.Len(ctx), ShouldEqual, 20)
			})
		})

		Convey("When the same key is hashed repeatedly", func() {
			first := q.partitionFor("u-42")

			Convey("Then the partition is stable", func() {
				for i := 0; i < 100; i++ {
					So(q.partitionFor("u-42"), ShouldEqual, first)
				}
			})
		})
	})
}

func TestEnqueueBackpressure(t *testing.T) {
	Convey("Given a queue with tiny partition buffers", t, func() {
		ctx := context.Background()
		q := NewPartitionedQueue(WithPartitionCount(1), WithPartitionBuffer(2))

		Convey("When the partition fills up", func() {
			So(q.Enqueue(ctx, makeEvent("e-1", "u-1")), ShouldBeTrue)
			So(q.Enqueue(ctx, makeEvent("e-2", "u-1")), ShouldBeTrue)

			Convey("Then further enqueues report backpressure instead of blocking", func() {
				So(q.Enqueue(ctx, makeEvent("e-3", "u-1")), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})
	})
}

func TestDequeueDelivery(t *testing.T) {
	Convey("Given a queue with one buffered event per user", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := NewPartitionedQueue(WithPartitionCount(4), WithPartitionBuffer(16))

		e1 := makeEvent("e-1", "u-1")
		So(q.Enqueue(ctx, e1), ShouldBeTrue)

		Convey("When consuming the owning partition", func() {
			part := q.partitionFor("u-1")
			ch := q.Dequeue(ctx, part)

			Convey("Then the event is delivered intact", func() {
				select {
				case got := <-ch:
					So(got.EventID, ShouldEqual, "e-1")
					So(got.SubjectUserID, ShouldEqual, "u-1")
				case <-time.After(2 * time.Second):
					So("timeout waiting for event", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestQueueClose(t *testing.T) {
	Convey("Given an open queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := NewPartitionedQueue(WithPartitionCount(2), WithPartitionBuffer(4))
		ch := q.Dequeue(ctx, 0)

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueues are rejected and dequeue channels drain closed", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, makeEvent("e-1", "u-1")), ShouldBeFalse)

				select {
				case _, ok := <-ch:
					So(ok, ShouldBeFalse)
				case <-time.After(2 * time.Second):
					So("timeout waiting for close", ShouldBeEmpty)
				}
			})

			Convey("Then closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
