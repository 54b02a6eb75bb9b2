package event_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/reefconnect/scubadex-engine/internal/domain/event"
	. "github.com/smartystreets/goconvey/convey"
)

func envelope(t event.Type, payload any) event.Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return event.Envelope{
		EventID:       "evt-1",
		Type:          t,
		SubjectUserID: "user-1",
		OccurredAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Payload:       raw,
	}
}

func TestDecode(t *testing.T) {
	Convey("Given well-formed envelopes", t, func() {
		Convey("When decoding a DiveCreated event", func() {
			ev, err := event.Decode(envelope(event.TypeDiveCreated, map[string]any{
				"dive_id":          "dive-1",
				"max_depth_meters": 28.5,
				"duration_minutes": 45,
			}))

			Convey("Then it should produce a typed payload", func() {
				So(err, ShouldBeNil)
				So(ev.EventID, ShouldEqual, "evt-1")
				So(ev.PartitionKey(), ShouldEqual, "user-1")

				payload, ok := ev.Payload.(event.DiveCreatedPayload)
				So(ok, ShouldBeTrue)
				So(payload.DiveID, ShouldEqual, "dive-1")
				So(payload.MaxDepthMeters, ShouldEqual, 28.5)
				So(payload.DurationMinutes, ShouldEqual, 45)
			})
		})

		Convey("When decoding a SpeciesTagged event", func() {
			ev, err := event.Decode(envelope(event.TypeSpeciesTagged, map[string]any{
				"media_id":   "m1",
				"species_id": "sp-003",
				"source":     "ml",
			}))

			Convey("Then it should carry media, species, and source", func() {
				So(err, ShouldBeNil)
				payload, ok := ev.Payload.(event.SpeciesTaggedPayload)
				So(ok, ShouldBeTrue)
				So(payload.MediaID, ShouldEqual, "m1")
				So(payload.SpeciesID, ShouldEqual, "sp-003")
				So(payload.Source, ShouldEqual, "ml")
			})
		})

		Convey("When decoding the remaining event types", func() {
			cases := []struct {
				typ     event.Type
				payload any
			}{
				{event.TypeDiveDeleted, map[string]any{"dive_id": "dive-1"}},
				{event.TypeMediaDeleted, map[string]any{"media_id": "m1"}},
				{event.TypeSpeciesTagRemoved, map[string]any{"media_id": "m1", "species_id": "sp-1"}},
			}
			for _, c := range cases {
				ev, err := event.Decode(envelope(c.typ, c.payload))
				So(err, ShouldBeNil)
				So(ev.Type, ShouldEqual, c.typ)
			}
		})
	})

	Convey("Given defective envelopes", t, func() {
		Convey("When the event type is unknown", func() {
			_, err := event.Decode(envelope("SpeciesRenamed", map[string]any{}))

			Convey("Then it should fail with ErrUnknownType", func() {
				So(errors.Is(err, event.ErrUnknownType), ShouldBeTrue)
			})
		})

		Convey("When a required payload field is missing", func() {
			_, err := event.Decode(envelope(event.TypeSpeciesTagged, map[string]any{
				"media_id": "m1",
			}))

			Convey("Then it should fail with ErrMalformed", func() {
				So(errors.Is(err, event.ErrMalformed), ShouldBeTrue)
			})
		})

		Convey("When envelope fields are missing", func() {
			env := envelope(event.TypeDiveCreated, map[string]any{"dive_id": "d"})
			env.EventID = ""
			_, err := event.Decode(env)
			So(errors.Is(err, event.ErrMalformed), ShouldBeTrue)

			env = envelope(event.TypeDiveCreated, map[string]any{"dive_id": "d"})
			env.SubjectUserID = "  "
			_, err = event.Decode(env)
			So(errors.Is(err, event.ErrMalformed), ShouldBeTrue)

			env = envelope(event.TypeDiveCreated, map[string]any{"dive_id": "d"})
			env.OccurredAt = time.Time{}
			_, err = event.Decode(env)
			So(errors.Is(err, event.ErrMalformed), ShouldBeTrue)
		})

		Convey("When numeric payload fields are negative", func() {
			_, err := event.Decode(envelope(event.TypeDiveCreated, map[string]any{
				"dive_id":          "dive-1",
				"max_depth_meters": -3.0,
			}))
			So(errors.Is(err, event.ErrMalformed), ShouldBeTrue)
		})

		Convey("When the payload is not valid JSON", func() {
			env := envelope(event.TypeDiveCreated, map[string]any{"dive_id": "d"})
			env.Payload = []byte("{not json")
			_, err := event.Decode(env)
			So(errors.Is(err, event.ErrMalformed), ShouldBeTrue)
		})
	})
}
