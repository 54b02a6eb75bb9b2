// Package event defines the canonical, versioned representation of the facts
// the materialization engine consumes from the message transport.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type enumerates the event kinds produced by the source-of-truth transaction.
type Type string

// Event types.
const (
	TypeDiveCreated       Type = "DiveCreated"
	TypeDiveDeleted       Type = "DiveDeleted"
	TypeMediaDeleted      Type = "MediaDeleted"
	TypeSpeciesTagged     Type = "SpeciesTagged"
	TypeSpeciesTagRemoved Type = "SpeciesTagRemoved"
)

// Envelope mirrors the transport wire shape. Payload stays raw until the
// type is known.
type Envelope struct {
	EventID       string          `json:"event_id"`
	Type          Type            `json:"event_type"`
	SubjectUserID string          `json:"subject_user_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Event is a decoded, validated fact. Immutable; Payload holds one of the
// typed payload structs below.
type Event struct {
	EventID       string
	Type          Type
	SubjectUserID string
	OccurredAt    time.Time
	Payload       Payload
}

// PartitionKey returns the transport routing key. All events for one user
// land on the same partition, which serializes their processing.
func (e Event) PartitionKey() string {
	return e.SubjectUserID
}

// Payload is implemented by the typed payload structs.
type Payload interface {
	validate() error
}

// DiveCreatedPayload carries the fields folded into UserStats on dive creation.
type DiveCreatedPayload struct {
	DiveID          string  `json:"dive_id"`
	MaxDepthMeters  float64 `json:"max_depth_meters"`
	DurationMinutes int     `json:"duration_minutes"`
}

func (p DiveCreatedPayload) validate() error {
	switch {
	case strings.TrimSpace(p.DiveID) == "":
		return fmt.Errorf("%w: missing dive_id", ErrMalformed)
	case p.MaxDepthMeters < 0:
		return fmt.Errorf("%w: negative max_depth_meters", ErrMalformed)
	case p.DurationMinutes < 0:
		return fmt.Errorf("%w: negative duration_minutes", ErrMalformed)
	}
	return nil
}

// DiveDeletedPayload identifies the deleted dive. Extremal stats are never
// decremented from it; deletion schedules a scoped reconciliation instead.
type DiveDeletedPayload struct {
	DiveID string `json:"dive_id"`
}

func (p DiveDeletedPayload) validate() error {
	if strings.TrimSpace(p.DiveID) == "" {
		return fmt.Errorf("%w: missing dive_id", ErrMalformed)
	}
	return nil
}

// MediaDeletedPayload identifies the deleted media item. The updater consults
// current ScubaDex state to find which species lose evidence.
type MediaDeletedPayload struct {
	MediaID string `json:"media_id"`
}

func (p MediaDeletedPayload) validate() error {
	if strings.TrimSpace(p.MediaID) == "" {
		return fmt.Errorf("%w: missing media_id", ErrMalformed)
	}
	return nil
}

// SpeciesTaggedPayload records a new species-tag on a media item. Source is
// "user" or "ml" (informational, mirrors the tagging pipeline).
type SpeciesTaggedPayload struct {
	MediaID   string `json:"media_id"`
	SpeciesID string `json:"species_id"`
	Source    string `json:"source,omitempty"`
}

func (p SpeciesTaggedPayload) validate() error {
	switch {
	case strings.TrimSpace(p.MediaID) == "":
		return fmt.Errorf("%w: missing media_id", ErrMalformed)
	case strings.TrimSpace(p.SpeciesID) == "":
		return fmt.Errorf("%w: missing species_id", ErrMalformed)
	}
	return nil
}

// SpeciesTagRemovedPayload records removal of a species-tag.
type SpeciesTagRemovedPayload struct {
	MediaID   string `json:"media_id"`
	SpeciesID string `json:"species_id"`
}

func (p SpeciesTagRemovedPayload) validate() error {
	switch {
	case strings.TrimSpace(p.MediaID) == "":
		return fmt.Errorf("%w: missing media_id", ErrMalformed)
	case strings.TrimSpace(p.SpeciesID) == "":
		return fmt.Errorf("%w: missing species_id", ErrMalformed)
	}
	return nil
}

// Decode validates an envelope and produces a typed Event.
// Unknown types yield ErrUnknownType; missing required fields yield
// ErrMalformed. Both are permanently unprocessable: callers log, ack, and
// move on without blocking the partition.
func Decode(env Envelope) (Event, error) {
	switch {
	case strings.TrimSpace(env.EventID) == "":
		return Event{}, fmt.Errorf("%w: missing event_id", ErrMalformed)
	case strings.TrimSpace(env.SubjectUserID) == "":
		return Event{}, fmt.Errorf("%w: missing subject_user_id", ErrMalformed)
	case env.OccurredAt.IsZero():
		return Event{}, fmt.Errorf("%w: missing occurred_at", ErrMalformed)
	}

	var payload Payload
	switch env.Type {
	case TypeDiveCreated:
		payload = &DiveCreatedPayload{}
	case TypeDiveDeleted:
		payload = &DiveDeletedPayload{}
	case TypeMediaDeleted:
		payload = &MediaDeletedPayload{}
	case TypeSpeciesTagged:
		payload = &SpeciesTaggedPayload{}
	case TypeSpeciesTagRemoved:
		payload = &SpeciesTagRemovedPayload{}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := payload.validate(); err != nil {
		return Event{}, err
	}

	return Event{
		EventID:       env.EventID,
		Type:          env.Type,
		SubjectUserID: env.SubjectUserID,
		OccurredAt:    env.OccurredAt,
		Payload:       deref(payload),
	}, nil
}

// deref converts the decoded pointer payloads back to values so Event carries
// immutable data.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *DiveCreatedPayload:
		return *v
	case *DiveDeletedPayload:
		return *v
	case *MediaDeletedPayload:
		return *v
	case *SpeciesTaggedPayload:
		return *v
	case *SpeciesTagRemovedPayload:
		return *v
	}
	return p
}
