package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrMalformedEvent = errors.New("malformed event")

// Envelope is the storable form of an event.
type Envelope struct {
	EventID   uuid.UUID       `json:"eventId"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  json.RawMessage `json:"metadata"`
}

// Metadata is auxiliary data captured at encode time.
type Metadata struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

var decoders = map[string]func([]byte) (Event, error){
	TypeRegistered:     decodeAs[Registered],
	TypeUpdated:        decodeAs[Updated],
	TypeDecommissioned: decodeAs[Decommissioned],
	TypeMotionDetected: decodeAs[MotionDetected],
	TypeStreamOn:       decodeAs[StreamOn],
	TypeStreamOff:      decodeAs[StreamOff],
	TypeAlarmOn:        decodeAs[AlarmOn],
	TypeAlarmOff:       decodeAs[AlarmOff],
	TypeConfigChanged:  decodeAs[ConfigChanged],
}

func decodeAs[T Event](payload []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Known reports whether tag names one of the event variants.
func Known(tag string) bool {
	_, ok := decoders[tag]
	return ok
}

// Encode wraps ev in a new envelope with a fresh event id.
func Encode(ev Event, meta Metadata) (Envelope, error) {
	var payload []byte
	if u, ok := ev.(Unrecognized); ok {
		payload = u.Payload
	} else {
		b, err := json.Marshal(ev)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s: %w", ev.EventType(), err)
		}
		payload = b
	}

	m, err := json.Marshal(meta)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode metadata: %w", err)
	}

	return Envelope{
		EventID:   uuid.New(),
		EventType: ev.EventType(),
		Payload:   payload,
		Metadata:  m,
	}, nil
}

// Decode dispatches on the envelope's type tag. Unknown tags decode to
// Unrecognized without error; a payload that does not fit its tag is
// ErrMalformedEvent.
func Decode(env Envelope) (Event, error) {
	dec, ok := decoders[env.EventType]
	if !ok {
		return Unrecognized{Type: env.EventType, Payload: env.Payload}, nil
	}
	ev, err := dec(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrMalformedEvent, env.EventType, env.EventID, err)
	}
	return ev, nil
}

// DecodeMetadata reads the envelope metadata. Missing metadata yields the zero value.
func DecodeMetadata(env Envelope) (Metadata, error) {
	var m Metadata
	if len(env.Metadata) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(env.Metadata, &m); err != nil {
		return m, fmt.Errorf("%w: metadata of %s: %v", ErrMalformedEvent, env.EventID, err)
	}
	return m, nil
}

type contextKey string

const correlationKey contextKey = "correlation_id"

// WithCorrelationID tags ctx so envelopes encoded under it carry id in their metadata.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
