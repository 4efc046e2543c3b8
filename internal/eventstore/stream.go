package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/technosupport/ts-vms-es/internal/events"
)

// Protocol-level outcomes of Streams operations.
var (
	ErrStreamAbsent  = errors.New("stream absent")
	ErrAlreadyExists = errors.New("stream already exists")
	ErrConflict      = errors.New("concurrency conflict")
)

// Outcome labels passed to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeConflict    = "conflict"
	OutcomeNotFound    = "not_found"
	OutcomeMalformed   = "malformed"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Observer receives the outcome and latency of every store round trip.
type Observer interface {
	ObserveAppend(outcome string, d time.Duration)
	ObserveRead(outcome string, d time.Duration)
}

// Publisher is notified after an event has been appended.
type Publisher interface {
	Publish(ctx context.Context, rec RecordedEvent) error
}

// History is a decoded stream prefix.
type History struct {
	Events   []events.Event
	Revision int64
}

// Streams implements the read and append protocols on top of a Store and
// the event codec. It holds no per-stream state; the store's revision check
// is the only synchronization.
type Streams struct {
	store Store
	pub   Publisher
	obs   Observer
	log   logs.Log
	now   func() time.Time
}

// NewStreams builds the protocol layer. pub and obs may be nil.
func NewStreams(store Store, pub Publisher, obs Observer, log logs.Log) *Streams {
	return &Streams{store: store, pub: pub, obs: obs, log: log, now: time.Now}
}

// ReadAll decodes every event of stream in order.
func (s *Streams) ReadAll(ctx context.Context, stream string) (*History, error) {
	return s.ReadUntil(ctx, stream, End)
}

// ReadUntil decodes events 0..revision of stream. End reads the whole stream.
// A stream without events is ErrStreamAbsent; a payload that does not fit
// its tag is events.ErrMalformedEvent.
func (s *Streams) ReadUntil(ctx context.Context, stream string, revision int64) (*History, error) {
	maxCount := 0
	if revision != End {
		if revision < 0 {
			return nil, fmt.Errorf("read %s: invalid revision %d", stream, revision)
		}
		maxCount = int(revision + 1)
	}

	recs, err := s.read(ctx, stream, Forwards, Start, maxCount)
	if err != nil {
		return nil, err
	}

	h := &History{Events: make([]events.Event, 0, len(recs)), Revision: NoRevision}
	for _, rec := range recs {
		ev, err := events.Decode(rec.Envelope)
		if err != nil {
			return nil, fmt.Errorf("read %s at revision %d: %w", stream, rec.Revision, err)
		}
		h.Events = append(h.Events, ev)
		h.Revision = rec.Revision
	}
	if len(h.Events) == 0 {
		return nil, ErrStreamAbsent
	}
	return h, nil
}

// Records returns the raw envelopes of stream in order without decoding them.
func (s *Streams) Records(ctx context.Context, stream string) ([]RecordedEvent, error) {
	recs, err := s.read(ctx, stream, Forwards, Start, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrStreamAbsent
	}
	return recs, nil
}

// CurrentRevision returns the revision of the last event in stream.
func (s *Streams) CurrentRevision(ctx context.Context, stream string) (int64, error) {
	recs, err := s.read(ctx, stream, Backwards, End, 1)
	if err != nil {
		return NoRevision, err
	}
	if len(recs) == 0 {
		return NoRevision, ErrStreamAbsent
	}
	return recs[0].Revision, nil
}

func (s *Streams) read(ctx context.Context, stream string, dir Direction, from int64, maxCount int) ([]RecordedEvent, error) {
	start := time.Now()
	recs, err := s.store.ReadStream(ctx, stream, dir, from, maxCount)
	d := time.Since(start)
	switch {
	case err == nil:
		s.observeRead(OutcomeOK, d)
		return recs, nil
	case errors.Is(err, ErrStreamNotFound):
		s.observeRead(OutcomeNotFound, d)
		return nil, ErrStreamAbsent
	case errors.Is(err, events.ErrMalformedEvent):
		s.observeRead(OutcomeMalformed, d)
		return nil, fmt.Errorf("read %s: %w", stream, err)
	case errors.Is(err, ErrUnavailable):
		s.observeRead(OutcomeUnavailable, d)
		return nil, fmt.Errorf("read %s: %w", stream, err)
	default:
		s.observeRead(OutcomeError, d)
		return nil, fmt.Errorf("read %s: %w", stream, err)
	}
}

// Append encodes ev and appends it to stream under pre, returning the new
// revision. A failed MustNotExist is ErrAlreadyExists, a failed
// MustBeAtRevision is ErrConflict. On any error the stream is unchanged.
//
// Append never retries. An append that timed out may still have been
// applied, so a caller that wants to retry must re-read the revision first.
func (s *Streams) Append(ctx context.Context, stream string, ev events.Event, pre Precondition) (int64, error) {
	env, err := events.Encode(ev, events.Metadata{
		Timestamp:     s.now().UTC(),
		CorrelationID: events.CorrelationID(ctx),
	})
	if err != nil {
		return NoRevision, err
	}

	start := time.Now()
	rev, err := s.store.AppendToStream(ctx, stream, pre, []events.Envelope{env})
	d := time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, ErrWrongExpectedRevision):
			s.observeAppend(OutcomeConflict, d)
			if pre.IsMustNotExist() {
				return NoRevision, fmt.Errorf("append %s to %s: %w: %w", ev.EventType(), stream, ErrAlreadyExists, err)
			}
			return NoRevision, fmt.Errorf("append %s to %s: %w: %w", ev.EventType(), stream, ErrConflict, err)
		case errors.Is(err, ErrStreamNotFound):
			s.observeAppend(OutcomeNotFound, d)
			return NoRevision, fmt.Errorf("append %s to %s: %w", ev.EventType(), stream, ErrStreamAbsent)
		case errors.Is(err, ErrUnavailable):
			s.observeAppend(OutcomeUnavailable, d)
		default:
			s.observeAppend(OutcomeError, d)
		}
		return NoRevision, fmt.Errorf("append %s to %s: %w", ev.EventType(), stream, err)
	}
	s.observeAppend(OutcomeOK, d)

	if s.pub != nil {
		rec := RecordedEvent{Stream: stream, Revision: rev, Created: s.now().UTC(), Envelope: env}
		if err := s.pub.Publish(ctx, rec); err != nil {
			s.log.Warnf("Relay of %s %s at revision %d failed: %v", stream, env.EventType, rev, err)
		}
	}
	return rev, nil
}

func (s *Streams) observeRead(outcome string, d time.Duration) {
	if s.obs != nil {
		s.obs.ObserveRead(outcome, d)
	}
}

func (s *Streams) observeAppend(outcome string, d time.Duration) {
	if s.obs != nil {
		s.obs.ObserveAppend(outcome, d)
	}
}
