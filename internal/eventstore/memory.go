package eventstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/technosupport/ts-vms-es/internal/events"
)

var errNothingToAppend = errors.New("eventstore: nothing to append")

// MemoryStore is a process-local Store. It backs tests and the "memory"
// backend for single-node development.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]RecordedEvent
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]RecordedEvent),
		now:     time.Now,
	}
}

func (s *MemoryStore) AppendToStream(ctx context.Context, stream string, expected Precondition, envs []events.Envelope) (int64, error) {
	if err := ctx.Err(); err != nil {
		return NoRevision, Unavailable(err)
	}
	if len(envs) == 0 {
		return NoRevision, errNothingToAppend
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.streams[stream]
	current := int64(len(recs)) - 1
	if !expected.Satisfied(current) {
		return current, &WrongExpectedRevisionError{Stream: stream, Expected: expected, Actual: current}
	}

	created := s.now().UTC()
	for i, env := range envs {
		recs = append(recs, RecordedEvent{
			Stream:   stream,
			Revision: current + 1 + int64(i),
			Created:  created,
			Envelope: env,
		})
	}
	s.streams[stream] = recs
	return int64(len(recs)) - 1, nil
}

func (s *MemoryStore) ReadStream(ctx context.Context, stream string, dir Direction, from int64, maxCount int) ([]RecordedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.streams[stream]
	if len(recs) == 0 {
		return nil, ErrStreamNotFound
	}

	lo, hi := window(int64(len(recs)), dir, from, maxCount)
	out := make([]RecordedEvent, 0, hi-lo)
	if dir == Backwards {
		for i := hi - 1; i >= lo; i-- {
			out = append(out, recs[i])
		}
		return out, nil
	}
	out = append(out, recs[lo:hi]...)
	return out, nil
}

// Len returns the number of events in stream.
func (s *MemoryStore) Len(stream string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[stream])
}
