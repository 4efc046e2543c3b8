package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/lib/pq"

	"github.com/technosupport/ts-vms-es/internal/events"
	"github.com/technosupport/ts-vms-es/internal/eventstore"
)

// Postgres unique_violation. Two writers racing for the same
// (stream_id, revision) slot end up here.
const uniqueViolation = "23505"

// Appends with an Any precondition re-read the head and try again when they
// lose a race for the next revision.
const anyAppendAttempts = 3

var ErrNothingToAppend = errors.New("data: nothing to append")

// EventModel stores camera streams in the events table. The primary key
// (stream_id, revision) is what makes the revision check atomic.
type EventModel struct {
	DB *sql.DB
}

func (m EventModel) AppendToStream(ctx context.Context, stream string, expected eventstore.Precondition, envs []events.Envelope) (int64, error) {
	if len(envs) == 0 {
		return eventstore.NoRevision, ErrNothingToAppend
	}

	attempts := 1
	if expected.IsAny() {
		attempts = anyAppendAttempts
	}

	var (
		rev int64
		err error
	)
	for i := 0; i < attempts; i++ {
		rev, err = m.append(ctx, stream, expected, envs)
		if err == nil || !errors.Is(err, eventstore.ErrWrongExpectedRevision) {
			return rev, err
		}
	}
	return rev, err
}

func (m EventModel) append(ctx context.Context, stream string, expected eventstore.Precondition, envs []events.Envelope) (int64, error) {
	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return eventstore.NoRevision, eventstore.Unavailable(err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(revision), -1) FROM events WHERE stream_id = $1`,
		stream,
	).Scan(&current)
	if err != nil {
		return eventstore.NoRevision, eventstore.Unavailable(err)
	}
	if !expected.Satisfied(current) {
		return current, &eventstore.WrongExpectedRevisionError{Stream: stream, Expected: expected, Actual: current}
	}

	query := `
		INSERT INTO events (stream_id, revision, event_id, event_type, payload, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for i, env := range envs {
		_, err := tx.ExecContext(ctx, query,
			stream, current+1+int64(i), env.EventID, env.EventType,
			string(env.Payload), string(metadataOrEmpty(env.Metadata)),
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return current, &eventstore.WrongExpectedRevisionError{Stream: stream, Expected: expected, Actual: current}
			}
			return eventstore.NoRevision, eventstore.Unavailable(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return eventstore.NoRevision, eventstore.Unavailable(err)
	}
	return current + int64(len(envs)), nil
}

func (m EventModel) ReadStream(ctx context.Context, stream string, dir eventstore.Direction, from int64, maxCount int) ([]eventstore.RecordedEvent, error) {
	// A NULL limit is no limit.
	var limit any
	if maxCount > 0 {
		limit = maxCount
	}

	var query string
	pos := from
	if dir == eventstore.Backwards {
		query = `
			SELECT revision, event_id, event_type, payload, metadata, created_at
			FROM events
			WHERE stream_id = $1 AND revision <= $2
			ORDER BY revision DESC
			LIMIT $3`
		if from == eventstore.End {
			pos = math.MaxInt64
		}
	} else {
		query = `
			SELECT revision, event_id, event_type, payload, metadata, created_at
			FROM events
			WHERE stream_id = $1 AND revision >= $2
			ORDER BY revision ASC
			LIMIT $3`
		if pos < 0 {
			pos = 0
		}
	}

	rows, err := m.DB.QueryContext(ctx, query, stream, pos, limit)
	if err != nil {
		return nil, eventstore.Unavailable(err)
	}
	defer rows.Close()

	var out []eventstore.RecordedEvent
	for rows.Next() {
		rec := eventstore.RecordedEvent{Stream: stream}
		var payload, metadata []byte
		if err := rows.Scan(&rec.Revision, &rec.EventID, &rec.EventType, &payload, &metadata, &rec.Created); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", events.ErrMalformedEvent, stream, err)
		}
		rec.Payload = json.RawMessage(payload)
		rec.Metadata = json.RawMessage(metadata)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eventstore.Unavailable(err)
	}

	if len(out) == 0 {
		exists, err := m.streamExists(ctx, stream)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, eventstore.ErrStreamNotFound
		}
		return []eventstore.RecordedEvent{}, nil
	}
	return out, nil
}

func (m EventModel) streamExists(ctx context.Context, stream string) (bool, error) {
	var exists bool
	err := m.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE stream_id = $1)`,
		stream,
	).Scan(&exists)
	if err != nil {
		return false, eventstore.Unavailable(err)
	}
	return exists, nil
}

func metadataOrEmpty(m json.RawMessage) json.RawMessage {
	if len(m) == 0 {
		return json.RawMessage(`{}`)
	}
	return m
}
