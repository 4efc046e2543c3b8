package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-vms-es/internal/events"
	"github.com/technosupport/ts-vms-es/internal/eventstore"
)

type fakeConn struct {
	failures int
	subjects []string
	bodies   [][]byte
	calls    int
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.calls++
	if c.calls <= c.failures {
		return errors.New("nats: connection closed")
	}
	c.subjects = append(c.subjects, subj)
	c.bodies = append(c.bodies, data)
	return nil
}

type countingObserver map[string]int

func (o countingObserver) ObservePublish(result string) { o[result]++ }

func record() eventstore.RecordedEvent {
	return eventstore.RecordedEvent{
		Stream:   "camera-7c9e6679-7425-40de-944b-e07fc1f90ae7",
		Revision: 3,
		Created:  time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		Envelope: events.Envelope{
			EventID:   uuid.New(),
			EventType: events.TypeAlarmOn,
			Payload:   json.RawMessage(`{"alarmType":"tamper"}`),
			Metadata:  json.RawMessage(`{"correlationId":"req-1"}`),
		},
	}
}

func TestPublish(t *testing.T) {
	conn := &fakeConn{}
	obs := countingObserver{}
	p := NewNATSPublisher(conn, "vms.cameras.", 2, obs)
	rec := record()

	require.NoError(t, p.Publish(context.Background(), rec))
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "vms.cameras.camera-7c9e6679-7425-40de-944b-e07fc1f90ae7.AlarmOnEvent", conn.subjects[0])

	var msg Message
	require.NoError(t, json.Unmarshal(conn.bodies[0], &msg))
	assert.Equal(t, rec.Stream, msg.Stream)
	assert.Equal(t, int64(3), msg.Revision)
	assert.Equal(t, rec.EventID, msg.EventID)
	assert.JSONEq(t, `{"alarmType":"tamper"}`, string(msg.Payload))
	assert.Equal(t, 1, obs["ok"])
}

func TestPublish_RetriesThenSucceeds(t *testing.T) {
	conn := &fakeConn{failures: 2}
	p := NewNATSPublisher(conn, "", 2, nil)
	p.backoff = time.Millisecond

	require.NoError(t, p.Publish(context.Background(), record()))
	assert.Equal(t, 3, conn.calls)
	assert.Equal(t, DefaultSubjectPrefix+".camera-7c9e6679-7425-40de-944b-e07fc1f90ae7.AlarmOnEvent", conn.subjects[0])
}

func TestPublish_GivesUp(t *testing.T) {
	conn := &fakeConn{failures: 10}
	obs := countingObserver{}
	p := NewNATSPublisher(conn, "", 1, obs)
	p.backoff = time.Millisecond

	err := p.Publish(context.Background(), record())
	assert.Error(t, err)
	assert.Equal(t, 2, conn.calls)
	assert.Equal(t, 1, obs["error"])
}

func TestPublish_StopsOnCanceledContext(t *testing.T) {
	conn := &fakeConn{failures: 10}
	p := NewNATSPublisher(conn, "", 5, nil)
	p.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, record())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, conn.calls)
}
