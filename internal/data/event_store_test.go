package data_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-vms-es/internal/data"
	"github.com/technosupport/ts-vms-es/internal/events"
	"github.com/technosupport/ts-vms-es/internal/eventstore"
)

var eventColumns = []string{"revision", "event_id", "event_type", "payload", "metadata", "created_at"}

func newModel(t *testing.T) (data.EventModel, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return data.EventModel{DB: db}, mock
}

func envelope(tag string) events.Envelope {
	return events.Envelope{
		EventID:   uuid.New(),
		EventType: tag,
		Payload:   json.RawMessage(`{"location":"Lobby"}`),
		Metadata:  json.RawMessage(`{"timestamp":"2026-01-01T00:00:00Z"}`),
	}
}

func expectHead(mock sqlmock.Sqlmock, stream string, current int64) {
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(revision\\), -1\\) FROM events").
		WithArgs(stream).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(current))
}

func TestAppend_NewStream(t *testing.T) {
	m, mock := newModel(t)
	env := envelope(events.TypeRegistered)

	mock.ExpectBegin()
	expectHead(mock, "camera-1", -1)
	mock.ExpectExec("INSERT INTO events").
		WithArgs("camera-1", int64(0), sqlmock.AnyArg(), events.TypeRegistered, string(env.Payload), string(env.Metadata)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rev, err := m.AppendToStream(context.Background(), "camera-1", eventstore.MustNotExist(), []events.Envelope{env})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_PreconditionFailsWithoutInsert(t *testing.T) {
	m, mock := newModel(t)

	mock.ExpectBegin()
	expectHead(mock, "camera-1", 4)
	mock.ExpectRollback()

	_, err := m.AppendToStream(context.Background(), "camera-1", eventstore.MustBeAtRevision(3), []events.Envelope{envelope("X")})
	require.ErrorIs(t, err, eventstore.ErrWrongExpectedRevision)

	var wrong *eventstore.WrongExpectedRevisionError
	require.True(t, errors.As(err, &wrong))
	assert.Equal(t, int64(4), wrong.Actual)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_UniqueViolationIsWrongRevision(t *testing.T) {
	m, mock := newModel(t)

	mock.ExpectBegin()
	expectHead(mock, "camera-1", 0)
	mock.ExpectExec("INSERT INTO events").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := m.AppendToStream(context.Background(), "camera-1", eventstore.MustBeAtRevision(0), []events.Envelope{envelope("X")})
	assert.ErrorIs(t, err, eventstore.ErrWrongExpectedRevision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_AnyRetriesLostRace(t *testing.T) {
	m, mock := newModel(t)

	mock.ExpectBegin()
	expectHead(mock, "camera-1", 0)
	mock.ExpectExec("INSERT INTO events").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	expectHead(mock, "camera-1", 1)
	mock.ExpectExec("INSERT INTO events").
		WithArgs("camera-1", int64(2), sqlmock.AnyArg(), "X", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rev, err := m.AppendToStream(context.Background(), "camera-1", eventstore.Any(), []events.Envelope{envelope("X")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_DatabaseDown(t *testing.T) {
	m, mock := newModel(t)
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	_, err := m.AppendToStream(context.Background(), "camera-1", eventstore.Any(), []events.Envelope{envelope("X")})
	assert.ErrorIs(t, err, eventstore.ErrUnavailable)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestAppend_Empty(t *testing.T) {
	m, _ := newModel(t)
	_, err := m.AppendToStream(context.Background(), "camera-1", eventstore.Any(), nil)
	assert.ErrorIs(t, err, data.ErrNothingToAppend)
}

func TestAppend_DefaultsMetadata(t *testing.T) {
	m, mock := newModel(t)
	env := envelope("X")
	env.Metadata = nil

	mock.ExpectBegin()
	expectHead(mock, "s", -1)
	mock.ExpectExec("INSERT INTO events").
		WithArgs("s", int64(0), sqlmock.AnyArg(), "X", string(env.Payload), "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := m.AppendToStream(context.Background(), "s", eventstore.Any(), []events.Envelope{env})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadStream_Forwards(t *testing.T) {
	m, mock := newModel(t)
	id0, id1 := uuid.New(), uuid.New()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("ORDER BY revision ASC").
		WithArgs("camera-1", int64(0), nil).
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow(int64(0), id0.String(), events.TypeRegistered, []byte(`{"model":"X100"}`), []byte(`{}`), created).
			AddRow(int64(1), id1.String(), events.TypeDecommissioned, []byte(`{}`), []byte(`{}`), created))

	recs, err := m.ReadStream(context.Background(), "camera-1", eventstore.Forwards, eventstore.Start, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, id0, recs[0].EventID)
	assert.Equal(t, events.TypeRegistered, recs[0].EventType)
	assert.JSONEq(t, `{"model":"X100"}`, string(recs[0].Payload))
	assert.Equal(t, int64(1), recs[1].Revision)
	assert.Equal(t, "camera-1", recs[1].Stream)
	assert.Equal(t, created, recs[1].Created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadStream_BackwardsFromEnd(t *testing.T) {
	m, mock := newModel(t)

	mock.ExpectQuery("ORDER BY revision DESC").
		WithArgs("camera-1", int64(math.MaxInt64), int64(1)).
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow(int64(7), uuid.NewString(), "X", []byte(`{}`), []byte(`{}`), time.Now()))

	recs, err := m.ReadStream(context.Background(), "camera-1", eventstore.Backwards, eventstore.End, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(7), recs[0].Revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadStream_Missing(t *testing.T) {
	m, mock := newModel(t)

	mock.ExpectQuery("ORDER BY revision ASC").WillReturnRows(sqlmock.NewRows(eventColumns))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("camera-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := m.ReadStream(context.Background(), "camera-1", eventstore.Forwards, eventstore.Start, 0)
	assert.ErrorIs(t, err, eventstore.ErrStreamNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadStream_PastTheEnd(t *testing.T) {
	m, mock := newModel(t)

	mock.ExpectQuery("ORDER BY revision ASC").WillReturnRows(sqlmock.NewRows(eventColumns))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("camera-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	recs, err := m.ReadStream(context.Background(), "camera-1", eventstore.Forwards, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadStream_QueryError(t *testing.T) {
	m, mock := newModel(t)
	mock.ExpectQuery("SELECT revision").WillReturnError(sql.ErrConnDone)

	_, err := m.ReadStream(context.Background(), "camera-1", eventstore.Forwards, eventstore.Start, 0)
	assert.ErrorIs(t, err, eventstore.ErrUnavailable)
}
