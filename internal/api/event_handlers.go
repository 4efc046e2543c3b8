package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/ts-vms-es/internal/cameras"
	"github.com/technosupport/ts-vms-es/internal/events"
)

// EventHandler ingests telemetry posted by cameras and edge gateways.
// None of these endpoints check that the camera is registered.
type EventHandler struct {
	Service *cameras.Service
}

func NewEventHandler(svc *cameras.Service) *EventHandler {
	return &EventHandler{Service: svc}
}

// record decodes the body into req, requires timestampUtc, and appends
// whatever build returns.
func record[T any](h *EventHandler, w http.ResponseWriter, r *http.Request, req *T, ts func(*T) *time.Time, build func(uuid.UUID, time.Time, *T) events.Telemetry) {
	id, ok := cameraID(w, r)
	if !ok {
		return
	}
	if !decodeBody(w, r, req) {
		return
	}
	at := ts(req)
	if at == nil || at.IsZero() {
		respondError(w, http.StatusBadRequest, "timestampUtc is required")
		return
	}
	respondResult(w, h.Service.RecordEvent(r.Context(), id, build(id, at.UTC(), req)))
}

type motionRequest struct {
	Timestamp   *time.Time `json:"timestampUtc"`
	Area        string     `json:"area"`
	Sensitivity string     `json:"sensitivity"`
}

// POST /cameras/{id}/events/motion-detected
func (h *EventHandler) MotionDetected(w http.ResponseWriter, r *http.Request) {
	record(h, w, r, &motionRequest{},
		func(q *motionRequest) *time.Time { return q.Timestamp },
		func(id uuid.UUID, at time.Time, q *motionRequest) events.Telemetry {
			return events.MotionDetected{CameraID: id, Timestamp: at, Area: q.Area, Sensitivity: q.Sensitivity}
		})
}

type streamOnRequest struct {
	Timestamp *time.Time `json:"timestampUtc"`
	StartedBy string     `json:"startedBy"`
}

// POST /cameras/{id}/events/stream-on
func (h *EventHandler) StreamOn(w http.ResponseWriter, r *http.Request) {
	record(h, w, r, &streamOnRequest{},
		func(q *streamOnRequest) *time.Time { return q.Timestamp },
		func(id uuid.UUID, at time.Time, q *streamOnRequest) events.Telemetry {
			return events.StreamOn{CameraID: id, Timestamp: at, StartedBy: q.StartedBy}
		})
}

type streamOffRequest struct {
	Timestamp *time.Time `json:"timestampUtc"`
	Reason    string     `json:"reason"`
}

// POST /cameras/{id}/events/stream-off
func (h *EventHandler) StreamOff(w http.ResponseWriter, r *http.Request) {
	record(h, w, r, &streamOffRequest{},
		func(q *streamOffRequest) *time.Time { return q.Timestamp },
		func(id uuid.UUID, at time.Time, q *streamOffRequest) events.Telemetry {
			return events.StreamOff{CameraID: id, Timestamp: at, Reason: q.Reason}
		})
}

type alarmOnRequest struct {
	Timestamp *time.Time `json:"timestampUtc"`
	AlarmType string     `json:"alarmType"`
	Severity  string     `json:"severity"`
}

// POST /cameras/{id}/events/alarm-on
func (h *EventHandler) AlarmOn(w http.ResponseWriter, r *http.Request) {
	record(h, w, r, &alarmOnRequest{},
		func(q *alarmOnRequest) *time.Time { return q.Timestamp },
		func(id uuid.UUID, at time.Time, q *alarmOnRequest) events.Telemetry {
			return events.AlarmOn{CameraID: id, Timestamp: at, AlarmType: q.AlarmType, Severity: q.Severity}
		})
}

type alarmOffRequest struct {
	Timestamp *time.Time `json:"timestampUtc"`
	ClearedBy string     `json:"clearedBy"`
}

// POST /cameras/{id}/events/alarm-off
func (h *EventHandler) AlarmOff(w http.ResponseWriter, r *http.Request) {
	record(h, w, r, &alarmOffRequest{},
		func(q *alarmOffRequest) *time.Time { return q.Timestamp },
		func(id uuid.UUID, at time.Time, q *alarmOffRequest) events.Telemetry {
			return events.AlarmOff{CameraID: id, Timestamp: at, ClearedBy: q.ClearedBy}
		})
}

type configChangedRequest struct {
	Timestamp *time.Time     `json:"timestampUtc"`
	Changes   map[string]any `json:"changes"`
	ChangedBy string         `json:"changedBy"`
}

// POST /cameras/{id}/events/config-changed
func (h *EventHandler) ConfigChanged(w http.ResponseWriter, r *http.Request) {
	record(h, w, r, &configChangedRequest{},
		func(q *configChangedRequest) *time.Time { return q.Timestamp },
		func(id uuid.UUID, at time.Time, q *configChangedRequest) events.Telemetry {
			return events.ConfigChanged{CameraID: id, Timestamp: at, Changes: q.Changes, ChangedBy: q.ChangedBy}
		})
}
