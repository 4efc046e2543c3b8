package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type tags persisted with each envelope. They match the names used by the
// streams written before this service existed, so old and new writers share
// the same log.
const (
	TypeRegistered     = "CameraRegisteredEvent"
	TypeUpdated        = "CameraUpdatedEvent"
	TypeDecommissioned = "CameraDecommissionedEvent"
	TypeMotionDetected = "MotionDetectedEvent"
	TypeStreamOn       = "StreamOnEvent"
	TypeStreamOff      = "StreamOffEvent"
	TypeAlarmOn        = "AlarmOnEvent"
	TypeAlarmOff       = "AlarmOffEvent"
	TypeConfigChanged  = "ConfigChangedEvent"
)

// Event is a camera domain event. The variant set is closed: only the types in
// this file implement it.
type Event interface {
	EventType() string
	event()
}

// Telemetry is the subset of events ingested without any precondition.
type Telemetry interface {
	Event
	telemetry()
}

type Registered struct {
	CameraID  uuid.UUID `json:"cameraId"`
	Location  string    `json:"location"`
	Model     string    `json:"model"`
	IPAddress string    `json:"ipAddress"`
	Timestamp time.Time `json:"timestamp"`
}

// Updated carries only the fields that change. A nil field means "no change";
// a pointer to "" is a real value.
type Updated struct {
	CameraID  uuid.UUID `json:"cameraId"`
	Location  *string   `json:"location"`
	Model     *string   `json:"model"`
	IPAddress *string   `json:"ipAddress"`
	IsActive  *bool     `json:"isActive"`
	Timestamp time.Time `json:"timestamp"`
}

type Decommissioned struct {
	CameraID  uuid.UUID `json:"cameraId"`
	Timestamp time.Time `json:"timestamp"`
}

type MotionDetected struct {
	CameraID    uuid.UUID `json:"cameraId"`
	Timestamp   time.Time `json:"timestampUtc"`
	Area        string    `json:"area"`
	Sensitivity string    `json:"sensitivity"`
}

type StreamOn struct {
	CameraID  uuid.UUID `json:"cameraId"`
	Timestamp time.Time `json:"timestampUtc"`
	StartedBy string    `json:"startedBy"`
}

type StreamOff struct {
	CameraID  uuid.UUID `json:"cameraId"`
	Timestamp time.Time `json:"timestampUtc"`
	Reason    string    `json:"reason"`
}

type AlarmOn struct {
	CameraID  uuid.UUID `json:"cameraId"`
	Timestamp time.Time `json:"timestampUtc"`
	AlarmType string    `json:"alarmType"`
	Severity  string    `json:"severity"`
}

type AlarmOff struct {
	CameraID  uuid.UUID `json:"cameraId"`
	Timestamp time.Time `json:"timestampUtc"`
	ClearedBy string    `json:"clearedBy"`
}

type ConfigChanged struct {
	CameraID  uuid.UUID      `json:"cameraId"`
	Timestamp time.Time      `json:"timestampUtc"`
	Changes   map[string]any `json:"changes"`
	ChangedBy string         `json:"changedBy"`
}

// Unrecognized is what Decode yields for a type tag this build does not know.
// The payload is kept verbatim.
type Unrecognized struct {
	Type    string
	Payload json.RawMessage
}

func (Registered) EventType() string     { return TypeRegistered }
func (Updated) EventType() string        { return TypeUpdated }
func (Decommissioned) EventType() string { return TypeDecommissioned }
func (MotionDetected) EventType() string { return TypeMotionDetected }
func (StreamOn) EventType() string       { return TypeStreamOn }
func (StreamOff) EventType() string      { return TypeStreamOff }
func (AlarmOn) EventType() string        { return TypeAlarmOn }
func (AlarmOff) EventType() string       { return TypeAlarmOff }
func (ConfigChanged) EventType() string  { return TypeConfigChanged }
func (u Unrecognized) EventType() string { return u.Type }

func (Registered) event()     {}
func (Updated) event()        {}
func (Decommissioned) event() {}
func (MotionDetected) event() {}
func (StreamOn) event()       {}
func (StreamOff) event()      {}
func (AlarmOn) event()        {}
func (AlarmOff) event()       {}
func (ConfigChanged) event()  {}
func (Unrecognized) event()   {}

func (MotionDetected) telemetry() {}
func (StreamOn) telemetry()       {}
func (StreamOff) telemetry()      {}
func (AlarmOn) telemetry()        {}
func (AlarmOff) telemetry()       {}
func (ConfigChanged) telemetry()  {}
