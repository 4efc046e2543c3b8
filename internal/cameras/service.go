package cameras

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"

	"github.com/technosupport/ts-vms-es/internal/events"
	"github.com/technosupport/ts-vms-es/internal/eventstore"
)

const DefaultStreamPrefix = "camera"

// StreamProtocol is the subset of eventstore.Streams the handlers use.
type StreamProtocol interface {
	ReadAll(ctx context.Context, stream string) (*eventstore.History, error)
	ReadUntil(ctx context.Context, stream string, revision int64) (*eventstore.History, error)
	Records(ctx context.Context, stream string) ([]eventstore.RecordedEvent, error)
	CurrentRevision(ctx context.Context, stream string) (int64, error)
	Append(ctx context.Context, stream string, ev events.Event, pre eventstore.Precondition) (int64, error)
}

type RegisterInput struct {
	Location  string
	Model     string
	IPAddress string
}

// UpdateInput fields left nil are not changed.
type UpdateInput struct {
	Location  *string
	Model     *string
	IPAddress *string
	IsActive  *bool
}

// Service runs the camera commands. It keeps no per-camera state; every
// command reads what it needs from the stream and relies on the store's
// revision check for concurrency control.
type Service struct {
	streams StreamProtocol
	prefix  string
	log     logs.Log
	now     func() time.Time
	newID   func() uuid.UUID
}

func NewService(streams StreamProtocol, prefix string, log logs.Log) *Service {
	if prefix == "" {
		prefix = DefaultStreamPrefix
	}
	return &Service{
		streams: streams,
		prefix:  prefix,
		log:     log,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// StreamName is the key of the stream that holds id's events.
func (s *Service) StreamName(id uuid.UUID) string {
	return fmt.Sprintf("%s-%s", s.prefix, id)
}

// Register creates a camera under a fresh id.
func (s *Service) Register(ctx context.Context, in RegisterInput) Result {
	id := s.newID()
	stream := s.StreamName(id)
	ev := events.Registered{
		CameraID:  id,
		Location:  in.Location,
		Model:     in.Model,
		IPAddress: in.IPAddress,
		Timestamp: s.now().UTC(),
	}

	rev, err := s.streams.Append(ctx, stream, ev, eventstore.MustNotExist())
	if err != nil {
		if errors.Is(err, eventstore.ErrAlreadyExists) {
			return conflict(fmt.Sprintf("Camera with ID %s already exists.", id))
		}
		s.log.Errorf("Error registering camera %s (%s): %v", id, stream, err)
		return failure("Failed to register camera.")
	}

	return created(Camera{
		ID:        id,
		Location:  in.Location,
		Model:     in.Model,
		IPAddress: in.IPAddress,
		IsActive:  true,
	}, rev)
}

// GetState folds the whole stream of id.
func (s *Service) GetState(ctx context.Context, id uuid.UUID) Result {
	return s.GetStateAt(ctx, id, eventstore.End)
}

// GetStateAt folds the events of id up to and including revision.
// eventstore.End folds the whole stream.
func (s *Service) GetStateAt(ctx context.Context, id uuid.UUID, revision int64) Result {
	stream := s.StreamName(id)
	h, err := s.streams.ReadUntil(ctx, stream, revision)
	if err != nil {
		if errors.Is(err, eventstore.ErrStreamAbsent) {
			return notFound(fmt.Sprintf("Camera with ID %s not found.", id))
		}
		s.log.Errorf("Error reading camera %s (%s): %v", id, stream, err)
		return failure("Failed to read camera.")
	}

	c := Fold(id, h.Events)
	return ok(&c, h.Revision)
}

// Events lists the raw envelopes recorded for id.
func (s *Service) Events(ctx context.Context, id uuid.UUID) Result {
	stream := s.StreamName(id)
	recs, err := s.streams.Records(ctx, stream)
	if err != nil {
		if errors.Is(err, eventstore.ErrStreamAbsent) {
			return notFound(fmt.Sprintf("Camera with ID %s not found.", id))
		}
		s.log.Errorf("Error listing events of camera %s (%s): %v", id, stream, err)
		return failure("Failed to read camera events.")
	}
	return Result{Kind: ResultOK, History: recs, Revision: recs[len(recs)-1].Revision}
}

// Update appends the given field changes, gated on the revision read just
// before. An input with every field nil still appends an event.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) Result {
	stream := s.StreamName(id)
	rev, err := s.streams.CurrentRevision(ctx, stream)
	if err != nil {
		if errors.Is(err, eventstore.ErrStreamAbsent) {
			return notFound(fmt.Sprintf("Camera with ID %s not found for update.", id))
		}
		s.log.Errorf("Error determining expected revision for update of camera %s (%s): %v", id, stream, err)
		return failure("Failed to prepare for camera update.")
	}

	ev := events.Updated{
		CameraID:  id,
		Location:  in.Location,
		Model:     in.Model,
		IPAddress: in.IPAddress,
		IsActive:  in.IsActive,
		Timestamp: s.now().UTC(),
	}
	newRev, err := s.streams.Append(ctx, stream, ev, eventstore.MustBeAtRevision(rev))
	if err != nil {
		switch {
		case errors.Is(err, eventstore.ErrConflict):
			return conflict(fmt.Sprintf("Update failed due to a concurrency conflict. Camera %s was modified concurrently.", id))
		case errors.Is(err, eventstore.ErrStreamAbsent):
			return notFound(fmt.Sprintf("Camera with ID %s not found for update.", id))
		}
		s.log.Errorf("Error updating camera %s (%s): %v", id, stream, err)
		return failure("Failed to update camera.")
	}
	return ok(nil, newRev)
}

// Decommission marks an active camera inactive. A camera that is already
// inactive is left alone and reported as success.
func (s *Service) Decommission(ctx context.Context, id uuid.UUID) Result {
	stream := s.StreamName(id)
	h, err := s.streams.ReadAll(ctx, stream)
	if err != nil {
		if errors.Is(err, eventstore.ErrStreamAbsent) {
			return notFound(fmt.Sprintf("Camera with ID %s not found for decommissioning.", id))
		}
		s.log.Errorf("Error determining expected revision for decommission of camera %s (%s): %v", id, stream, err)
		return failure("Failed to prepare for camera decommissioning.")
	}

	if !Fold(id, h.Events).IsActive {
		return noContent(h.Revision)
	}

	ev := events.Decommissioned{CameraID: id, Timestamp: s.now().UTC()}
	rev, err := s.streams.Append(ctx, stream, ev, eventstore.MustBeAtRevision(h.Revision))
	if err != nil {
		switch {
		case errors.Is(err, eventstore.ErrConflict):
			return conflict(fmt.Sprintf("Decommission failed due to a concurrency conflict. Camera %s was modified concurrently.", id))
		case errors.Is(err, eventstore.ErrStreamAbsent):
			return notFound(fmt.Sprintf("Camera with ID %s not found for decommissioning.", id))
		}
		s.log.Errorf("Error decommissioning camera %s (%s): %v", id, stream, err)
		return failure("Failed to decommission camera.")
	}
	return noContent(rev)
}

// RecordEvent appends a telemetry event to id's stream without checking
// that the camera exists.
func (s *Service) RecordEvent(ctx context.Context, id uuid.UUID, ev events.Telemetry) Result {
	stream := s.StreamName(id)
	rev, err := s.streams.Append(ctx, stream, ev, eventstore.Any())
	if err != nil {
		s.log.Errorf("Error recording %s for camera %s (%s): %v", ev.EventType(), id, stream, err)
		return failure("Failed to record event.")
	}
	return ok(nil, rev)
}
