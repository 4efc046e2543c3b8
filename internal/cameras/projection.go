package cameras

import (
	"github.com/google/uuid"

	"github.com/technosupport/ts-vms-es/internal/events"
)

// Camera is the current state of one camera, rebuilt from its stream.
type Camera struct {
	ID        uuid.UUID `json:"id"`
	Location  string    `json:"location"`
	Model     string    `json:"model"`
	IPAddress string    `json:"ipAddress"`
	IsActive  bool      `json:"isActive"`
}

// Apply folds one event into c. Events that do not describe the camera's
// lifecycle leave c unchanged.
func (c Camera) Apply(ev events.Event) Camera {
	switch e := ev.(type) {
	case events.Registered:
		c.Location = e.Location
		c.Model = e.Model
		c.IPAddress = e.IPAddress
		c.IsActive = true
	case events.Updated:
		if e.Location != nil {
			c.Location = *e.Location
		}
		if e.Model != nil {
			c.Model = *e.Model
		}
		if e.IPAddress != nil {
			c.IPAddress = *e.IPAddress
		}
		if e.IsActive != nil {
			c.IsActive = *e.IsActive
		}
	case events.Decommissioned:
		c.IsActive = false
	}
	return c
}

// Fold replays evs in order over an empty camera. Callers must only fold
// a non-empty history; an empty one means the camera does not exist.
func Fold(id uuid.UUID, evs []events.Event) Camera {
	c := Camera{ID: id}
	for _, ev := range evs {
		c = c.Apply(ev)
	}
	return c
}
