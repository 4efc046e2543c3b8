package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/technosupport/ts-vms-es/internal/eventstore"
)

const DefaultSubjectPrefix = "vms.cameras"

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
}

var _ Conn = (*nats.Conn)(nil)

type Observer interface {
	ObservePublish(result string)
}

// Message is the JSON body relayed for each appended event.
type Message struct {
	Stream    string          `json:"stream"`
	Revision  int64           `json:"revision"`
	EventID   uuid.UUID       `json:"eventId"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Created   time.Time       `json:"created"`
}

// NATSPublisher relays appended events on <prefix>.<stream>.<eventType>.
// It implements eventstore.Publisher.
type NATSPublisher struct {
	conn       Conn
	prefix     string
	maxRetries int
	backoff    time.Duration
	obs        Observer
}

func NewNATSPublisher(conn Conn, prefix string, maxRetries int, obs Observer) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &NATSPublisher{
		conn:       conn,
		prefix:     strings.TrimSuffix(prefix, "."),
		maxRetries: maxRetries,
		backoff:    100 * time.Millisecond,
		obs:        obs,
	}
}

func (p *NATSPublisher) Subject(stream, eventType string) string {
	return p.prefix + "." + stream + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, rec eventstore.RecordedEvent) error {
	data, err := json.Marshal(Message{
		Stream:    rec.Stream,
		Revision:  rec.Revision,
		EventID:   rec.EventID,
		EventType: rec.EventType,
		Payload:   rec.Payload,
		Metadata:  rec.Metadata,
		Created:   rec.Created,
	})
	if err != nil {
		p.observe("error")
		return fmt.Errorf("marshal error: %w", err)
	}

	subject := p.Subject(rec.Stream, rec.EventType)
	for i := 0; i <= p.maxRetries; i++ {
		err = p.conn.Publish(subject, data)
		if err == nil {
			p.observe("ok")
			return nil
		}
		if i == p.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			p.observe("error")
			return fmt.Errorf("publish %s: %w (last error: %v)", subject, ctx.Err(), err)
		case <-time.After(time.Duration(i+1) * p.backoff):
		}
	}

	p.observe("error")
	return fmt.Errorf("publish %s failed after %d retries: %w", subject, p.maxRetries, err)
}

func (p *NATSPublisher) observe(result string) {
	if p.obs != nil {
		p.obs.ObservePublish(result)
	}
}
