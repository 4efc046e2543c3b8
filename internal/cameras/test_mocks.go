package cameras

import (
	"context"

	"github.com/technosupport/ts-vms-es/internal/events"
	"github.com/technosupport/ts-vms-es/internal/eventstore"
)

// MockStreams delegates to Next unless the matching func is set.
// BeforeAppend runs ahead of every append, which lets tests slip a
// concurrent writer in between a command's read and its append.
type MockStreams struct {
	Next StreamProtocol

	ReadAllFunc         func(ctx context.Context, stream string) (*eventstore.History, error)
	ReadUntilFunc       func(ctx context.Context, stream string, revision int64) (*eventstore.History, error)
	RecordsFunc         func(ctx context.Context, stream string) ([]eventstore.RecordedEvent, error)
	CurrentRevisionFunc func(ctx context.Context, stream string) (int64, error)
	AppendFunc          func(ctx context.Context, stream string, ev events.Event, pre eventstore.Precondition) (int64, error)
	BeforeAppend        func(stream string)

	Appends []events.Event
}

func (m *MockStreams) ReadAll(ctx context.Context, stream string) (*eventstore.History, error) {
	if m.ReadAllFunc != nil {
		return m.ReadAllFunc(ctx, stream)
	}
	return m.Next.ReadAll(ctx, stream)
}

func (m *MockStreams) ReadUntil(ctx context.Context, stream string, revision int64) (*eventstore.History, error) {
	if m.ReadUntilFunc != nil {
		return m.ReadUntilFunc(ctx, stream, revision)
	}
	return m.Next.ReadUntil(ctx, stream, revision)
}

func (m *MockStreams) Records(ctx context.Context, stream string) ([]eventstore.RecordedEvent, error) {
	if m.RecordsFunc != nil {
		return m.RecordsFunc(ctx, stream)
	}
	return m.Next.Records(ctx, stream)
}

func (m *MockStreams) CurrentRevision(ctx context.Context, stream string) (int64, error) {
	if m.CurrentRevisionFunc != nil {
		return m.CurrentRevisionFunc(ctx, stream)
	}
	return m.Next.CurrentRevision(ctx, stream)
}

func (m *MockStreams) Append(ctx context.Context, stream string, ev events.Event, pre eventstore.Precondition) (int64, error) {
	if m.BeforeAppend != nil {
		m.BeforeAppend(stream)
	}
	m.Appends = append(m.Appends, ev)
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, stream, ev, pre)
	}
	return m.Next.Append(ctx, stream, ev, pre)
}
