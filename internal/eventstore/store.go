package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/technosupport/ts-vms-es/internal/events"
)

// Errors reported by Store implementations.
var (
	ErrWrongExpectedRevision = errors.New("wrong expected revision")
	ErrStreamNotFound        = errors.New("stream not found")
	ErrUnavailable           = errors.New("event store unavailable")
)

// NoRevision is the revision of a stream that has never been appended to.
const NoRevision int64 = -1

// Read positions.
const (
	Start int64 = 0
	End   int64 = -1
)

type Direction int

const (
	Forwards Direction = iota
	Backwards
)

type preconditionKind int

const (
	anyRevision preconditionKind = iota
	noStream
	exactRevision
)

// Precondition is the expected-revision check attached to an append.
type Precondition struct {
	kind     preconditionKind
	revision int64
}

// Any appends without checking the stream's revision.
func Any() Precondition { return Precondition{kind: anyRevision, revision: NoRevision} }

// MustNotExist appends only if the stream has no events.
func MustNotExist() Precondition { return Precondition{kind: noStream, revision: NoRevision} }

// MustBeAtRevision appends only if the stream's last event is at revision r.
func MustBeAtRevision(r int64) Precondition { return Precondition{kind: exactRevision, revision: r} }

// Satisfied reports whether a stream whose last revision is current
// (NoRevision if it does not exist) satisfies p.
func (p Precondition) Satisfied(current int64) bool {
	switch p.kind {
	case noStream:
		return current == NoRevision
	case exactRevision:
		return current == p.revision
	default:
		return true
	}
}

func (p Precondition) IsAny() bool          { return p.kind == anyRevision }
func (p Precondition) IsMustNotExist() bool { return p.kind == noStream }

// Revision returns the expected revision for MustBeAtRevision preconditions.
func (p Precondition) Revision() (int64, bool) {
	return p.revision, p.kind == exactRevision
}

func (p Precondition) String() string {
	switch p.kind {
	case noStream:
		return "no_stream"
	case exactRevision:
		return fmt.Sprintf("revision(%d)", p.revision)
	default:
		return "any"
	}
}

// WrongExpectedRevisionError is returned when an append's precondition does not hold.
type WrongExpectedRevisionError struct {
	Stream   string
	Expected Precondition
	Actual   int64
}

func (e *WrongExpectedRevisionError) Error() string {
	return fmt.Sprintf("stream %s: expected %s, actual revision %d", e.Stream, e.Expected, e.Actual)
}

func (e *WrongExpectedRevisionError) Is(target error) bool {
	return target == ErrWrongExpectedRevision
}

// RecordedEvent is an envelope at its position in a stream.
type RecordedEvent struct {
	Stream   string
	Revision int64
	Created  time.Time
	events.Envelope
}

// Store is the append-only log the service writes to.
//
// AppendToStream atomically appends envs after checking expected and returns
// the revision of the last appended event. ReadStream returns up to maxCount
// events (maxCount <= 0 means all) starting at from in the given direction;
// Backwards from End starts at the last event. A stream with no events is
// ErrStreamNotFound.
type Store interface {
	AppendToStream(ctx context.Context, stream string, expected Precondition, envs []events.Envelope) (int64, error)
	ReadStream(ctx context.Context, stream string, dir Direction, from int64, maxCount int) ([]RecordedEvent, error)
}

// Unavailable marks err as an infrastructure failure of the store.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// window selects the slice of a stream of length n that a read covers.
// It returns [lo, hi) in stream order.
func window(n int64, dir Direction, from int64, maxCount int) (int64, int64) {
	if dir == Backwards {
		hi := n
		if from != End && from+1 < n {
			hi = from + 1
		}
		if hi < 0 {
			hi = 0
		}
		lo := int64(0)
		if maxCount > 0 && hi-int64(maxCount) > 0 {
			lo = hi - int64(maxCount)
		}
		return lo, hi
	}

	lo := from
	if lo < 0 {
		lo = 0
	}
	if lo > n {
		lo = n
	}
	hi := n
	if maxCount > 0 && lo+int64(maxCount) < n {
		hi = lo + int64(maxCount)
	}
	return lo, hi
}
