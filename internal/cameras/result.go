package cameras

import "github.com/technosupport/ts-vms-es/internal/eventstore"

type ResultKind int

const (
	ResultFailure ResultKind = iota
	ResultCreated
	ResultOK
	ResultNoContent
	ResultConflict
	ResultNotFound
)

func (k ResultKind) String() string {
	switch k {
	case ResultCreated:
		return "created"
	case ResultOK:
		return "ok"
	case ResultNoContent:
		return "no_content"
	case ResultConflict:
		return "conflict"
	case ResultNotFound:
		return "not_found"
	default:
		return "failure"
	}
}

// Result is what a command handler hands back to the transport layer.
// Camera is set for Created and for OK reads; History for event listings.
// Message is safe to show to clients.
type Result struct {
	Kind     ResultKind
	Camera   *Camera
	History  []eventstore.RecordedEvent
	Revision int64
	Message  string
}

func created(c Camera, rev int64) Result {
	return Result{Kind: ResultCreated, Camera: &c, Revision: rev}
}

func ok(c *Camera, rev int64) Result {
	return Result{Kind: ResultOK, Camera: c, Revision: rev}
}

func noContent(rev int64) Result {
	return Result{Kind: ResultNoContent, Revision: rev}
}

func conflict(msg string) Result {
	return Result{Kind: ResultConflict, Message: msg, Revision: eventstore.NoRevision}
}

func notFound(msg string) Result {
	return Result{Kind: ResultNotFound, Message: msg, Revision: eventstore.NoRevision}
}

func failure(msg string) Result {
	return Result{Kind: ResultFailure, Message: msg, Revision: eventstore.NoRevision}
}
