package dedup

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// State is what Reserve found for a key.
type State int

const (
	// Fresh means the key was unseen (or expired) and is now pending for the caller.
	Fresh State = iota
	// Pending means another caller holds the key and has not finished.
	Pending
	// Done means a caller committed the key within the window.
	Done
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Pending:
		return "pending"
	case Done:
		return "done"
	}
	return "unknown"
}

type entry struct {
	at   time.Time
	done bool
}

// Window remembers recently seen keys for ttl, bounded to maxKeys entries.
// The oldest keys are evicted first once the bound is reached. A key moves
// from pending to done on Commit, or is forgotten on Release.
type Window struct {
	mu    sync.Mutex
	cache *lru.Cache[string, entry]
	ttl   time.Duration
	now   func() time.Time
}

func NewWindow(maxKeys int, ttl time.Duration) (*Window, error) {
	if maxKeys <= 0 {
		maxKeys = 1
	}
	c, err := lru.New[string, entry](maxKeys)
	if err != nil {
		return nil, err
	}
	return &Window{cache: c, ttl: ttl, now: time.Now}, nil
}

// Reserve claims key if it is free. Only a Fresh result hands the key to
// the caller, who must then Commit or Release it.
func (w *Window) Reserve(key string) State {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if e, ok := w.cache.Get(key); ok && now.Sub(e.at) < w.ttl {
		if e.done {
			return Done
		}
		return Pending
	}
	w.cache.Add(key, entry{at: now})
	return Fresh
}

// Commit marks key done; duplicates are answered from now until ttl passes.
func (w *Window) Commit(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache.Add(key, entry{at: w.now(), done: true})
}

// Release forgets key so a retry of a failed request is not swallowed.
func (w *Window) Release(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache.Remove(key)
}

func (w *Window) Len() int {
	return w.cache.Len()
}
