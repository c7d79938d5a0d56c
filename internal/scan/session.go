package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HerbHall/wlanscan/internal/scantable"
	"github.com/HerbHall/wlanscan/pkg/models"
)

// Session is one run of the engine. Its counters are updated while it
// runs; read them through Summary.
type Session struct {
	ID      string
	Request Request

	abort atomic.Bool
	done  chan struct{}

	mu          sync.Mutex
	status      models.SessionStatus
	startedAt   time.Time
	endedAt     time.Time
	subCommands int
	issued      int
	outcomes    [4]int
	rescanned   bool
	err         error
}

func newSession(id string, req Request, now time.Time) *Session {
	return &Session{
		ID:        id,
		Request:   req,
		done:      make(chan struct{}),
		status:    models.SessionRunning,
		startedAt: now,
	}
}

// Abort asks the session to stop before its next sub-command.
func (s *Session) Abort() { s.abort.Store(true) }

func (s *Session) aborted() bool { return s.abort.Load() }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends or ctx is done, and returns the
// session's error. An aborted session returns ErrAborted.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the terminal error, nil while running or after success.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Status returns the lifecycle state.
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Count returns how many upserts had the given outcome.
func (s *Session) Count(o scantable.Outcome) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes[o]
}

// Issued returns the number of sub-commands sent to the radio.
func (s *Session) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func (s *Session) planned(n int) {
	s.mu.Lock()
	s.subCommands += n
	s.mu.Unlock()
}

func (s *Session) sent() {
	s.mu.Lock()
	s.issued++
	s.mu.Unlock()
}

func (s *Session) record(o scantable.Outcome) {
	s.mu.Lock()
	s.outcomes[o]++
	s.mu.Unlock()
}

func (s *Session) markRescanned() {
	s.mu.Lock()
	s.rescanned = true
	s.mu.Unlock()
}

func (s *Session) finish(status models.SessionStatus, err error, now time.Time) {
	s.mu.Lock()
	s.status = status
	s.err = err
	s.endedAt = now
	s.mu.Unlock()
	close(s.done)
}

// Summary returns the API view of the session.
func (s *Session) Summary(tableEntries int) models.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := models.SessionSummary{
		ID:           s.ID,
		Status:       s.status,
		StartedAt:    s.startedAt.UTC().Format(time.RFC3339),
		SubCommands:  s.subCommands,
		Issued:       s.issued,
		Inserted:     s.outcomes[scantable.Inserted],
		Updated:      s.outcomes[scantable.Updated],
		Replaced:     s.outcomes[scantable.Replaced],
		Dropped:      s.outcomes[scantable.Dropped],
		Rescanned:    s.rescanned,
		TableEntries: tableEntries,
	}
	if !s.endedAt.IsZero() {
		out.EndedAt = s.endedAt.UTC().Format(time.RFC3339)
	}
	if s.err != nil {
		out.Error = s.err.Error()
	}
	return out
}
