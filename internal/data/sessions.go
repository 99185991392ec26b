package data

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"regform/internal/form"
	"regform/internal/jsonlog"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("form session not found")

// Session is one host page's form. Events on a session are applied one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	form     *form.FormValidator
	lastSeen atomic.Int64
}

// Do runs fn with exclusive access to the session's FormValidator.
func (s *Session) Do(fn func(fv *form.FormValidator)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.form)
}

// LastSeen returns when the session was last looked up.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// SessionStore keeps form sessions in memory and evicts idle ones.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *jsonlog.Logger
	now      func() time.Time

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSessionStore creates a store whose sessions expire after ttl without activity.
// A non-positive ttl disables expiry.
func NewSessionStore(ttl time.Duration, logger *jsonlog.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Create starts a new session with a fresh FormValidator.
func (s *SessionStore) Create(opts ...form.Option) *Session {
	now := s.now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		form:      form.New(opts...),
	}
	session.touch(now)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Get returns the session and marks it active. Expired sessions are removed
// and reported as not found.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	now := s.now()
	if s.expired(session, now) {
		s.Delete(id)
		return nil, ErrSessionNotFound
	}

	session.touch(now)
	return session, nil
}

// Delete removes a session and reports whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *SessionStore) expired(session *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(session.LastSeen()) > s.ttl
}

// Sweep removes every expired session and returns how many were removed.
func (s *SessionStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for id, session := range s.sessions {
		if s.expired(session, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps every interval until Shutdown is called. Only the
// first call has any effect.
func (s *SessionStore) StartCleanup(interval time.Duration) {
	s.startOnce.Do(func() { s.startCleanup(interval) })
}

func (s *SessionStore) startCleanup(interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		close(s.done)
		return
	}

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if removed := s.Sweep(); removed > 0 {
					s.logger.Debug("expired form sessions removed",
						"removed", removed,
						"remaining", s.Len())
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Shutdown stops the cleanup goroutine. It is safe to call more than once.
func (s *SessionStore) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// WaitForShutdown blocks until the cleanup goroutine has exited.
// StartCleanup must have been called.
func (s *SessionStore) WaitForShutdown() {
	<-s.done
}
