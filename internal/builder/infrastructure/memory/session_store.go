package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmehra2102/burger-builder/internal/builder/application"
	"github.com/dmehra2102/burger-builder/internal/builder/domain"
)

// SessionStore keeps sessions in process memory. Sessions neither loaded
// nor saved for longer than ttl are dropped lazily; ttl <= 0 keeps them
// forever.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]entry
	ttl      time.Duration
	now      func() time.Time
}

type entry struct {
	sess     application.Session
	lastSeen time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) Create(ctx context.Context, sess application.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = entry{sess: copySession(sess), lastSeen: sess.UpdatedAt}
	return nil
}

// Load returns a copy of the session and slides its expiry.
func (s *SessionStore) Load(ctx context.Context, id string) (application.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		return application.Session{}, application.ErrSessionNotFound
	}
	e.lastSeen = s.now()
	s.sessions[id] = e
	return copySession(e.sess), nil
}

func (s *SessionStore) Save(ctx context.Context, sess application.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[sess.ID]
	if !ok || s.expired(cur) {
		return application.ErrSessionNotFound
	}
	if cur.sess.Version != sess.Version-1 {
		return application.ErrSessionConflict
	}
	s.sessions[sess.ID] = entry{sess: copySession(sess), lastSeen: s.now()}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return application.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Sweep removes expired sessions and reports how many were dropped.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *SessionStore) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.lastSeen) > s.ttl
}

func copySession(sess application.Session) application.Session {
	counts := make(domain.Counts, len(sess.Ingredients))
	for k, v := range sess.Ingredients {
		counts[k] = v
	}
	sess.Ingredients = counts
	return sess
}
