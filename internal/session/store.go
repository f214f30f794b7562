package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"emprenix/internal/helper"
)

// Store keeps sessions in memory by ID. Sessions idle for longer than ttl are
// discarded together with their pipeline.
//
// The expiry check, removal and refresh of a session all happen under mu, so
// a session returned by Get is never removed by a sweep that was already
// running. Pipelines are closed after mu is released.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the live session for id and marks it as seen.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return nil, false
	}
	now := st.now()
	if st.expired(s, now) {
		delete(st.sessions, id)
		st.mu.Unlock()
		st.closeSession(context.Background(), s)
		return nil, false
	}
	s.touchAt(now)
	st.mu.Unlock()
	return s, true
}

// Create registers a new session with a random ID.
func (st *Store) Create() (*Session, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	s := New(id)
	st.mu.Lock()
	s.touchAt(st.now())
	st.sessions[id] = s
	st.mu.Unlock()
	log.Debug().Str("session", id).Msg("Session created")
	return s, nil
}

// Destroy removes the session and discards its pipeline.
func (st *Store) Destroy(ctx context.Context, id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return
	}
	st.closeSession(ctx, s)
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep discards every expired session and returns how many were removed.
func (st *Store) Sweep(ctx context.Context) int {
	if st.ttl <= 0 {
		return 0
	}
	var expired []*Session
	st.mu.Lock()
	now := st.now()
	for id, s := range st.sessions {
		if st.expired(s, now) {
			delete(st.sessions, id)
			expired = append(expired, s)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		st.closeSession(ctx, s)
	}
	if len(expired) > 0 {
		log.Info().Int("expired", len(expired)).Msg("Swept idle sessions")
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done, then closes
// all remaining sessions.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			st.closeAll()
			return
		case <-ticker.C:
			st.Sweep(ctx)
		}
	}
}

func (st *Store) expired(s *Session, now time.Time) bool {
	return st.ttl > 0 && s.idleSince(now) > st.ttl
}

// closeSession waits for any in-flight chat call of s, so it must not run
// under mu.
func (st *Store) closeSession(ctx context.Context, s *Session) {
	if err := s.Close(ctx); err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("Error closing session")
	}
}

func (st *Store) closeAll() {
	st.mu.Lock()
	all := make([]*Session, 0, len(st.sessions))
	for id, s := range st.sessions {
		all = append(all, s)
		delete(st.sessions, id)
	}
	st.mu.Unlock()
	for _, s := range all {
		st.closeSession(context.Background(), s)
	}
}
