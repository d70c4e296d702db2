package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/mcp-weather/backend/internal/metrics"
	"github.com/zhouzirui/mcp-weather/backend/internal/model/session"
)

// DefaultTTL is how long an untouched session stays resolvable.
const DefaultTTL = 300 * time.Second

var ErrSessionNotFound = errors.New("session not found")

// Config controls store capacity and expiry.
type Config struct {
	// TTL is used by the background janitor and by capacity pressure in Create.
	TTL time.Duration
	// MaxEntries bounds the store; zero means unbounded.
	MaxEntries int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Store keeps streaming sessions in process memory.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]session.Session
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewStore bootstraps an empty in-memory session store.
func NewStore(cfg Config) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions:   make(map[string]session.Session),
		ttl:        ttl,
		maxEntries: cfg.MaxEntries,
		now:        now,
	}
}

// TTL returns the configured expiry window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Create stores query under a freshly generated id.
func (s *Store) Create(query string) session.Session {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxEntries > 0 && len(s.sessions) >= s.maxEntries {
		s.makeRoomLocked(now)
	}

	id := newID()
	for {
		if _, taken := s.sessions[id]; !taken {
			break
		}
		id = newID()
	}

	record := session.Session{
		ID:        id,
		Query:     query,
		CreatedAt: now,
		LastSeen:  now,
	}
	s.sessions[id] = record

	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return record
}

// Touch refreshes the session timestamp and returns a copy of the record.
// A record past its TTL is dropped instead of being revived.
func (s *Store) Touch(id string) (session.Session, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[id]
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	if record.Expired(now, s.ttl) {
		delete(s.sessions, id)
		metrics.SessionsExpired.Inc()
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		return session.Session{}, ErrSessionNotFound
	}
	record.LastSeen = now
	s.sessions[id] = record
	return record, nil
}

// Get looks a live session up without refreshing it.
func (s *Store) Get(id string) (session.Session, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[id]
	if !ok || record.Expired(now, s.ttl) {
		return session.Session{}, ErrSessionNotFound
	}
	return record, nil
}

// SweepExpired removes every session last seen more than ttl before now.
func (s *Store) SweepExpired(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.sweepLocked(now, ttl)
	if removed > 0 {
		metrics.SessionsExpired.Add(float64(removed))
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return removed
}

// Len reports the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired(s.now(), s.ttl)
		}
	}
}

func (s *Store) sweepLocked(now time.Time, ttl time.Duration) int {
	removed := 0
	for id, record := range s.sessions {
		if record.Expired(now, ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// makeRoomLocked drops expired records and, if the store is still full, the
// least recently seen one.
func (s *Store) makeRoomLocked(now time.Time) {
	if removed := s.sweepLocked(now, s.ttl); removed > 0 {
		metrics.SessionsExpired.Add(float64(removed))
	}
	if len(s.sessions) < s.maxEntries {
		return
	}

	var oldestID string
	var oldest time.Time
	for id, record := range s.sessions {
		if oldestID == "" || record.LastSeen.Before(oldest) {
			oldestID = id
			oldest = record.LastSeen
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		metrics.SessionsEvicted.Inc()
	}
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
