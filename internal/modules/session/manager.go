// README: Session registry with idle eviction.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rideflow/internal/metrics"
	"rideflow/internal/modules/quote"
	"rideflow/internal/modules/ranking"
	"rideflow/internal/modules/search"
)

type Deps struct {
	Fetcher       quote.Fetcher
	Pricer        ranking.Pricer
	Lookup        search.Lookup
	QuoteOptions  quote.Options
	SearchOptions search.Options
	IdleTimeout   time.Duration
}

type Manager struct {
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(deps Deps, log *zap.Logger) *Manager {
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{deps: deps, log: log, now: time.Now, sessions: make(map[string]*Session)}
}

func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := &Session{
		ID:      id,
		Quote:   quote.NewCache(m.deps.Fetcher, m.deps.Pricer, m.deps.QuoteOptions, m.log.With(zap.String("session", id))),
		pickup:  search.NewSuggester(m.deps.Lookup, m.deps.SearchOptions, m.log.With(zap.String("session", id), zap.String("field", string(FieldPickup)))),
		dropoff: search.NewSuggester(m.deps.Lookup, m.deps.SearchOptions, m.log.With(zap.String("session", id), zap.String("field", string(FieldDropoff)))),
		now:     m.now,
	}
	s.Touch()

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	m.log.Info("session created", zap.String("session", id))
	return s
}

// Get returns the session and marks it active.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.Touch()
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.close()
	metrics.ActiveSessions.Set(float64(n))
	m.log.Info("session closed", zap.String("session", id))
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunJanitor evicts idle sessions until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context) {
	interval := m.deps.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.sweep(); n > 0 {
				m.log.Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) sweep() int {
	cutoff := m.now().Add(-m.deps.IdleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
	}
	metrics.ActiveSessions.Set(float64(n))
	return len(idle)
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	metrics.ActiveSessions.Set(0)
}
