// Package session keeps one calculator per visitor and removes sessions that
// have been idle for too long.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/antibyte/retrocalc/pkg/calculator"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/tibasic"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("maximum number of sessions reached")
)

// Session is a single calculator bound to a visitor.
type Session struct {
	ID        string
	IPAddress string
	CreatedAt time.Time
	Calc      *calculator.Calculator

	lastActivity atomic.Int64 // unix nanoseconds
	connections  atomic.Int32
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last Touch.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Attach marks a websocket as connected. The returned function detaches it.
func (s *Session) Attach() (detach func()) {
	s.connections.Add(1)
	s.Touch()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.connections.Add(-1)
			s.Touch()
		})
	}
}

// Connected reports whether a websocket is attached.
func (s *Session) Connected() bool {
	return s.connections.Load() > 0
}

// Factory builds the calculator for a new session.
type Factory func(sessionID string) *calculator.Calculator

// Manager owns all live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxSessions int
	maxInactive time.Duration
	factory     Factory
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithMaxSessions(n int) Option {
	return func(m *Manager) { m.maxSessions = n }
}

func WithMaxInactive(d time.Duration) Option {
	return func(m *Manager) { m.maxInactive = d }
}

func WithFactory(f Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// NewManager reads its limits from the [Session] and [Server] sections.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: configuration.GetInt("Session", "max_sessions", 100),
		maxInactive: configuration.GetDuration("Session", "max_inactive_time", 30*time.Minute),
		now:         time.Now,
	}
	m.factory = DefaultFactory(configuration.GetInt("Server", "steps_per_tick", 1))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultFactory creates calculators with the given step rate and the key
// map named in [Calculator] keymap_file.
func DefaultFactory(stepsPerTick int) Factory {
	keys, err := calculator.LoadKeyMap(configuration.GetString("Calculator", "keymap_file", ""))
	if err != nil {
		logger.Warn(logger.AreaSession, "key map not loaded, using defaults: %v", err)
		keys = calculator.DefaultKeyMap()
	}
	return func(id string) *calculator.Calculator {
		return calculator.New(
			calculator.WithKeyMap(keys),
			calculator.WithStepsPerTick(stepsPerTick),
			calculator.WithInterpreterOptions(tibasic.WithSessionID(id)),
		)
	}
}

// Create registers a new session for a client address.
func (m *Manager) Create(ipAddress string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("%w: %d", ErrTooManySessions, m.maxSessions)
	}
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		IPAddress: ipAddress,
		CreatedAt: m.now(),
		Calc:      m.factory(id),
	}
	s.lastActivity.Store(s.CreatedAt.UnixNano())
	m.sessions[id] = s
	logger.SessionInfo("session %s created for %s (%d active)", id, ipAddress, len(m.sessions))
	return s, nil
}

// Get returns a session and records activity on it.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Touch()
	return s, nil
}

// Remove deletes a session. It reports whether the session existed.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	delete(m.sessions, id)
	logger.SessionInfo("session %s removed after %v", id, m.now().Sub(s.CreatedAt).Round(time.Second))
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes sessions without a websocket that have been idle longer
// than the configured limit and returns how many were removed.
func (m *Manager) Cleanup() int {
	cutoff := m.now().Add(-m.maxInactive)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.Connected() || !s.LastActivity().Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		removed++
		logger.SessionDebug("session %s expired (idle since %s)", id, s.LastActivity().Format(time.RFC3339))
	}
	if removed > 0 {
		logger.SessionInfo("cleaned up %d inactive sessions, %d left", removed, len(m.sessions))
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = configuration.GetDuration("Session", "cleanup_interval", 5*time.Minute)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
