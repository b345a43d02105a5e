// Package session tracks live conversation connections so they can be listed,
// ended from the REST surface, and expired when idle.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

// Session is the registry's view of one connection. Conversation state itself
// lives with the connection task.
type Session struct {
	ID             string    `json:"session_id"`
	ProfileID      string    `json:"profile_id"`
	Status         Status    `json:"status"`
	Lifecycle      string    `json:"lifecycle"`
	Phase          string    `json:"phase"`
	Topic          string    `json:"topic,omitempty"`
	Generations    int       `json:"generations"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type entry struct {
	Session
	cancel context.CancelFunc
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*entry
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*entry),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(profileID string) *Session {
	now := time.Now().UTC()
	e := &entry{Session: Session{
		ID:             uuid.NewString(),
		ProfileID:      profileID,
		Status:         StatusActive,
		Lifecycle:      "connected",
		StartedAt:      now,
		LastActivityAt: now,
	}}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[e.ID] = e
	return clone(e)
}

// Bind attaches the cancel func of the connection serving the session. End
// and expiry call it.
func (m *Manager) Bind(sessionID string, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	e.cancel = cancel
	return nil
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	e.LastActivityAt = time.Now().UTC()
	return nil
}

// Observe records the connection's lifecycle state, phase and topic.
func (m *Manager) Observe(sessionID, lifecycle, phase, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if lifecycle == "generating" && e.Lifecycle != "generating" {
		e.Generations++
	}
	e.Lifecycle = lifecycle
	e.Phase = phase
	e.Topic = topic
	e.LastActivityAt = time.Now().UTC()
	return nil
}

// End marks the session ended and cancels its connection.
func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	cancel := m.endLocked(e)
	out := clone(e)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return out, nil
}

// Remove forgets a session once its connection is gone.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) endLocked(e *entry) context.CancelFunc {
	e.Status = StatusEnded
	e.Lifecycle = "closed"
	e.LastActivityAt = time.Now().UTC()
	cancel := e.cancel
	e.cancel = nil
	return cancel
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.sessions {
		if e.Status == StatusActive {
			count++
		}
	}
	return count
}

// List returns all known sessions, oldest first.
func (m *Manager) List() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		out = append(out, e.Session)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var (
		expired []*Session
		cancels []context.CancelFunc
	)

	m.mu.Lock()
	for _, e := range m.sessions {
		if e.Status != StatusActive {
			continue
		}
		if now.Sub(e.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		if cancel := m.endLocked(e); cancel != nil {
			cancels = append(cancels, cancel)
		}
		expired = append(expired, clone(e))
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(e *entry) *Session {
	c := e.Session
	return &c
}
