package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// Manager owns durable memory for all sessions. Commits to the same profile
// are serialized; different profiles proceed independently.
type Manager struct {
	store     Store
	extractor OpinionExtractor
	window    int
	now       func() time.Time

	mu       sync.Mutex
	profiles map[string]*profileState
}

// profileState serializes access to one profile. rec is the last record seen
// with unsaved changes applied; pending holds the changes the store has not
// accepted yet.
type profileState struct {
	mu      sync.Mutex
	seeded  bool
	rec     Record
	pending []func(*Record) bool
}

type Option func(*Manager)

func WithExtractor(e OpinionExtractor) Option {
	return func(m *Manager) { m.extractor = e }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager wraps store. window is the number of trailing turns included in
// every context block.
func NewManager(store Store, window int, opts ...Option) *Manager {
	if window <= 0 {
		window = 20
	}
	m := &Manager{
		store:     store,
		extractor: NewMarkerExtractor(),
		window:    window,
		now:       func() time.Time { return time.Now().UTC() },
		profiles:  make(map[string]*profileState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Window() int { return m.window }

func (m *Manager) profile(id string) *profileState {
	id = normalizeProfile(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		p = &profileState{}
		m.profiles[id] = p
	}
	return p
}

// withRecord re-reads the profile under its lock, replays changes that were
// not saved yet, applies fn and saves when anything changed. When the store
// cannot be read nothing is written: fn only updates the in-process copy and
// is replayed onto the next successful load.
func (m *Manager) withRecord(ctx context.Context, profileID string, fn func(*Record) bool) error {
	p := m.profile(profileID)
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := m.store.Load(ctx, profileID)
	if err != nil {
		if !p.seeded {
			p.rec = DefaultRecord()
			p.seeded = true
		}
		if fn(&p.rec) {
			p.pending = append(p.pending, fn)
		}
		return fmt.Errorf("%w: load: %v", ErrPersistence, err)
	}

	rec = rec.normalize()
	dirty := len(p.pending) > 0
	for _, apply := range p.pending {
		apply(&rec)
	}
	if fn(&rec) {
		dirty = true
		p.pending = append(p.pending, fn)
	}
	p.rec, p.seeded = rec, true
	if !dirty {
		return nil
	}
	if err := m.store.Save(ctx, profileID, rec); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	p.pending = nil
	return nil
}

// Record returns a copy of the profile's current record.
func (m *Manager) Record(ctx context.Context, profileID string) (Record, error) {
	var out Record
	err := m.withRecord(ctx, profileID, func(r *Record) bool {
		out = r.Clone()
		return false
	})
	return out, err
}

// BuildContext assembles the message list for the next generation of sess.
func (m *Manager) BuildContext(ctx context.Context, sess *types.Session, guidance string, pending types.Message) []types.Message {
	rec, _ := m.Record(ctx, sess.ProfileID)
	return BuildContext(sess, rec, guidance, m.window, pending)
}

// CommitTurn appends turn to the session log and, for user turns, records any
// opinion it states. A persistence error leaves the turn committed.
func (m *Manager) CommitTurn(ctx context.Context, sess *types.Session, turn types.Turn) error {
	if turn.At.IsZero() {
		turn.At = m.now()
	}
	sess.History = append(sess.History, turn)

	if turn.Role != types.RoleUser || m.extractor == nil {
		return nil
	}
	opinion, ok := m.extractor.Extract(turn.Content)
	if !ok {
		return nil
	}
	topic := sess.Topic.Title
	return m.withRecord(ctx, sess.ProfileID, func(r *Record) bool {
		r.Opinions = append(r.Opinions, Opinion{Topic: topic, Opinion: opinion, At: turn.At})
		return true
	})
}

// CommitSession counts a new session for the profile and stamps its start.
func (m *Manager) CommitSession(ctx context.Context, sess *types.Session) error {
	now := m.now()
	return m.withRecord(ctx, sess.ProfileID, func(r *Record) bool {
		r.SessionCount++
		r.LastSession = &now
		return true
	})
}

// CommitTopic records the session's current topic as discussed.
func (m *Manager) CommitTopic(ctx context.Context, sess *types.Session) error {
	if !sess.HasTopic() {
		return nil
	}
	topic, now := sess.Topic.Title, m.now()
	return m.withRecord(ctx, sess.ProfileID, func(r *Record) bool {
		r.addTopic(topic, now)
		return true
	})
}

func (m *Manager) SetPreference(ctx context.Context, profileID, key, value string) error {
	if key == "" {
		return fmt.Errorf("preference key is required")
	}
	return m.withRecord(ctx, profileID, func(r *Record) bool {
		r.Preferences[key] = value
		return true
	})
}

func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
