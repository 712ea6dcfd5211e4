package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m3rciful/gatebot/core/logger"
)

const component = "service.session"

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Manager keeps sessions in memory and serializes updates per user.
// Different users never contend on the same lock.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]Session
	locks    map[int64]*userLock
}

// NewManager constructs an empty in-memory manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]Session),
		locks:    make(map[int64]*userLock),
	}
}

// Get returns a copy of the user's session, or a fresh one.
func (m *Manager) Get(userID int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	return New()
}

// Update runs fn on a copy of the user's session while holding the user's
// lock and commits the copy only if fn returns nil. The lock is released on
// every path, including panics.
func (m *Manager) Update(ctx context.Context, userID int64, fn func(*Session) error) error {
	l := m.acquire(userID)
	defer m.release(userID, l)

	cur := m.Get(userID)
	next := cur
	if err := fn(&next); err != nil {
		logger.Debug(ctx, component, "session.update",
			slog.String("status", "error"),
			slog.String("stage", string(cur.stage())),
			slog.String("err", err.Error()),
		)
		return err
	}

	m.mu.Lock()
	m.sessions[userID] = next
	m.mu.Unlock()

	if cur.stage() != next.stage() || cur.Ingestion != next.Ingestion {
		logger.Debug(ctx, component, "session.transition",
			slog.String("status", "ok"),
			slog.String("from", string(cur.stage())),
			slog.String("stage", string(next.stage())),
			slog.String("mode", string(next.Ingestion.Mode)),
		)
	}
	return nil
}

// Reset drops the user's session.
func (m *Manager) Reset(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) acquire(userID int64) *userLock {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return l
}

func (m *Manager) release(userID int64, l *userLock) {
	l.mu.Unlock()

	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, userID)
	}
	m.mu.Unlock()
}

func (m *Manager) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
