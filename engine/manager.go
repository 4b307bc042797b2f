package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/metrics"
	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// ErrAlreadyRunning is returned by Start when a session is live.
var ErrAlreadyRunning = errors.New("a session is already running")

// SessionFactory builds a fresh session from the current settings snapshot.
// It runs on every start so settings edits take effect on the next session.
type SessionFactory func() (*Session, error)

// Manager is the control surface's backing object: it holds at most one
// live session and serializes start/stop transitions behind a lock.
type Manager struct {
	mu         sync.Mutex
	session    *Session
	newSession SessionFactory
	logger     *logging.Logger
}

// NewManager creates a manager with no running session.
func NewManager(factory SessionFactory, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		newSession: factory,
		logger:     logger,
	}
}

// Start creates and starts a new session. Fails if one is already running,
// if the settings snapshot is invalid, or if the player connection fails.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics.ControlCommandTotal.WithLabelValues("start").Inc()

	if m.session != nil {
		return ErrAlreadyRunning
	}

	s, err := m.newSession()
	if err != nil {
		m.logger.Error("failed to build session", "error", err.Error())
		return errors.Wrap(err, "failed to build session")
	}
	if err := s.Start(context.Background()); err != nil {
		m.logger.Error("failed to start session", "error", err.Error())
		return err
	}

	m.session = s
	m.logger.Info("session started")
	return nil
}

// Stop stops the running session, if any. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics.ControlCommandTotal.WithLabelValues("stop").Inc()

	if m.session == nil {
		return
	}
	m.session.Stop()
	m.session = nil
	m.logger.Info("session stopped")
}

// Running reports whether a session is live.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// SkipCurrent forwards a skip command to the running session.
func (m *Manager) SkipCurrent() bool {
	if s := m.current(); s != nil {
		return s.SkipCurrent()
	}
	return false
}

// ManualPlay forwards a manual product trigger to the running session.
func (m *Manager) ManualPlay(name string) bool {
	if s := m.current(); s != nil {
		return s.ManualPlay(name)
	}
	return false
}

// LiveStats returns the running session's stats, or an empty snapshot when
// nothing runs.
func (m *Manager) LiveStats() types.LiveStats {
	if s := m.current(); s != nil {
		return s.LiveStats()
	}
	return types.LiveStats{Queue: []string{}}
}

func (m *Manager) current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}
