package session

import (
	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/russellvd/probefinder/internal/transport"
)

// Manager tracks one Session per device. Sessions for different
// devices are independent and may run concurrently.
type Manager struct {
	provider transport.Provider
	logger   *logrus.Logger
	sessions *hashmap.Map[string, *Session]
}

// NewManager creates an empty Manager.
func NewManager(provider transport.Provider, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		provider: provider,
		logger:   logger,
		sessions: hashmap.New[string, *Session](),
	}
}

// Get returns the session for deviceID, creating it on first use.
func (m *Manager) Get(deviceID string) *Session {
	if existing, ok := m.sessions.Get(deviceID); ok {
		return existing
	}
	created := New(m.provider, deviceID, m.logger)
	actual, _ := m.sessions.GetOrInsert(deviceID, created)
	return actual
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Shutdown disconnects every tracked session. Errors are logged, not
// returned: shutdown must always run to completion.
func (m *Manager) Shutdown() {
	m.sessions.Range(func(id string, s *Session) bool {
		if err := s.Disconnect(); err != nil {
			m.logger.WithFields(logrus.Fields{
				"device": id,
				"error":  err,
			}).Warn("Session disconnect failed during shutdown")
		}
		return true
	})
}
