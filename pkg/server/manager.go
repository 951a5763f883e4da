package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// SessionManager tracks live sessions and closes idle ones.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	deps        sessionDeps
	maxSessions int

	cleanupInterval time.Duration
	done            chan struct{}
	cleanupDone     chan struct{}
	shutdownOnce    sync.Once

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peakSessions int

	logger *slog.Logger
}

// ManagerStats is a snapshot of session counts.
type ManagerStats struct {
	Active       int
	Peak         int
	TotalCreated uint64
	TotalClosed  uint64
}

func newSessionManager(deps sessionDeps, maxSessions int, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.config == nil {
		deps.config = DefaultSessionConfig()
	}
	deps.logger = logger

	sm := &SessionManager{
		sessions:        make(map[string]*Session),
		deps:            deps,
		maxSessions:     maxSessions,
		cleanupInterval: 30 * time.Second,
		done:            make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		logger:          logger.With("component", "session_manager"),
	}
	if deps.config.IdleTimeout > 0 && deps.config.IdleTimeout < sm.cleanupInterval {
		sm.cleanupInterval = deps.config.IdleTimeout
	}

	go sm.cleanupLoop()
	return sm
}

// Create registers a new session for conn.
func (sm *SessionManager) Create(conn *websocket.Conn, ip string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		return nil, ErrMaxSessionsReached
	}

	s := newSession(conn, ip, sm.deps)
	s.onClose = sm.remove

	sm.sessions[s.ID] = s
	sm.totalCreated.Add(1)
	if len(sm.sessions) > sm.peakSessions {
		sm.peakSessions = len(sm.sessions)
	}
	if sm.deps.metrics != nil {
		sm.deps.metrics.SessionOpened()
	}

	s.logger.Info("session created", "ip", ip, "active", len(sm.sessions))
	return s, nil
}

// remove is called by a session as it closes.
func (sm *SessionManager) remove(s *Session) {
	sm.mu.Lock()
	_, ok := sm.sessions[s.ID]
	delete(sm.sessions, s.ID)
	sm.mu.Unlock()

	if ok {
		sm.totalClosed.Add(1)
		if sm.deps.metrics != nil {
			sm.deps.metrics.SessionClosed()
		}
	}
}

// Get returns a session by ID, or nil.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Stats returns session counters.
func (sm *SessionManager) Stats() ManagerStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return ManagerStats{
		Active:       len(sm.sessions),
		Peak:         sm.peakSessions,
		TotalCreated: sm.totalCreated.Load(),
		TotalClosed:  sm.totalClosed.Load(),
	}
}

func (sm *SessionManager) cleanupLoop() {
	defer close(sm.cleanupDone)

	ticker := time.NewTicker(sm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.cleanupExpired(time.Now())
		case <-sm.done:
			return
		}
	}
}

// cleanupExpired closes sessions idle for longer than IdleTimeout.
func (sm *SessionManager) cleanupExpired(now time.Time) int {
	timeout := sm.deps.config.IdleTimeout
	if timeout <= 0 {
		return 0
	}

	sm.mu.RLock()
	var expired []*Session
	for _, s := range sm.sessions {
		if now.Sub(s.LastActive()) > timeout {
			expired = append(expired, s)
		}
	}
	remaining := len(sm.sessions) - len(expired)
	sm.mu.RUnlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		sm.logger.Info("cleaned up expired sessions",
			"count", len(expired),
			"remaining", remaining)
	}
	return len(expired)
}

// Shutdown stops the cleanup loop and closes every session.
func (sm *SessionManager) Shutdown() {
	sm.shutdownOnce.Do(func() {
		close(sm.done)
		<-sm.cleanupDone

		sm.mu.RLock()
		sessions := make([]*Session, 0, len(sm.sessions))
		for _, s := range sm.sessions {
			sessions = append(sessions, s)
		}
		sm.mu.RUnlock()

		var wg sync.WaitGroup
		for _, s := range sessions {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				s.Close()
			}(s)
		}
		wg.Wait()

		sm.logger.Info("session manager shutdown", "closed_sessions", len(sessions))
	})
}
