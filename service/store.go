package service

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kopakredit/custimport/config"
	"github.com/kopakredit/custimport/model"
)

// Errors returned by the submit guard.
var (
	ErrSubmitInFlight = errors.New("submission already in flight")
)

// SessionStore is an in-memory store for import sessions
// Pipeline state lives only here, for the lifetime of the process
type SessionStore struct {
	sessions    map[string]*model.ImportSession
	mu          sync.RWMutex
	maxSessions int // Maximum sessions to keep, 0 = unlimited
}

var (
	globalStore *SessionStore
	storeOnce   sync.Once
)

// InitSessionStore initializes the global session store with configuration
func InitSessionStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		maxSessions := cfg.MaxSessions
		if maxSessions < 0 {
			maxSessions = 0
		}
		globalStore = &SessionStore{
			sessions:    make(map[string]*model.ImportSession),
			maxSessions: maxSessions,
		}
		slog.Info("session store initialized", "max_sessions", maxSessions)
	})
}

// GetSessionStore returns the global session store
func GetSessionStore() *SessionStore {
	if globalStore == nil {
		// Fallback initialization with default settings
		globalStore = &SessionStore{
			sessions:    make(map[string]*model.ImportSession),
			maxSessions: 100, // Default: keep 100 sessions
		}
	}
	return globalStore
}

func (s *SessionStore) Save(session *model.ImportSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.UpdatedAt = time.Now()
	s.sessions[session.ID] = session

	// Cleanup if exceeds max
	s.cleanupIfNeeded()
}

func (s *SessionStore) Get(id string) *model.ImportSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *SessionStore) GetByOperator(operator string) []*model.ImportSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.ImportSession
	for _, sess := range s.sessions {
		if sess.Operator == operator {
			result = append(result, sess)
		}
	}
	return result
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// BeginSubmit marks a session as having a submission in flight. The
// check-and-set runs under the store lock so a double-clicked submit
// cannot start twice.
func (s *SessionStore) BeginSubmit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Submitting {
		return ErrSubmitInFlight
	}
	sess.Submitting = true
	return nil
}

// EndSubmit clears the in-flight flag, whatever the outcome was.
func (s *SessionStore) EndSubmit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Submitting = false
	}
}

// cleanupIfNeeded removes oldest sessions if store exceeds maxSessions
// Must be called with lock held
func (s *SessionStore) cleanupIfNeeded() {
	if s.maxSessions <= 0 {
		return // Unlimited
	}

	if len(s.sessions) <= s.maxSessions {
		return
	}

	// Sort sessions by creation time
	sessions := make([]*model.ImportSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	// Remove oldest sessions
	removeCount := len(sessions) - s.maxSessions
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old import session",
			"session_id", sessions[i].ID,
			"created_at", sessions[i].CreatedAt,
		)
		delete(s.sessions, sessions[i].ID)
	}
}

// Count returns the number of sessions in the store
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
