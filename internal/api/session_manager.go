package api

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrTooManySessions is returned by Open when the session limit is reached.
var ErrTooManySessions = errors.New("too many brawl sessions")

// SessionManager учитывает открытые websocket-сессии brawl.
// Thread-safe через sync.Map; лимит держит atomic counter.
type SessionManager struct {
	sessions sync.Map // map[string]*SessionInfo
	count    atomic.Int32
	limit    int32
}

// SessionInfo describes one open session.
type SessionInfo struct {
	ID        string
	Remote    string
	VersionID string
	CreatedAt time.Time
}

// NewSessionManager creates a manager that admits up to limit sessions.
// Non-positive limit means unlimited.
func NewSessionManager(limit int) *SessionManager {
	return &SessionManager{limit: int32(limit)}
}

// Open reserves a slot and registers a new session.
func (sm *SessionManager) Open(remote, versionID string) (*SessionInfo, error) {
	n := sm.count.Add(1)
	if sm.limit > 0 && n > sm.limit {
		sm.count.Add(-1)
		return nil, ErrTooManySessions
	}

	info := &SessionInfo{
		ID:        uuid.NewString(),
		Remote:    remote,
		VersionID: versionID,
		CreatedAt: time.Now(),
	}
	sm.sessions.Store(info.ID, info)
	return info, nil
}

// Close удаляет сессию и освобождает слот. Повторный вызов безопасен.
func (sm *SessionManager) Close(id string) {
	if _, ok := sm.sessions.LoadAndDelete(id); ok {
		sm.count.Add(-1)
	}
}

// Get returns the session or nil.
func (sm *SessionManager) Get(id string) *SessionInfo {
	val, ok := sm.sessions.Load(id)
	if !ok {
		return nil
	}
	return val.(*SessionInfo)
}

// Count возвращает количество открытых сессий.
func (sm *SessionManager) Count() int {
	return int(sm.count.Load())
}
