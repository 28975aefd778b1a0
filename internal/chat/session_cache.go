package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type sessionEntry struct {
	session      *Session
	lastAccessed time.Time
}

// SessionCache holds live sessions up to maxSize. Adding to a full cache
// evicts the least recently used session and reports it through onEvict.
type SessionCache struct {
	lock     sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
	maxSize  int
	onEvict  func(uuid.UUID)
	now      func() time.Time
}

func NewSessionCache(maxSize int, onEvict func(uuid.UUID)) *SessionCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &SessionCache{
		sessions: make(map[uuid.UUID]*sessionEntry, maxSize),
		maxSize:  maxSize,
		onEvict:  onEvict,
		now:      time.Now,
	}
}

func (cache *SessionCache) Add(sessionID uuid.UUID, session *Session) {
	cache.lock.Lock()

	if entry, exists := cache.sessions[sessionID]; exists {
		entry.session = session
		entry.lastAccessed = cache.now()
		cache.lock.Unlock()
		return
	}

	var evictedID uuid.UUID
	var evicted *Session
	if len(cache.sessions) >= cache.maxSize {
		evictedID, evicted = cache.removeOldest()
	}

	cache.sessions[sessionID] = &sessionEntry{
		session:      session,
		lastAccessed: cache.now(),
	}
	cache.lock.Unlock()

	if evicted != nil {
		awaitIdle(evicted)
		if cache.onEvict != nil {
			cache.onEvict(evictedID)
		}
	}
}

func (cache *SessionCache) Get(sessionID uuid.UUID) (*Session, bool) {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	entry, exists := cache.sessions[sessionID]
	if !exists {
		return nil, false
	}
	entry.lastAccessed = cache.now()
	return entry.session, true
}

func (cache *SessionCache) Remove(sessionID uuid.UUID) bool {
	cache.lock.Lock()
	entry, exists := cache.sessions[sessionID]
	if exists {
		delete(cache.sessions, sessionID)
	}
	cache.lock.Unlock()

	if !exists {
		return false
	}
	awaitIdle(entry.session)
	return true
}

func (cache *SessionCache) Len() int {
	cache.lock.Lock()
	defer cache.lock.Unlock()
	return len(cache.sessions)
}

func (cache *SessionCache) removeOldest() (uuid.UUID, *Session) {
	oldestSessionID := uuid.Nil
	var oldestTime time.Time
	for id, entry := range cache.sessions {
		if oldestSessionID == uuid.Nil || entry.lastAccessed.Before(oldestTime) {
			oldestSessionID = id
			oldestTime = entry.lastAccessed
		}
	}
	if oldestSessionID == uuid.Nil {
		return uuid.Nil, nil
	}

	oldest := cache.sessions[oldestSessionID]
	delete(cache.sessions, oldestSessionID)
	return oldestSessionID, oldest.session
}

// awaitIdle blocks until a turn in flight on session has finished.
func awaitIdle(session *Session) {
	session.mu.Lock()
	defer session.mu.Unlock()
}
