package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type sessionEntry struct {
	session      *ChatSession
	lastAccessed time.Time
}

// SessionCache bounds the number of live sessions; the least recently used one
// is evicted when a new session would exceed the cap. Evicted sessions lose
// nothing, their history lives in the database.
type SessionCache struct {
	lock     sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
	maxSize  int
}

func NewSessionCache(maxSize int) *SessionCache {
	return &SessionCache{
		sessions: make(map[uuid.UUID]*sessionEntry, maxSize),
		maxSize:  maxSize,
	}
}

func (cache *SessionCache) GetSession(sessionID uuid.UUID, create func() (*ChatSession, error)) (*ChatSession, error) {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	entry, exists := cache.sessions[sessionID]
	if exists {
		entry.lastAccessed = time.Now()
		return entry.session, nil
	}

	if len(cache.sessions) >= cache.maxSize {
		oldestSessionID := uuid.Nil
		var oldestTime time.Time
		for id, e := range cache.sessions {
			if oldestSessionID == uuid.Nil || e.lastAccessed.Before(oldestTime) {
				oldestSessionID = id
				oldestTime = e.lastAccessed
			}
		}
		delete(cache.sessions, oldestSessionID)
	}

	session, err := create()
	if err != nil {
		return nil, err
	}
	cache.sessions[sessionID] = &sessionEntry{
		session:      session,
		lastAccessed: time.Now(),
	}
	return session, nil
}
