package chat

import (
	"analytics-backend/internal/agent"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultSessionCacheSize = 64

// ChatSessionManager hands out sessions backed by a shared analysis agent and
// a bounded cache of live sessions.
type ChatSessionManager struct {
	db      *gorm.DB
	agent   *agent.Agent
	cache   *SessionCache
	model   string
	apiKey  string
	baseURL string
}

func NewChatSessionManager(db *gorm.DB, analysisAgent *agent.Agent, model, apiKey, baseURL string) *ChatSessionManager {
	return &ChatSessionManager{
		db:      db,
		agent:   analysisAgent,
		cache:   NewSessionCache(defaultSessionCacheSize),
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

func (manager *ChatSessionManager) GetSession(sessionID uuid.UUID) (*ChatSession, error) {
	return manager.cache.GetSession(sessionID, func() (*ChatSession, error) {
		return NewChatSession(manager.db, sessionID, manager.agent, manager.model, manager.apiKey, manager.baseURL)
	})
}
