package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"analytics-backend/internal/chat"
	"analytics-backend/internal/database"
	"analytics-backend/pkg/api"
)

// ChatService serves multi-turn sessions where follow-up questions carry
// context from earlier messages.
type ChatService struct {
	db      *gorm.DB
	manager *chat.ChatSessionManager
}

func NewChatService(db *gorm.DB, manager *chat.ChatSessionManager) *ChatService {
	return &ChatService{
		db:      db,
		manager: manager,
	}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/api/chat/sessions", func(r chi.Router) {
		r.Get("/", RestHandler(s.GetSessions))
		r.Post("/", RestHandler(s.StartSession))
		r.Get("/{session_id}", RestHandler(s.GetSession))
		r.Post("/{session_id}/rename", RestHandler(s.RenameSession))
		r.Delete("/{session_id}", RestHandler(s.DeleteSession))
		r.Post("/{session_id}/messages", RestHandler(s.SendMessage))
		r.Get("/{session_id}/history", RestHandler(s.GetHistory))
	})
}

func (s *ChatService) GetSessions(r *http.Request) (any, error) {
	sessions, err := chat.GetSessions(s.db)
	if err != nil {
		return nil, err
	}

	resp := api.GetSessionsResponse{Sessions: make([]api.ChatSessionMetadata, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, api.ChatSessionMetadata{ID: session.ID, Title: session.Title})
	}
	return resp, nil
}

func (s *ChatService) StartSession(r *http.Request) (any, error) {
	req, err := ParseRequest[api.StartSessionRequest](r)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = "New Chat"
	}

	sessionID := uuid.New()
	if err := chat.CreateSession(s.db, &database.ChatSession{ID: sessionID, Title: title}); err != nil {
		return nil, err
	}

	return api.StartSessionResponse{SessionID: sessionID.String()}, nil
}

func (s *ChatService) GetSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	session, err := chat.GetSession(s.db, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "session not found")
		}
		return nil, err
	}

	return api.ChatSessionMetadata{ID: session.ID, Title: session.Title}, nil
}

func (s *ChatService) RenameSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.RenameSessionRequest](r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "title cannot be empty")
	}

	if err := chat.UpdateSessionTitle(s.db, sessionID, req.Title); err != nil {
		return nil, err
	}

	return nil, nil
}

func (s *ChatService) DeleteSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	if err := chat.DeleteSession(s.db, sessionID); err != nil {
		return nil, err
	}

	return nil, nil
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "message cannot be empty")
	}

	if _, err := chat.GetSession(s.db, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "session not found")
		}
		return nil, err
	}

	session, err := s.manager.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	output, err := session.Chat(r.Context(), req.Message)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error processing message: %v", err)
	}

	return api.ChatResponse{
		Response:          output.Response,
		Visualization:     output.Visualization,
		Success:           output.Success,
		CodeExecuted:      output.CodeExecuted,
		VisualizationCode: output.VisualizationCode,
	}, nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.GetHistoryParams](r)
	if err != nil {
		return nil, err
	}

	history, err := chat.GetChatHistory(s.db, sessionID)
	if err != nil {
		return nil, err
	}

	if params.Limit > 0 && len(history) > params.Limit {
		history = history[len(history)-params.Limit:]
	}

	resp := make([]api.ChatHistoryItem, 0, len(history))
	for _, msg := range history {
		resp = append(resp, api.ChatHistoryItem{
			MessageType: msg.MessageType,
			Content:     msg.Content,
			Timestamp:   msg.Timestamp.Format("2006-01-02 15:04:05"),
			Metadata:    msg.Metadata,
		})
	}

	return resp, nil
}
