package api

import "github.com/google/uuid"

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response          string `json:"response"`
	Visualization     string `json:"visualization,omitempty"`
	Success           bool   `json:"success"`
	CodeExecuted      string `json:"code_executed,omitempty"`
	VisualizationCode string `json:"visualization_code,omitempty"`
}

type StartSessionRequest struct {
	Title string `json:"title"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

type ChatSessionMetadata struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type GetSessionsResponse struct {
	Sessions []ChatSessionMetadata `json:"sessions"`
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

type ChatHistoryItem struct {
	MessageType string `json:"message_type"` // "user" or "ai"
	Content     string `json:"content"`
	Timestamp   string `json:"timestamp"`
	Metadata    any    `json:"metadata,omitempty"`
}

type GetHistoryParams struct {
	Limit int `schema:"limit"`
}
