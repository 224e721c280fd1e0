package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AnalysisQueued    string = "QUEUED"
	AnalysisRunning   string = "RUNNING"
	AnalysisCompleted string = "COMPLETED"
	AnalysisFailed    string = "FAILED"
)

// Analysis is an asynchronous question submitted through /api/analyses and
// processed by a worker.
type Analysis struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Question string `gorm:"not null"`
	Status   string `gorm:"size:20;not null"`

	CreationTime   time.Time
	CompletionTime sql.NullTime

	Response          string
	Visualization     string // base64 PNG
	CodeExecuted      string
	VisualizationCode string
	Error             string
}

type ChatSession struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title string    `json:"title"`
}

type ChatHistory struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SessionID   uuid.UUID      `gorm:"type:uuid;index" json:"session_id"`
	MessageType string         `json:"message_type"` // "user" or "ai"
	Content     string         `json:"content"`
	Timestamp   time.Time      `gorm:"autoCreateTime" json:"timestamp"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
}
