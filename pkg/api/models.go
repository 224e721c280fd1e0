package api

import (
	"time"

	"github.com/google/uuid"
)

type HealthResponse struct {
	Status        string `json:"status"`
	DatasetLoaded bool   `json:"dataset_loaded"`
	Records       int    `json:"records"`
	Columns       int    `json:"columns"`
	AgentReady    bool   `json:"agent_ready"`
}

type ServiceInfo struct {
	Message       string            `json:"message"`
	Status        string            `json:"status"`
	DatasetLoaded bool              `json:"dataset_loaded"`
	Endpoints     map[string]string `json:"endpoints"`
}

type CreateAnalysisRequest struct {
	Question string `json:"question"`
}

type CreateAnalysisResponse struct {
	AnalysisId uuid.UUID `json:"analysis_id"`
}

type Analysis struct {
	Id       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Status   string    `json:"status"`

	CreationTime   time.Time  `json:"creation_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`

	Response          string `json:"response,omitempty"`
	Visualization     string `json:"visualization,omitempty"`
	CodeExecuted      string `json:"code_executed,omitempty"`
	VisualizationCode string `json:"visualization_code,omitempty"`
	Error             string `json:"error,omitempty"`
}

type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}
