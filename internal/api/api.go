package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"analytics-backend/internal/agent"
	"analytics-backend/internal/database"
	"analytics-backend/internal/dataset"
	"analytics-backend/internal/messaging"
	"analytics-backend/internal/suggest"
	"analytics-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BackendService serves the analysis endpoints. The agent and frame are nil
// when the dataset failed to load; the service still starts so /health can
// report the problem.
type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	agent     *agent.Agent
	frame     *dataset.Frame
	suggester *suggest.Suggester
}

func NewBackendService(db *gorm.DB, pub messaging.Publisher, analysisAgent *agent.Agent, frame *dataset.Frame, suggester *suggest.Suggester) *BackendService {
	return &BackendService{db: db, publisher: pub, agent: analysisAgent, frame: frame, suggester: suggester}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/", RestHandler(s.GetServiceInfo))
	r.Get("/health", RestHandler(s.GetHealth))
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", RestHandler(s.Chat))
		r.Get("/suggestions", RestHandler(s.GetSuggestions))
		r.Route("/analyses", func(r chi.Router) {
			r.Post("/", RestHandler(s.CreateAnalysis))
			r.Get("/", RestHandler(s.ListAnalyses))
			r.Get("/{analysis_id}", RestHandler(s.GetAnalysis))
		})
	})
}

func (s *BackendService) datasetLoaded() bool {
	return s.frame != nil && s.agent != nil
}

func (s *BackendService) GetServiceInfo(r *http.Request) (any, error) {
	return api.ServiceInfo{
		Message:       "NYC 311 Data Analysis API",
		Status:        "running",
		DatasetLoaded: s.datasetLoaded(),
		Endpoints: map[string]string{
			"health":      "/health",
			"chat":        "/api/chat",
			"suggestions": "/api/suggestions",
			"analyses":    "/api/analyses",
		},
	}, nil
}

func (s *BackendService) GetHealth(r *http.Request) (any, error) {
	health := api.HealthResponse{
		Status:        "healthy",
		DatasetLoaded: s.datasetLoaded(),
		AgentReady:    s.agent != nil,
	}
	if s.frame != nil {
		health.Records = s.frame.NumRows()
		health.Columns = s.frame.NumColumns()
	}
	return health, nil
}

func (s *BackendService) Chat(r *http.Request) (any, error) {
	if !s.datasetLoaded() {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "dataset not loaded")
	}

	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "message cannot be empty")
	}

	output, err := s.agent.Process(r.Context(), req.Message)
	if err != nil {
		slog.Error("error processing chat message", "error", err)
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

func (s *BackendService) GetSuggestions(r *http.Request) (any, error) {
	if !s.datasetLoaded() {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "dataset not loaded")
	}
	return api.SuggestionsResponse{Suggestions: s.suggester.Suggestions(r.Context())}, nil
}

func (s *BackendService) CreateAnalysis(r *http.Request) (any, error) {
	if !s.datasetLoaded() {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "dataset not loaded")
	}

	req, err := ParseRequest[api.CreateAnalysisRequest](r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "question cannot be empty")
	}

	ctx := r.Context()

	analysis := &database.Analysis{
		Id:           uuid.New(),
		Question:     req.Question,
		Status:       database.AnalysisQueued,
		CreationTime: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&analysis).Error; err != nil {
		slog.Error("error creating analysis", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create analysis entry")
	}

	payload := messaging.AnalysisTaskPayload{AnalysisId: analysis.Id}
	if err := s.publisher.PublishAnalysisTask(ctx, payload); err != nil {
		slog.Error("error publishing analysis task", "analysis_id", analysis.Id, "error", err)
		if dbErr := database.FailAnalysis(ctx, s.db, analysis.Id, err); dbErr != nil {
			slog.Error("error marking unpublished analysis failed", "analysis_id", analysis.Id, "error", dbErr)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue analysis task")
	}

	slog.Info("submitted analysis", "analysis_id", analysis.Id)
	return api.CreateAnalysisResponse{AnalysisId: analysis.Id}, nil
}

func (s *BackendService) ListAnalyses(r *http.Request) (any, error) {
	var analyses []database.Analysis
	if err := s.db.WithContext(r.Context()).Order("creation_time DESC").Find(&analyses).Error; err != nil {
		slog.Error("error listing analyses", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving analyses")
	}

	resp := make([]api.Analysis, 0, len(analyses))
	for _, a := range analyses {
		resp = append(resp, convertAnalysis(a))
	}
	return resp, nil
}

func (s *BackendService) GetAnalysis(r *http.Request) (any, error) {
	analysisId, err := URLParamUUID(r, "analysis_id")
	if err != nil {
		return nil, err
	}

	var analysis database.Analysis
	if err := s.db.WithContext(r.Context()).First(&analysis, "id = ?", analysisId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "analysis not found")
		}
		slog.Error("error getting analysis", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving analysis record")
	}

	return convertAnalysis(analysis), nil
}

func convertAnalysis(a database.Analysis) api.Analysis {
	out := api.Analysis{
		Id:                a.Id,
		Question:          a.Question,
		Status:            a.Status,
		CreationTime:      a.CreationTime,
		Response:          a.Response,
		Visualization:     a.Visualization,
		CodeExecuted:      a.CodeExecuted,
		VisualizationCode: a.VisualizationCode,
		Error:             a.Error,
	}
	if a.CompletionTime.Valid {
		t := a.CompletionTime.Time
		out.CompletionTime = &t
	}
	return out
}
