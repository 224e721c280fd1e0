//go:build integration
// +build integration

package integrationtests

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"analytics-backend/internal/agent"
	backend "analytics-backend/internal/api"
	"analytics-backend/internal/database"
	"analytics-backend/internal/dataset"
	"analytics-backend/internal/suggest"
	"analytics-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM hands out canned responses in order so workflow tests run
// without a live model.
type scriptedLLM struct {
	responses []string
	calls     int
}

func (s *scriptedLLM) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if s.calls >= len(s.responses) {
		return "", fmt.Errorf("unexpected llm call %d", s.calls+1)
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *scriptedLLM) GenerateJSON(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return s.Generate(ctx, systemPrompt, prompt)
}

func workflowFrame(t *testing.T) *dataset.Frame {
	frame, err := dataset.NewFrame([]*dataset.Column{
		{Name: "Complaint Type", Type: dataset.StringColumn,
			Strings: []string{"Noise - Residential", "Illegal Parking", "Noise - Residential", "Heat/Hot Water"},
			Nulls:   make([]bool, 4)},
		{Name: "Borough", Type: dataset.StringColumn,
			Strings: []string{"BROOKLYN", "QUEENS", "BROOKLYN", "BRONX"}, Nulls: make([]bool, 4)},
	})
	require.NoError(t, err)
	return frame
}

func waitForAnalysis(t *testing.T, router http.Handler, analysisId uuid.UUID) api.Analysis {
	for i := 0; i < 20; i++ {
		time.Sleep(500 * time.Millisecond)

		var analysis api.Analysis
		err := httpRequest(router, "GET", fmt.Sprintf("/api/analyses/%s", analysisId), nil, &analysis)
		require.NoError(t, err)

		if analysis.Status == database.AnalysisCompleted || analysis.Status == database.AnalysisFailed {
			return analysis
		}
	}

	t.Fatal("timeout reached before analysis completed")
	return api.Analysis{}
}

func TestAnalysisWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	uri := setupPostgresContainer(t, ctx)
	db, err := database.NewDatabase(uri)
	require.NoError(t, err)

	publisher, receiver := setupRabbitMQContainer(t, ctx)

	llm := &scriptedLLM{responses: []string{
		"Plan: group complaints by borough and count them.",
		"GROUP BY Borough AGG COUNT | SORT count DESC",
		"YES",
		`{"kind": "bar", "title": "Complaints by Borough"}`,
		"BROOKLYN leads with 2 complaints.",
	}}
	frame := workflowFrame(t)
	analysisAgent := agent.New(llm, frame, nil)

	processor := agent.NewTaskProcessor(db, receiver, analysisAgent)
	go processor.Start()
	t.Cleanup(processor.Stop)

	router := chi.NewRouter()
	backend.NewBackendService(db, publisher, analysisAgent, frame, suggest.NewSuggester(llm, "")).AddRoutes(router)

	var created api.CreateAnalysisResponse
	require.NoError(t, httpRequest(router, "POST", "/api/analyses/",
		api.CreateAnalysisRequest{Question: "Which borough has the most complaints?"}, &created))

	analysis := waitForAnalysis(t, router, created.AnalysisId)
	assert.Equal(t, database.AnalysisCompleted, analysis.Status)
	assert.Equal(t, "BROOKLYN leads with 2 complaints.", analysis.Response)
	assert.Equal(t, "GROUP BY Borough AGG COUNT | SORT count DESC", analysis.CodeExecuted)
	assert.NotEmpty(t, analysis.Visualization)
	assert.NotNil(t, analysis.CompletionTime)

	var all []api.Analysis
	require.NoError(t, httpRequest(router, "GET", "/api/analyses/", nil, &all))
	assert.Len(t, all, 1)
}
