// Package suggest produces example questions the UI can offer for the loaded
// dataset.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"analytics-backend/internal/llm"
)

const numSuggestions = 6

// defaultSuggestions are served when the model is unavailable or returns
// something unusable.
var defaultSuggestions = []string{
	"What are the top 10 complaint types?",
	"Which borough has the most complaints?",
	"Show the monthly trend of complaints over time",
	"What are the most common noise complaints by borough?",
	"Which agency handles the most service requests?",
	"How many complaints are still open?",
}

const suggestSystemPrompt = `You are a data analyst helping users explore NYC 311 service request data.

DATASET INFORMATION:
%s

Generate %d interesting, diverse questions a user could ask about this dataset.
Questions should be answerable with filtering, grouping, and counting.

Return a JSON object: {"suggestions": ["question 1", "question 2", ...]}`

type Suggester struct {
	llm            llm.Client
	datasetContext string

	mu     sync.Mutex
	cached []string
}

func NewSuggester(client llm.Client, datasetContext string) *Suggester {
	return &Suggester{llm: client, datasetContext: datasetContext}
}

// Suggestions returns example questions, generating them once per process and
// falling back to a static list when generation fails.
func (s *Suggester) Suggestions(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached
	}

	suggestions, err := s.generate(ctx)
	if err != nil {
		slog.Warn("could not generate suggestions, using defaults", "error", err)
		return defaultSuggestions
	}

	s.cached = suggestions
	return suggestions
}

func (s *Suggester) generate(ctx context.Context) ([]string, error) {
	raw, err := s.llm.GenerateJSON(ctx,
		fmt.Sprintf(suggestSystemPrompt, s.datasetContext, numSuggestions),
		"Generate the questions now.")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("could not parse suggestions: %w", err)
	}
	if len(parsed.Suggestions) == 0 {
		return nil, fmt.Errorf("model returned no suggestions")
	}
	if len(parsed.Suggestions) > numSuggestions {
		parsed.Suggestions = parsed.Suggestions[:numSuggestions]
	}
	return parsed.Suggestions, nil
}
