// Package agent turns natural-language questions about the 311 dataset into
// executed analysis queries, optional charts, and formatted answers. The
// pipeline mirrors a plan / generate / execute / visualize / format workflow
// with bounded retries around the steps that depend on LLM output being valid.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"analytics-backend/internal/chart"
	"analytics-backend/internal/dataset"
	"analytics-backend/internal/llm"
	"analytics-backend/internal/query"
)

const (
	maxQueryRetries = 2
	maxChartRetries = 2
)

type Agent struct {
	llm     llm.Client
	frame   *dataset.Frame
	dict    *dataset.Dictionary
	context string
}

// Output is what a single question produces. Success is false when the
// analysis query could not be executed even after retries; the Response then
// carries an apology with the underlying error.
type Output struct {
	Response          string
	Visualization     string // base64 PNG
	CodeExecuted      string
	VisualizationCode string
	Success           bool
}

func New(client llm.Client, frame *dataset.Frame, dict *dataset.Dictionary) *Agent {
	return &Agent{
		llm:     client,
		frame:   frame,
		dict:    dict,
		context: frame.Context(dict),
	}
}

// Process answers one question. Errors are returned only for LLM transport
// failures; analysis failures are reported in the Output so the user gets an
// explanation instead of a bare 500.
func (a *Agent) Process(ctx context.Context, question string) (*Output, error) {
	plan, err := a.llm.Generate(ctx, planSystemPrompt(a.context), "User Question: "+question)
	if err != nil {
		return nil, fmt.Errorf("error planning analysis: %w", err)
	}

	queryText, result, execErr, err := a.generateAndExecute(ctx, question, plan)
	if err != nil {
		return nil, err
	}
	if execErr != nil {
		slog.Warn("analysis query failed after retries", "question", question, "error", execErr)
		return &Output{
			Response:     errorResponse(execErr.Error()),
			CodeExecuted: queryText,
			Success:      false,
		}, nil
	}

	specText, image, err := a.maybeVisualize(ctx, question, queryText, result)
	if err != nil {
		return nil, err
	}

	response, err := a.llm.Generate(ctx, formatSystemPrompt, formatUserPrompt(question, result, image != ""))
	if err != nil {
		return nil, fmt.Errorf("error formatting response: %w", err)
	}

	out := &Output{
		Response:     response,
		CodeExecuted: queryText,
		Success:      true,
	}
	if image != "" {
		out.Visualization = image
		out.VisualizationCode = specText
	}
	return out, nil
}

// generateAndExecute asks the LLM for a query and runs it, feeding execution
// errors back for regeneration up to maxQueryRetries times.
func (a *Agent) generateAndExecute(ctx context.Context, question, plan string) (string, *query.Result, error, error) {
	raw, err := a.llm.Generate(ctx, generateQuerySystemPrompt(a.context, plan), "User Query: "+question)
	if err != nil {
		return "", nil, nil, fmt.Errorf("error generating query: %w", err)
	}
	queryText := extractCode(raw)

	var result *query.Result
	var execErr error
	for attempt := 0; ; attempt++ {
		result, execErr = query.Run(a.frame, a.dict, queryText)
		if execErr == nil || attempt >= maxQueryRetries {
			break
		}

		slog.Info("regenerating failed query", "attempt", attempt+1, "error", execErr)
		raw, err = a.llm.Generate(ctx, retryQuerySystemPrompt(a.context, queryText, execErr.Error()), "Generate the corrected query now.")
		if err != nil {
			return queryText, nil, nil, fmt.Errorf("error regenerating query: %w", err)
		}
		queryText = extractCode(raw)
	}

	return queryText, result, execErr, nil
}

// maybeVisualize decides whether the result warrants a chart and renders one,
// retrying with error feedback. Chart failures are not fatal; the answer just
// ships without a visualization.
func (a *Agent) maybeVisualize(ctx context.Context, question, queryText string, result *query.Result) (string, string, error) {
	if result.Scalar || len(result.Rows) == 0 {
		return "", "", nil
	}

	decision, err := a.llm.Generate(ctx, decideChartSystemPrompt, decideChartUserPrompt(question, result))
	if err != nil {
		return "", "", fmt.Errorf("error deciding visualization: %w", err)
	}
	if !strings.Contains(strings.ToUpper(decision), "YES") {
		return "", "", nil
	}

	var specText, chartErr string
	for attempt := 0; attempt <= maxChartRetries; attempt++ {
		raw, err := a.llm.Generate(ctx,
			chartSystemPrompt(queryText, result, specText, chartErr),
			fmt.Sprintf("User Query: %s\n\nCreate the visualization.", question))
		if err != nil {
			return "", "", fmt.Errorf("error generating chart spec: %w", err)
		}
		specText = extractCode(raw)

		spec, err := chart.ParseSpec(specText)
		if err != nil {
			chartErr = err.Error()
			continue
		}
		image, err := chart.Render(spec, result)
		if err != nil {
			chartErr = err.Error()
			continue
		}
		return specText, image, nil
	}

	slog.Warn("chart generation failed after retries", "question", question, "error", chartErr)
	return "", "", nil
}

// extractCode strips markdown code fences the LLM tends to wrap output in.
func extractCode(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.SplitN(text, "\n", 2)
	if len(lines) == 2 {
		text = lines[1]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
