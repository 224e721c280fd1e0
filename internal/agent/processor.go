package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"analytics-backend/internal/database"
	"analytics-backend/internal/messaging"

	"gorm.io/gorm"
)

// TaskProcessor consumes queued analyses and runs them through the agent,
// writing results back to the database.
type TaskProcessor struct {
	db       *gorm.DB
	receiver messaging.Receiver
	agent    *Agent
}

func NewTaskProcessor(db *gorm.DB, receiver messaging.Receiver, agent *Agent) *TaskProcessor {
	return &TaskProcessor{
		db:       db,
		receiver: receiver,
		agent:    agent,
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	for task := range proc.receiver.Tasks() {
		proc.ProcessTask(task)
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.receiver.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	if task.Type() != messaging.AnalysisQueue {
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	var payload messaging.AnalysisTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("error unmarshalling analysis task", "error", err)
		if err := task.Reject(); err != nil { // Discard malformed message
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err := proc.processAnalysisTask(ctx, payload); err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processAnalysisTask(ctx context.Context, payload messaging.AnalysisTaskPayload) error {
	var analysis database.Analysis
	if err := proc.db.WithContext(ctx).First(&analysis, "id = ?", payload.AnalysisId).Error; err != nil {
		return fmt.Errorf("error loading analysis %v: %w", payload.AnalysisId, err)
	}

	if err := database.UpdateAnalysisStatus(ctx, proc.db, analysis.Id, database.AnalysisRunning); err != nil {
		return err
	}

	start := time.Now()
	output, err := proc.agent.Process(ctx, analysis.Question)
	if err != nil {
		if dbErr := database.FailAnalysis(ctx, proc.db, analysis.Id, err); dbErr != nil {
			slog.Error("error recording analysis failure", "analysis_id", analysis.Id, "error", dbErr)
		}
		return fmt.Errorf("error running analysis %v: %w", analysis.Id, err)
	}

	slog.Info("analysis finished", "analysis_id", analysis.Id, "success", output.Success, "duration", time.Since(start))

	status := database.AnalysisCompleted
	if !output.Success {
		status = database.AnalysisFailed
	}

	result := proc.db.WithContext(ctx).Model(&database.Analysis{Id: analysis.Id}).Updates(map[string]any{
		"status":             status,
		"completion_time":    time.Now().UTC(),
		"response":           output.Response,
		"visualization":      output.Visualization,
		"code_executed":      output.CodeExecuted,
		"visualization_code": output.VisualizationCode,
	})
	if result.Error != nil {
		return fmt.Errorf("error saving analysis result %v: %w", analysis.Id, result.Error)
	}
	return nil
}
