package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UpdateAnalysisStatus moves an analysis to the given status, stamping the
// completion time for terminal states.
func UpdateAnalysisStatus(ctx context.Context, txn *gorm.DB, analysisId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == AnalysisCompleted || status == AnalysisFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	result := txn.WithContext(ctx).Model(&Analysis{Id: analysisId}).Updates(updates)
	if result.Error != nil {
		slog.Error("error updating analysis status", "analysis_id", analysisId, "status", status, "error", result.Error)
		return fmt.Errorf("error updating analysis status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("analysis %v not found", analysisId)
	}
	return nil
}

// FailAnalysis marks an analysis failed and records the error message shown to
// the user.
func FailAnalysis(ctx context.Context, txn *gorm.DB, analysisId uuid.UUID, analysisErr error) error {
	result := txn.WithContext(ctx).Model(&Analysis{Id: analysisId}).Updates(map[string]any{
		"status":          AnalysisFailed,
		"completion_time": time.Now().UTC(),
		"error":           analysisErr.Error(),
	})
	if result.Error != nil {
		slog.Error("error marking analysis failed", "analysis_id", analysisId, "error", result.Error)
		return fmt.Errorf("error marking analysis failed: %w", result.Error)
	}
	return nil
}
