package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueueRoundTrip(t *testing.T) {
	queue := NewInMemoryQueue()

	analysisId := uuid.New()
	require.NoError(t, queue.PublishAnalysisTask(context.Background(), AnalysisTaskPayload{AnalysisId: analysisId}))

	task := <-queue.Tasks()
	assert.Equal(t, AnalysisQueue, task.Type())

	var payload AnalysisTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, analysisId, payload.AnalysisId)

	assert.NoError(t, task.Ack())
}

func TestInMemoryQueueOrdering(t *testing.T) {
	queue := NewInMemoryQueue()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, queue.PublishAnalysisTask(context.Background(), AnalysisTaskPayload{AnalysisId: id}))
	}

	for _, want := range ids {
		task := <-queue.Tasks()
		var payload AnalysisTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		assert.Equal(t, want, payload.AnalysisId)
	}
}

func TestInMemoryQueueClose(t *testing.T) {
	queue := NewInMemoryQueue()
	tasks := queue.Tasks()

	queue.Close()
	_, open := <-tasks
	assert.False(t, open)

	// Closing twice is safe.
	queue.Close()
}
