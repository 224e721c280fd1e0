//go:build integration
// +build integration

package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"analytics-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQContainer(t, ctx)

	t.Run("Publish and Receive AnalysisTask", func(t *testing.T) {
		payload := messaging.AnalysisTaskPayload{AnalysisId: uuid.New()}
		err := publisher.PublishAnalysisTask(ctx, payload)
		require.NoError(t, err)

		select {
		case task := <-receiver.Tasks():
			assert.Equal(t, messaging.AnalysisQueue, task.Type())

			var receivedPayload messaging.AnalysisTaskPayload
			err := json.Unmarshal(task.Payload(), &receivedPayload)
			require.NoError(t, err)
			assert.Equal(t, payload, receivedPayload)

			err = task.Ack()
			require.NoError(t, err)
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}
	})

	t.Run("Nacked task is not redelivered", func(t *testing.T) {
		payload := messaging.AnalysisTaskPayload{AnalysisId: uuid.New()}
		require.NoError(t, publisher.PublishAnalysisTask(ctx, payload))

		select {
		case task := <-receiver.Tasks():
			require.NoError(t, task.Nack())
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for task")
		}

		select {
		case task := <-receiver.Tasks():
			t.Fatalf("unexpected redelivery of task %s", task.Payload())
		case <-time.After(2 * time.Second):
		}
	})
}
