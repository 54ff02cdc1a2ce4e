package fs

import (
	"context"
	"fmt"
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
)

// caseEvent mirrors the envelope the event service persists through this
// queue: which case run produced an event and for which task.
type caseEvent struct {
	RunID   string `json:"runId"`
	TaskID  string `json:"taskId"`
	Attempt int    `json:"attempt"`
}

func TestQueue(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "caseflow-queue")
	if err != nil {
		t.Fatalf("failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	fileService := afs.New()
	ctx := context.Background()

	config := QueueConfig{
		BasePath:   tempDir,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}

	queue, err := NewQueue[caseEvent](fileService, config)
	assert.NoError(t, err)
	assert.NotNil(t, queue)

	// The queue lays out one folder per message state.
	dirs := []string{
		queue.pendingDir,
		queue.processingDir,
		queue.completedDir,
		queue.failedDir,
		queue.dlqDir,
	}
	for _, dir := range dirs {
		exists, err := fileService.Exists(ctx, dir)
		assert.NoError(t, err)
		assert.True(t, exists, fmt.Sprintf("directory %s should exist", dir))
	}

	events := []caseEvent{
		{RunID: "probate/run-1", TaskID: "document_analysis", Attempt: 1},
		{RunID: "probate/run-1", TaskID: "legal_strategy", Attempt: 1},
		{RunID: "probate/run-1", TaskID: "tax_assessment", Attempt: 1},
	}
	for _, anEvent := range events {
		assert.NoError(t, queue.Publish(ctx, &anEvent))
	}

	objects, err := fileService.List(ctx, queue.pendingDir)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(objects)-1, "should have 3 files in pending")

	// Consumed and acked events land in completed.
	for i := 0; i < len(events); i++ {
		message, err := queue.Consume(ctx)
		assert.NoError(t, err)
		assert.NotNil(t, message)

		anEvent := message.T()
		assert.Equal(t, "probate/run-1", anEvent.RunID)
		assert.NoError(t, message.Ack())

		time.Sleep(10 * time.Millisecond)
		completedObjects, err := fileService.List(ctx, queue.completedDir)
		assert.NoError(t, err)
		assert.Equal(t, i+1, len(completedObjects)-1)
	}

	// A nacked event moves to failed and is redelivered until the retry
	// budget is spent, then parks in the dead letter folder.
	failing := caseEvent{RunID: "probate/run-2", TaskID: "compliance_review", Attempt: 1}
	assert.NoError(t, queue.Publish(ctx, &failing))

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.NoError(t, message.Nack(nil))

	time.Sleep(10 * time.Millisecond)
	failedObjects, err := fileService.List(ctx, queue.failedDir)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(failedObjects)-1, "should have one file in failed")

	message, err = queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.NoError(t, message.Nack(nil))

	message, err = queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.NoError(t, message.Nack(nil))

	time.Sleep(10 * time.Millisecond)
	dlqObjects, err := fileService.List(ctx, queue.dlqDir)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(dlqObjects)-1, "should have one file in the dead letter folder")

	message, err = queue.Consume(ctx)
	assert.NoError(t, err)
	assert.Nil(t, message, "should have no more messages")
}

func TestQueueInitialization(t *testing.T) {
	fileService := afs.New()
	_, err := NewQueue[caseEvent](fileService, QueueConfig{})
	assert.Error(t, err, "should error with empty BasePath")

	// A missing base directory is created on first use.
	tempDir := path.Join(os.TempDir(), fmt.Sprintf("caseflow-queue-init-%d", time.Now().UnixNano()))
	config := QueueConfig{
		BasePath:   tempDir,
		MaxRetries: 2,
	}

	queue, err := NewQueue[caseEvent](fileService, config)
	assert.NoError(t, err)
	assert.NotNil(t, queue)

	os.RemoveAll(tempDir)
}
