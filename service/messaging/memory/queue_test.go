package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/messaging/memory"
	"github.com/stretchr/testify/assert"
)

// dispatch builds the execution-shaped payload the processor publishes when a
// crew task becomes runnable.
func dispatch(runID, taskID string) *execution.Execution {
	return &execution.Execution{
		ID:     runID + "/" + taskID,
		RunID:  runID,
		TaskID: taskID,
		State:  execution.TaskStateScheduled,
	}
}

func TestQueue(t *testing.T) {
	config := memory.DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := memory.NewQueue[execution.Execution](config)

	ctx := context.Background()
	scheduled := dispatch("probate/run-1", "document_analysis")

	err := queue.Publish(ctx, scheduled)
	assert.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
	assert.Equal(t, 0, queue.Size())

	consumed := message.T()
	assert.Equal(t, scheduled.RunID, consumed.RunID)
	assert.Equal(t, scheduled.TaskID, consumed.TaskID)
	assert.Equal(t, execution.TaskStateScheduled, consumed.State)

	err = message.Ack()
	assert.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	// Acknowledging twice is an error.
	err = message.Ack()
	assert.Error(t, err)
}

func TestQueueRetries(t *testing.T) {
	config := memory.DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 10 * time.Millisecond
	queue := memory.NewQueue[execution.Execution](config)

	ctx := context.Background()
	err := queue.Publish(ctx, dispatch("probate/run-1", "tax_assessment"))
	assert.NoError(t, err)

	// Each nack puts the execution back until the retry budget is spent.
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		assert.NoError(t, err)
		assert.NotNil(t, message)
		assert.NoError(t, message.Nack(nil))
		time.Sleep(20 * time.Millisecond)
	}

	assert.Equal(t, 0, queue.Size())
}

func TestQueueConcurrency(t *testing.T) {
	config := memory.DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := memory.NewQueue[execution.Execution](config)

	ctx := context.Background()
	workers := 10
	tasksPerRun := 10

	var wg sync.WaitGroup
	wg.Add(workers * 2)

	var consumedCount int
	var consumedMu sync.Mutex

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < tasksPerRun; j++ {
				message, err := queue.Consume(ctx)
				if err != nil {
					t.Errorf("consume failed: %v", err)
					continue
				}
				if message == nil {
					time.Sleep(10 * time.Millisecond)
					j--
					continue
				}
				assert.NoError(t, message.Ack())
				consumedMu.Lock()
				consumedCount++
				consumedMu.Unlock()
			}
		}()
	}

	for i := 0; i < workers; i++ {
		go func(run int) {
			defer wg.Done()
			for j := 0; j < tasksPerRun; j++ {
				runID := fmt.Sprintf("probate/run-%d", run)
				err := queue.Publish(ctx, dispatch(runID, fmt.Sprintf("task-%d", j)))
				if err != nil {
					t.Errorf("publish failed: %v", err)
				}
				time.Sleep(1 * time.Millisecond)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("test timed out")
	}

	assert.Equal(t, workers*tasksPerRun, consumedCount)
	assert.Equal(t, 0, queue.Size())
}

func TestQueueContextCancellation(t *testing.T) {
	queue := memory.NewQueue[execution.Execution](memory.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scheduled := dispatch("probate/run-1", "case_summary")
	err := queue.Publish(ctx, scheduled)
	assert.Error(t, err)

	// Consume gives up once the context expires.
	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelTimeout()
	_, err = queue.Consume(timeoutCtx)
	assert.Error(t, err)

	// The queue stays usable after a cancelled call.
	liveCtx := context.Background()
	err = queue.Publish(liveCtx, scheduled)
	assert.NoError(t, err)

	message, err := queue.Consume(liveCtx)
	assert.NoError(t, err)
	assert.NotNil(t, message)
}
