package processor

import (
	"context"
	"testing"
	"time"

	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/model/state"
	"github.com/caseflow/caseflow/runtime/execution"
	execmem "github.com/caseflow/caseflow/service/dao/execution/memory"
	runmem "github.com/caseflow/caseflow/service/dao/run/memory"
	"github.com/caseflow/caseflow/service/messaging/memory"
	"github.com/stretchr/testify/assert"
)

type nopExecutor struct{}

func (nopExecutor) Execute(ctx context.Context, anExecution *execution.Execution, run *execution.Run) error {
	return nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	queue := memory.NewQueue[execution.Execution](memory.DefaultConfig())
	svc, err := New(
		WithMessageQueue(queue),
		WithWorkers(1),
		WithExecutor(nopExecutor{}),
		WithRunDAO(runmem.New()),
		WithTaskExecutionDAO(execmem.New()),
	)
	assert.Nil(t, err)
	return svc
}

func TestService_StartRun(t *testing.T) {
	crew := &model.Crew{
		Name: "testcrew",
		Init: state.Parameters{
			{Name: "i", Value: 0},
		},
		Pipeline: &graph.Task{
			ID: "testcrew",
			Tasks: []*graph.Task{
				{
					ID: "task",
					Tasks: []*graph.Task{
						{
							ID: "subtask",
							Action: &graph.Action{
								Service: "printer",
								Method:  "print",
								Input: map[string]interface{}{
									"message": "Hello  ${i}",
								},
							},
						},
					},
				},
			},
		},
	}

	svc := newTestService(t)
	ctx := context.Background()
	run, err := svc.StartRun(ctx, crew, nil)
	assert.NoError(t, err)
	assert.NotNil(t, run)
	assert.Equal(t, execution.StateRunning, run.GetState())

	// Allow some time for tasks to be processed
	time.Sleep(100 * time.Millisecond)

	err = svc.PauseRun(ctx, run.ID)
	assert.NoError(t, err)

	retrieved, err := svc.GetRun(ctx, run.ID)
	assert.NoError(t, err)
	assert.Equal(t, execution.StatePaused, retrieved.GetState())

	err = svc.ResumeRun(ctx, run.ID)
	assert.NoError(t, err)

	retrieved, err = svc.GetRun(ctx, run.ID)
	assert.NoError(t, err)
	assert.Equal(t, execution.StateRunning, retrieved.GetState())

	svc.Shutdown()
}

func TestService_StartRun_NilCrew(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.StartRun(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestService_ShouldRetry(t *testing.T) {
	svc := newTestService(t)

	testCases := []struct {
		name     string
		cfg      *graph.Retry
		attempts int
		retry    bool
		delay    time.Duration
	}{
		{name: "default first attempt", cfg: nil, attempts: 0, retry: true, delay: 3 * time.Second},
		{name: "default exhausted", cfg: nil, attempts: 1, retry: false},
		{name: "disabled", cfg: &graph.Retry{Type: "none"}, attempts: 0, retry: false},
		{name: "fixed", cfg: &graph.Retry{Type: "fixed", MaxRetries: 3, Delay: "1s"}, attempts: 2, retry: true, delay: time.Second},
		{name: "exponential", cfg: &graph.Retry{Type: "exponential", MaxRetries: 5, Delay: "1s", Multiplier: 2}, attempts: 2, retry: true, delay: 4 * time.Second},
		{name: "exponential capped", cfg: &graph.Retry{Type: "exponential", MaxRetries: 5, Delay: "1s", Multiplier: 2, MaxDelay: "2s"}, attempts: 3, retry: true, delay: 2 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			retry, delay := svc.shouldRetry(tc.cfg, tc.attempts)
			assert.Equal(t, tc.retry, retry)
			if tc.retry {
				assert.Equal(t, tc.delay, delay)
			}
		})
	}
}
