package caseflow

import (
	"context"
	"testing"
	"time"

	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/stretchr/testify/require"
)

// TestRuntime_QueueExecution verifies that QueueExecution publishes an
// execution to the processor queue, and that it can be consumed directly.
func TestRuntime_QueueExecution(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	ctx := svc.NewContext(context.Background())
	rt := svc.Runtime()
	task := &graph.Task{ID: "dummy"}
	exec := execution.NewExecution("run1", nil, task)
	require.NoError(t, rt.QueueExecution(ctx, exec))
	// the message should now be available on the shared queue
	msg, err := svc.queue.Consume(ctx)
	require.NoError(t, err)
	require.Equal(t, exec.ID, msg.T().ID)
}

// TestRuntime_WaitForExecutionStates verifies WaitForExecution returns once
// the execution enters a terminal, paused or review state.
func TestRuntime_WaitForExecutionStates(t *testing.T) {
	svc, err := New()
	require.NoError(t, err)
	ctx := svc.NewContext(context.Background())
	rt := svc.Runtime()

	rejected := false
	testCases := []struct {
		name     string
		state    execution.TaskState
		approved *bool
	}{
		{"completed", execution.TaskStateCompleted, nil},
		{"failed", execution.TaskStateFailed, nil},
		{"skipped", execution.TaskStateSkipped, nil},
		{"cancelled", execution.TaskStateCancelled, nil},
		{"paused", execution.TaskStatePaused, nil},
		{"rejectedOnReview", execution.TaskStateWaitForReview, &rejected},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &execution.Execution{ID: "e-" + tc.name, State: tc.state, Approved: tc.approved}
			require.NoError(t, rt.SaveExecution(ctx, exec))

			out, err := rt.WaitForExecution(ctx, exec.ID, 100*time.Millisecond)
			require.NoError(t, err)
			require.Equal(t, exec.ID, out.ID)
			require.Equal(t, tc.state, out.State)
		})
	}
}
