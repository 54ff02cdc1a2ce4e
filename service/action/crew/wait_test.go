package crew

import (
	"context"
	"testing"

	"github.com/caseflow/caseflow/runtime/execution"
	rundao "github.com/caseflow/caseflow/service/dao/run/memory"
	"github.com/stretchr/testify/assert"
)

// TestWaitForRun verifies that WaitForRun returns as soon as the run reaches
// a terminal state and never blocks indefinitely.
func TestWaitForRun(t *testing.T) {
	ctx := context.Background()

	// Prepare a completed run in the in-memory DAO.
	aRun := execution.NewRun("run-test", "demo", nil, nil)
	aRun.SetState(execution.StateCompleted)

	runDao := rundao.New()
	_ = runDao.Save(ctx, aRun)

	svc := New(nil, nil, runDao)

	// Use a generous timeout – the call should return immediately, not after
	// the entire duration.
	out, err := svc.WaitForRun(ctx, aRun.ID, 1_000 /* 1 second */)

	assert.NoError(t, err)
	assert.EqualValues(t, execution.StateCompleted, out.State)
	assert.False(t, out.Timeout)
}
