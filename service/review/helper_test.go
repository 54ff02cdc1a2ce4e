package review_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/dao"
	execmem "github.com/caseflow/caseflow/service/dao/execution/memory"
	"github.com/caseflow/caseflow/service/review"
	revmem "github.com/caseflow/caseflow/service/review/memory"
)

// TestWaitForDecision verifies that WaitForDecision blocks until a decision is
// recorded and returns the correct decision data.
func TestWaitForDecision(t *testing.T) {
	type testCase struct {
		name        string
		approve     bool
		expectError bool
		timeout     time.Duration
		decideDelay time.Duration
	}

	tests := []testCase{{
		name:        "approved before timeout",
		approve:     true,
		expectError: false,
		timeout:     500 * time.Millisecond,
		decideDelay: 10 * time.Millisecond,
	}, {
		name:        "rejected before timeout",
		approve:     false,
		expectError: false,
		timeout:     500 * time.Millisecond,
		decideDelay: 10 * time.Millisecond,
	}, {
		name:        "timeout waiting for decision",
		approve:     true, // irrelevant – decision never sent
		expectError: true,
		timeout:     50 * time.Millisecond,
		decideDelay: 100 * time.Millisecond, // triggered after timeout
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			// Execution DAO not required in these tests; leave it nil.
			var execDAO dao.Service[string, execution.Execution]
			svc := revmem.New(execDAO)

			reqID := "req-1"
			req := &review.Request{
				ID:        reqID,
				RunID:     "r1",
				Action:    "agent.run",
				CreatedAt: time.Now(),
			}

			// Register pending request.
			_ = svc.Submit(ctx, req)

			// Schedule decision according to test case parameters.
			if tc.decideDelay > 0 {
				go func() {
					time.Sleep(tc.decideDelay)
					_, _ = svc.Decide(ctx, reqID, tc.approve, "")
				}()
			}

			dec, err := review.WaitForDecision(ctx, svc, reqID, tc.timeout)

			if tc.expectError {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			expected := &review.Decision{
				ID:       reqID,
				Approved: tc.approve,
			}
			if dec != nil {
				expected.DecidedAt = dec.DecidedAt // align dynamic field
			}
			assert.EqualValues(t, expected, dec)
		})
	}
}

// TestListPending verifies that the ListPending helper applies filters
// correctly.
func TestListPending(t *testing.T) {
	ctx := context.Background()

	var execDAO dao.Service[string, execution.Execution]
	svc := revmem.New(execDAO)

	now := time.Now()
	requests := []*review.Request{
		{ID: "r1", RunID: "run1", Action: "agent.run", CreatedAt: now},
		{ID: "r2", RunID: "run1", Action: "docstore.upload", CreatedAt: now},
		{ID: "r3", RunID: "run2", Action: "agent.run", CreatedAt: now},
	}

	for _, r := range requests {
		_ = svc.Submit(ctx, r)
	}

	type testCase struct {
		name     string
		filters  []review.PendingFilter
		expected []*review.Request
	}

	tests := []testCase{
		{
			name:     "filter by runID",
			filters:  []review.PendingFilter{review.WithRunID("run1")},
			expected: []*review.Request{requests[0], requests[1]},
		},
		{
			name:     "filter by action",
			filters:  []review.PendingFilter{review.WithAction("agent.run")},
			expected: []*review.Request{requests[0], requests[2]},
		},
		{
			name:     "filter by runID and action",
			filters:  []review.PendingFilter{review.WithRunID("run1"), review.WithAction("agent.run")},
			expected: []*review.Request{requests[0]},
		},
		{
			name:     "no filters",
			filters:  nil,
			expected: requests,
		},
	}

	// Helper to sort slice by ID to achieve deterministic comparison.
	sortByID := func(in []*review.Request) []*review.Request {
		out := make([]*review.Request, len(in))
		copy(out, in)
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := review.ListPending(ctx, svc, tc.filters...)
			assert.NoError(t, err)
			assert.EqualValues(t, sortByID(tc.expected), sortByID(actual))
		})
	}

	t.Run("auto_expire_rejects", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var execDAO dao.Service[string, execution.Execution]
		svc := revmem.New(execDAO)

		expireAt := time.Now().Add(-1 * time.Minute) // already expired
		req := &review.Request{ID: "exp1", RunID: "runX", Action: "agent.run", CreatedAt: time.Now(), ExpiresAt: &expireAt}
		_ = svc.Submit(ctx, req)

		stop := review.AutoExpire(ctx, svc, "expired", 10*time.Millisecond)
		defer stop()

		dec, err := review.WaitForDecision(ctx, svc, req.ID, 500*time.Millisecond)
		assert.NoError(t, err)
		assert.EqualValues(t, &review.Decision{ID: req.ID, Approved: false, Reason: "expired", DecidedAt: dec.DecidedAt}, dec)
	})
}

// TestDecide_UpdatesExecution verifies the approve path re-opens the held
// execution so the allocator can re-schedule it.
func TestDecide_UpdatesExecution(t *testing.T) {
	ctx := context.Background()

	execDAO := execmem.New()
	held := &execution.Execution{
		ID:     "run1-task1-abc",
		RunID:  "run1",
		TaskID: "task1",
		State:  execution.TaskStateWaitForReview,
		Output: map[string]interface{}{"content": "draft"},
	}
	assert.NoError(t, execDAO.Save(ctx, held))

	svc := revmem.New(execDAO)
	assert.NoError(t, svc.Submit(ctx, &review.Request{
		ID:          held.ID,
		RunID:       held.RunID,
		ExecutionID: held.ID,
		TaskID:      held.TaskID,
		CreatedAt:   time.Now(),
	}))

	dec, err := svc.Decide(ctx, held.ID, true, "")
	assert.NoError(t, err)
	assert.True(t, dec.Approved)

	updated, err := execDAO.Load(ctx, held.ID)
	assert.NoError(t, err)
	assert.Equal(t, execution.TaskStatePending, updated.State)
	if assert.NotNil(t, updated.Approved) {
		assert.True(t, *updated.Approved)
	}
}
