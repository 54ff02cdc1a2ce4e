package casefile

import (
	"context"
	"testing"
	"time"

	"github.com/caseflow/caseflow/casework"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/stretchr/testify/assert"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(":memory:")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestService_SaveLoad(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	record := &casework.Record{
		ID:     "PROB_9F31C2AB",
		Type:   casework.CaseTypeProbate,
		Status: casework.StatusProcessing,
		RunID:  "probate/abc",
		Intake: &casework.Intake{
			ClientName:   "Jordan Hale",
			ClientEmail:  "jordan@example.com",
			DeceasedName: "Alex Hale",
			EstateValue:  420_000,
			ExecutorName: "Jordan Hale",
		},
	}
	assert.NoError(t, svc.Save(ctx, record))

	loaded, err := svc.Load(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, casework.StatusProcessing, loaded.Status)
	assert.Equal(t, "probate/abc", loaded.RunID)
	if assert.NotNil(t, loaded.Intake) {
		assert.Equal(t, 420_000.0, loaded.Intake.EstateValue)
	}
	assert.Nil(t, loaded.Report)

	// Completing the case updates the same row.
	now := time.Now()
	record.Status = casework.StatusCompleted
	record.CompletedAt = &now
	record.Report = casework.BuildReport(record, map[string]interface{}{
		"case_summary": map[string]interface{}{"content": "done"},
	})
	assert.NoError(t, svc.Save(ctx, record))

	loaded, err = svc.Load(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, casework.StatusCompleted, loaded.Status)
	assert.NotNil(t, loaded.CompletedAt)
	if assert.NotNil(t, loaded.Report) {
		assert.Equal(t, "done", loaded.Report.Summary)
	}
}

func TestService_Load_NotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Load(context.Background(), "PROB_UNKNOWN")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestService_List_FilterByStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for _, record := range []*casework.Record{
		{ID: "PROB_A", Type: casework.CaseTypeProbate, Status: casework.StatusProcessing},
		{ID: "PROB_B", Type: casework.CaseTypeProbate, Status: casework.StatusCompleted},
		{ID: "DIV_C", Type: casework.CaseTypeDivorce, Status: casework.StatusFailed},
	} {
		assert.NoError(t, svc.Save(ctx, record))
	}

	all, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	completed, err := svc.List(ctx, dao.NewParameter("Status", string(casework.StatusCompleted)))
	assert.NoError(t, err)
	if assert.Len(t, completed, 1) {
		assert.Equal(t, "PROB_B", completed[0].ID)
	}

	terminal, err := svc.List(ctx, dao.NewParameter("Status",
		string(casework.StatusCompleted), string(casework.StatusFailed)))
	assert.NoError(t, err)
	assert.Len(t, terminal, 2)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	assert.NoError(t, svc.Save(ctx, &casework.Record{ID: "PROB_A", Type: casework.CaseTypeProbate, Status: casework.StatusProcessing}))
	assert.NoError(t, svc.Delete(ctx, "PROB_A"))
	assert.ErrorIs(t, svc.Delete(ctx, "PROB_A"), dao.ErrNotFound)
}
