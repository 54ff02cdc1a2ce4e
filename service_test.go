package caseflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/caseflow/caseflow"
	"github.com/caseflow/caseflow/casework"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedLLM answers every generation request with a deterministic narrative
// so the full engine can run without a live model.
type cannedLLM struct{}

func (c *cannedLLM) Generate(_ context.Context, request *llm.Request) (*llm.Response, error) {
	return &llm.Response{
		Content:          fmt.Sprintf("finding based on: %.40s", request.Prompt),
		Model:            request.Model,
		PromptTokens:     10,
		CompletionTokens: 5,
	}, nil
}

func TestService_EndToEnd_Probate(t *testing.T) {
	ctx := context.Background()
	svc, err := caseflow.New(caseflow.WithLLMClient(&cannedLLM{}))
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))
	defer func() { _ = svc.Shutdown(ctx) }()

	record, err := svc.Cases().Submit(ctx, casework.CaseTypeProbate, &casework.Intake{
		ClientName:   "Jordan Hale",
		ClientEmail:  "jordan@example.com",
		DeceasedName: "Alex Hale",
		EstateValue:  750_000,
		ExecutorName: "Jordan Hale",
	})
	require.NoError(t, err)
	assert.Contains(t, record.ID, "PROB_")

	deadline := time.Now().Add(30 * time.Second)
	for {
		status, err := svc.Cases().Status(ctx, record.ID)
		require.NoError(t, err)
		if status.Status != casework.StatusProcessing {
			require.Equal(t, casework.StatusCompleted, status.Status)
			assert.Equal(t, status.AgentsTotal, status.AgentsCompleted)
			break
		}
		require.False(t, time.Now().After(deadline), "case did not complete in time")
		time.Sleep(50 * time.Millisecond)
	}

	report, err := svc.Cases().Results(ctx, record.ID)
	require.NoError(t, err)
	assert.False(t, report.Fallback)
	for _, section := range []string{
		"document_analysis", "legal_strategy", "tax_assessment",
		"compliance_review", "case_summary",
	} {
		assert.Contains(t, report.Sections, section)
	}
	assert.NotEmpty(t, report.Summary)
	if assert.NotNil(t, report.IHT) {
		assert.Equal(t, 100_000.0, report.IHT.PotentialTax)
	}
}

func TestRuntime_StartRun_CustomCrew(t *testing.T) {
	ctx := context.Background()
	svc, err := caseflow.New(caseflow.WithLLMClient(&cannedLLM{}))
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))
	defer func() { _ = svc.Shutdown(ctx) }()

	rt := svc.Runtime()
	crew, err := rt.UpsertCrew([]byte(`
name: diagnostics
tasks:
  - id: announce
    service: printer
    method: print
    input:
      message: engine is up
`))
	require.NoError(t, err)
	require.NotNil(t, crew.Pipeline)

	_, wait, err := rt.StartRun(ctx, crew, nil)
	require.NoError(t, err)
	output, err := wait(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.StateCompleted, output.State)
	assert.Empty(t, output.Errors)
}
