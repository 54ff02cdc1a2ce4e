package cases

import (
	"context"
	"errors"
	"testing"

	"github.com/caseflow/caseflow/casework"
	"github.com/caseflow/caseflow/crews"
	"github.com/caseflow/caseflow/internal/idgen"
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/runtime/execution"
	crewaction "github.com/caseflow/caseflow/service/action/crew"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/caseflow/caseflow/service/dao/casefile"
	crewdao "github.com/caseflow/caseflow/service/dao/crew"
	"github.com/stretchr/testify/assert"
)

type stubEngine struct {
	lastCrew *model.Crew
	lastInit map[string]interface{}
	err      error
}

func (e *stubEngine) StartRun(_ context.Context, crew *model.Crew, init map[string]interface{}) (*execution.Run, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.lastCrew = crew
	e.lastInit = init
	return execution.NewRun(crew.Name+"/test-run", crew.Name, crew, init), nil
}

type stubWaiter struct {
	release chan struct{}
	output  crewaction.WaitOutput
	err     error
}

func (w *stubWaiter) WaitForRun(_ context.Context, id string, _ int) (*crewaction.WaitOutput, error) {
	if w.release != nil {
		<-w.release
	}
	if w.err != nil {
		return nil, w.err
	}
	out := w.output
	out.RunID = id
	return &out, nil
}

type fixture struct {
	service *Service
	engine  *stubEngine
	waiter  *stubWaiter
	records dao.Service[string, casework.Record]
}

func newFixture(t *testing.T, waiter *stubWaiter) *fixture {
	t.Helper()
	records, err := casefile.New(":memory:")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })

	crewDao := crewdao.New()
	_, err = crews.Register(crewDao)
	assert.NoError(t, err)

	engine := &stubEngine{}
	return &fixture{
		service: New(records, crewDao, engine, waiter, WithRunTimeout(5)),
		engine:  engine,
		waiter:  waiter,
		records: records,
	}
}

func probateIntake() *casework.Intake {
	return &casework.Intake{
		ClientName:   "Jordan Hale",
		ClientEmail:  "jordan@example.com",
		DeceasedName: "Alex Hale",
		EstateValue:  750_000,
		ExecutorName: "Jordan Hale",
	}
}

func TestService_Submit_Completes(t *testing.T) {
	ctx := context.Background()
	waiter := &stubWaiter{
		output: crewaction.WaitOutput{
			State: execution.StateCompleted,
			Output: map[string]interface{}{
				"document_analysis": map[string]interface{}{"content": "analysis"},
				"case_summary":      map[string]interface{}{"content": "final report"},
			},
		},
	}
	f := newFixture(t, waiter)

	record, err := f.service.Submit(ctx, casework.CaseTypeProbate, probateIntake())
	assert.NoError(t, err)
	assert.Contains(t, record.ID, "PROB_")
	assert.Equal(t, casework.StatusProcessing, record.Status)
	assert.Equal(t, "probate/test-run", record.RunID)

	// The intake is seeded into the run session under the case namespace.
	seeded, ok := f.engine.lastInit["case"].(map[string]interface{})
	if assert.True(t, ok) {
		assert.Equal(t, "Alex Hale", seeded["deceasedName"])
	}

	f.service.Wait()

	status, err := f.service.Status(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, casework.StatusCompleted, status.Status)
	assert.Equal(t, 5, status.AgentsTotal)
	assert.Equal(t, 5, status.AgentsCompleted)
	assert.NotNil(t, status.CompletedAt)

	report, err := f.service.Results(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, "final report", report.Summary)
	assert.Equal(t, "analysis", report.Sections["document_analysis"])
	if assert.NotNil(t, report.IHT) {
		assert.Equal(t, 100_000.0, report.IHT.PotentialTax)
	}
	assert.False(t, report.Fallback)
}

func TestService_Submit_InvalidIntake(t *testing.T) {
	f := newFixture(t, &stubWaiter{})
	intake := probateIntake()
	intake.ClientEmail = "not-an-email"
	_, err := f.service.Submit(context.Background(), casework.CaseTypeProbate, intake)
	assert.Error(t, err)
}

func TestService_Submit_UnknownType(t *testing.T) {
	f := newFixture(t, &stubWaiter{})
	_, err := f.service.Submit(context.Background(), casework.CaseType("conveyancing"), probateIntake())
	assert.Error(t, err)
}

func TestService_Submit_EngineError(t *testing.T) {
	f := newFixture(t, &stubWaiter{})
	f.engine.err = errors.New("queue closed")
	_, err := f.service.Submit(context.Background(), casework.CaseTypeProbate, probateIntake())
	assert.ErrorContains(t, err, "queue closed")
}

func TestService_FallbackOnRunFailure(t *testing.T) {
	ctx := context.Background()
	waiter := &stubWaiter{
		release: make(chan struct{}),
		output: crewaction.WaitOutput{
			State:  execution.StateFailed,
			Errors: map[string]string{"tax_assessment": "model unavailable"},
		},
	}
	f := newFixture(t, waiter)

	record, err := f.service.Submit(ctx, casework.CaseTypeProbate, probateIntake())
	assert.NoError(t, err)

	// Two agents finish before the run fails.
	listener := f.service.SessionListener()
	session := execution.NewSession(record.RunID)
	listener(session, "document_analysis", nil, map[string]interface{}{"content": "done"})
	listener(session, "legal_strategy", nil, map[string]interface{}{"content": "done"})

	close(waiter.release)
	f.service.Wait()

	loaded, err := f.service.Get(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, casework.StatusFailed, loaded.Status)
	assert.Contains(t, loaded.Error, "tax_assessment: model unavailable")

	// The progress made before the failure survives on the record.
	status, err := f.service.Status(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, 5, status.AgentsTotal)
	assert.Equal(t, 2, status.AgentsCompleted)

	// A failed run still yields a fallback report with the intake assessment.
	report, err := f.service.Results(ctx, record.ID)
	assert.NoError(t, err)
	assert.True(t, report.Fallback)
	assert.Contains(t, report.Summary, record.ID)
	assert.NotNil(t, report.IHT)
}

func TestService_Results_Processing(t *testing.T) {
	ctx := context.Background()
	waiter := &stubWaiter{
		release: make(chan struct{}),
		output:  crewaction.WaitOutput{State: execution.StateCompleted},
	}
	f := newFixture(t, waiter)

	record, err := f.service.Submit(ctx, casework.CaseTypeProbate, probateIntake())
	assert.NoError(t, err)

	_, err = f.service.Results(ctx, record.ID)
	assert.ErrorIs(t, err, ErrProcessing)

	close(waiter.release)
	f.service.Wait()

	_, err = f.service.Results(ctx, record.ID)
	assert.NoError(t, err)
}

func TestService_Results_NotFound(t *testing.T) {
	f := newFixture(t, &stubWaiter{})
	_, err := f.service.Results(context.Background(), "PROB_UNKNOWN")
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestService_SessionListener_TracksProgress(t *testing.T) {
	ctx := context.Background()
	waiter := &stubWaiter{release: make(chan struct{}), output: crewaction.WaitOutput{State: execution.StateCompleted}}
	f := newFixture(t, waiter)
	defer func() {
		close(waiter.release)
		f.service.Wait()
	}()

	record, err := f.service.Submit(ctx, casework.CaseTypeProbate, probateIntake())
	assert.NoError(t, err)

	listener := f.service.SessionListener()
	session := execution.NewSession(record.RunID)
	listener(session, "document_analysis", nil, map[string]interface{}{"content": "done"})
	listener(session, "document_analysis", nil, map[string]interface{}{"content": "again"})
	listener(session, "case", nil, map[string]interface{}{})

	status, err := f.service.Status(ctx, record.ID)
	assert.NoError(t, err)
	assert.Equal(t, casework.StatusProcessing, status.Status)
	assert.Equal(t, 1, status.AgentsCompleted)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	waiter := &stubWaiter{output: crewaction.WaitOutput{State: execution.StateCompleted}}
	f := newFixture(t, waiter)

	original := idgen.NewCaseIDFunc
	idgen.NewCaseIDFunc = func(prefix string) string { return prefix + "CASEA" }
	defer func() { idgen.NewCaseIDFunc = original }()

	_, err := f.service.Submit(ctx, casework.CaseTypeProbate, probateIntake())
	assert.NoError(t, err)
	f.service.Wait()

	completed, err := f.service.List(ctx, casework.StatusCompleted)
	assert.NoError(t, err)
	assert.Len(t, completed, 1)

	processing, err := f.service.List(ctx, casework.StatusProcessing)
	assert.NoError(t, err)
	assert.Empty(t, processing)
}
