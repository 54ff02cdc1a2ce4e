package execution

import (
	"testing"

	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/model/graph"
	"github.com/stretchr/testify/assert"
)

func newTestRun() *Run {
	crew := model.NewCrew("probate")
	return NewRun("run-1", "probate", crew, map[string]interface{}{"case": map[string]interface{}{"id": "PROB_1"}})
}

func TestRun_Remove(t *testing.T) {
	run := newTestRun()
	task := &graph.Task{ID: "document_analysis", Namespace: "document_analysis"}

	first := NewExecution(run.ID, nil, task)
	second := NewExecution(run.ID, nil, &graph.Task{ID: "legal_strategy"})
	third := NewExecution(run.ID, nil, &graph.Task{ID: "case_summary"})
	run.Push(first, second, third)

	run.Remove(second)
	assert.Equal(t, 2, len(run.Stack))
	assert.Equal(t, first.ID, run.Stack[0].ID)
	assert.Equal(t, third.ID, run.Stack[1].ID)

	// removing the last element
	run.Remove(third)
	assert.Equal(t, 1, len(run.Stack))
	assert.Equal(t, first.ID, run.Peek().ID)

	// removing an unknown execution is a no-op
	run.Remove(second)
	assert.Equal(t, 1, len(run.Stack))

	run.Remove(first)
	assert.Equal(t, 0, len(run.Stack))
	assert.Nil(t, run.Peek())
}

func TestRun_SetState(t *testing.T) {
	run := newTestRun()
	assert.Equal(t, StatePending, run.GetState())
	run.SetState(StateRunning)
	assert.Nil(t, run.FinishedAt)
	run.SetState(StateCompleted)
	assert.NotNil(t, run.FinishedAt)
}

func TestExecution_Merge(t *testing.T) {
	task := &graph.Task{ID: "tax_assessment", DependsOn: []string{"legal_strategy"}}
	original := NewExecution("run-1", nil, task)
	assert.Equal(t, TaskStatePending, original.Dependencies["legal_strategy"])

	updated := original.Clone()
	updated.Start()
	updated.Output = map[string]interface{}{"content": "IHT due"}
	updated.Complete()

	original.Merge(updated)
	assert.Equal(t, TaskStateCompleted, original.State)
	assert.NotNil(t, original.CompletedAt)
	assert.Equal(t, map[string]interface{}{"content": "IHT due"}, original.Output)
}

func TestSession_TaskSession(t *testing.T) {
	session := NewSession("run-1", WithState(map[string]interface{}{
		"case":  map[string]interface{}{"estateValue": 650000},
		"stage": "analysis",
	}))
	scoped := session.TaskSession(map[string]interface{}{"stage": "strategy"})

	stage, _ := scoped.GetString("stage")
	assert.Equal(t, "strategy", stage)
	_, ok := scoped.Get("case")
	assert.True(t, ok)

	// parent state is unaffected
	stage, _ = session.GetString("stage")
	assert.Equal(t, "analysis", stage)
}

func TestSession_Expand(t *testing.T) {
	session := NewSession("run-1", WithState(map[string]interface{}{
		"document_analysis": map[string]interface{}{"content": "will located"},
	}))
	expanded, err := session.Expand(map[string]interface{}{
		"prompt": "Given: ${document_analysis.content}",
	})
	assert.Nil(t, err)
	assert.Equal(t, map[string]interface{}{"prompt": "Given: will located"}, expanded)
}
