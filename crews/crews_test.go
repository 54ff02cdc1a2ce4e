package crews

import (
	"testing"

	"github.com/caseflow/caseflow/model/graph"
	crewdao "github.com/caseflow/caseflow/service/dao/crew"
	"github.com/stretchr/testify/assert"
)

func TestRegister(t *testing.T) {
	dao := crewdao.New()
	registered, err := Register(dao)
	assert.NoError(t, err)
	assert.Len(t, registered, 2)
	assert.NotNil(t, dao.Lookup(Probate))
	assert.NotNil(t, dao.Lookup(Divorce))
}

func TestProbateCrew(t *testing.T) {
	dao := crewdao.New()
	_, err := Register(dao)
	assert.NoError(t, err)

	crew := dao.Lookup(Probate)
	assert.Equal(t, 5, len(crew.Agents))
	assert.Equal(t, 5, len(crew.Pipeline.Tasks))

	order := make([]string, 0, len(crew.Pipeline.Tasks))
	byName := map[string]*graph.Task{}
	for _, task := range crew.Pipeline.Tasks {
		order = append(order, task.Name)
		byName[task.Name] = task
	}
	assert.Equal(t, []string{
		"document_analysis", "legal_strategy", "tax_assessment",
		"compliance_review", "case_summary",
	}, order)

	analysis := byName["document_analysis"]
	assert.Equal(t, "probate/document_analysis", analysis.ID)
	if assert.NotNil(t, analysis.Action) {
		assert.Equal(t, "agent", analysis.Action.Service)
		assert.Equal(t, "run", analysis.Action.Method)
		input, ok := analysis.Action.Input.(map[string]interface{})
		if assert.True(t, ok) {
			assert.Contains(t, input["prompt"], "${case.deceasedName}")
			// The agent travels as a plain map so the typed input
			// conversion can rebuild it.
			agent, ok := input["agent"].(map[string]interface{})
			if assert.True(t, ok) {
				assert.Equal(t, "document_analyst", agent["id"])
			}
		}
	}
	assert.NotNil(t, analysis.Retry)

	// The summary task sees every upstream finding through session references.
	summary := byName["case_summary"]
	assert.ElementsMatch(t, []string{
		"document_analysis", "legal_strategy", "tax_assessment", "compliance_review",
	}, summary.DependsOn)
	if assert.NotNil(t, summary.Action) {
		input, ok := summary.Action.Input.(map[string]interface{})
		if assert.True(t, ok) {
			context, ok := input["context"].(map[string]interface{})
			if assert.True(t, ok) {
				assert.Equal(t, "$tax_assessment", context["tax_assessment"])
			}
		}
	}
}

func TestDivorceCrew(t *testing.T) {
	dao := crewdao.New()
	_, err := Register(dao)
	assert.NoError(t, err)

	crew := dao.Lookup(Divorce)
	assert.Equal(t, 4, len(crew.Agents))
	assert.Equal(t, 4, len(crew.Pipeline.Tasks))

	strategist := crew.Agents.Lookup("settlement_strategist")
	if assert.NotNil(t, strategist) {
		assert.Contains(t, strategist.Tools, "serper")
	}
	last := crew.Pipeline.Tasks[len(crew.Pipeline.Tasks)-1]
	assert.Equal(t, "divorce/case_summary", last.ID)
	assert.Contains(t, last.DependsOn, "welfare_review")
}
