package crew

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var probateYAML = []byte(`
name: probate
description: Probate case analysis crew
agents:
  - id: document_analyst
    role: Legal Document Analyst
    goal: Extract the facts that drive the probate process
    tools: [reader, legal]
  - id: strategist
    role: Probate Strategist
    goal: Recommend the most efficient route to grant of probate
    tools: [legal, serper]
tasks:
  - id: document_analysis
    agent: document_analyst
    prompt: |
      Review the estate details for ${case.deceasedName}.
    expectedOutput: Structured summary of the estate documents
  - id: legal_strategy
    agent: strategist
    prompt: |
      Based on ${document_analysis}, outline the probate strategy.
    dependsOn: [document_analysis]
    review: true
  - id: archive
    service: docstore
    method: upload
    input:
      location: cases/probate
    dependsOn: [legal_strategy]
`)

func TestService_DecodeYAML(t *testing.T) {
	srv := New()
	crew, err := srv.DecodeYAML(probateYAML)
	assert.Nil(t, err)
	assert.Equal(t, "probate", crew.Name)
	assert.Equal(t, 2, len(crew.Agents))
	assert.Equal(t, 3, len(crew.Pipeline.Tasks))

	tasks := crew.AllTasks()
	analysis := tasks["document_analysis"]
	assert.NotNil(t, analysis)
	assert.Equal(t, "probate/document_analysis", analysis.ID)
	assert.Equal(t, "agent", analysis.Action.Service)
	assert.Equal(t, "run", analysis.Action.Method)

	strategy := tasks["legal_strategy"]
	assert.NotNil(t, strategy)
	assert.True(t, strategy.Review)
	input, ok := strategy.Action.Input.(map[string]interface{})
	assert.True(t, ok)
	refs, ok := input["context"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "$document_analysis", refs["document_analysis"])

	archive := tasks["archive"]
	assert.NotNil(t, archive)
	assert.Equal(t, "docstore", archive.Action.Service)
	assert.Equal(t, "upload", archive.Action.Method)
}

func TestService_DecodeYAML_Invalid(t *testing.T) {
	testCases := []struct {
		description string
		yaml        string
		expectError string
	}{
		{
			description: "unknown agent",
			yaml: `
name: divorce
tasks:
  - id: financial_analysis
    agent: ghost
    prompt: analyse
`,
			expectError: "unknown agent",
		},
		{
			description: "no tasks",
			yaml: `
name: divorce
`,
			expectError: "declares no tasks",
		},
		{
			description: "neither agent nor service",
			yaml: `
name: divorce
tasks:
  - id: financial_analysis
`,
			expectError: "neither agent nor service",
		},
		{
			description: "unknown dependency",
			yaml: `
name: divorce
tasks:
  - id: summary
    service: printer
    method: print
    dependsOn: [missing]
`,
			expectError: "unknown task",
		},
	}

	srv := New()
	for _, testCase := range testCases {
		_, err := srv.DecodeYAML([]byte(testCase.yaml))
		if assert.NotNil(t, err, testCase.description) {
			assert.Contains(t, err.Error(), testCase.expectError, testCase.description)
		}
	}
}

func TestService_Upsert(t *testing.T) {
	srv := New()
	crew, err := srv.Upsert(probateYAML)
	assert.Nil(t, err)
	assert.Equal(t, crew, srv.Lookup("probate"))
	assert.Nil(t, srv.Lookup("divorce"))
	assert.Equal(t, []string{"probate"}, srv.Names())
}

func TestBindAgentAction(t *testing.T) {
	srv := New()
	crew, err := srv.DecodeYAML(probateYAML)
	assert.Nil(t, err)
	for _, task := range crew.Pipeline.Tasks {
		assert.NotNil(t, task.Action, task.ID)
	}

	// Agent tasks carry the agent as a plain map: the executor's converter
	// rebuilds the typed input from maps and would drop a struct pointer.
	analysis := crew.AllTasks()["document_analysis"]
	input, ok := analysis.Action.Input.(map[string]interface{})
	assert.True(t, ok)
	agent, ok := input["agent"].(map[string]interface{})
	if assert.True(t, ok) {
		assert.Equal(t, "document_analyst", agent["id"])
		assert.Equal(t, "Legal Document Analyst", agent["role"])
		assert.Equal(t, []interface{}{"reader", "legal"}, agent["tools"])
	}
}
