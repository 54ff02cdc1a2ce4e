package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrew_Validate(t *testing.T) {
	testCases := []struct {
		description string
		build       func() *Crew
		expectIssue string
	}{
		{
			description: "valid sequential crew",
			build: func() *Crew {
				crew := NewCrew("probate").
					WithAgent(&Agent{ID: "analyst", Role: "Document Analyst"}).
					WithAgent(&Agent{ID: "advisor", Role: "Legal Advisor"})
				first := crew.NewTask("document_analysis")
				first.Agent = "analyst"
				second := crew.NewTask("legal_strategy")
				second.Agent = "advisor"
				second.WithDependsOn(first.ID)
				return crew
			},
		},
		{
			description: "unknown agent reference",
			build: func() *Crew {
				crew := NewCrew("divorce")
				task := crew.NewTask("document_analysis")
				task.Agent = "missing"
				return crew
			},
			expectIssue: "unknown agent",
		},
		{
			description: "unknown dependency",
			build: func() *Crew {
				crew := NewCrew("probate").
					WithAgent(&Agent{ID: "analyst", Role: "Document Analyst"})
				task := crew.NewTask("legal_strategy")
				task.Agent = "analyst"
				task.WithDependsOn("no_such_task")
				return crew
			},
			expectIssue: "unknown task",
		},
		{
			description: "self dependency",
			build: func() *Crew {
				crew := NewCrew("probate").
					WithAgent(&Agent{ID: "analyst", Role: "Document Analyst"})
				task := crew.NewTask("document_analysis")
				task.Agent = "analyst"
				task.WithDependsOn(task.ID)
				return crew
			},
			expectIssue: "depends on itself",
		},
		{
			description: "dependency cycle",
			build: func() *Crew {
				crew := NewCrew("probate").
					WithAgent(&Agent{ID: "analyst", Role: "Document Analyst"})
				first := crew.NewTask("tax_assessment")
				first.Agent = "analyst"
				second := crew.NewTask("compliance_review")
				second.Agent = "analyst"
				first.WithDependsOn(second.ID)
				second.WithDependsOn(first.ID)
				return crew
			},
			expectIssue: "cyclic",
		},
		{
			description: "task orphaned behind a cycle",
			build: func() *Crew {
				crew := NewCrew("probate").
					WithAgent(&Agent{ID: "analyst", Role: "Document Analyst"})
				first := crew.NewTask("tax_assessment")
				first.Agent = "analyst"
				second := crew.NewTask("compliance_review")
				second.Agent = "analyst"
				third := crew.NewTask("case_summary")
				third.Agent = "analyst"
				first.WithDependsOn(second.ID)
				second.WithDependsOn(first.ID)
				third.WithDependsOn(first.ID)
				return crew
			},
			expectIssue: "unreachable",
		},
	}

	for _, testCase := range testCases {
		issues := testCase.build().Validate()
		if testCase.expectIssue == "" {
			assert.Empty(t, issues, testCase.description)
			continue
		}
		found := false
		for _, issue := range issues {
			if strings.Contains(issue.Error(), testCase.expectIssue) {
				found = true
			}
		}
		assert.True(t, found, testCase.description)
	}
}

func TestCrew_AllTasks(t *testing.T) {
	crew := NewCrew("probate")
	first := crew.NewTask("document_analysis")
	second := crew.NewTask("case_summary")
	second.WithDependsOn(first.ID)

	all := crew.AllTasks()
	assert.NotNil(t, all[first.ID])
	assert.NotNil(t, all["document_analysis"])
	assert.NotNil(t, all[second.ID])
	assert.Equal(t, all[first.ID], all["document_analysis"])
}
