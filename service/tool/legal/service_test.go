package legal

import (
	"context"
	"testing"

	"github.com/caseflow/caseflow/service/tool"
	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		contains []string
		excludes []string
	}{
		{
			name:     "inheritance tax",
			query:    "What is the IHT nil-rate band?",
			contains: []string{"£325,000", "40%"},
			excludes: []string{"no-fault divorce"},
		},
		{
			name:     "probate",
			query:    "How does an executor obtain a grant of probate?",
			contains: []string{"PA1P", "8-16 weeks"},
		},
		{
			name:     "divorce",
			query:    "financial settlement after a long marriage",
			contains: []string{"Matrimonial Causes Act 1973"},
		},
		{
			name:     "unmatched query returns full digest",
			query:    "zzz",
			contains: []string{"£325,000", "Matrimonial Causes Act 1973", "UK GDPR"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			content := Lookup(tc.query)
			for _, fragment := range tc.contains {
				assert.Contains(t, content, fragment)
			}
			for _, fragment := range tc.excludes {
				assert.NotContains(t, content, fragment)
			}
		})
	}
}

func TestService_Call(t *testing.T) {
	svc := New()
	method, err := svc.Method(tool.Method)
	assert.NoError(t, err)

	output := &tool.Output{}
	assert.NoError(t, method(context.Background(), &tool.Input{Query: "probate process"}, output))
	assert.Contains(t, output.Content, "grant of probate")
}
