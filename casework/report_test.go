package casework

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessIHT(t *testing.T) {
	testCases := []struct {
		name        string
		estateValue float64
		expectedTax float64
	}{
		{name: "below both bands", estateValue: 300_000, expectedTax: 0},
		{name: "at combined band", estateValue: 500_000, expectedTax: 0},
		{name: "above combined band", estateValue: 750_000, expectedTax: 100_000},
		{name: "large estate", estateValue: 2_000_000, expectedTax: 600_000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assessment := AssessIHT(tc.estateValue)
			assert.Equal(t, tc.expectedTax, assessment.PotentialTax)
			assert.Equal(t, 0.40, assessment.Rate)
			assert.Equal(t, 325_000.0, assessment.NilRateBand)
		})
	}
}

func TestAssessComplexity(t *testing.T) {
	testCases := []struct {
		name     string
		caseType CaseType
		intake   *Intake
		expected Complexity
	}{
		{name: "modest estate", caseType: CaseTypeProbate, intake: &Intake{EstateValue: 200_000}, expected: ComplexityLow},
		{name: "taxable estate", caseType: CaseTypeProbate, intake: &Intake{EstateValue: 600_000}, expected: ComplexityMedium},
		{name: "large estate", caseType: CaseTypeProbate, intake: &Intake{EstateValue: 1_500_000}, expected: ComplexityHigh},
		{name: "urgent probate", caseType: CaseTypeProbate, intake: &Intake{EstateValue: 100_000, UrgencyLevel: "high"}, expected: ComplexityHigh},
		{name: "amicable divorce", caseType: CaseTypeDivorce, intake: &Intake{DisputeLevel: "low"}, expected: ComplexityLow},
		{name: "divorce with children", caseType: CaseTypeDivorce, intake: &Intake{ChildrenCount: 2}, expected: ComplexityMedium},
		{name: "contested divorce", caseType: CaseTypeDivorce, intake: &Intake{DisputeLevel: "high"}, expected: ComplexityHigh},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, AssessComplexity(tc.caseType, tc.intake))
		})
	}
}

func TestBuildReport(t *testing.T) {
	record := &Record{
		ID:   "PROB_9F31C2AB",
		Type: CaseTypeProbate,
		Intake: &Intake{
			ClientName:   "Jordan Hale",
			ClientEmail:  "jordan@example.com",
			DeceasedName: "Alex Hale",
			EstateValue:  750_000,
			ExecutorName: "Jordan Hale",
		},
	}
	output := map[string]interface{}{
		"document_analysis": map[string]interface{}{"content": "The will is valid and names one executor."},
		"case_summary":      map[string]interface{}{"content": "Straightforward estate, IHT payable."},
		"archive":           map[string]interface{}{"assets": []string{"will.txt"}},
	}

	report := BuildReport(record, output)

	assert.Equal(t, "PROB_9F31C2AB", report.CaseID)
	assert.Equal(t, ComplexityMedium, report.Complexity)
	assert.Equal(t, 20, report.TimelineWeeks)
	assert.Equal(t, "£5,000 - £10,000", report.EstimatedCosts)
	assert.Equal(t, 94, report.ComplianceScore)
	assert.Equal(t, "Straightforward estate, IHT payable.", report.Summary)
	assert.Equal(t, "The will is valid and names one executor.", report.Sections["document_analysis"])
	// Non-narrative outputs are skipped.
	assert.NotContains(t, report.Sections, "archive")
	if assert.NotNil(t, report.IHT) {
		assert.Equal(t, 100_000.0, report.IHT.PotentialTax)
	}
	assert.False(t, report.Fallback)
}

func TestFallbackReport(t *testing.T) {
	record := &Record{
		ID:     "DIV_00FF00AA",
		Type:   CaseTypeDivorce,
		Intake: &Intake{DisputeLevel: "high"},
	}
	report := FallbackReport(record, errors.New("agent run failed"))

	assert.True(t, report.Fallback)
	assert.Contains(t, report.Summary, "DIV_00FF00AA")
	assert.Equal(t, "agent run failed", report.Sections["error"])
	assert.Equal(t, ComplexityHigh, report.Complexity)
	assert.Equal(t, 52, report.TimelineWeeks)
	assert.Nil(t, report.IHT)
}
