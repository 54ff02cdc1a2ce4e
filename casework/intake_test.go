package casework

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validProbateIntake() *Intake {
	return &Intake{
		ClientName:   "Jordan Hale",
		ClientEmail:  "jordan@example.com",
		DeceasedName: "Alex Hale",
		EstateValue:  420_000,
		ExecutorName: "Jordan Hale",
	}
}

func TestIntake_Validate(t *testing.T) {
	testCases := []struct {
		name     string
		caseType CaseType
		mutate   func(*Intake)
		valid    bool
	}{
		{name: "valid probate", caseType: CaseTypeProbate, mutate: func(*Intake) {}, valid: true},
		{name: "missing client name", caseType: CaseTypeProbate, mutate: func(i *Intake) { i.ClientName = " " }},
		{name: "bad email", caseType: CaseTypeProbate, mutate: func(i *Intake) { i.ClientEmail = "not-an-email" }},
		{name: "missing deceased", caseType: CaseTypeProbate, mutate: func(i *Intake) { i.DeceasedName = "" }},
		{name: "zero estate", caseType: CaseTypeProbate, mutate: func(i *Intake) { i.EstateValue = 0 }},
		{name: "missing executor", caseType: CaseTypeProbate, mutate: func(i *Intake) { i.ExecutorName = "" }},
		{name: "bad urgency", caseType: CaseTypeProbate, mutate: func(i *Intake) { i.UrgencyLevel = "urgent" }},
		{
			name: "valid divorce", caseType: CaseTypeDivorce,
			mutate: func(i *Intake) {
				i.DeceasedName = ""
				i.EstateValue = 0
				i.ExecutorName = ""
				i.MarriageDuration = 9
				i.ChildrenCount = 1
				i.DisputeLevel = "medium"
			},
			valid: true,
		},
		{
			name: "negative children", caseType: CaseTypeDivorce,
			mutate: func(i *Intake) { i.ChildrenCount = -1 },
		},
		{
			name: "bad dispute level", caseType: CaseTypeDivorce,
			mutate: func(i *Intake) { i.DisputeLevel = "extreme" },
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			intake := validProbateIntake()
			tc.mutate(intake)
			err := intake.Validate(tc.caseType)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIntake_Validate_UnknownType(t *testing.T) {
	assert.Error(t, validProbateIntake().Validate(CaseType("conveyancing")))
}
