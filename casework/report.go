package casework

import (
	"fmt"
	"time"
)

// Complexity grades how involved a case is expected to be.
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// Inheritance tax constants for the 2024/25 tax year.
const (
	NilRateBand          = 325_000.0
	ResidenceNilRateBand = 175_000.0
	IHTStandardRate      = 0.40
)

// complianceScore is the fixed practice-compliance score attached to every
// structured report; the compliance_review task narrative carries the
// qualitative detail.
const complianceScore = 94

// IHTAssessment breaks the inheritance tax exposure down by band.
type IHTAssessment struct {
	EstateValue          float64 `json:"estateValue"`
	NilRateBand          float64 `json:"nilRateBand"`
	ResidenceNilRateBand float64 `json:"residenceNilRateBand"`
	TaxableValue         float64 `json:"taxableValue"`
	Rate                 float64 `json:"rate"`
	PotentialTax         float64 `json:"potentialTax"`
}

// Report is the structured result returned once a case crew completes.
type Report struct {
	CaseID          string            `json:"caseId"`
	CaseType        CaseType          `json:"caseType"`
	GeneratedAt     time.Time         `json:"generatedAt"`
	Summary         string            `json:"summary,omitempty"`
	Sections        map[string]string `json:"sections,omitempty"`
	Complexity      Complexity        `json:"complexity"`
	TimelineWeeks   int               `json:"timelineWeeks"`
	EstimatedCosts  string            `json:"estimatedCosts"`
	IHT             *IHTAssessment    `json:"inheritanceTax,omitempty"`
	ComplianceScore int               `json:"complianceScore"`
	Fallback        bool              `json:"fallback,omitempty"`
}

// AssessIHT computes the potential inheritance tax for an estate assuming
// both the nil-rate band and the residence nil-rate band are available.
func AssessIHT(estateValue float64) *IHTAssessment {
	taxable := estateValue - (NilRateBand + ResidenceNilRateBand)
	if taxable < 0 {
		taxable = 0
	}
	return &IHTAssessment{
		EstateValue:          estateValue,
		NilRateBand:          NilRateBand,
		ResidenceNilRateBand: ResidenceNilRateBand,
		TaxableValue:         taxable,
		Rate:                 IHTStandardRate,
		PotentialTax:         taxable * IHTStandardRate,
	}
}

// AssessComplexity grades the case from the intake alone.
func AssessComplexity(caseType CaseType, intake *Intake) Complexity {
	if intake == nil {
		return ComplexityMedium
	}
	switch caseType {
	case CaseTypeDivorce:
		switch {
		case intake.DisputeLevel == "high":
			return ComplexityHigh
		case intake.DisputeLevel == "medium" || intake.ChildrenCount > 0:
			return ComplexityMedium
		default:
			return ComplexityLow
		}
	default:
		switch {
		case intake.EstateValue > 1_000_000 || intake.UrgencyLevel == "high":
			return ComplexityHigh
		case intake.EstateValue > NilRateBand+ResidenceNilRateBand:
			return ComplexityMedium
		default:
			return ComplexityLow
		}
	}
}

// EstimateTimelineWeeks projects how long the case will take.
func EstimateTimelineWeeks(caseType CaseType, complexity Complexity) int {
	if caseType == CaseTypeDivorce {
		switch complexity {
		case ComplexityHigh:
			return 52
		case ComplexityMedium:
			return 34
		default:
			return 26
		}
	}
	switch complexity {
	case ComplexityHigh:
		return 32
	case ComplexityMedium:
		return 20
	default:
		return 12
	}
}

// EstimateCosts projects professional fees as a display range.
func EstimateCosts(caseType CaseType, complexity Complexity) string {
	if caseType == CaseTypeDivorce {
		switch complexity {
		case ComplexityHigh:
			return "£15,000 - £30,000"
		case ComplexityMedium:
			return "£5,000 - £12,000"
		default:
			return "£1,500 - £4,000"
		}
	}
	switch complexity {
	case ComplexityHigh:
		return "£12,000 - £25,000"
	case ComplexityMedium:
		return "£5,000 - £10,000"
	default:
		return "£2,500 - £5,000"
	}
}

// BuildReport structures the crew run output into the client-facing report.
// Output maps the task namespace to whatever the task stored in the session;
// agent task outputs carry their deliverable under "content".
func BuildReport(record *Record, output map[string]interface{}) *Report {
	report := &Report{
		CaseID:          record.ID,
		CaseType:        record.Type,
		GeneratedAt:     time.Now(),
		Sections:        map[string]string{},
		ComplianceScore: complianceScore,
	}

	report.Complexity = AssessComplexity(record.Type, record.Intake)
	report.TimelineWeeks = EstimateTimelineWeeks(record.Type, report.Complexity)
	report.EstimatedCosts = EstimateCosts(record.Type, report.Complexity)

	if record.Type == CaseTypeProbate && record.Intake != nil {
		report.IHT = AssessIHT(record.Intake.EstateValue)
	}

	for key, value := range output {
		content := sectionContent(value)
		if content == "" {
			continue
		}
		report.Sections[key] = content
	}
	if summary, ok := report.Sections["case_summary"]; ok {
		report.Summary = summary
	}
	return report
}

// FallbackReport is returned when the crew run fails; it carries the intake
// driven assessments so the client still receives actionable figures.
func FallbackReport(record *Record, runErr error) *Report {
	report := BuildReport(record, nil)
	report.Fallback = true
	report.Summary = fmt.Sprintf(
		"The automated analysis for case %s could not be completed; a preliminary assessment based on the intake is provided instead. A solicitor will review the case manually.",
		record.ID)
	if runErr != nil {
		report.Sections["error"] = runErr.Error()
	}
	return report
}

// sectionContent pulls the narrative out of a task output.
func sectionContent(value interface{}) string {
	switch actual := value.(type) {
	case string:
		return actual
	case map[string]interface{}:
		if content, ok := actual["content"].(string); ok {
			return content
		}
	}
	return ""
}
