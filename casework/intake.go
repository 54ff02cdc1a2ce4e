package casework

import (
	"fmt"
	"net/mail"
	"strings"
)

// Intake is the client-submitted case questionnaire. Probate and divorce
// share the client and property sections; the remaining fields apply per
// case type.
type Intake struct {
	ClientName      string  `json:"clientName"`
	ClientEmail     string  `json:"clientEmail"`
	ClientPhone     string  `json:"clientPhone,omitempty"`
	PropertyAddress string  `json:"propertyAddress,omitempty"`
	PropertyType    string  `json:"propertyType,omitempty"`
	PropertyValue   float64 `json:"propertyValue,omitempty"`
	UrgencyLevel    string  `json:"urgencyLevel,omitempty"`
	AdditionalNotes string  `json:"additionalNotes,omitempty"`

	// Probate
	DeceasedName string  `json:"deceasedName,omitempty"`
	EstateValue  float64 `json:"estateValue,omitempty"`
	ExecutorName string  `json:"executorName,omitempty"`

	// Divorce
	MarriageDuration int    `json:"marriageDuration,omitempty"`
	ChildrenCount    int    `json:"childrenCount,omitempty"`
	DisputeLevel     string `json:"disputeLevel,omitempty"`
}

// Validate checks the intake for the given case type and returns the first
// problem found.
func (i *Intake) Validate(caseType CaseType) error {
	if i == nil {
		return fmt.Errorf("intake is required")
	}
	if strings.TrimSpace(i.ClientName) == "" {
		return fmt.Errorf("clientName is required")
	}
	if strings.TrimSpace(i.ClientEmail) == "" {
		return fmt.Errorf("clientEmail is required")
	}
	if _, err := mail.ParseAddress(i.ClientEmail); err != nil {
		return fmt.Errorf("clientEmail is invalid: %w", err)
	}
	if i.PropertyValue < 0 {
		return fmt.Errorf("propertyValue cannot be negative")
	}
	switch i.UrgencyLevel {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("urgencyLevel must be one of low, medium, high")
	}

	switch caseType {
	case CaseTypeProbate:
		if strings.TrimSpace(i.DeceasedName) == "" {
			return fmt.Errorf("deceasedName is required for probate cases")
		}
		if i.EstateValue <= 0 {
			return fmt.Errorf("estateValue must be positive for probate cases")
		}
		if strings.TrimSpace(i.ExecutorName) == "" {
			return fmt.Errorf("executorName is required for probate cases")
		}
	case CaseTypeDivorce:
		if i.MarriageDuration < 0 {
			return fmt.Errorf("marriageDuration cannot be negative")
		}
		if i.ChildrenCount < 0 {
			return fmt.Errorf("childrenCount cannot be negative")
		}
		switch i.DisputeLevel {
		case "", "low", "medium", "high":
		default:
			return fmt.Errorf("disputeLevel must be one of low, medium, high")
		}
	default:
		return fmt.Errorf("unsupported case type %q", caseType)
	}
	return nil
}

// AsParameters converts the intake to the session state seeded under the
// "case" namespace for crew prompt expansion.
func (i *Intake) AsParameters() map[string]interface{} {
	return map[string]interface{}{
		"clientName":       i.ClientName,
		"clientEmail":      i.ClientEmail,
		"clientPhone":      i.ClientPhone,
		"propertyAddress":  i.PropertyAddress,
		"propertyType":     i.PropertyType,
		"propertyValue":    i.PropertyValue,
		"urgencyLevel":     i.UrgencyLevel,
		"additionalNotes":  i.AdditionalNotes,
		"deceasedName":     i.DeceasedName,
		"estateValue":      i.EstateValue,
		"executorName":     i.ExecutorName,
		"marriageDuration": i.MarriageDuration,
		"childrenCount":    i.ChildrenCount,
		"disputeLevel":     i.DisputeLevel,
	}
}
