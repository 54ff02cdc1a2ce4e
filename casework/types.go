package casework

import "time"

// CaseType identifies the practice area a case belongs to.
type CaseType string

const (
	CaseTypeProbate CaseType = "probate"
	CaseTypeDivorce CaseType = "divorce"
)

// CaseIDPrefix returns the public identifier prefix for the case type.
func (t CaseType) CaseIDPrefix() string {
	switch t {
	case CaseTypeDivorce:
		return "DIV_"
	default:
		return "PROB_"
	}
}

// Valid reports whether the case type is one the service handles.
func (t CaseType) Valid() bool {
	return t == CaseTypeProbate || t == CaseTypeDivorce
}

// EstimatedTime is the turnaround quoted to the client on submission.
func (t CaseType) EstimatedTime() string {
	switch t {
	case CaseTypeDivorce:
		return "8-12 minutes"
	default:
		return "10-15 minutes"
	}
}

// Status is the lifecycle state of a submitted case.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record is the persisted view of a submitted case.
type Record struct {
	ID     string   `json:"caseId"`
	Type   CaseType `json:"caseType"`
	Status Status   `json:"status"`
	Intake *Intake  `json:"intake,omitempty"`
	Report *Report  `json:"report,omitempty"`
	// RunID links the record to the crew run that analyses it.
	RunID string `json:"runId,omitempty"`
	// AgentsCompleted is the number of agents that finished before the run
	// reached a terminal state; kept so failed cases retain their progress.
	AgentsCompleted int    `json:"agentsCompleted,omitempty"`
	Error           string `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
