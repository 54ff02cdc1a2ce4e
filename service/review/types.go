package review

import (
	"encoding/json"
	"time"
)

// Event is the envelope published on the review queue.
type Event struct {
	Topic   string            // see topic constants below
	Data    interface{}       // *Request | *Decision
	Headers map[string]string `json:"headers,omitempty"` // optional – tenant, correlation-id etc.
}

// Standard event topics.
const (
	TopicRequestCreated  = "request.created"
	TopicRequestExpired  = "request.expired"
	TopicDecisionCreated = "decision.created"
)

// Request represents a pending sign-off for a task output.
type Request struct {
	ID          string                 `json:"id"`                  // Globally unique, primary key
	RunID       string                 `json:"runId"`               // Refers to run.ID
	ExecutionID string                 `json:"executionId"`         // Refers to execution.ID
	TaskID      string                 `json:"taskId"`              // Refers to task.ID
	Action      string                 `json:"action,omitempty"`    // "service.method"
	Output      json.RawMessage        `json:"output,omitempty"`    // JSON-encoded held task output, may be null
	CreatedAt   time.Time              `json:"createdAt"`           // RFC-3339 timestamp
	ExpiresAt   *time.Time             `json:"expiresAt,omitempty"` // Optional deadline
	Meta        map[string]interface{} `json:"meta,omitempty"`      // Free-form map: matter, client, environment, etc.
}

// Decision represents a recorded review decision.
type Decision struct {
	ID        string    `json:"id"` // same as request.ID
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}
