package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/caseflow/caseflow/internal/clock"
	"github.com/caseflow/caseflow/internal/idgen"
	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/service/event"
)

// Execution represents a single task execution within a run
type Execution struct {
	ID           string                 `json:"id"`
	RunID        string                 `json:"runId"`
	ParentTaskID string                 `json:"parentTaskId,omitempty"`
	GroupID      string                 `json:"groupId,omitempty"`
	TaskID       string                 `json:"taskId"`
	State        TaskState              `json:"state"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Input        interface{}            `json:"input,omitempty"`
	Output       interface{}            `json:"output,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Attempts     int                    `json:"attempts,omitempty"`
	ScheduledAt  time.Time              `json:"scheduledAt"`
	StartedAt    *time.Time             `json:"startedAt,omitempty"`
	PausedAt     *time.Time             `json:"pausedAt,omitempty"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
	GoToTask     string                 `json:"gotoTask,omitempty"`
	Meta         map[string]interface{} `json:"meta,omitempty"`
	RunAfter     *time.Time             `json:"runAfter,omitempty"`
	DependsOn    []string               `json:"dependsOn"`
	Dependencies map[string]TaskState   `json:"dependencies,omitempty"`

	// AdHoc executions run a single action outside any crew pipeline.
	AdHoc   bool   `json:"adHoc,omitempty"`
	Service string `json:"service,omitempty"`
	Method  string `json:"method,omitempty"`

	// Review outcome, populated by the review service on Decide.
	Approved     *bool  `json:"approved,omitempty"`
	ReviewReason string `json:"reviewReason,omitempty"`

	mux sync.RWMutex
}

func (e *Execution) Context(eventType string, task *graph.Task) *event.Context {
	ret := &event.Context{
		EventType: eventType,
		RunID:     e.RunID,
		TaskID:    e.TaskID,
	}
	if action := task.Action; action != nil {
		ret.Service = action.Service
		ret.Method = action.Method
	}
	return ret
}

// AdHocTask builds a synthetic single-action task for an ad-hoc execution so
// that later task look-ups succeed.
func (e *Execution) AdHocTask() *graph.Task {
	if !e.AdHoc || e.Service == "" {
		return nil
	}
	id := "adhoc/" + e.ID
	return &graph.Task{
		ID:        id,
		Name:      id,
		Namespace: id,
		Action: &graph.Action{
			Service: e.Service,
			Method:  e.Method,
			Input:   e.Input,
		},
	}
}

// NewExecution creates a new execution for a task
func NewExecution(runID string, parent, task *graph.Task) *Execution {
	ret := &Execution{
		ID:           generateExecutionID(runID, task.ID),
		RunID:        runID,
		TaskID:       task.ID,
		State:        TaskStatePending,
		ScheduledAt:  clock.Now(),
		DependsOn:    task.DependsOn,
		Dependencies: make(map[string]TaskState),
	}

	for _, subTask := range task.Tasks {
		ret.Dependencies[subTask.ID] = TaskStatePending
	}
	for _, dependency := range task.DependsOn {
		ret.Dependencies[dependency] = TaskStatePending
	}

	if parent != nil {
		ret.ParentTaskID = parent.ID
		if parent.Async {
			ret.GroupID = parent.ID
		}
	}
	return ret
}

// Start marks the execution as started
func (e *Execution) Start() {
	now := clock.Now()
	e.StartedAt = &now
	e.State = TaskStateRunning
}

// Complete marks the execution as completed
func (e *Execution) Complete() {
	now := clock.Now()
	e.CompletedAt = &now
	e.State = TaskStateCompleted
}

func (e *Execution) Pause() {
	now := clock.Now()
	e.PausedAt = &now
	e.State = TaskStatePaused
}

// Fail marks the execution as failed
func (e *Execution) Fail(err error) {
	now := clock.Now()
	e.CompletedAt = &now
	if err != nil {
		e.Error = err.Error()
	}
	e.State = TaskStateFailed
}

func (e *Execution) Schedule() {
	e.ScheduledAt = clock.Now()
}

func (e *Execution) Skip() {
	e.State = TaskStateSkipped
}

// Merge copies progressed fields from the supplied execution (typically the
// DAO copy updated by a worker) into the receiver.
func (e *Execution) Merge(execution *Execution) {
	if execution == nil || execution == e {
		return
	}
	e.mux.Lock()
	execution.mux.RLock()
	defer execution.mux.RUnlock()
	defer e.mux.Unlock()

	if execution.Output != nil {
		e.Output = execution.Output
	}
	if execution.GoToTask != "" {
		e.GoToTask = execution.GoToTask
	}
	if execution.State != "" {
		e.State = execution.State
	}
	if execution.Error != "" {
		e.Error = execution.Error
	}
	if execution.StartedAt != nil {
		e.StartedAt = execution.StartedAt
	}
	if execution.CompletedAt != nil {
		e.CompletedAt = execution.CompletedAt
	}
	if execution.PausedAt != nil {
		e.PausedAt = execution.PausedAt
	}
	if execution.Approved != nil {
		e.Approved = execution.Approved
		e.ReviewReason = execution.ReviewReason
	}

	if e.Dependencies == nil {
		e.Dependencies = make(map[string]TaskState)
	}
	for key, value := range execution.Dependencies {
		e.Dependencies[key] = value
	}

	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	for key, value := range execution.Meta {
		e.Meta[key] = value
	}
}

// generateExecutionID creates a unique ID for an execution
func generateExecutionID(runID, taskID string) string {
	return fmt.Sprintf("%s-%s-%s", runID, taskID, idgen.New())
}

// Clone creates a deep copy of the execution so that the caller can mutate it
// without affecting the original instance. Only mutable collections are
// deep-copied; pointer fields referencing immutable data are left as-is.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	e.mux.RLock()
	defer e.mux.RUnlock()

	clone := *e
	clone.mux = sync.RWMutex{}

	if e.Data != nil {
		clone.Data = make(map[string]interface{}, len(e.Data))
		for k, v := range e.Data {
			clone.Data[k] = v
		}
	}
	if e.Meta != nil {
		clone.Meta = make(map[string]interface{}, len(e.Meta))
		for k, v := range e.Meta {
			clone.Meta[k] = v
		}
	}
	if e.Dependencies != nil {
		clone.Dependencies = make(map[string]TaskState, len(e.Dependencies))
		for k, v := range e.Dependencies {
			clone.Dependencies[k] = v
		}
	}
	if len(e.DependsOn) > 0 {
		clone.DependsOn = append([]string(nil), e.DependsOn...)
	}
	if e.RunAfter != nil {
		t := *e.RunAfter
		clone.RunAfter = &t
	}
	return &clone
}
