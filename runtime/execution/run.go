package execution

import (
	"context"
	"sync"
	"time"

	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/policy"
	"github.com/caseflow/caseflow/tracing"
)

// Run state constants
const (
	StatePending       = "pending"
	StateRunning       = "running"
	StatePaused        = "paused"
	StateWaitingReview = "waitingReview"
	StateCompleted     = "completed"
	StateFailed        = "failed"
)

// Run represents a single crew execution instance, e.g. the probate crew
// working one submitted case.
type Run struct {
	ID         string            `json:"id"`
	ParentID   string            `json:"parentId,omitempty"`
	SCN        int               `json:"scn"`
	Name       string            `json:"name"`
	State      string            `json:"state"`
	Crew       *model.Crew       `json:"crew"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	FinishedAt *time.Time        `json:"finishedAt"`
	Session    *Session          `json:"session"`
	Stack      []*Execution      `json:"stack,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Span       *tracing.Span     `json:"-"`

	ActiveTaskCount  int                    `json:"activeTaskCount"`
	ActiveTaskGroups map[string]bool        `json:"activeTaskGroups"`
	Policy           *policy.Config         `json:"policy,omitempty"`
	mu               sync.RWMutex           // Protects concurrent access
	allTasks         map[string]*graph.Task // Cached all tasks
}

// NewRun creates a new run
func NewRun(id string, name string, crew *model.Crew, initialState map[string]interface{}) *Run {
	now := time.Now()
	if initialState == nil {
		initialState = make(map[string]interface{})
	}
	return &Run{
		ID:               id,
		Name:             name,
		State:            StatePending,
		Crew:             crew,
		CreatedAt:        now,
		UpdatedAt:        now,
		Session:          NewSession(id, WithState(initialState)),
		ActiveTaskCount:  0,
		ActiveTaskGroups: make(map[string]bool),
		Errors:           make(map[string]string),
	}
}

// RegisterTask adds a task (and its subtasks) to the run task lookup map at
// runtime. Ad-hoc executions use it to make their synthetic task resolvable.
func (r *Run) RegisterTask(t *graph.Task) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allTasks == nil {
		r.allTasks = make(map[string]*graph.Task)
	}
	var recurse func(*graph.Task)
	recurse = func(task *graph.Task) {
		if task == nil {
			return
		}
		if _, exists := r.allTasks[task.ID]; !exists {
			r.allTasks[task.ID] = task
			if task.Name != "" {
				r.allTasks[task.Name] = task
			}
		}
		for _, st := range task.Tasks {
			recurse(st)
		}
	}
	recurse(t)
}

// SetDep safely records taskID dependency state inside e.Dependencies.
func (r *Run) SetDep(e *Execution, taskID string, state TaskState) {
	e.mux.Lock()
	if e.Dependencies == nil {
		e.Dependencies = make(map[string]TaskState)
	}
	e.Dependencies[taskID] = state
	e.mux.Unlock()
}

// GetDep safely reads a dependency value; second return value indicates presence.
func (r *Run) GetDep(e *Execution, taskID string) (TaskState, bool) {
	e.mux.RLock()
	val, ok := e.Dependencies[taskID]
	e.mux.RUnlock()
	return val, ok
}

// CopyFrom updates exported, mutex-independent fields from src.  It intentionally
// skips sync.Mutex as copying it would corrupt internal state.
func (r *Run) CopyFrom(src any) {
	other, ok := src.(*Run)
	if !ok || other == nil || r == other {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.SCN = other.SCN
	r.State = other.State
	r.UpdatedAt = other.UpdatedAt
	r.FinishedAt = other.FinishedAt
	r.Stack = other.Stack
	r.Errors = other.Errors
	r.ActiveTaskCount = other.ActiveTaskCount
	r.ActiveTaskGroups = other.ActiveTaskGroups
	// Session and Crew are immutable references – no copy.
}

// Wait blocks until the run reaches a terminal state or the timeout elapses.
type Wait func(ctx context.Context, timeout time.Duration) (*RunOutput, error)

// RunOutput carries the terminal snapshot of a run.
type RunOutput struct {
	RunID     string
	State     string
	Output    map[string]interface{}
	Errors    map[string]string
	TimeTaken time.Duration
	Timeout   bool
}

func (r *Run) LookupTask(taskID string) *graph.Task {
	allTasks := r.AllTasks()
	return allTasks[taskID]
}

func (r *Run) LookupExecution(taskID string) *Execution {
	for i := len(r.Stack) - 1; i >= 0; i-- {
		if r.Stack[i].TaskID == taskID {
			return r.Stack[i]
		}
	}
	return nil
}

func (r *Run) AllTasks() map[string]*graph.Task {
	r.mu.RLock()
	ret := r.allTasks
	r.mu.RUnlock()
	if ret != nil {
		return ret
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allTasks = r.Crew.AllTasks()
	return r.allTasks
}

func (r *Run) Push(executions ...*Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stack = append(r.Stack, executions...)
}

func (r *Run) Remove(anExecution *Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Stack) == 0 || anExecution == nil {
		return
	}

	// Filter-copy preserving order; this correctly handles removal of any
	// element including the last.
	newStack := r.Stack[:0]
	for _, exec := range r.Stack {
		if exec.ID != anExecution.ID {
			newStack = append(newStack, exec)
		}
	}
	r.Stack = newStack
}

func (r *Run) Peek() *Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Stack) == 0 {
		return nil
	}
	return r.Stack[len(r.Stack)-1]
}

// GetState returns the run state
func (r *Run) GetState() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// SetState updates the run state
func (r *Run) SetState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = state
	switch state {
	case StateCompleted, StateFailed:
		now := time.Now()
		r.FinishedAt = &now
	}
	r.UpdatedAt = time.Now()
}

// IncrementActiveTaskCount increments the active task counter
func (r *Run) IncrementActiveTaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ActiveTaskCount++
	return r.ActiveTaskCount
}

// DecrementActiveTaskCount decrements the active task counter
func (r *Run) DecrementActiveTaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ActiveTaskCount > 0 {
		r.ActiveTaskCount--
	}
	return r.ActiveTaskCount
}

// GetActiveTaskCount returns the current active task count
func (r *Run) GetActiveTaskCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ActiveTaskCount
}

// AddActiveTaskGroup marks a task group as active
func (r *Run) AddActiveTaskGroup(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ActiveTaskGroups[groupID] = true
}

// RemoveActiveTaskGroup removes a task group from active groups
func (r *Run) RemoveActiveTaskGroup(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ActiveTaskGroups, groupID)
}

// HasActiveTaskGroup checks if a task group is active
func (r *Run) HasActiveTaskGroup(groupID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.ActiveTaskGroups[groupID]
	return exists
}

// Clone creates a deep copy of the Run suitable for safe concurrent
// reads/mutations outside the original store.  The Crew pointer is not cloned
// because crews are immutable after initial load.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Run{
		ID:              r.ID,
		ParentID:        r.ParentID,
		SCN:             r.SCN,
		Name:            r.Name,
		State:           r.State,
		Crew:            r.Crew, // immutable – safe to share
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		FinishedAt:      r.FinishedAt,
		Session:         r.Session, // has own locking, safe to share
		Span:            r.Span,
		ActiveTaskCount: r.ActiveTaskCount,
		Policy:          r.Policy,
		// allTasks intentionally left nil – will be lazily rebuilt if needed
	}

	if len(r.Stack) > 0 {
		out.Stack = make([]*Execution, len(r.Stack))
		for i, ex := range r.Stack {
			out.Stack[i] = ex.Clone()
		}
	}

	if r.Errors != nil {
		out.Errors = make(map[string]string, len(r.Errors))
		for k, v := range r.Errors {
			out.Errors[k] = v
		}
	}

	if r.ActiveTaskGroups != nil {
		out.ActiveTaskGroups = make(map[string]bool, len(r.ActiveTaskGroups))
		for k, v := range r.ActiveTaskGroups {
			out.ActiveTaskGroups[k] = v
		}
	}

	// Preserve dynamically registered tasks (ad-hoc executions) so lookups
	// still work after the run has been stored in / loaded from the DAO.
	if r.allTasks != nil {
		out.allTasks = make(map[string]*graph.Task, len(r.allTasks))
		for k, v := range r.allTasks {
			out.allTasks[k] = v
		}
	}

	return out
}
