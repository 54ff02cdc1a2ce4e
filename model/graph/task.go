package graph

import (
	"github.com/caseflow/caseflow/model/state"
)

type (
	// Action binds a task to a registered action service method, e.g.
	// agent.run or tool/search.call.
	Action struct {
		Service string      `json:"service,omitempty" yaml:"service,omitempty"`
		Method  string      `json:"method,omitempty" yaml:"method,omitempty"`
		Input   interface{} `json:"input,omitempty" yaml:"input,omitempty"`
	}

	// Task is a node in a crew pipeline. Agent tasks carry a prompt template
	// and reference an agent declared by the crew; generic tasks carry an
	// explicit Action. A task with neither is a grouping node for subtasks.
	Task struct {
		ID             string           `json:"id,omitempty" yaml:"id,omitempty"`
		Name           string           `json:"name,omitempty" yaml:"name,omitempty"`
		Namespace      string           `json:"namespace,omitempty" yaml:"namespace,omitempty"`
		Agent          string           `json:"agent,omitempty" yaml:"agent,omitempty"`
		Prompt         string           `json:"prompt,omitempty" yaml:"prompt,omitempty"`
		ExpectedOutput string           `json:"expectedOutput,omitempty" yaml:"expectedOutput,omitempty"`
		Init           state.Parameters `json:"init,omitempty" yaml:"init,omitempty"`
		When           string           `json:"when,omitempty" yaml:"when,omitempty"`
		Action         *Action          `json:"action,omitempty" yaml:"action,omitempty"`
		DependsOn      []string         `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
		Tasks          []*Task          `json:"tasks,omitempty" yaml:"tasks,omitempty"`
		Post           state.Parameters `json:"post,omitempty" yaml:"post,omitempty"`
		Goto           []*Transition    `json:"goto,omitempty" yaml:"goto,omitempty"`
		Async          bool             `json:"async,omitempty" yaml:"async,omitempty"`
		// Review marks the task output for solicitor sign-off before the
		// engine releases it to downstream tasks.
		Review bool   `json:"review,omitempty" yaml:"review,omitempty"`
		Retry  *Retry `json:"retry,omitempty" yaml:"retry,omitempty"`
	}

	// Retry strategy for task
	Retry struct {
		Type       string  `json:"type,omitempty" yaml:"type,omitempty"` // fixed, exponential, none
		MaxRetries int     `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
		Delay      string  `json:"delay,omitempty" yaml:"delay,omitempty"`           // base delay (duration string)
		Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"` // exponential multiplier (>1)
		MaxDelay   string  `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
	}

	Transition struct {
		When string `json:"when,omitempty" yaml:"when,omitempty"`
		Task string `json:"task,omitempty" yaml:"task,omitempty"`
	}
)

func (t *Task) IsAsync() bool {
	return t.Async
}

// WithAction sets the action for the task
func (t *Task) WithAction(service string, method string, input interface{}) *Task {
	t.Action = &Action{
		Service: service,
		Method:  method,
		Input:   input,
	}
	return t
}

// WithInit adds an initialization parameter to the task
func (t *Task) WithInit(name string, value interface{}) *Task {
	if t.Init == nil {
		t.Init = make(state.Parameters, 0)
	}
	t.Init.Add(name, value)
	return t
}

// WithPost adds a post-execution parameter to the task
func (t *Task) WithPost(name string, value interface{}) *Task {
	if t.Post == nil {
		t.Post = make(state.Parameters, 0)
	}
	t.Post.Add(name, value)
	return t
}

// WithDependsOn adds a dependency to the task
func (t *Task) WithDependsOn(taskID string) *Task {
	t.DependsOn = append(t.DependsOn, taskID)
	return t
}

// WithGoto adds a transition to the task
func (t *Task) WithGoto(when string, taskName string) *Task {
	t.Goto = append(t.Goto, &Transition{
		When: when,
		Task: taskName,
	})
	return t
}

// WithAsync sets the task to run asynchronously
func (t *Task) WithAsync(async bool) *Task {
	t.Async = async
	return t
}

// WithReview flags the task output for human review
func (t *Task) WithReview(review bool) *Task {
	t.Review = review
	return t
}

// AddSubTask adds a subtask to the task
func (t *Task) AddSubTask(name string) *Task {
	subtask := &Task{
		ID:        t.ID + "/" + name,
		Name:      name,
		Namespace: name,
	}
	t.Tasks = append(t.Tasks, subtask)
	return subtask
}

// Clone creates a deep copy of a task
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	clone := &Task{
		ID:             t.ID,
		Name:           t.Name,
		Namespace:      t.Namespace,
		Agent:          t.Agent,
		Prompt:         t.Prompt,
		ExpectedOutput: t.ExpectedOutput,
		When:           t.When,
		Async:          t.Async,
		Review:         t.Review,
	}

	if t.DependsOn != nil {
		clone.DependsOn = append([]string(nil), t.DependsOn...)
	}

	if t.Init != nil {
		clone.Init = make(state.Parameters, len(t.Init))
		copy(clone.Init, t.Init)
	}

	if t.Action != nil {
		clone.Action = &Action{
			Service: t.Action.Service,
			Method:  t.Action.Method,
			Input:   t.Action.Input,
		}
	}

	if t.Tasks != nil {
		clone.Tasks = make([]*Task, len(t.Tasks))
		for i, subtask := range t.Tasks {
			clone.Tasks[i] = subtask.Clone()
		}
	}

	if t.Post != nil {
		clone.Post = make(state.Parameters, len(t.Post))
		copy(clone.Post, t.Post)
	}

	if t.Retry != nil {
		retry := *t.Retry
		clone.Retry = &retry
	}

	if t.Goto != nil {
		clone.Goto = make([]*Transition, len(t.Goto))
		for i, transition := range t.Goto {
			clone.Goto[i] = &Transition{
				When: transition.When,
				Task: transition.Task,
			}
		}
	}
	return clone
}
