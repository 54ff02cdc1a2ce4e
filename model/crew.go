package model

import (
	"fmt"
	"time"

	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/model/state"
)

// Crew is a named multi-agent pipeline definition. Probate and divorce
// analyses each ship as one crew: a set of agents plus the task graph that
// routes case facts through them.
type Crew struct {

	// Source provides information about the origin of the crew definition
	Source *Source `json:"source,omitempty" yaml:"source,omitempty"`

	// Name is the unique identifier for the crew
	Name string `json:"name" yaml:"name"`

	// Description provides a human-readable description of the crew
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Version specifies the crew definition version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Agents declares the personas tasks can reference by id
	Agents Agents `json:"agents,omitempty" yaml:"agents,omitempty"`

	// Init parameters are applied at the beginning of a run
	Init state.Parameters `json:"init,omitempty" yaml:"init,omitempty"`

	// Pipeline defines the execution graph of the crew
	Pipeline *graph.Task `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`

	// Post parameters are applied at the end of a run
	Post state.Parameters `json:"post,omitempty" yaml:"post,omitempty"`

	// Config contains crew-level configuration
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

type Source struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// NewCrew creates a new crew with the given name
func NewCrew(name string) *Crew {
	return &Crew{Name: name}
}

// WithDescription sets the description of the crew
func (c *Crew) WithDescription(description string) *Crew {
	c.Description = description
	return c
}

// WithAgent declares an agent on the crew
func (c *Crew) WithAgent(agent *Agent) *Crew {
	c.Agents = append(c.Agents, agent)
	return c
}

// WithInit adds an initialization parameter to the crew
func (c *Crew) WithInit(name string, value interface{}) *Crew {
	if c.Init == nil {
		c.Init = make(state.Parameters, 0)
	}
	c.Init.Add(name, value)
	return c
}

// NewTask creates a new task and appends it to the crew pipeline
func (c *Crew) NewTask(name string) *graph.Task {
	if c.Pipeline == nil {
		c.Pipeline = &graph.Task{
			ID: c.Name,
		}
	}

	task := &graph.Task{
		ID:        c.Pipeline.ID + "/" + name,
		Name:      name,
		Namespace: name,
	}

	c.Pipeline.Tasks = append(c.Pipeline.Tasks, task)
	return task
}

// AllTasks returns all tasks in the crew, indexed by both ID and name
func (c *Crew) AllTasks() map[string]*graph.Task {
	tasks := make(map[string]*graph.Task)
	c.traverseTask(c.Pipeline, tasks)
	return tasks
}

func (c *Crew) traverseTask(task *graph.Task, tasks map[string]*graph.Task) {
	if task == nil {
		return
	}
	if _, exists := tasks[task.ID]; !exists {
		tasks[task.ID] = task
		tasks[task.Name] = task
		for _, subtask := range task.Tasks {
			c.traverseTask(subtask, tasks)
		}
	}
}

// Validate performs a best-effort structural validation of the crew. The
// returned slice is empty when the definition is sound; otherwise it contains
// human-readable error descriptions. The function does NOT evaluate any
// expressions, it only verifies static properties.
func (c *Crew) Validate() []error {
	var issues []error

	if c.Pipeline == nil {
		issues = append(issues, fmt.Errorf("pipeline is nil"))
		return issues
	}

	seen := map[string]bool{}

	var walk func(t *graph.Task)
	walk = func(t *graph.Task) {
		if t == nil {
			return
		}
		if seen[t.ID] {
			issues = append(issues, fmt.Errorf("duplicate task id %s", t.ID))
		}
		seen[t.ID] = true
		seen[t.Name] = true

		for _, dep := range t.DependsOn {
			if dep == t.ID || dep == t.Name {
				issues = append(issues, fmt.Errorf("task %s depends on itself", t.ID))
			}
		}
		if t.Agent != "" && c.Agents.Lookup(t.Agent) == nil {
			issues = append(issues, fmt.Errorf("task %s references unknown agent %s", t.ID, t.Agent))
		}
		if t.Agent != "" && t.Action != nil {
			issues = append(issues, fmt.Errorf("task %s declares both agent and action", t.ID))
		}
		for _, st := range t.Tasks {
			walk(st)
		}
	}
	walk(c.Pipeline)

	// After collecting all tasks, verify each dependency / goto target exists.
	var check func(*graph.Task)
	check = func(t *graph.Task) {
		if t == nil {
			return
		}
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				issues = append(issues, fmt.Errorf("task %s depends on unknown task %s", t.ID, dep))
			}
		}
		for _, g := range t.Goto {
			if g != nil && g.Task != "" && !seen[g.Task] {
				issues = append(issues, fmt.Errorf("task %s goto refers to unknown task %s", t.ID, g.Task))
			}
		}
		if t.Retry != nil && t.Retry.Delay != "" {
			if _, err := time.ParseDuration(t.Retry.Delay); err != nil {
				issues = append(issues, fmt.Errorf("task %s has invalid retry delay: %v", t.ID, err))
			}
		}
		for _, st := range t.Tasks {
			check(st)
		}
	}
	check(c.Pipeline)

	// Detect dependency cycles and unreachable tasks via white/grey/black DFS
	// rooted at the pipeline. Edges follow dependsOn plus containment so the
	// root reaches every well-formed task.
	all := c.AllTasks()
	edges := map[string][]string{}
	for id, t := range all {
		edges[id] = append(edges[id], t.DependsOn...)
		for _, st := range t.Tasks {
			edges[id] = append(edges[id], st.ID)
		}
	}

	const (
		white = 0
		grey  = 1
		black = 2
	)
	colour := map[string]int{}

	var dfs func(string) bool // reports a back-edge cycle
	dfs = func(n string) bool {
		switch colour[n] {
		case grey:
			return true
		case black:
			return false
		}
		colour[n] = grey
		for _, nxt := range edges[n] {
			if dfs(nxt) {
				return true
			}
		}
		colour[n] = black
		return false
	}

	if dfs(c.Pipeline.ID) {
		issues = append(issues, fmt.Errorf("crew contains cyclic dependencies"))
	}

	// Tasks the DFS never entered stay white.
	for id, t := range all {
		if id != t.ID {
			continue
		}
		if colour[id] == white {
			issues = append(issues, fmt.Errorf("task %s is unreachable from pipeline", id))
		}
	}

	return issues
}

// Clone creates a deep copy of the crew
func (c *Crew) Clone() *Crew {
	if c == nil {
		return nil
	}

	clone := &Crew{
		Name:        c.Name,
		Description: c.Description,
		Version:     c.Version,
	}

	if c.Agents != nil {
		clone.Agents = make(Agents, len(c.Agents))
		copy(clone.Agents, c.Agents)
	}

	if c.Init != nil {
		clone.Init = make(state.Parameters, len(c.Init))
		copy(clone.Init, c.Init)
	}

	if c.Pipeline != nil {
		clone.Pipeline = c.Pipeline.Clone()
	}

	if c.Post != nil {
		clone.Post = make(state.Parameters, len(c.Post))
		copy(clone.Post, c.Post)
	}

	if c.Config != nil {
		clone.Config = make(map[string]interface{}, len(c.Config))
		for k, v := range c.Config {
			clone.Config[k] = v
		}
	}

	return clone
}
