// Package crew loads declarative crew definitions (YAML) and compiles them
// into executable model.Crew pipelines. Agent tasks are bound to the agent
// action service; each task's upstream outputs are passed as context
// references resolved from the run session.
package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/model/state"
	"github.com/caseflow/caseflow/service/meta"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Definition mirrors the on-disk crew YAML document.
type Definition struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Version     string           `yaml:"version,omitempty"`
	Agents      model.Agents     `yaml:"agents,omitempty"`
	Init        state.Parameters `yaml:"init,omitempty"`
	Post        state.Parameters `yaml:"post,omitempty"`
	Tasks       []*TaskDef       `yaml:"tasks"`
}

// TaskDef declares a single pipeline task. Agent tasks set Agent+Prompt;
// generic tasks set Service/Method/Input directly.
type TaskDef struct {
	ID             string                 `yaml:"id"`
	Name           string                 `yaml:"name,omitempty"`
	Agent          string                 `yaml:"agent,omitempty"`
	Prompt         string                 `yaml:"prompt,omitempty"`
	ExpectedOutput string                 `yaml:"expectedOutput,omitempty"`
	When           string                 `yaml:"when,omitempty"`
	DependsOn      []string               `yaml:"dependsOn,omitempty"`
	Service        string                 `yaml:"service,omitempty"`
	Method         string                 `yaml:"method,omitempty"`
	Input          map[string]interface{} `yaml:"input,omitempty"`
	Async          bool                   `yaml:"async,omitempty"`
	Review         bool                   `yaml:"review,omitempty"`
	Retry          *graph.Retry           `yaml:"retry,omitempty"`
	Goto           []*graph.Transition    `yaml:"goto,omitempty"`
}

type Service struct {
	metaService *meta.Service
	mu          sync.RWMutex
	crews       map[string]*model.Crew
}

// DecodeYAML decodes and compiles a crew from YAML
func (s *Service) DecodeYAML(encoded []byte) (*model.Crew, error) {
	var definition Definition
	if err := yaml.Unmarshal(encoded, &definition); err != nil {
		return nil, fmt.Errorf("failed to decode crew: %w", err)
	}
	return s.compile("", &definition)
}

// Load loads a crew definition from YAML at the specified URL
func (s *Service) Load(ctx context.Context, URL string) (*model.Crew, error) {
	ext := filepath.Ext(URL)
	if ext == "" {
		URL += ".yaml"
	}
	var definition Definition
	if err := s.metaService.Load(ctx, URL, &definition); err != nil {
		return nil, fmt.Errorf("failed to load crew from %s: %w", URL, err)
	}
	return s.compile(URL, &definition)
}

// Upsert compiles the supplied YAML and registers the crew under its name so
// that Lookup can resolve it without touching storage. Embedded definitions
// are installed this way at start-up.
func (s *Service) Upsert(encoded []byte) (*model.Crew, error) {
	crew, err := s.DecodeYAML(encoded)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.crews[crew.Name] = crew
	s.mu.Unlock()
	return crew, nil
}

// Lookup returns a previously loaded or upserted crew by name, or nil.
func (s *Service) Lookup(name string) *model.Crew {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crews[name]
}

// Names lists the registered crew names.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.crews))
	for name := range s.crews {
		out = append(out, name)
	}
	return out
}

func (s *Service) compile(URL string, definition *Definition) (*model.Crew, error) {
	crew := &model.Crew{
		Name:        definition.Name,
		Description: definition.Description,
		Version:     definition.Version,
		Agents:      definition.Agents,
		Init:        definition.Init,
		Post:        definition.Post,
	}
	if URL != "" {
		crew.Source = &model.Source{URL: URL}
	}
	if crew.Name == "" {
		crew.Name = crewNameFromURL(URL)
	}
	if crew.Name == "" {
		return nil, fmt.Errorf("crew name is required")
	}
	if len(definition.Tasks) == 0 {
		return nil, fmt.Errorf("crew %s declares no tasks", crew.Name)
	}

	crew.Pipeline = &graph.Task{
		ID:        crew.Name,
		Name:      crew.Name,
		Namespace: crew.Name,
	}
	for _, taskDef := range definition.Tasks {
		task, err := s.compileTask(crew, taskDef)
		if err != nil {
			return nil, err
		}
		crew.Pipeline.Tasks = append(crew.Pipeline.Tasks, task)
	}

	if issues := crew.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("invalid crew %s: %w", crew.Name, issues[0])
	}

	// Bind agent tasks to the agent action once the definition validated.
	for _, task := range crew.Pipeline.Tasks {
		bindAgentAction(crew, task)
	}
	return crew, nil
}

func (s *Service) compileTask(crew *model.Crew, taskDef *TaskDef) (*graph.Task, error) {
	if taskDef.ID == "" {
		return nil, fmt.Errorf("crew %s has a task without id", crew.Name)
	}
	name := taskDef.Name
	if name == "" {
		name = taskDef.ID
	}
	task := &graph.Task{
		ID:             crew.Name + "/" + taskDef.ID,
		Name:           taskDef.ID,
		Namespace:      name,
		Agent:          taskDef.Agent,
		Prompt:         taskDef.Prompt,
		ExpectedOutput: taskDef.ExpectedOutput,
		When:           taskDef.When,
		DependsOn:      taskDef.DependsOn,
		Async:          taskDef.Async,
		Review:         taskDef.Review,
		Retry:          taskDef.Retry,
		Goto:           taskDef.Goto,
	}
	if taskDef.Service != "" {
		task.Action = &graph.Action{
			Service: taskDef.Service,
			Method:  taskDef.Method,
			Input:   taskDef.Input,
		}
	}
	if task.Agent == "" && task.Action == nil {
		return nil, fmt.Errorf("task %s declares neither agent nor service", taskDef.ID)
	}
	return task, nil
}

// bindAgentAction compiles an agent task into an agent.run action. Upstream
// task outputs are wired in as $namespace references that the session expands
// just before execution.
func bindAgentAction(crew *model.Crew, task *graph.Task) {
	if task == nil {
		return
	}
	if task.Agent != "" && task.Action == nil {
		input := map[string]interface{}{
			"agent":  agentAsMap(crew.Agents.Lookup(task.Agent)),
			"prompt": task.Prompt,
		}
		if task.ExpectedOutput != "" {
			input["expectedOutput"] = task.ExpectedOutput
		}
		if len(task.DependsOn) > 0 {
			context := make(map[string]interface{}, len(task.DependsOn))
			for _, dep := range task.DependsOn {
				context[dep] = "$" + dep
			}
			input["context"] = context
		}
		task.Action = &graph.Action{
			Service: "agent",
			Method:  "run",
			Input:   input,
		}
	}
	for _, subTask := range task.Tasks {
		bindAgentAction(crew, subTask)
	}
}

// agentAsMap flattens the agent into the generic map shape action inputs are
// made of; the executor's typed-input conversion drops struct pointers that
// are not map-encoded.
func agentAsMap(agent *model.Agent) map[string]interface{} {
	if agent == nil {
		return nil
	}
	data, err := json.Marshal(agent)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// crewNameFromURL extracts crew name from URL (file name without extension)
func crewNameFromURL(URL string) string {
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// New creates a new crew definition service
func New(opts ...Option) *Service {
	ret := &Service{
		metaService: meta.New(afs.New(), ""),
		crews:       make(map[string]*model.Crew),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}
