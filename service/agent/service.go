package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sort"
	"strings"

	"github.com/caseflow/caseflow/extension"
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/policy"
	"github.com/caseflow/caseflow/service/llm"
	"github.com/caseflow/caseflow/service/tool"
)

const name = "agent"

// Service runs a single crew agent turn: it assembles the system prompt from
// the agent persona, folds in upstream task outputs and tool research, and
// asks the language model for the deliverable.
type Service struct {
	llm     llm.Client
	actions *extension.Actions
}

// Input is the task-compiled request for one agent turn.
type Input struct {
	Agent          *model.Agent           `json:"agent"`
	Prompt         string                 `json:"prompt"`
	ExpectedOutput string                 `json:"expectedOutput,omitempty"`
	// Context carries outputs of the tasks this one depends on, keyed by
	// task name.
	Context map[string]interface{} `json:"context,omitempty"`
}

// Output is the agent deliverable.
type Output struct {
	Content          string `json:"content"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"promptTokens,omitempty"`
	CompletionTokens int    `json:"completionTokens,omitempty"`
}

// New creates an agent service.
func New(client llm.Client, actions *extension.Actions) *Service {
	return &Service{llm: client, actions: actions}
}

// Name returns the service name
func (s *Service) Name() string {
	return name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "run",
			Description: "Runs one agent turn: persona + task prompt + tool research through the language model.",
			Input:       reflect.TypeOf(&Input{}),
			Output:      reflect.TypeOf(&Output{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(methodName string) (types.Executable, error) {
	switch strings.ToLower(methodName) {
	case "run":
		return s.run, nil
	default:
		return nil, types.NewMethodNotFoundError(methodName)
	}
}

func (s *Service) run(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*Input)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*Output)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	if input.Agent == nil {
		return fmt.Errorf("agent is required")
	}
	if input.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if s.llm == nil {
		return fmt.Errorf("llm client is not configured")
	}

	prompt := input.Prompt
	if section := contextSection(input.Context); section != "" {
		prompt += "\n\n" + section
	}
	if research := s.gatherResearch(ctx, input.Agent, input.Prompt); research != "" {
		prompt += "\n\n" + research
	}

	request := &llm.Request{
		Model:        input.Agent.Model,
		Temperature:  input.Agent.Temperature,
		SystemPrompt: systemPrompt(input.Agent, input.ExpectedOutput),
		Prompt:       prompt,
	}
	response, err := s.llm.Generate(ctx, request)
	if err != nil {
		return fmt.Errorf("agent %s failed: %w", input.Agent.ID, err)
	}

	output.Content = response.Content
	output.Model = response.Model
	output.PromptTokens = response.PromptTokens
	output.CompletionTokens = response.CompletionTokens
	return nil
}

// systemPrompt renders the agent persona.
func systemPrompt(anAgent *model.Agent, expectedOutput string) string {
	var builder strings.Builder
	builder.WriteString("You are " + anAgent.Role + ".")
	if anAgent.Goal != "" {
		builder.WriteString("\nYour goal: " + anAgent.Goal)
	}
	if anAgent.Backstory != "" {
		builder.WriteString("\nBackground: " + anAgent.Backstory)
	}
	if expectedOutput != "" {
		builder.WriteString("\n\nExpected output: " + expectedOutput)
	}
	return builder.String()
}

// contextSection renders upstream task outputs in a stable order.
func contextSection(taskContext map[string]interface{}) string {
	if len(taskContext) == 0 {
		return ""
	}
	keys := make([]string, 0, len(taskContext))
	for key := range taskContext {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString("Findings from completed tasks:")
	for _, key := range keys {
		builder.WriteString("\n\n## " + key + "\n" + stringify(taskContext[key]))
	}
	return builder.String()
}

func stringify(value interface{}) string {
	switch actual := value.(type) {
	case nil:
		return ""
	case string:
		return actual
	case map[string]interface{}:
		// An upstream agent output: surface its content field directly.
		if content, ok := actual["content"].(string); ok && content != "" {
			return content
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

// gatherResearch consults the agent's tools with the task prompt and folds
// the results into a research section. Tool failures degrade to a log line
// rather than failing the turn.
func (s *Service) gatherResearch(ctx context.Context, anAgent *model.Agent, query string) string {
	if len(anAgent.Tools) == 0 || s.actions == nil {
		return ""
	}
	pol := policy.FromContext(ctx)

	var builder strings.Builder
	for _, toolName := range anAgent.Tools {
		serviceName := toolName
		if !strings.Contains(serviceName, "/") {
			serviceName = tool.Prefix + serviceName
		}
		if pol != nil && !pol.IsAllowed(serviceName+"."+tool.Method) {
			continue
		}
		toolService := s.actions.Lookup(serviceName)
		if toolService == nil {
			log.Printf("agent %s: tool %s is not registered", anAgent.ID, serviceName)
			continue
		}
		method, err := toolService.Method(tool.Method)
		if err != nil {
			log.Printf("agent %s: tool %s: %v", anAgent.ID, serviceName, err)
			continue
		}
		toolOutput := &tool.Output{}
		if err := method(ctx, &tool.Input{Query: query}, toolOutput); err != nil {
			log.Printf("agent %s: tool %s failed: %v", anAgent.ID, serviceName, err)
			continue
		}
		if toolOutput.Content == "" {
			continue
		}
		if builder.Len() == 0 {
			builder.WriteString("Research:")
		}
		builder.WriteString("\n\n### " + serviceName + "\n" + toolOutput.Content)
	}
	return builder.String()
}
