package model

// Agent describes a single specialist persona within a crew. The role, goal
// and backstory feed the system prompt; Tools names the action services the
// agent may consult while working on a task.
type Agent struct {
	ID        string   `json:"id" yaml:"id"`
	Role      string   `json:"role" yaml:"role"`
	Goal      string   `json:"goal,omitempty" yaml:"goal,omitempty"`
	Backstory string   `json:"backstory,omitempty" yaml:"backstory,omitempty"`
	Tools     []string `json:"tools,omitempty" yaml:"tools,omitempty"`

	// Model overrides the engine default model for this agent only.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Temperature overrides the engine default sampling temperature when
	// non-nil.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// Agents is an identifier-indexed collection of crew agents.
type Agents []*Agent

// Lookup returns the agent with the given id, or nil.
func (a Agents) Lookup(id string) *Agent {
	for _, agent := range a {
		if agent.ID == id {
			return agent
		}
	}
	return nil
}
