package tool

// Input is the uniform request every research tool accepts.
type Input struct {
	Query string `json:"query"`
}

// Output is the uniform tool response consumed by the agent service.
type Output struct {
	Content string `json:"content"`
}

// Method is the single method name every tool service exposes.
const Method = "call"

// Prefix namespaces tool services in the action registry, e.g. tool/serper.
const Prefix = "tool/"
