// Package llm abstracts the language model provider behind a minimal
// single-turn generation interface consumed by the agent service.
package llm
