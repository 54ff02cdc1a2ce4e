package openai

import (
	"context"
	"fmt"

	"github.com/caseflow/caseflow/service/llm"
	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultModel balances cost and quality for case analysis work.
	DefaultModel = "gpt-4o-mini"
	// DefaultTemperature keeps legal drafting deterministic.
	DefaultTemperature = 0.1
)

// Client implements llm.Client on top of the OpenAI chat completions API.
type Client struct {
	client      sdk.Client
	opts        []option.RequestOption
	model       string
	temperature float64
}

// Option customises the client.
type Option func(*Client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature overrides the default sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(c *Client) { c.temperature = temperature }
}

// WithBaseURL points the client at an alternative endpoint, e.g. a test
// server or a compatible proxy.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.opts = append(c.opts, option.WithBaseURL(baseURL))
		c.client = sdk.NewClient(c.opts...)
	}
}

// New creates an OpenAI-backed llm.Client.
func New(apiKey string, options ...Option) *Client {
	c := &Client{
		model:       DefaultModel,
		temperature: DefaultTemperature,
		opts:        []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	c.client = sdk.NewClient(c.opts...)
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Generate issues a single chat completion round-trip.
func (c *Client) Generate(ctx context.Context, request *llm.Request) (*llm.Response, error) {
	if request == nil || request.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	model := request.Model
	if model == "" {
		model = c.model
	}
	temperature := c.temperature
	if request.Temperature != nil {
		temperature = *request.Temperature
	}

	var messages []sdk.ChatCompletionMessageParamUnion
	if request.SystemPrompt != "" {
		messages = append(messages, sdk.SystemMessage(request.SystemPrompt))
	}
	messages = append(messages, sdk.UserMessage(request.Prompt))

	completion, err := c.client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(model),
		Messages:    messages,
		Temperature: sdk.Float(temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return &llm.Response{
		Content:          completion.Choices[0].Message.Content,
		Model:            completion.Model,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

var _ llm.Client = (*Client)(nil)
