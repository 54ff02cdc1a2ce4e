package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/service/tool"
)

const (
	name       = "tool/serper"
	defaultURL = "https://google.serper.dev/search"
)

// Service searches the web via the serper.dev Google search API. Agents use
// it to ground legal analysis in current guidance (HMRC thresholds, court
// fees, procedure changes).
type Service struct {
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
}

// Option customises the service.
type Option func(*Service)

// WithEndpoint overrides the search endpoint; tests point it at a local
// server.
func WithEndpoint(endpoint string) Option {
	return func(s *Service) { s.endpoint = endpoint }
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.client = client }
}

// WithMaxResults caps how many organic results are folded into the output.
func WithMaxResults(max int) Option {
	return func(s *Service) { s.maxResults = max }
}

// New creates a serper search tool.
func New(apiKey string, options ...Option) *Service {
	s := &Service{
		apiKey:     apiKey,
		endpoint:   defaultURL,
		maxResults: 5,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Name returns the service name
func (s *Service) Name() string {
	return name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        tool.Method,
			Description: "Searches the web for current UK legal guidance and returns a digest of the top results.",
			Input:       reflect.TypeOf(&tool.Input{}),
			Output:      reflect.TypeOf(&tool.Output{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(methodName string) (types.Executable, error) {
	switch strings.ToLower(methodName) {
	case tool.Method:
		return s.call, nil
	default:
		return nil, types.NewMethodNotFoundError(methodName)
	}
}

type searchRequest struct {
	Q string `json:"q"`
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
}

func (s *Service) call(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*tool.Input)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*tool.Output)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	if input.Query == "" {
		return fmt.Errorf("query is required")
	}
	if s.apiKey == "" {
		return fmt.Errorf("serper api key is not configured")
	}

	body, err := json.Marshal(searchRequest{Q: input.Query})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search request returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode search response: %w", err)
	}

	var builder strings.Builder
	if result.AnswerBox != nil {
		answer := result.AnswerBox.Answer
		if answer == "" {
			answer = result.AnswerBox.Snippet
		}
		if answer != "" {
			builder.WriteString("Answer: " + answer + "\n\n")
		}
	}
	count := 0
	for _, organic := range result.Organic {
		if count >= s.maxResults {
			break
		}
		builder.WriteString(fmt.Sprintf("- %s\n  %s\n  %s\n", organic.Title, organic.Snippet, organic.Link))
		count++
	}
	if builder.Len() == 0 {
		builder.WriteString("No results found for: " + input.Query)
	}
	output.Content = builder.String()
	return nil
}
