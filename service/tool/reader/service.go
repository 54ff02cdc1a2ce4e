package reader

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/service/tool"
	"github.com/viant/afs"
)

const name = "tool/reader"

// Service reads case documents from the document store so agents can quote
// wills, deeds and correspondence. The query is the document location; any
// scheme afs understands works (file, mem, s3, ...).
type Service struct {
	fs      afs.Service
	baseURL string
	// maxBytes caps how much of a document is returned to keep prompts
	// within model limits.
	maxBytes int
}

// Option customises the service.
type Option func(*Service)

// WithBaseURL resolves relative document locations against the given root.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = baseURL }
}

// WithMaxBytes overrides the content cap.
func WithMaxBytes(max int) Option {
	return func(s *Service) {
		if max > 0 {
			s.maxBytes = max
		}
	}
}

// New creates a document reader tool.
func New(fs afs.Service, options ...Option) *Service {
	s := &Service{
		fs:       fs,
		maxBytes: 64 * 1024,
	}
	if s.fs == nil {
		s.fs = afs.New()
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
			Description: "Reads a case document from the document store and returns its text.",
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
		return fmt.Errorf("document location is required")
	}

	location := input.Query
	if s.baseURL != "" && !strings.Contains(location, "://") && !strings.HasPrefix(location, "/") {
		location = strings.TrimRight(s.baseURL, "/") + "/" + location
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", location, err)
	}
	if len(data) > s.maxBytes {
		data = data[:s.maxBytes]
	}
	output.Content = string(data)
	return nil
}
