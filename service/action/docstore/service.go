package docstore

import (
	"context"
	"reflect"
	"strings"

	"github.com/caseflow/caseflow/model/types"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

const name = "docstore"

// Service stores and retrieves case documents (wills, deeds, valuations,
// correspondence) through viant/afs, so the backing store can be a local
// directory, memory in tests, or a bucket in production.
type Service struct {
	fs      afs.Service
	baseURL string
}

// Option customises the service.
type Option func(*Service)

// WithBaseURL resolves relative document locations against the given store
// root.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = baseURL }
}

// New creates a new document store service
func New(fs afs.Service, options ...Option) *Service {
	s := &Service{fs: fs}
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

// resolve joins relative locations with the store root.
func (s *Service) resolve(location string) string {
	if s.baseURL == "" || strings.Contains(location, "://") || strings.HasPrefix(location, "/") {
		return location
	}
	return url.Join(s.baseURL, location)
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "list",
			Description: "Lists case documents under the given location.",
			Input:       reflect.TypeOf(&ListInput{}),
			Output:      reflect.TypeOf(&ListOutput{}),
		},
		{
			Name:        "download",
			Description: "Downloads case documents, optionally including their content.",
			Input:       reflect.TypeOf(&DownloadInput{}),
			Output:      reflect.TypeOf(&DownloadOutput{}),
		},
		{
			Name:        "upload",
			Description: "Uploads case documents to the document store.",
			Input:       reflect.TypeOf(&UploadInput{}),
			Output:      reflect.TypeOf(&UploadOutput{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "list":
		return s.list, nil
	case "download":
		return s.download, nil
	case "upload":
		return s.upload, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

// list handles document listing operations
func (s *Service) list(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*ListInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*ListOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.List(ctx, input, output)
}

// download handles document download operations
func (s *Service) download(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*DownloadInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*DownloadOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Download(ctx, input, output)
}

// upload handles document upload operations
func (s *Service) upload(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*UploadInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*UploadOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Upload(ctx, input, output)
}
