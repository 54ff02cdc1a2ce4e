package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// Service implements a filesystem-based execution storage
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[string, execution.Execution] = (*Service)(nil)

// Save persists an execution to the filesystem
func (s *Service) Save(ctx context.Context, anExecution *execution.Execution) error {
	if anExecution == nil {
		return dao.ErrNilEntity
	}
	if anExecution.ID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(anExecution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	filePath := s.executionPath(anExecution.ID)
	err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to save execution to file %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves an execution from the filesystem
func (s *Service) Load(ctx context.Context, id string) (*execution.Execution, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.executionPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if execution exists: %w", err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}

	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution file: %w", err)
	}

	var anExecution execution.Execution
	if err := json.Unmarshal(data, &anExecution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution data: %w", err)
	}
	return &anExecution, nil
}

// Delete removes an execution from the filesystem
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.executionPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if execution exists: %w", err)
	}
	if !exists {
		return dao.ErrNotFound
	}

	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete execution file: %w", err)
	}
	return nil
}

// List returns all executions from the filesystem
func (s *Service) List(ctx context.Context, _ ...*dao.Parameter) ([]*execution.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	var executions []*execution.Execution
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		if !strings.HasSuffix(object.Name(), ".json") {
			continue
		}

		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}

		var anExecution execution.Execution
		if err := json.Unmarshal(data, &anExecution); err != nil {
			continue
		}
		executions = append(executions, &anExecution)
	}
	return executions, nil
}

// executionPath returns the file path for an execution
func (s *Service) executionPath(id string) string {
	return path.Join(s.basePath, fmt.Sprintf("%s.json", id))
}

// New creates a new filesystem execution storage service
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	fs := afs.New()

	ctx := context.Background()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	basePath = url.Normalize(basePath, file.Scheme)

	return &Service{
		basePath: basePath,
		fs:       fs,
	}, nil
}
