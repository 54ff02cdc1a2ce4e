// Package meta loads declarative assets (crew definitions, knowledge files)
// from any afs-supported location with ${env.KEY} expansion and caching.
package meta

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

type Service struct {
	fs      afs.Service
	baseURL string
	mu      sync.RWMutex
	cache   map[string][]byte
}

// Download fetches the raw asset bytes, expanding ${env.KEY} references.
// Results are cached per URL.
func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	resolved := s.resolve(URL)

	s.mu.RLock()
	data, ok := s.cache[resolved]
	s.mu.RUnlock()
	if ok {
		return data, nil
	}

	raw, err := s.fs.DownloadWithURL(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", resolved, err)
	}
	data = []byte(expandEnvExpr(string(raw)))

	s.mu.Lock()
	s.cache[resolved] = data
	s.mu.Unlock()
	return data, nil
}

// Load downloads the asset and unmarshals it into target (YAML).
func (s *Service) Load(ctx context.Context, URL string, target interface{}) error {
	data, err := s.Download(ctx, URL)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", URL, err)
	}
	return nil
}

// Evict removes a cached asset so the next Download re-fetches it.
func (s *Service) Evict(URL string) {
	resolved := s.resolve(URL)
	s.mu.Lock()
	delete(s.cache, resolved)
	s.mu.Unlock()
}

func (s *Service) resolve(URL string) string {
	if s.baseURL == "" || strings.Contains(URL, "://") || strings.HasPrefix(URL, "/") {
		return URL
	}
	return url.Join(s.baseURL, URL)
}

// New creates a new meta service; baseURL may be empty for absolute URLs only.
func New(fs afs.Service, baseURL string) *Service {
	return &Service{
		fs:      fs,
		baseURL: baseURL,
		cache:   make(map[string][]byte),
	}
}
