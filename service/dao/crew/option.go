package crew

import (
	"github.com/caseflow/caseflow/service/meta"
)

type Option func(*Service)

// WithMetaService overrides the default asset loader, e.g. to point at a
// custom base location for crew definitions.
func WithMetaService(metaService *meta.Service) Option {
	return func(s *Service) {
		s.metaService = metaService
	}
}
