package memory

import (
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/dao"
)

type Option func(*service)

// WithRunDAO allows the review service to update the parent run when a
// decision is made.  The allocator then notices the changed execution state
// and re-schedules it.
func WithRunDAO(dao dao.Service[string, execution.Run]) Option {
	return func(s *service) { s.runDao = dao }
}
