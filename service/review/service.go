package review

import (
	"context"

	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/messaging"
)

// Service defines the review service interface.  RequestReview matches the
// executor's review handler so a Service instance can be attached to the
// executor directly.
type Service interface {
	RequestReview(ctx context.Context, run *execution.Run, anExecution *execution.Execution, task *graph.Task) error
	Submit(ctx context.Context, r *Request) error
	ListPending(ctx context.Context) ([]*Request, error)
	Decision(ctx context.Context, id string) (*Decision, error)
	Decide(ctx context.Context, id string, approved bool, reason string) (*Decision, error)
	Queue() messaging.Queue[Event]
}
