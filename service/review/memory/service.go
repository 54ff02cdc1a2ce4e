package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/caseflow/caseflow/service/dao/store"
	"github.com/caseflow/caseflow/service/executor"
	"github.com/caseflow/caseflow/service/messaging"
	qmem "github.com/caseflow/caseflow/service/messaging/memory"
	"github.com/caseflow/caseflow/service/review"
)

type service struct {
	executionDao dao.Service[string, execution.Execution]

	// DAO-backed stores
	reqDAO dao.Service[string, review.Request]
	decDAO dao.Service[string, review.Decision]

	// fan-out queue
	events messaging.Queue[review.Event]

	// owning run store (optional – only needed when we want to update the
	// execution embedded in the run's stack after a review decision).
	runDao dao.Service[string, execution.Run]
}

// key selectors – grab ID field
func reqKey(r *review.Request) string  { return r.ID }
func decKey(d *review.Decision) string { return d.ID }

func New(executionDao dao.Service[string, execution.Execution], options ...Option) review.Service {
	ret := &service{
		executionDao: executionDao,
		reqDAO:       store.NewMemoryStore[string, review.Request](reqKey),
		decDAO:       store.NewMemoryStore[string, review.Decision](decKey),
		events:       qmem.NewQueue[review.Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// RequestReview records a sign-off request for a held task output.  It
// satisfies the executor review handler.
func (s *service) RequestReview(ctx context.Context, run *execution.Run, anExecution *execution.Execution, task *graph.Task) error {
	if anExecution == nil {
		return errors.New("invalid execution")
	}
	r := &review.Request{
		ID:          anExecution.ID,
		ExecutionID: anExecution.ID,
		TaskID:      anExecution.TaskID,
		CreatedAt:   time.Now(),
	}
	if run != nil {
		r.RunID = run.ID
	}
	if task != nil && task.Action != nil {
		r.Action = task.Action.Service + "." + task.Action.Method
	}
	if anExecution.Output != nil {
		if data, err := json.Marshal(anExecution.Output); err == nil {
			r.Output = data
		}
	}
	return s.Submit(ctx, r)
}

/* ---------------- DAO-style operations -------------------------------- */

func (s *service) Submit(ctx context.Context, r *review.Request) error {
	if r == nil {
		return errors.New("invalid request")
	}

	// Ensure the request has a globally unique identifier.  If the caller did
	// not specify one we fall back to ExecutionID (which is unique within a
	// run) – this protects against silent drops caused by empty IDs.
	if r.ID == "" {
		switch {
		case r.ExecutionID != "":
			r.ID = r.ExecutionID
		case r.RunID != "":
			r.ID = fmt.Sprintf("%s/%d", r.RunID, time.Now().UnixNano())
		default:
			r.ID = fmt.Sprintf("anon-%d", time.Now().UnixNano())
		}
	}

	// Idempotent save – overwrite any previous copy to handle re-submissions
	// gracefully.
	_ = s.reqDAO.Save(ctx, r)
	_ = s.events.Publish(ctx, &review.Event{Topic: review.TopicRequestCreated, Data: r})
	return nil
}

func (s *service) ListPending(ctx context.Context) ([]*review.Request, error) {
	all, err := s.reqDAO.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*review.Request, 0, len(all))
	for _, r := range all {
		if d, _ := s.decDAO.Load(ctx, r.ID); d == nil {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (s *service) Decision(ctx context.Context, id string) (*review.Decision, error) {
	if id == "" {
		return nil, errors.New("empty id")
	}
	return s.decDAO.Load(ctx, id)
}

func (s *service) Decide(ctx context.Context, id string,
	ok bool, reason string) (*review.Decision, error) {

	if id == "" {
		return nil, errors.New("empty id")
	}
	request, _ := s.reqDAO.Load(ctx, id)
	if request == nil {
		return nil, fmt.Errorf("request %s not found", id)
	}
	if d, _ := s.decDAO.Load(ctx, id); d != nil {
		return nil, fmt.Errorf("already decided")
	}

	// When the service has been initialised with an execution DAO and the
	// request is linked to a concrete execution, update the execution so the
	// allocator can re-schedule it.  The DAO is optional because the review
	// service can be used standalone; in that case the execution update step
	// is skipped.
	if s.executionDao != nil && request.ExecutionID != "" {
		anExecution, err := s.executionDao.Load(ctx, request.ExecutionID)
		if err != nil {
			return nil, err
		}

		anExecution.Approved = &ok
		anExecution.ReviewReason = reason
		if !ok {
			anExecution.Error = fmt.Sprintf("task %s rejected: %s", request.TaskID, reason)
		} else {
			anExecution.Error = ""
		}
		// Reset execution State so that allocator re-schedules it.
		anExecution.State = execution.TaskStatePending

		if err = s.executionDao.Save(ctx, anExecution); err != nil {
			return nil, err
		}

		// Update the parent run copy so that the allocator sees the change
		// and resumes a run parked on the review.
		if s.runDao != nil {
			if aRun, rErr := s.runDao.Load(ctx, request.RunID); rErr == nil && aRun != nil {
				if ex := aRun.LookupExecution(anExecution.TaskID); ex != nil {
					ex.Approved = anExecution.Approved
					ex.ReviewReason = reason
					ex.State = execution.TaskStatePending
				}
				if aRun.GetState() == execution.StateWaitingReview {
					aRun.SetState(execution.StateRunning)
				}
				_ = s.runDao.Save(ctx, aRun)
			}
		}
	}

	d := &review.Decision{
		ID:        id,
		Approved:  ok,
		Reason:    reason,
		DecidedAt: time.Now(),
	}
	_ = s.decDAO.Save(ctx, d)
	_ = s.events.Publish(ctx, &review.Event{Topic: review.TopicDecisionCreated, Data: d})
	return d, nil
}

/* ---------------- Broker-style ---------------------------------------- */

func (s *service) Queue() messaging.Queue[review.Event] { return s.events }

var _ review.Service = (*service)(nil)
var _ executor.ReviewHandler = (*service)(nil)
