package executor

// The executor invokes registered extension actions for scheduled executions.
// It converts and expands inputs/outputs, enforces the run policy, holds
// review-gated task output until a decision is recorded and, after the action
// method runs, calls an optional listener that can observe the data that flew
// through the task.

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/caseflow/caseflow/extension"
	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/policy"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/event"
	"github.com/caseflow/caseflow/tracing"
	"github.com/viant/structology/conv"
)

// Listener is invoked once a task action completes (regardless of whether it returned an error or
// not). Implementations can log, collect metrics or perform any other side-effects they require.
//
// For convenience the listener is defined as a function type rather than an interface; users can
// therefore pass a plain function literal when customising the executor.
type Listener func(task *graph.Task, input, output interface{})

// StdoutListener serialises the task specification, input and output into
// JSON and prints them to standard output. Errors from json.Marshal are
// ignored on purpose – they indicate non-serialisable values.
func StdoutListener(task *graph.Task, input, output interface{}) {
	if task == nil {
		return
	}
	tt, _ := json.Marshal(task)
	fmt.Println(string(tt))
	if task.Action == nil {
		return
	}
	if input != nil {
		in, _ := json.Marshal(input)
		fmt.Println(string(in))
	}
	if output != nil {
		out, _ := json.Marshal(output)
		fmt.Println(string(out))
	}
}

// ReviewHandler records a review request for a task whose output is held for
// sign-off. The review service implements it; the indirection keeps the
// executor decoupled from review storage.
type ReviewHandler interface {
	RequestReview(ctx context.Context, run *execution.Run, anExecution *execution.Execution, task *graph.Task) error
}

// Option is used to customise the executor instance.
type Option func(*service)

// WithListener overrides the listener invoked after every executed task. Passing nil disables the
// callback entirely.
func WithListener(l Listener) Option {
	return func(s *service) {
		s.listener = l
	}
}

// WithReviewHandler attaches the handler notified when a review-gated task
// produced output.
func WithReviewHandler(h ReviewHandler) Option {
	return func(s *service) {
		s.reviews = h
	}
}

// Service represents a task executor.
type Service interface {
	Execute(ctx context.Context, execution *execution.Execution, run *execution.Run) error
}

// service is the concrete implementation of Service.
type service struct {
	actions   *extension.Actions
	converter *conv.Converter
	listener  Listener
	reviews   ReviewHandler
}

// Execute executes a task.
func (s *service) Execute(ctx context.Context, anExecution *execution.Execution, run *execution.Run) error {
	task := run.LookupTask(anExecution.TaskID)
	if task == nil {
		if task = anExecution.AdHocTask(); task != nil {
			run.RegisterTask(task)
		}
	}
	if task == nil {
		return fmt.Errorf("task %s not found in crew", anExecution.TaskID)
	}

	if task.Review && anExecution.Approved != nil && !*anExecution.Approved {
		reason := anExecution.ReviewReason
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Errorf("task %v rejected on review: %s", task.ID, reason)
	}

	// A prior attempt held for review already produced the output; do not
	// re-invoke the action after approval.
	if anExecution.Output == nil {
		if err := s.execute(ctx, anExecution, run, task); err != nil {
			return err
		}
	}

	if task.Review && anExecution.Approved == nil {
		anExecution.State = execution.TaskStateWaitForReview
		if s.reviews != nil {
			if err := s.reviews.RequestReview(ctx, run, anExecution, task); err != nil {
				return fmt.Errorf("failed to request review for task %v: %w", task.ID, err)
			}
		}
		return nil
	}

	// Publish execution event if an event service is attached to the context.
	if value := ctx.Value(execution.EventKey); value != nil {
		service := value.(*event.Service)
		publisher, err := event.PublisherOf[*execution.Execution](service)
		if err == nil {
			eCtx := anExecution.Context("executed", task)
			anEvent := event.NewEvent[*execution.Execution](eCtx, anExecution)
			if err = publisher.Publish(ctx, anEvent); err != nil {
				log.Printf("failed to publish task execution event: %v", err)
			}
		}
	}

	return nil
}

func (s *service) execute(ctx context.Context, anExecution *execution.Execution, run *execution.Run, task *graph.Task) error {
	action := task.Action
	if action == nil {
		// Nothing to execute.
		return nil
	}

	if err := s.checkPolicy(ctx, run, action); err != nil {
		return err
	}

	taskService := s.actions.Lookup(action.Service)
	if taskService == nil {
		return fmt.Errorf("service %v not found", action.Service)
	}
	if action.Method == "" {
		return fmt.Errorf("method not found for service %v", action.Service)
	}

	method, err := taskService.Method(action.Method)
	if err != nil {
		return fmt.Errorf("failed to find method %v for service %v: %w", action.Method, action.Service, err)
	}

	// Prepare a task session.
	session := run.Session.TaskSession(anExecution.Data,
		execution.WithConverter(s.converter),
		execution.WithTypes(s.actions.Types()))

	if err = session.ApplyParameters(task.Init); err != nil {
		return err
	}

	signature := taskService.Methods().Lookup(action.Method)

	output, err := session.TypedValue(signature.Output, map[string]interface{}{})
	if err != nil {
		return err
	}

	taskInput := action.Input
	if taskInput, err = session.Expand(action.Input); err != nil {
		return err
	}

	input, err := session.TypedValue(signature.Input, taskInput)
	anExecution.Input = input
	if err != nil {
		return err
	}

	spanCtx, span := tracing.StartSpan(ctx, action.Service+"."+action.Method, "INTERNAL")
	span.WithAttributes(map[string]string{
		"run.id":  run.ID,
		"task.id": task.ID,
	})

	// Invoke the action method.
	err = method(spanCtx, input, output)
	tracing.EndSpan(span, err)
	if err != nil {
		return err
	}

	// Call the listener (if any).
	if s.listener != nil {
		s.listener(task, input, output)
	}

	anExecution.Output = output
	return nil
}

// checkPolicy applies the run policy (context policy wins) to the action.
func (s *service) checkPolicy(ctx context.Context, run *execution.Run, action *graph.Action) error {
	pol := policy.FromContext(ctx)
	if pol == nil && run.Policy != nil {
		pol = policy.FromConfig(run.Policy)
	}
	if pol == nil {
		return nil
	}

	name := action.Service + "." + action.Method
	if !pol.IsAllowed(name) {
		return fmt.Errorf("action %s blocked by policy", name)
	}
	switch pol.Mode {
	case policy.ModeDeny:
		return fmt.Errorf("action %s denied by policy mode", name)
	case policy.ModeAsk:
		if pol.Ask != nil {
			args, _ := action.Input.(map[string]interface{})
			if !pol.Ask(ctx, name, args, pol) {
				return fmt.Errorf("action %s not approved", name)
			}
		}
	}
	return nil
}

// NewService creates a new executor service instance.
func NewService(actions *extension.Actions, opts ...Option) Service {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true

	s := &service{
		actions:   actions,
		converter: conv.NewConverter(options),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}
