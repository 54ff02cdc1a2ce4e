package caseflow

import (
	"context"
	"fmt"
	"time"

	"github.com/caseflow/caseflow/internal/clock"
	"github.com/caseflow/caseflow/internal/idgen"
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/runtime/execution"
	crewaction "github.com/caseflow/caseflow/service/action/crew"
	"github.com/caseflow/caseflow/service/allocator"
	"github.com/caseflow/caseflow/service/dao"
	crewdao "github.com/caseflow/caseflow/service/dao/crew"
	"github.com/caseflow/caseflow/service/messaging"
	"github.com/caseflow/caseflow/service/processor"
)

// Runtime exposes the crew engine: loading definitions, starting runs and
// scheduling ad-hoc executions.
type Runtime struct {
	crewService      *crewaction.Service
	crewDao          *crewdao.Service
	runDao           dao.Service[string, execution.Run]
	taskExecutionDao dao.Service[string, execution.Execution]
	processor        *processor.Service
	allocator        *allocator.Service
	// queue is the shared execution queue (processor inbound)
	queue messaging.Queue[execution.Execution]
}

// LoadCrew loads a crew definition from the metadata store.
func (r *Runtime) LoadCrew(ctx context.Context, location string) (*model.Crew, error) {
	return r.crewDao.Load(ctx, location)
}

// DecodeYAMLCrew compiles a crew from inline YAML.
func (r *Runtime) DecodeYAMLCrew(data []byte) (*model.Crew, error) {
	return r.crewDao.DecodeYAML(data)
}

// UpsertCrew compiles the supplied YAML and registers the crew under its
// name, replacing any previous version. Passing nil data is an error.
func (r *Runtime) UpsertCrew(data []byte) (*model.Crew, error) {
	if r == nil || r.crewDao == nil {
		return nil, fmt.Errorf("runtime not fully initialised - crewDao missing")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("crew definition is empty")
	}
	return r.crewDao.Upsert(data)
}

// RunFromContext returns the parent run carried by the context, if any.
func (r *Runtime) RunFromContext(ctx context.Context) *execution.Run {
	if parentRun := execution.ContextValue[*execution.Run](ctx); parentRun != nil {
		return parentRun
	}
	return nil
}

// StartRun launches a crew run seeded with the initial session state and
// returns the run together with a wait function for its terminal snapshot.
func (r *Runtime) StartRun(ctx context.Context, crew *model.Crew, initialState map[string]interface{}) (*execution.Run, execution.Wait, error) {
	aRun, err := r.processor.StartRun(ctx, crew, initialState)
	if err != nil {
		return nil, nil, err
	}
	wait := func(ctx context.Context, timeout time.Duration) (*execution.RunOutput, error) {
		output, err := r.crewService.WaitForRun(ctx, aRun.ID, int(timeout.Milliseconds()))
		if err != nil {
			return nil, err
		}
		return (*execution.RunOutput)(output), nil
	}
	return aRun, wait, nil
}

// Start starts the engine workers and allocator.
func (r *Runtime) Start(ctx context.Context) error {
	go r.processor.Start(ctx)
	go r.allocator.Start(ctx)
	return nil
}

// Shutdown stops the engine.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.processor.Shutdown()
	r.allocator.Shutdown()
	return nil
}

// Run returns a run by ID.
func (r *Runtime) Run(ctx context.Context, id string) (*execution.Run, error) {
	return r.runDao.Load(ctx, id)
}

// Runs lists runs, optionally filtered (e.g. by State).
func (r *Runtime) Runs(ctx context.Context, parameter ...*dao.Parameter) ([]*execution.Run, error) {
	return r.runDao.List(ctx, parameter...)
}

// Execution returns a task execution by ID.
func (r *Runtime) Execution(ctx context.Context, id string) (*execution.Execution, error) {
	return r.taskExecutionDao.Load(ctx, id)
}

// SaveExecution persists a task execution.
func (r *Runtime) SaveExecution(ctx context.Context, exec *execution.Execution) error {
	return r.taskExecutionDao.Save(ctx, exec)
}

// QueueExecution publishes an execution to the processor queue.
func (r *Runtime) QueueExecution(ctx context.Context, exec *execution.Execution) error {
	return r.queue.Publish(ctx, exec)
}

// RunTaskOnce executes a single task from the supplied crew and waits for its
// completion. It is intended for quick ad-hoc jobs, debugging and tests where
// launching the entire crew would be unnecessary overhead.
//
// The helper submits an ad-hoc execution to the shared allocator/processor
// queue, therefore semantics (retries, policies, tracing etc.) are identical
// to regular executions. The returned value is whatever the task's action
// populated as its output.
func (r *Runtime) RunTaskOnce(ctx context.Context, crew *model.Crew, taskID string, input interface{}) (interface{}, error) {
	if crew == nil {
		return nil, fmt.Errorf("crew is nil")
	}
	task := crew.AllTasks()[taskID]
	if task == nil {
		return nil, fmt.Errorf("task %q not found in crew %q", taskID, crew.Name)
	}
	if task.Action == nil {
		return nil, fmt.Errorf("task %q has no action defined", taskID)
	}
	exec := &execution.Execution{
		ID:          idgen.New(),
		AdHoc:       true,
		Service:     task.Action.Service,
		Method:      task.Action.Method,
		Input:       input,
		State:       execution.TaskStatePending,
		ScheduledAt: clock.Now(),
	}
	waitFn, err := r.ScheduleExecution(ctx, exec)
	if err != nil {
		return nil, err
	}
	const defaultTimeout = 5 * time.Minute
	exec, err = waitFn(defaultTimeout)
	if err != nil {
		return nil, err
	}
	return exec.Output, nil
}

// ScheduleExecution submits an execution to the engine outside a crew
// pipeline and returns a function that waits for its completion.
func (r *Runtime) ScheduleExecution(ctx context.Context, exec *execution.Execution) (func(duration time.Duration) (*execution.Execution, error), error) {
	if exec.ID == "" {
		exec.ID = idgen.New()
	}
	aRun := r.RunFromContext(ctx)
	if aRun == nil {
		aRun = execution.NewRun(exec.ID, "ad-hoc", &model.Crew{Name: "ad-hoc"}, map[string]interface{}{})
		if err := r.runDao.Save(ctx, aRun); err != nil {
			return nil, err
		}
	}

	// Ad-hoc executions (single task outside a crew): register a synthetic
	// task so that later look-ups succeed.
	if exec.AdHoc {
		if task := exec.AdHocTask(); task != nil {
			aRun.RegisterTask(task)
			exec.TaskID = task.ID
		}
	}

	exec.RunID = aRun.ID
	if err := r.taskExecutionDao.Save(ctx, exec); err != nil {
		return nil, err
	}
	if err := r.queue.Publish(ctx, exec); err != nil {
		return nil, err
	}
	return func(timeout time.Duration) (*execution.Execution, error) {
		return r.WaitForExecution(ctx, exec.ID, timeout)
	}, nil
}

// WaitForExecution polls the execution until it reaches a terminal, paused or
// rejected state, or the timeout elapses.
func (r *Runtime) WaitForExecution(ctx context.Context, execID string, timeout time.Duration) (*execution.Execution, error) {
	deadline := time.Now().Add(timeout)
	for {
		exec, err := r.taskExecutionDao.Load(ctx, execID)
		if err != nil {
			return nil, err
		}
		switch exec.State {
		case execution.TaskStateCompleted,
			execution.TaskStateFailed,
			execution.TaskStateSkipped,
			execution.TaskStateCancelled,
			execution.TaskStatePaused:
			return exec, nil
		case execution.TaskStateWaitForReview:
			// An explicitly rejected task will never proceed - finish early.
			if exec.Approved != nil && !*exec.Approved {
				return exec, nil
			}
		case execution.TaskStatePending:
			// After a positive decision the review service rewinds the State
			// back to pending so the processor can resume work. Only finish
			// early on explicit rejection to avoid an indefinite wait.
			if exec.Approved != nil && !*exec.Approved {
				return exec, nil
			}
		default:
		}
		if time.Now().After(deadline) {
			return exec, fmt.Errorf("timeout waiting for execution %q", execID)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
