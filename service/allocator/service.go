package allocator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/runtime/expander"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/caseflow/caseflow/service/event"
	"github.com/caseflow/caseflow/service/messaging"
	"github.com/caseflow/caseflow/tracing"
)

// Config represents allocator service configuration
type Config struct {
	// PollingInterval is how often the allocator checks for runs that need tasks
	PollingInterval time.Duration
}

// DefaultConfig returns the default allocator configuration
func DefaultConfig() Config {
	return Config{
		PollingInterval: 20 * time.Millisecond,
	}
}

// Service allocates tasks to runs
type Service struct {
	config           Config
	runDAO           dao.Service[string, execution.Run]
	taskExecutionDao dao.Service[string, execution.Execution]
	queue            messaging.Queue[execution.Execution]
	shutdownCh       chan struct{}
}

// New creates a new allocator service
func New(runDAO dao.Service[string, execution.Run], taskExecutionDao dao.Service[string, execution.Execution], queue messaging.Queue[execution.Execution], config Config) *Service {
	return &Service{
		config:           config,
		runDAO:           runDAO,
		taskExecutionDao: taskExecutionDao,
		queue:            queue,
		shutdownCh:       make(chan struct{}),
	}
}

// Start begins the task allocation loop
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			if err := s.allocateTasks(ctx); err != nil {
				// Log error but continue
				fmt.Printf("Error allocating tasks: %v\n", err)
			}
		}
	}
}

// handleTransition handles a goto transition by creating a new execution path
func (s *Service) handleTransition(ctx context.Context, runID string, fromTaskID string, toTaskID string) error {
	aRun, err := s.runDAO.Load(ctx, runID)
	if err != nil {
		return err
	}
	parentTask := aRun.LookupTask(fromTaskID)
	nextTask := aRun.LookupTask(toTaskID)
	if nextTask == nil {
		return fmt.Errorf("goto target %s not found in crew", toTaskID)
	}
	nextExecution := execution.NewExecution(runID, parentTask, nextTask)
	aRun.Push(nextExecution)
	// Save the run with the updated plan
	return s.runDAO.Save(ctx, aRun)
	// Let the allocator schedule the next task
}

// allocateTasks finds runs that need tasks and allocates them
func (s *Service) allocateTasks(ctx context.Context) error {
	// Runs waiting on a review decision are included: once the decision lands
	// the held execution flips back to pending and needs rescheduling.
	runs, err := s.runDAO.List(ctx, dao.NewParameter("State", execution.StatePending, execution.StateRunning, execution.StateWaitingReview))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	for _, aRun := range runs {
		switch aRun.GetState() {
		case execution.StateRunning, execution.StateWaitingReview:
		default:
			continue
		}

		if err := s.scheduleNextTasks(ctx, aRun); err != nil {
			// Log but continue with other runs
			fmt.Printf("Error scheduling tasks for run %s: %v\n", aRun.ID, err)
			continue
		}
	}

	return nil
}

// scheduleNextTasks allocates the next ready tasks for a run
func (s *Service) scheduleNextTasks(ctx context.Context, aRun *execution.Run) error {
	// Check if there are tasks on the stack to execute
	if len(aRun.Stack) == 0 {
		// No more tasks to execute, check if run is complete
		if aRun.GetState() == execution.StateRunning {
			if len(aRun.Errors) > 0 {
				aRun.SetState(execution.StateFailed)
			} else {
				aRun.SetState(execution.StateCompleted)
			}
			// End run-level span if present
			if aRun.Span != nil {
				var endErr error
				if aRun.GetState() == execution.StateFailed {
					endErr = fmt.Errorf("run failed with %d errors", len(aRun.Errors))
				}
				tracing.EndSpan(aRun.Span, endErr)
				aRun.Span = nil
			}
			return s.runDAO.Save(ctx, aRun)
		}
		return nil
	}

	// Get the top execution from the stack
	anExecution := aRun.Peek()
	var err error
	currentTask := aRun.LookupTask(anExecution.TaskID)
	switch anExecution.State {
	case execution.TaskStatePending:
		done, err := s.handlePendingTask(ctx, aRun, currentTask, anExecution)
		if err != nil {
			return s.handleExecutionError(ctx, aRun, anExecution, err)
		}

		if done {
			return nil
		}
	case execution.TaskStateRunning, execution.TaskStateScheduled, execution.TaskStatePaused, execution.TaskStateWaitForReview:
		scheduleSubTasks, err := s.handleRunningTask(ctx, aRun, anExecution)
		if !scheduleSubTasks || err != nil {
			return err
		}
	}

	dependencyState, err := s.ensureDependencies(ctx, aRun, anExecution)
	if err != nil || dependencyState == execution.TaskStateRunning {
		return err
	}

	switch dependencyState {
	case execution.TaskStateFailed:
		return s.handleProcessedExecution(ctx, aRun, anExecution, dependencyState)
	}

	switch anExecution.State {
	case execution.TaskStateWaitForDependencies, execution.TaskStatePending:
		if currentTask.Action != nil {
			if err := s.updateExecutionState(ctx, aRun, anExecution, execution.TaskStateScheduled); err != nil {
				return fmt.Errorf("failed to update execution state: %w", err)
			}
			return nil
		}
	}

	status, err := s.ensureSubTasks(ctx, aRun, anExecution)
	if err != nil {
		return err
	}
	switch status {
	case execution.TaskStateRunning:
		return nil
	default:
		return s.handleProcessedExecution(ctx, aRun, anExecution, status)
	}
}

func (s *Service) handlePendingTask(ctx context.Context, aRun *execution.Run, currentTask *graph.Task, anExecution *execution.Execution) (bool, error) {
	var err error
	// Evaluate conditional execution
	if currentTask.When != "" {
		canRun, err := evaluateCondition(currentTask.When, aRun, currentTask, anExecution, true)
		if err != nil {
			return true, err
		}
		if !canRun {
			anExecution.Skip()
			return true, s.handleProcessedExecution(ctx, aRun, anExecution, anExecution.State)
		}
	}

	// Preserve existing Data and apply Init params
	if anExecution.Data == nil {
		anExecution.Data = make(map[string]interface{})
	}
	for _, parameter := range currentTask.Init {
		if _, exists := anExecution.Data[parameter.Name]; !exists {
			if val, expErr := aRun.Session.Expand(parameter.Value); expErr != nil {
				return true, expErr
			} else {
				anExecution.Data[parameter.Name] = val
			}
		}
	}
	return false, err
}

func (s *Service) handleRunningTask(ctx context.Context, aRun *execution.Run, anExecution *execution.Execution) (bool, error) {
	runningExecution, err := s.taskExecutionDao.Load(ctx, anExecution.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load running execution: %w", err)
	}
	if runningExecution.State == anExecution.State {
		// A retried execution sits in scheduled state until its backoff delay
		// elapses; republish it once due.
		if anExecution.State == execution.TaskStateScheduled && anExecution.RunAfter != nil && time.Now().After(*anExecution.RunAfter) {
			anExecution.RunAfter = nil
			runningExecution.RunAfter = nil
			return false, s.updateExecutionState(ctx, aRun, anExecution, execution.TaskStateScheduled)
		}
		return false, nil
	}
	anExecution.Merge(runningExecution)
	switch runningExecution.State {
	case execution.TaskStateRunning, execution.TaskStatePaused:
		return false, nil
	case execution.TaskStateWaitForReview:
		// Park the run until a decision arrives.
		if aRun.GetState() != execution.StateWaitingReview {
			aRun.SetState(execution.StateWaitingReview)
			return false, s.runDAO.Save(ctx, aRun)
		}
		return false, nil
	case execution.TaskStatePending:
		// A review decision re-opened the task; resume the run and reschedule.
		if aRun.GetState() == execution.StateWaitingReview {
			aRun.SetState(execution.StateRunning)
		}
		return false, s.updateExecutionState(ctx, aRun, anExecution, execution.TaskStateScheduled)
	case execution.TaskStateCompleted:
	case execution.TaskStateFailed, execution.TaskStateSkipped:
		return false, s.handleProcessedExecution(ctx, aRun, anExecution, runningExecution.State)
	}
	return true, nil
}

func (s *Service) ensureDependencies(ctx context.Context, aRun *execution.Run, anExecution *execution.Execution) (execution.TaskState, error) {
	completed := 0
	currentTask := aRun.LookupTask(anExecution.TaskID)

	var scheduled []*execution.Execution
	// Check if all dependencies are satisfied
outer:
	for _, depID := range anExecution.DependsOn {
		task := aRun.LookupTask(depID)
		if task == nil {
			return execution.TaskStateFailed, fmt.Errorf("dependency %s of task %s not found in crew", depID, anExecution.TaskID)
		}
		status := anExecution.Dependencies[task.ID]
		switch status {
		case execution.TaskStatePending:
			scheduled = append(scheduled, execution.NewExecution(aRun.ID, currentTask, task))
			anExecution.Dependencies[task.ID] = execution.TaskStateScheduled
			break outer
		case execution.TaskStateCompleted, execution.TaskStateSkipped:
			completed++
		case execution.TaskStateFailed:
			return execution.TaskStateFailed, nil
		}
	}
	if len(scheduled) > 0 {
		aRun.Push(scheduled...)
		if err := s.updateExecutionState(ctx, aRun, anExecution, execution.TaskStateWaitForDependencies); err != nil {
			return execution.TaskStateFailed, fmt.Errorf("failed to update execution state: %w", err)
		}
	}
	dependenciesMet := len(anExecution.DependsOn) == completed
	if dependenciesMet {
		return execution.TaskStateCompleted, nil
	}
	return execution.TaskStateRunning, nil
}

func (s *Service) ensureSubTasks(ctx context.Context, aRun *execution.Run, anExecution *execution.Execution) (execution.TaskState, error) {
	completed := 0
	currentTask := aRun.LookupTask(anExecution.TaskID)

	async := false

	if anExecution.ParentTaskID != "" {
		if parent := aRun.LookupTask(anExecution.ParentTaskID); parent != nil {
			async = parent.Async
		}
	}

	var scheduled []*execution.Execution
	// Check if all subtasks have been processed
outer:
	for i := range currentTask.Tasks {
		task := currentTask.Tasks[i]
		status := anExecution.Dependencies[task.ID]
		switch status {
		case execution.TaskStatePending:
			scheduled = append(scheduled, execution.NewExecution(aRun.ID, currentTask, task))
			anExecution.Dependencies[task.ID] = execution.TaskStateScheduled
			if !async {
				break outer
			}
		case execution.TaskStateFailed:
			return execution.TaskStateFailed, nil
		case execution.TaskStateCompleted, execution.TaskStateSkipped:
			completed++
		}
	}
	if len(scheduled) > 0 {
		aRun.Push(scheduled...)
		if err := s.updateExecutionState(ctx, aRun, anExecution, execution.TaskStateWaitForSubTasks); err != nil {
			return execution.TaskStateFailed, fmt.Errorf("failed to update execution state: %w", err)
		}
	}
	subTaskCompleted := len(currentTask.Tasks) == completed
	if subTaskCompleted {
		return execution.TaskStateCompleted, nil
	}
	return execution.TaskStateRunning, nil
}

func (s *Service) updateExecutionState(ctx context.Context, aRun *execution.Run, anExecution *execution.Execution, state execution.TaskState) error {
	if state == execution.TaskStateScheduled {
		anExecution.Schedule()
	}
	anExecution.State = state
	if err := s.taskExecutionDao.Save(ctx, anExecution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	err := s.runDAO.Save(ctx, aRun)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	switch state {
	case execution.TaskStateScheduled:
		if err = s.publishTaskExecution(ctx, aRun, anExecution); err != nil {
			return fmt.Errorf("failed to publish task execution: %w", err)
		}
	}
	return nil
}

// publishTaskExecution creates and publishes an execution for a single task
func (s *Service) publishTaskExecution(ctx context.Context, aRun *execution.Run, anExecution *execution.Execution) error {
	if value := ctx.Value(execution.EventKey); value != nil {
		service := value.(*event.Service)
		publisher, err := event.PublisherOf[*execution.Execution](service)
		if err == nil {
			task := aRun.LookupTask(anExecution.TaskID)
			eCtx := anExecution.Context("scheduled", task)
			anEvent := event.NewEvent[*execution.Execution](eCtx, anExecution)
			if err = publisher.Publish(ctx, anEvent); err != nil {
				log.Printf("failed to publish task execution event: %v", err)
			}
		}
	}
	return s.queue.Publish(ctx, anExecution)
}

// TaskCompleted marks a task as completed for a run
func (s *Service) TaskCompleted(ctx context.Context, runID string, taskID string) error {
	aRun, err := s.runDAO.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	anExecution := aRun.LookupExecution(taskID)
	if anExecution == nil {
		return fmt.Errorf("execution for task %s not found in run %s", taskID, runID)
	}
	parentExecution := aRun.LookupExecution(anExecution.ParentTaskID)
	if parentExecution != nil {
		parentExecution.Dependencies[taskID] = execution.TaskStateCompleted
	}
	if err := s.runDAO.Save(ctx, aRun); err != nil {
		return fmt.Errorf("failed to save run %s: %w", runID, err)
	}

	// Immediately try to schedule more tasks
	return s.scheduleNextTasks(ctx, aRun)
}

// Shutdown stops the allocator service
func (s *Service) Shutdown() {
	close(s.shutdownCh)
}

func (s *Service) handleProcessedExecution(ctx context.Context, aRun *execution.Run, anExecution *execution.Execution, state execution.TaskState) error {
	currentTask := aRun.LookupTask(anExecution.TaskID)

	if state == execution.TaskStateCompleted {
		output := anExecution.Output
		var outputMap = make(map[string]interface{})
		if data, err := json.Marshal(anExecution.Output); err == nil {
			if err = json.Unmarshal(data, &outputMap); err == nil {
				output = outputMap
			}
		}

		aRun.Session.Set(currentTask.Namespace, output)
		err := s.handleTaskDone(currentTask, aRun, anExecution, outputMap)
		if err != nil {
			return err
		}
	}
	if anExecution.Error != "" {
		aRun.Errors[currentTask.Namespace] = anExecution.Error
	}
	parent := aRun.LookupExecution(anExecution.ParentTaskID)
	if parent != nil {
		parent.Dependencies[anExecution.TaskID] = state
	}
	aRun.Remove(anExecution)
	err := s.runDAO.Save(ctx, aRun)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if anExecution.GoToTask != "" {
		return s.handleTransition(ctx, aRun.ID, anExecution.TaskID, anExecution.GoToTask)
	}
	return nil
}

func (s *Service) handleTaskDone(currentTask *graph.Task, aRun *execution.Run, anExecution *execution.Execution, outputMap map[string]interface{}) error {

	source := aRun.Session.Clone()
	for k, v := range outputMap {
		source.Set(k, v)
	}

	for _, parameter := range currentTask.Post {
		evaluated, err := expander.Expand(parameter.Value, source.State)
		if err == nil {
			name := parameter.Name
			isAppend := strings.HasSuffix(name, "[]")
			if isAppend {
				aRun.Session.Append(strings.TrimRight(name, "[]"), evaluated)
				continue
			}
			aRun.Session.Set(parameter.Name, evaluated)
		}
	}
	if len(currentTask.Goto) > 0 {
		// Evaluate transitions in order
		for _, transition := range currentTask.Goto {
			conditionMet, err := evaluateCondition(transition.When, aRun, currentTask, anExecution, false)
			if err != nil {
				return err
			}
			if conditionMet && transition.Task != "" {
				anExecution.GoToTask = transition.Task
				break
			}
		}
	}
	return nil

}

func (s *Service) handleExecutionError(ctx context.Context, aRun *execution.Run, anExecution *execution.Execution, err error) error {
	anExecution.Error += err.Error()
	return s.handleProcessedExecution(ctx, aRun, anExecution, execution.TaskStateFailed)
}
