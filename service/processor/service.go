package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/policy"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/caseflow/caseflow/service/executor"
	"github.com/caseflow/caseflow/service/messaging"
	"github.com/caseflow/caseflow/tracing"
	"github.com/google/uuid"
)

// Config represents processor service configuration
type Config struct {
	// WorkerCount is the number of workers processing tasks
	WorkerCount int

	// MaxTaskRetries is the maximum number of retries for a task
	MaxTaskRetries int

	// RetryDelay is the delay between task retry attempts
	RetryDelay time.Duration
}

// DefaultConfig returns the default processor configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount:    5,
		MaxTaskRetries: 1,
		RetryDelay:     3 * time.Second,
	}
}

// Service consumes scheduled executions and drives them through the executor
type Service struct {
	config           Config
	runDAO           dao.Service[string, execution.Run]
	taskExecutionDao dao.Service[string, execution.Execution]

	queue    messaging.Queue[execution.Execution]
	executor executor.Service

	sessListeners []execution.StateListener
	whenListeners []execution.WhenListener

	// Track active executions
	workers    []*worker
	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// shouldRetry returns (retry?, delay)
func (s *Service) shouldRetry(cfg *graph.Retry, attempts int) (bool, time.Duration) {
	// Use defaults when cfg nil
	if cfg == nil {
		if attempts >= s.config.MaxTaskRetries {
			return false, 0
		}
		return true, s.config.RetryDelay
	}

	if strings.ToLower(cfg.Type) == "none" {
		return false, 0
	}

	max := cfg.MaxRetries
	if max == 0 {
		max = s.config.MaxTaskRetries
	}
	if attempts >= max {
		return false, 0
	}

	// Parse base delay
	baseDelay := s.config.RetryDelay
	if cfg.Delay != "" {
		if d, err := time.ParseDuration(cfg.Delay); err == nil {
			baseDelay = d
		}
	}

	switch strings.ToLower(cfg.Type) {
	case "exponential":
		mult := cfg.Multiplier
		if mult <= 1 {
			mult = 2
		}
		delay := float64(baseDelay) * math.Pow(mult, float64(attempts))
		maxDelay := cfg.MaxDelay
		if maxDelay != "" {
			if md, err := time.ParseDuration(maxDelay); err == nil {
				if time.Duration(delay) > md {
					delay = float64(md)
				}
			}
		}
		return true, time.Duration(delay)
	default: // fixed
		return true, baseDelay
	}
}

// New creates a new processor service
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if s.queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if s.runDAO == nil {
		return nil, fmt.Errorf("runDAO service is required")
	}
	if s.taskExecutionDao == nil {
		return nil, fmt.Errorf("taskExecutionDao service is required")
	}

	return s, nil
}

// Start begins the task execution service
func (s *Service) Start(ctx context.Context) error {
	// Start worker goroutines
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		worker := &worker{
			id:       i,
			service:  s,
			ctx:      workerCtx,
			cancelFn: cancel,
		}
		s.workers = append(s.workers, worker)
		s.workerWg.Add(1)
		go worker.run()
	}

	return nil
}

// run processes messages from the queue
func (w *worker) run() {
	defer w.service.workerWg.Done()

	for {
		// Block until we either get a message or the context is cancelled.
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			// Context was cancelled – graceful shutdown.
			if errors.Is(err, context.Canceled) {
				return
			}
			// Transient error (e.g. queue closed); back off a bit.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if msg == nil {
			continue
		}

		// Process the message in-line; if you want maximum parallelism spawn a
		// goroutine here, but be mindful of ordering requirements.
		if pErr := w.service.processMessage(w.ctx, msg); pErr != nil {
			log.Printf("worker %d: failed to process message: %v", w.id, pErr)
		}
	}
}

// StartRun begins execution of a crew over the supplied initial state
func (s *Service) StartRun(ctx context.Context, crew *model.Crew, init map[string]interface{}) (aRun *execution.Run, err error) {
	if crew == nil {
		return nil, fmt.Errorf("crew cannot be nil")
	}
	// start tracing span for run start
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("processor.StartRun %s", crew.Name), "INTERNAL")
	defer tracing.EndSpan(span, err)
	span.WithAttributes(map[string]string{"crew.name": crew.Name})

	// Generate a unique run ID
	runID := crew.Name + "/" + uuid.New().String()
	span.WithAttributes(map[string]string{"run.id": runID})

	// Create the run
	aRun = execution.NewRun(runID, crew.Name, crew, init)
	if len(s.sessListeners) > 0 {
		aRun.Session.RegisterListeners(s.sessListeners...)
	}
	if len(s.whenListeners) > 0 {
		aRun.Session.RegisterWhenListeners(s.whenListeners...)
	}

	// Propagate policy (if any) from the incoming context so that executor can
	// enforce it later on.
	if p := policy.FromContext(ctx); p != nil {
		aRun.Policy = policy.ToConfig(p)
	}

	// Start a parent tracing span covering the whole run lifetime
	ctx, runSpan := tracing.StartSpan(ctx, fmt.Sprintf("run %s", crew.Name), "INTERNAL")
	runSpan.WithAttributes(map[string]string{"run.id": runID, "crew.name": crew.Name})
	aRun.Span = runSpan

	// If the incoming context contains a running parent run, record its ID
	if parentRun := execution.ContextValue[*execution.Run](ctx); parentRun != nil {
		aRun.ParentID = parentRun.ID
	}

	// Apply initial state from the crew definition
	if crew.Init != nil {
		if err = aRun.Session.ApplyParameters(crew.Init); err != nil {
			return nil, fmt.Errorf("failed to apply crew init: %w", err)
		}
	}
	anExecution := execution.NewExecution(runID, nil, crew.Pipeline)
	aRun.Push(anExecution)

	// Set run state to running
	aRun.SetState(execution.StateRunning)

	if err = s.runDAO.Save(ctx, aRun); err != nil {
		err = fmt.Errorf("failed to save run: %w", err)
		return
	}
	// No need to schedule tasks here - allocator will pick up
	return aRun, nil
}

// GetRun retrieves a run by ID
func (s *Service) GetRun(ctx context.Context, runID string) (*execution.Run, error) {
	return s.runDAO.Load(ctx, runID)
}

// PauseRun pauses a running run
func (s *Service) PauseRun(ctx context.Context, runID string) error {
	run, err := s.runDAO.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	if run.GetState() != execution.StateRunning {
		return fmt.Errorf("run %s is not in running state", runID)
	}

	run.SetState(execution.StatePaused)
	return s.runDAO.Save(ctx, run)
}

// ResumeRun resumes a paused run
func (s *Service) ResumeRun(ctx context.Context, runID string) error {
	run, err := s.runDAO.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	if run.GetState() != execution.StatePaused {
		return fmt.Errorf("run %s is not in paused state", runID)
	}

	run.SetState(execution.StateRunning)
	return s.runDAO.Save(ctx, run)
	// Let the allocator schedule next tasks
}

// processMessage handles a single task execution message
func (s *Service) processMessage(ctx context.Context, message messaging.Message[execution.Execution]) (err error) {

	anExecution := message.T()

	// Start the execution
	anExecution.Start()
	if err := s.taskExecutionDao.Save(ctx, anExecution); err != nil {
		return message.Nack(err)
	}

	// Get the run
	run, err := s.GetRun(ctx, anExecution.RunID)
	if err != nil {
		return message.Nack(err)
	}

	// Check if run is paused - if so, requeue the message for later processing
	if run.GetState() == execution.StatePaused {
		// Don't mark as failed, just requeue with a delay
		return message.Nack(fmt.Errorf("run is paused"))
	}

	// Ensure that the child execution receives information about the current run and execution
	execCtx := context.WithValue(ctx, execution.RunKey, run)
	execCtx = context.WithValue(execCtx, execution.ExecutionKey, anExecution)

	// Execute the task action.  A review hold is a transitional state rather
	// than a real failure.
	err = s.executor.Execute(execCtx, anExecution, run)

	if err != nil {
		// ------------------------------------------------------------------
		// Retry handling
		// ------------------------------------------------------------------
		taskDef := run.LookupTask(anExecution.TaskID)
		var retryCfg *graph.Retry
		if taskDef != nil {
			retryCfg = taskDef.Retry
		}
		shouldRetry, delay := s.shouldRetry(retryCfg, anExecution.Attempts)
		if shouldRetry {
			anExecution.Attempts++
			runAt := time.Now().Add(delay)
			anExecution.RunAfter = &runAt
			anExecution.State = execution.TaskStateScheduled
			if daoErr := s.taskExecutionDao.Save(ctx, anExecution); daoErr != nil {
				return message.Nack(fmt.Errorf("error %w and failed to save execution: %v", err, daoErr))
			}

			// Keep the execution embedded inside the parent run up to date so
			// that the allocator sees the correct RunAfter/Attempts values and
			// does not immediately reschedule the same task in a tight loop.
			if aRun, rErr := s.runDAO.Load(ctx, anExecution.RunID); rErr == nil && aRun != nil {
				if inRun := aRun.LookupExecution(anExecution.TaskID); inRun != nil {
					inRun.RunAfter = anExecution.RunAfter
					inRun.Attempts = anExecution.Attempts
					inRun.State = anExecution.State
					inRun.Error = err.Error()
				}
				_ = s.runDAO.Save(ctx, aRun)
			}
			return message.Ack()
		}

		// Give up – mark as failed
		anExecution.Fail(err)
		if daoErr := s.taskExecutionDao.Save(ctx, anExecution); daoErr != nil {
			return message.Nack(fmt.Errorf("encounter error: %w, and failed to save execution: %v", err, daoErr))
		}

		// Propagate the failed state to the run so that the allocator can
		// advance the pipeline and eventually mark the entire run as failed.
		if aRun, rErr := s.runDAO.Load(ctx, anExecution.RunID); rErr == nil && aRun != nil {
			if inRun := aRun.LookupExecution(anExecution.TaskID); inRun != nil {
				inRun.State = execution.TaskStateFailed
				inRun.Error = anExecution.Error
			}

			// Record error under namespace OR fallback to TaskID so the user can
			// see which task failed.
			if task := aRun.LookupTask(anExecution.TaskID); task != nil {
				key := task.Namespace
				if key == "" {
					key = task.ID
				}
				aRun.Errors[key] = err.Error()
			}

			// Stop the pipeline immediately – clear remaining work and mark the
			// run as failed.
			aRun.Stack = nil
			aRun.SetState(execution.StateFailed)
			_ = s.runDAO.Save(ctx, aRun)
		}

		message.Ack()
		return nil
	}

	if anExecution.State.IsWaitForReview() {
		// Keep the held execution; allocator flips the run to waitingReview
		// until a decision arrives.
		if err := s.taskExecutionDao.Save(ctx, anExecution); err != nil {
			return message.Nack(err)
		}
		return message.Ack()
	}

	anExecution.Complete()

	// Update the run with the completed execution
	if err := s.taskExecutionDao.Save(ctx, anExecution); err != nil {
		return message.Nack(err)
	}
	return message.Ack()
}

// Shutdown stops the processor service
func (s *Service) Shutdown() {
	close(s.shutdownCh)
	for _, worker := range s.workers {
		worker.cancelFn()
	}
	s.workerWg.Wait()
}
