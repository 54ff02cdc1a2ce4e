package processor

import (
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/caseflow/caseflow/service/executor"
	"github.com/caseflow/caseflow/service/messaging"
)

type Option func(*Service)

// WithRunDAO sets the run store implementation
func WithRunDAO(runDAO dao.Service[string, execution.Run]) Option {
	return func(s *Service) {
		s.runDAO = runDAO
	}
}

func WithTaskExecutionDAO(taskExecutionDao dao.Service[string, execution.Execution]) Option {
	return func(s *Service) {
		s.taskExecutionDao = taskExecutionDao
	}
}

// WithMessageQueue sets the message queue implementation
func WithMessageQueue(queue messaging.Queue[execution.Execution]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithExecutor sets the task executor for the service
func WithExecutor(executor executor.Service) Option {
	return func(s *Service) {
		s.executor = executor
	}
}

// WithWorkers sets the number of worker goroutines
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithSessionListeners registers immutable state listeners that will be copied
// to every Session created during task execution.
func WithSessionListeners(fns ...execution.StateListener) Option {
	return func(s *Service) {
		if len(fns) == 0 {
			return
		}
		s.sessListeners = append(s.sessListeners, fns...)
	}
}

// WithWhenListeners registers callbacks invoked after every when-condition
// evaluation.
func WithWhenListeners(fns ...execution.WhenListener) Option {
	return func(s *Service) {
		if len(fns) == 0 {
			return
		}
		s.whenListeners = append(s.whenListeners, fns...)
	}
}

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}
