package cases

import (
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/progress"
	"github.com/caseflow/caseflow/runtime/execution"
)

// runTracker maps session writes of a single run onto progress counters.
type runTracker struct {
	tracker *progress.Progress
	tasks   map[string]bool
	done    map[string]bool
}

func (t *runTracker) progress() progress.Progress {
	return t.tracker.Snapshot()
}

func (s *Service) track(runID string, crew *model.Crew) {
	tasks := make(map[string]bool)
	if crew.Pipeline != nil {
		for _, task := range crew.Pipeline.Tasks {
			tasks[task.Namespace] = true
		}
	}
	_, tracker := progress.WithNewTracker(nil, runID, crew.Name, nil)
	tracker.Update(progress.Delta{Total: len(tasks), Pending: len(tasks)})

	s.mu.Lock()
	s.trackers[runID] = &runTracker{
		tracker: tracker,
		tasks:   tasks,
		done:    make(map[string]bool),
	}
	s.mu.Unlock()
}

func (s *Service) tracker(runID string) *runTracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackers[runID]
}

func (s *Service) untrack(runID string) {
	s.mu.Lock()
	delete(s.trackers, runID)
	s.mu.Unlock()
}

// SessionListener returns a state listener that counts a task as completed
// when its output lands in the run session. Register it with the processor so
// every run session reports into the case trackers.
func (s *Service) SessionListener() execution.StateListener {
	return func(session *execution.Session, key string, _, _ interface{}) {
		s.mu.Lock()
		defer s.mu.Unlock()
		tracked, ok := s.trackers[session.ID]
		if !ok || !tracked.tasks[key] || tracked.done[key] {
			return
		}
		tracked.done[key] = true
		tracked.tracker.Update(progress.Delta{Completed: 1, Pending: -1})
	}
}
