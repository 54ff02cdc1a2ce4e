package execution

// TaskState represents the current State of a task
type TaskState string

const (
	TaskStatePending             TaskState = "pending"
	TaskStateScheduled           TaskState = "scheduled"
	TaskStateRunning             TaskState = "running"
	TaskStateWaitForDependencies TaskState = "waitForDependencies"
	TaskStateWaitForSubTasks     TaskState = "waitForSubTasks"
	// TaskStateWaitForReview indicates the task output is held for solicitor
	// sign-off before it is released to downstream tasks.
	TaskStateWaitForReview TaskState = "waitForReview"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStatePaused        TaskState = "paused"
	TaskStateCancelled     TaskState = "cancelled"
	TaskStateSkipped       TaskState = "skipped"
)

func (t TaskState) IsWaitForReview() bool {
	return t == TaskStateWaitForReview
}

// IsTerminal reports whether the state can no longer change.
func (t TaskState) IsTerminal() bool {
	switch t {
	case TaskStateCompleted, TaskStateFailed, TaskStateCancelled, TaskStateSkipped:
		return true
	}
	return false
}
