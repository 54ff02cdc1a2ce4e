// Package allocator owns the execution queue and is the only service allowed
// to mutate `Run` instances.  It walks each run's stack, resolves task
// dependencies and subtasks, holds runs whose tasks await a review decision
// and hands ready executions to the processor via the message queue.
package allocator
