// Package review implements the human-in-the-loop sign-off layer.  Tasks
// flagged for review hold their output until a solicitor records an approve
// or reject decision; the engine then either releases the output to
// downstream tasks or fails the task with the rejection reason.
package review
