// Package model defines crew definitions: agents, the task graph they execute
// and the named parameters flowing between tasks.
package model
