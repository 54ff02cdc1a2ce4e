package execution

import (
	"context"
	"reflect"

	"github.com/caseflow/caseflow/extension"
	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/service/event"
)

// Context represents the execution context for a run
type Context struct {
	run       *Run
	execution *Execution
	actions   *extension.Actions
	events    *event.Service
	task      *graph.Task
	context.Context
}

var RunKey = KeyOf[*Run]()
var ExecutionKey = KeyOf[*Execution]()
var actionsKey = KeyOf[*extension.Actions]()
var EventKey = KeyOf[*event.Service]()
var ContextKey = KeyOf[*Context]()
var TaskKey = KeyOf[*graph.Task]()

// ExecutionContext returns context with provided run and execution
func (c *Context) ExecutionContext(run *Run, execution *Execution, task *graph.Task) *Context {
	clone := *c
	clone.run = run
	clone.execution = execution
	clone.task = task
	return &clone
}

func (c *Context) Value(key any) any {
	switch key {
	case RunKey:
		return c.run
	case ExecutionKey:
		return c.execution
	case actionsKey:
		return c.actions
	case EventKey:
		return c.events
	case ContextKey:
		return c
	case TaskKey:
		return c.task
	}
	return c.Context.Value(key)
}

// ContextValue returns the value of the provided type from the context
func ContextValue[T any](ctx context.Context) T {
	key := KeyOf[T]()
	if value := ctx.Value(key); value != nil {
		return value.(T)
	}
	var t T
	return t
}

// KeyOf returns the reflect.Type of the provided type
func KeyOf[T any]() reflect.Type {
	var a T
	return reflect.TypeOf(a)
}

func NewContext(ctx context.Context, actions *extension.Actions, service *event.Service) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Context: ctx,
		actions: actions,
		events:  service,
	}
}
