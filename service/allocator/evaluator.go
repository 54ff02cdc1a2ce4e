package allocator

import (
	"fmt"
	"strings"

	"github.com/caseflow/caseflow/model/graph"
	"github.com/caseflow/caseflow/runtime/evaluator"
	"github.com/caseflow/caseflow/runtime/execution"
)

// evaluateCondition evaluates a when/goto condition against the run session
// state, with the current task output visible under its namespace.
func evaluateCondition(condition string, aRun *execution.Run, task *graph.Task, anExecution *execution.Execution, defaultValue bool) (bool, error) {
	if condition == "" {
		return defaultValue, nil
	}

	condition = strings.TrimPrefix(condition, "${")
	condition = strings.TrimSuffix(condition, "}")

	session := aRun.Session.Clone()
	session.Set(task.Namespace, anExecution.Output)

	evaluated := evaluator.Evaluate(condition, session.State)
	switch actual := evaluated.(type) {
	case bool:
		return actual, nil
	case int:
		return actual != 0, nil
	case string:
		return strings.TrimSpace(actual) != "", nil
	case float64:
		return actual != 0, nil
	case float32:
		return actual != 0, nil
	default:
		return false, fmt.Errorf("unsupported condition type: %T +%v\n", evaluated, evaluated)
	}
}
