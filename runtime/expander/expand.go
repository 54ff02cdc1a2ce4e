// Package expander resolves $var and ${expr} references in crew task inputs,
// prompt templates and parameter values against the run session state.
package expander

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/caseflow/caseflow/model/state"
	"github.com/caseflow/caseflow/runtime/evaluator"
	"github.com/viant/toolbox/data"
)

var pureVarPattern = regexp.MustCompile(`^\$[a-zA-Z_][a-zA-Z0-9_.\[\]]*$`)

// Expand resolves variable references in value using the supplied state.
// Strings consisting solely of a single reference return the referenced value
// with its original type (map, slice, number); mixed strings are interpolated
// as text. Maps and slices are expanded recursively.
func Expand(value interface{}, from map[string]interface{}) (interface{}, error) {
	switch actual := value.(type) {
	case nil:
		return nil, nil
	case string:
		return expandText(actual, from), nil
	case map[string]interface{}:
		expanded := make(map[string]interface{}, len(actual))
		for k, v := range actual {
			item, err := Expand(v, from)
			if err != nil {
				return nil, err
			}
			expanded[k] = item
		}
		return expanded, nil
	case map[interface{}]interface{}:
		expanded := make(map[string]interface{}, len(actual))
		for k, v := range actual {
			item, err := Expand(v, from)
			if err != nil {
				return nil, err
			}
			expanded[asString(k)] = item
		}
		return expanded, nil
	case []interface{}:
		expanded := make([]interface{}, len(actual))
		for i, v := range actual {
			item, err := Expand(v, from)
			if err != nil {
				return nil, err
			}
			expanded[i] = item
		}
		return expanded, nil
	case state.Parameters:
		expanded := make(map[string]interface{}, len(actual))
		for _, param := range actual {
			item, err := Expand(param.Value, from)
			if err != nil {
				return nil, err
			}
			expanded[param.Name] = item
		}
		return expanded, nil
	default:
		return value, nil
	}
}

// ExpandText interpolates references in a plain string and always returns
// text; use it for prompt templates where typed substitution is undesired.
func ExpandText(value string, from map[string]interface{}) string {
	if !strings.Contains(value, "$") {
		return value
	}
	aMap := data.Map(from)
	return aMap.ExpandAsText(value)
}

func expandText(value string, from map[string]interface{}) interface{} {
	if value == "" || !strings.Contains(value, "$") {
		return value
	}

	// Whole-string references return the typed value so that maps and
	// numbers survive the round-trip through a task input.
	pureVariable := pureVarPattern.MatchString(value)
	pureBraced := strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") &&
		!strings.Contains(value[2:len(value)-1], "${")

	if pureVariable || pureBraced {
		if resolved := evaluator.New().Evaluate(value, from); resolved != nil {
			return resolved
		}
		// Unresolved references stay as-is so that later expansion passes
		// (e.g. with task output in scope) can still resolve them.
		return value
	}

	return ExpandText(value, from)
}

func asString(value interface{}) string {
	if text, ok := value.(string); ok {
		return text
	}
	return fmt.Sprintf("%v", value)
}
