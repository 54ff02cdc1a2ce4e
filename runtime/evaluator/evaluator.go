// Package evaluator implements the small expression language used by crew
// task conditions (when:, goto:) and parameter values. It supports dot-path
// variable references, len(), arithmetic and comparison operators.
package evaluator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// ExpressionEvaluator evaluates string expressions with variables
type ExpressionEvaluator struct{}

// New creates a new expression evaluator
func New() *ExpressionEvaluator {
	return &ExpressionEvaluator{}
}

// Evaluate evaluates an expression string with variables from the context
func (e *ExpressionEvaluator) Evaluate(expr string, variables map[string]interface{}) interface{} {
	if strings.HasPrefix(expr, "${") && strings.HasSuffix(expr, "}") {
		innerExpr := expr[2 : len(expr)-1]

		if strings.HasPrefix(innerExpr, "len(") {
			idx := strings.Index(innerExpr, ")")
			if idx < 0 {
				return 0
			}
			arg := innerExpr[4:idx]
			rest := strings.TrimSpace(innerExpr[idx+1:])
			if rest == "" {
				return e.evaluateLen(arg, variables)
			}
			ops := []string{">=", "<=", "==", "!=", ">", "<"}
			for _, op := range ops {
				if strings.HasPrefix(rest, op) {
					rhs := strings.TrimSpace(rest[len(op):])
					leftVal := e.evaluateLen(arg, variables)
					rightVal := Evaluate(rhs, variables)
					cmp := compareValues(leftVal, rightVal)
					switch op {
					case "==":
						return cmp == 0
					case "!=":
						return cmp != 0
					case ">":
						return cmp > 0
					case "<":
						return cmp < 0
					case ">=":
						return cmp >= 0
					case "<=":
						return cmp <= 0
					}
				}
			}
		}
		if containsExpressionOperators(innerExpr) {
			return Evaluate(innerExpr, variables)
		}
		return expandExpression(innerExpr, variables)
	}
	if strings.HasPrefix(expr, "$") {
		return expandExpression(expr[1:], variables)
	}
	// For simple variable references
	return expandExpression(expr, variables)
}

// evaluateLen implements the len() function
func (e *ExpressionEvaluator) evaluateLen(arg string, variables map[string]interface{}) interface{} {
	value := expandExpression(arg, variables)
	if value == nil {
		return 0
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return len(rv.String())
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len()
	default:
		return 0
	}
}

// expandExpression handles dot notation to navigate through nested values,
// for example "case.estateValue" or "analysis.findings[0]".
func expandExpression(expr string, from map[string]interface{}) interface{} {
	expr = strings.TrimPrefix(expr, "$")
	parts := splitPath(expr)
	if len(parts) == 0 {
		return nil
	}
	current, ok := from[parts[0].name]
	if !ok {
		return nil
	}
	if parts[0].index >= 0 {
		current = getArrayElement(current, parts[0].index)
	}
	for _, part := range parts[1:] {
		current = getProperty(current, part.name)
		if current == nil {
			return nil
		}
		if part.index >= 0 {
			current = getArrayElement(current, part.index)
		}
	}
	return current
}

type pathPart struct {
	name  string
	index int // -1 when no [idx] suffix
}

func splitPath(expr string) []pathPart {
	var parts []pathPart
	for _, raw := range strings.Split(expr, ".") {
		part := pathPart{name: raw, index: -1}
		if open := strings.Index(raw, "["); open >= 0 {
			if close := strings.Index(raw, "]"); close > open {
				if idx, err := strconv.Atoi(raw[open+1 : close]); err == nil {
					part.name = raw[:open]
					part.index = idx
				}
			}
		}
		parts = append(parts, part)
	}
	return parts
}

// containsExpressionOperators checks if the string contains math or logical operators
func containsExpressionOperators(s string) bool {
	operators := []string{"+", "*", "/", "%", "==", "!=", ">", "<", ">=", "<=", "&&", "||"}
	for _, op := range operators {
		if strings.Contains(s, op) {
			return true
		}
	}
	// A minus only counts when it is not a leading negative sign.
	if idx := strings.Index(s, "-"); idx > 0 {
		return true
	}
	return false
}

// Evaluate evaluates a mathematical or logical expression, for example
// "attempts + 1" or "case.estateValue > 325000".
func Evaluate(expr string, from map[string]interface{}) interface{} {
	processedExpr := processExpressionVariables(expr, from)

	e, err := parser.ParseExpr(processedExpr)
	if err != nil {
		evaluator := New()
		return evaluator.Evaluate(expr, from)
	}
	return evaluateAst(e)
}

// processExpressionVariables replaces all variable references in the
// expression with their actual values from the context
func processExpressionVariables(expr string, from map[string]interface{}) string {
	// Convert single-quoted literals (e.g., 'text') to double-quoted for Go parsing
	expr = regexp.MustCompile(`'([^']*)'`).ReplaceAllString(expr, `"$1"`)
	parts := strings.FieldsFunc(expr, func(c rune) bool {
		return !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '.')
	})

	processedExpr := expr
	for _, part := range parts {
		if !isVariableReference(part) {
			continue
		}
		value := expandExpression(part, from)
		if value == nil {
			continue
		}
		valueStr := ""
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			valueStr = fmt.Sprintf("%v", v)
		case bool:
			valueStr = strconv.FormatBool(v)
		case string:
			valueStr = fmt.Sprintf("%q", v)
		default:
			valueStr = fmt.Sprintf("%v", v)
		}
		segments := strings.Split(processedExpr, part)
		processedExpr = strings.Join(segments, valueStr)
	}
	return processedExpr
}

// isVariableReference checks if a string is a valid variable reference
func isVariableReference(s string) bool {
	if len(s) == 0 || !((s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z') || s[0] == '_') {
		return false
	}
	switch s {
	case "true", "false":
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '.') {
			return false
		}
	}
	return true
}

// evaluateAst evaluates an AST expression
func evaluateAst(node ast.Expr) interface{} {
	switch n := node.(type) {
	case *ast.BasicLit:
		switch n.Kind {
		case token.INT:
			val, _ := strconv.Atoi(n.Value)
			return val
		case token.FLOAT:
			val, _ := strconv.ParseFloat(n.Value, 64)
			return val
		case token.STRING, token.CHAR:
			return strings.Trim(n.Value, "\"'")
		}

	case *ast.Ident:
		switch n.Name {
		case "true":
			return true
		case "false":
			return false
		}
		return n.Name

	case *ast.BinaryExpr:
		x := evaluateAst(n.X)
		y := evaluateAst(n.Y)
		xVal, yVal := convertToCompatibleTypes(x, y)

		switch n.Op {
		case token.ADD:
			return performAddition(xVal, yVal)
		case token.SUB:
			return performSubtraction(xVal, yVal)
		case token.MUL:
			return performMultiplication(xVal, yVal)
		case token.QUO:
			return performDivision(xVal, yVal)
		case token.REM:
			return performModulo(xVal, yVal)
		case token.EQL:
			return reflect.DeepEqual(xVal, yVal)
		case token.NEQ:
			return !reflect.DeepEqual(xVal, yVal)
		case token.LSS:
			return compareValues(xVal, yVal) < 0
		case token.GTR:
			return compareValues(xVal, yVal) > 0
		case token.LEQ:
			return compareValues(xVal, yVal) <= 0
		case token.GEQ:
			return compareValues(xVal, yVal) >= 0
		case token.LAND:
			return toBool(xVal) && toBool(yVal)
		case token.LOR:
			return toBool(xVal) || toBool(yVal)
		}

	case *ast.ParenExpr:
		return evaluateAst(n.X)

	case *ast.UnaryExpr:
		operand := evaluateAst(n.X)
		switch n.Op {
		case token.SUB:
			switch v := operand.(type) {
			case int:
				return -v
			case float64:
				return -v
			}
		case token.NOT:
			if b, ok := operand.(bool); ok {
				return !b
			}
		}
	}

	return nil
}

// convertToCompatibleTypes converts x and y to compatible numeric types
func convertToCompatibleTypes(x, y interface{}) (interface{}, interface{}) {
	if isIntType(x) && isIntType(y) {
		return toInt(x), toInt(y)
	}
	if isFloatType(x) || isFloatType(y) {
		return toFloat64(x), toFloat64(y)
	}
	return x, y
}

func isIntType(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isFloatType(v interface{}) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

func toBool(v interface{}) bool {
	switch actual := v.(type) {
	case bool:
		return actual
	case string:
		return strings.TrimSpace(actual) != ""
	case nil:
		return false
	}
	return toFloat64(v) != 0
}

func toInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case int8:
		return int(val)
	case int16:
		return int(val)
	case int32:
		return int(val)
	case int64:
		return int(val)
	case uint:
		return int(val)
	case uint8:
		return int(val)
	case uint16:
		return int(val)
	case uint32:
		return int(val)
	case uint64:
		return int(val)
	case float32:
		return int(val)
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	}
	return 0
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	}
	return 0
}

func performAddition(x, y interface{}) interface{} {
	if strX, okX := x.(string); okX {
		if strY, okY := y.(string); okY {
			return strX + strY
		}
		return strX + stringifyValue(y)
	}
	if strY, okY := y.(string); okY {
		return stringifyValue(x) + strY
	}
	if isIntType(x) && isIntType(y) {
		return toInt(x) + toInt(y)
	}
	return toFloat64(x) + toFloat64(y)
}

func performSubtraction(x, y interface{}) interface{} {
	if isIntType(x) && isIntType(y) {
		return toInt(x) - toInt(y)
	}
	return toFloat64(x) - toFloat64(y)
}

func performMultiplication(x, y interface{}) interface{} {
	if isIntType(x) && isIntType(y) {
		return toInt(x) * toInt(y)
	}
	return toFloat64(x) * toFloat64(y)
}

func performDivision(x, y interface{}) interface{} {
	if toFloat64(y) == 0 {
		return math.Inf(1)
	}
	// Always return float for division to avoid truncation
	return toFloat64(x) / toFloat64(y)
}

func performModulo(x, y interface{}) interface{} {
	if isIntType(x) && isIntType(y) && toInt(y) != 0 {
		return toInt(x) % toInt(y)
	}
	yFloat := toFloat64(y)
	if yFloat == 0 {
		return math.NaN()
	}
	return math.Mod(toFloat64(x), yFloat)
}

// compareValues returns -1, 0 or 1 depending on the ordering of x and y.
func compareValues(x, y interface{}) int {
	if isIntType(x) && isIntType(y) {
		xInt, yInt := toInt(x), toInt(y)
		if xInt < yInt {
			return -1
		} else if xInt > yInt {
			return 1
		}
		return 0
	}

	xFloat, yFloat := toFloat64(x), toFloat64(y)
	if xFloat < yFloat {
		return -1
	} else if xFloat > yFloat {
		return 1
	}
	return 0
}

// stringifyValue converts a value to its string representation for interpolation
func stringifyValue(val interface{}) string {
	if val == nil {
		return ""
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.String:
		return v.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// getProperty uses reflection to get a property from a struct or map
func getProperty(obj interface{}, prop string) interface{} {
	if obj == nil {
		return nil
	}

	if mapObj, ok := obj.(map[string]interface{}); ok {
		return mapObj[prop]
	}

	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	field := val.FieldByName(prop)
	if !field.IsValid() {
		typ := val.Type()
		for i := 0; i < typ.NumField(); i++ {
			if strings.EqualFold(typ.Field(i).Name, prop) {
				field = val.Field(i)
				break
			}
		}
		if !field.IsValid() {
			return nil
		}
	}
	if !field.CanInterface() {
		return nil
	}
	return field.Interface()
}

// getArrayElement extracts an element from an array or slice using reflection
func getArrayElement(obj interface{}, index int) interface{} {
	if obj == nil {
		return nil
	}
	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Array && val.Kind() != reflect.Slice {
		return nil
	}
	if index < 0 || index >= val.Len() {
		return nil
	}
	elementVal := val.Index(index)
	if !elementVal.CanInterface() {
		return nil
	}
	return elementVal.Interface()
}
