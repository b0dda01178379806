package expression

import (
	"fmt"

	"github.com/mulesoft/mule-sub047/errors"
)

// ConditionExpression is a single field/operator/value condition
type ConditionExpression struct {
	Field    string `json:"field"`    // Event field, e.g. "error.type" or "vars.retries"
	Operator string `json:"operator"` // Comparison operator, e.g. "eq", "contains"
	Value    any    `json:"value"`    // Comparison value; nil compares against a missing field
	Required bool   `json:"required"` // A missing required field is an evaluation error
}

// LogicalExpression combines conditions with one logic operator
type LogicalExpression struct {
	Conditions []ConditionExpression `json:"conditions"`
	Logic      string                `json:"logic"` // "and", "or"
}

// OperatorFunc compares a field value with a condition value
type OperatorFunc func(fieldValue, compareValue any) (bool, error)

// EvaluationError reports a failure to compile or evaluate an expression. It
// matches errors.ErrExpression so the locator types it EXPRESSION.
type EvaluationError struct {
	Expression string
	Field      string
	Operator   string
	Message    string
	Err        error
}

func (e *EvaluationError) Error() string {
	prefix := "evaluation error"
	if e.Expression != "" {
		prefix = fmt.Sprintf("evaluation error in %q", e.Expression)
	}
	if e.Field != "" {
		prefix = fmt.Sprintf("%s for field '%s'", prefix, e.Field)
	}
	if e.Operator != "" {
		prefix = fmt.Sprintf("%s with operator '%s'", prefix, e.Operator)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Is reports errors.ErrExpression
func (e *EvaluationError) Is(target error) bool {
	return target == errors.ErrExpression
}

// Supported operators
const (
	OpEqual            = "eq"
	OpNotEqual         = "ne"
	OpLessThan         = "lt"
	OpLessThanEqual    = "lte"
	OpGreaterThan      = "gt"
	OpGreaterThanEqual = "gte"

	OpContains   = "contains"
	OpStartsWith = "starts_with"
	OpEndsWith   = "ends_with"
	OpRegexMatch = "regex"

	// OpIsA matches an error type string against a type or any of its ancestors
	OpIsA = "is_a"
)

// Logic operators
const (
	LogicAnd = "and"
	LogicOr  = "or"
)
