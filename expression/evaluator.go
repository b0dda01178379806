package expression

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mulesoft/mule-sub047/event"
	"github.com/mulesoft/mule-sub047/metric"
	"github.com/mulesoft/mule-sub047/pkg/cache"
)

// Evaluator evaluates `when` expressions against events. Compiled expressions
// are cached by source text.
type Evaluator struct {
	operators map[string]OperatorFunc
	compiled  cache.Cache[*Compiled]
	logger    *slog.Logger
}

// Option configures an Evaluator
type Option func(*evaluatorOptions)

type evaluatorOptions struct {
	cacheSize int
	registry  *metric.MetricsRegistry
	logger    *slog.Logger
}

// WithCacheSize sets how many compiled expressions are kept
func WithCacheSize(n int) Option {
	return func(o *evaluatorOptions) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

// WithMetrics exports the compile cache statistics
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *evaluatorOptions) {
		o.registry = registry
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *evaluatorOptions) {
		o.logger = logger
	}
}

// NewExpressionEvaluator creates an evaluator with all supported operators
func NewExpressionEvaluator(opts ...Option) (*Evaluator, error) {
	o := &evaluatorOptions{cacheSize: 256}
	for _, opt := range opts {
		opt(o)
	}

	var cacheOpts []cache.Option[*Compiled]
	if o.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithMetrics[*Compiled](o.registry, "expression"))
	}
	compiled, err := cache.NewLRU[*Compiled](o.cacheSize, cacheOpts...)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	evaluator := &Evaluator{
		operators: make(map[string]OperatorFunc),
		compiled:  compiled,
		logger:    logger.With("component", "expression"),
	}

	evaluator.operators[OpEqual] = operatorEqual
	evaluator.operators[OpNotEqual] = operatorNotEqual
	evaluator.operators[OpLessThan] = operatorLessThan
	evaluator.operators[OpLessThanEqual] = operatorLessThanEqual
	evaluator.operators[OpGreaterThan] = operatorGreaterThan
	evaluator.operators[OpGreaterThanEqual] = operatorGreaterThanEqual

	evaluator.operators[OpContains] = operatorContains
	evaluator.operators[OpStartsWith] = operatorStartsWith
	evaluator.operators[OpEndsWith] = operatorEndsWith
	evaluator.operators[OpRegexMatch] = operatorRegex
	evaluator.operators[OpIsA] = operatorIsA

	return evaluator, nil
}

// EvaluateBoolean compiles (or fetches from cache) expr and evaluates it against evt
func (e *Evaluator) EvaluateBoolean(expr string, evt *event.Event) (bool, error) {
	compiled, err := e.Compile(expr)
	if err != nil {
		return false, err
	}
	return e.EvaluateCompiled(compiled, evt)
}

// Compile parses expr, using the compile cache
func (e *Evaluator) Compile(expr string) (*Compiled, error) {
	key := strings.TrimSpace(expr)
	if c, ok := e.compiled.Get(key); ok {
		return c, nil
	}

	c, err := Compile(key)
	if err != nil {
		return nil, err
	}
	for _, group := range c.Groups {
		for _, cond := range group.Conditions {
			if _, ok := e.operators[cond.Operator]; !ok {
				return nil, &EvaluationError{
					Expression: expr, Field: cond.Field, Operator: cond.Operator, Message: "unsupported operator",
				}
			}
		}
	}

	if _, err := e.compiled.Set(key, c); err != nil {
		e.logger.Debug("Failed to cache compiled expression", "expression", key, "error", err)
	}
	return c, nil
}

// EvaluateCompiled evaluates a compiled expression: groups are ORed together
func (e *Evaluator) EvaluateCompiled(c *Compiled, evt *event.Event) (bool, error) {
	for _, group := range c.Groups {
		ok, err := e.Evaluate(evt, group)
		if err != nil {
			if ee, isEval := err.(*EvaluationError); isEval && ee.Expression == "" {
				ee.Expression = c.Source
			}
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Evaluate evaluates a logical expression against an event
func (e *Evaluator) Evaluate(evt *event.Event, expr LogicalExpression) (bool, error) {
	if len(expr.Conditions) == 0 {
		return true, nil
	}

	results := make([]bool, len(expr.Conditions))
	for i, condition := range expr.Conditions {
		result, err := e.evaluateCondition(evt, condition)
		if err != nil {
			return false, err
		}
		results[i] = result
	}

	switch expr.Logic {
	case LogicOr:
		for _, result := range results {
			if result {
				return true, nil
			}
		}
		return false, nil

	case LogicAnd, "":
		for _, result := range results {
			if !result {
				return false, nil
			}
		}
		return true, nil

	default:
		return false, &EvaluationError{
			Message: fmt.Sprintf("unsupported logic operator: %s", expr.Logic),
		}
	}
}

func (e *Evaluator) evaluateCondition(evt *event.Event, condition ConditionExpression) (bool, error) {
	fieldValue, exists, err := FieldValue(evt, condition.Field)
	if err != nil {
		return false, &EvaluationError{
			Field:   condition.Field,
			Message: "failed to get field value",
			Err:     err,
		}
	}

	if !exists || fieldValue == nil {
		if condition.Required {
			return false, &EvaluationError{
				Field:   condition.Field,
				Message: "required field not found",
			}
		}
		// null literals compare against absent fields
		switch condition.Operator {
		case OpEqual:
			return condition.Value == nil, nil
		case OpNotEqual:
			return condition.Value != nil, nil
		default:
			return false, nil
		}
	}

	opFunc, exists := e.operators[condition.Operator]
	if !exists {
		return false, &EvaluationError{
			Field:    condition.Field,
			Operator: condition.Operator,
			Message:  "unsupported operator",
		}
	}

	result, err := opFunc(fieldValue, condition.Value)
	if err != nil {
		return false, &EvaluationError{
			Field:    condition.Field,
			Operator: condition.Operator,
			Message:  "operator execution failed",
			Err:      err,
		}
	}
	return result, nil
}

// FieldValue resolves a field path against an event:
//
//	payload, payload.<key>...   the payload or a key of a map payload
//	vars.<name>...              a variable
//	error                       the event error, if any
//	error.type                  "NS:IDENTIFIER" of the error type
//	error.identifier, error.namespace, error.description, error.component
//	correlationId
func FieldValue(evt *event.Event, field string) (any, bool, error) {
	if evt == nil {
		return nil, false, nil
	}
	head, rest, _ := strings.Cut(field, ".")

	switch head {
	case "payload":
		return walkPath(evt.Payload(), rest)
	case "vars":
		if rest == "" {
			return evt.Variables(), true, nil
		}
		name, sub, _ := strings.Cut(rest, ".")
		v, ok := evt.Variable(name)
		if !ok {
			return nil, false, nil
		}
		return walkPath(v, sub)
	case "correlationId":
		return evt.CorrelationID(), true, nil
	case "error":
		return errorField(evt.Error(), rest)
	default:
		return nil, false, fmt.Errorf("unknown field root %q", head)
	}
}

func errorField(evtErr *event.Error, field string) (any, bool, error) {
	if evtErr == nil {
		return nil, false, nil
	}
	switch field {
	case "":
		return evtErr, true, nil
	case "type":
		if evtErr.Type == nil {
			return nil, false, nil
		}
		return evtErr.Type.String(), true, nil
	case "identifier":
		if evtErr.Type == nil {
			return nil, false, nil
		}
		return evtErr.Type.Identifier(), true, nil
	case "namespace":
		if evtErr.Type == nil {
			return nil, false, nil
		}
		return evtErr.Type.Namespace(), true, nil
	case "description":
		return evtErr.Description, true, nil
	case "component":
		return evtErr.FailingComponent.String(), !evtErr.FailingComponent.IsZero(), nil
	case "ancestors":
		var chain []any
		for t := evtErr.Type; t != nil; t = t.Parent() {
			chain = append(chain, t.String())
		}
		return chain, evtErr.Type != nil, nil
	default:
		return nil, false, fmt.Errorf("unknown error field %q", field)
	}
}

func walkPath(v any, path string) (any, bool, error) {
	if path == "" {
		return v, true, nil
	}
	for _, key := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		v, ok = m[key]
		if !ok {
			return nil, false, nil
		}
	}
	return v, true, nil
}
