// Package expression evaluates the `when` conditions of error handlers.
//
// An expression is a disjunction (||) of conjunctions (&&) of conditions over
// event fields:
//
//	error.type is_a "CORE:CONNECTIVITY" && vars.attempts < 3
//	payload.priority == "high" || vars.force
//
// Field roots are payload, vars, error and correlationId. Compiled expressions
// are cached in an LRU from pkg/cache; regex patterns are checked for nested
// quantifiers before they are compiled.
//
// Compile and evaluation failures are returned as *EvaluationError, which
// matches errors.ErrExpression and is therefore typed EXPRESSION by the
// error type locator.
package expression
