// Package condition compiles and evaluates condition-step expressions.
//
// Expressions are CEL over a single variable, data, holding the trigger's
// string map: `data.total_amount != "" && double(data.total_amount) > 100.0`.
package condition

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var ErrInvalidExpression = errors.New("invalid condition expression")

type Evaluator struct {
	env      *cel.Env
	prgCache map[string]cel.Program
	mu       sync.RWMutex
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("data", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{
		env:      env,
		prgCache: make(map[string]cel.Program),
	}, nil
}

// Validate compiles expr and checks that it yields a bool.
func (e *Evaluator) Validate(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate runs expr against data. Missing keys read as errors in CEL, so
// expressions should guard with `has(data.key)` or `"key" in data`.
func (e *Evaluator) Evaluate(expr string, data map[string]string) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	if data == nil {
		data = map[string]string{}
	}
	out, _, err := prg.Eval(map[string]any{"data": data})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: result is %T, not bool", ErrInvalidExpression, out.Value())
	}
	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", ErrInvalidExpression, ast.OutputType())
	}
	p, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	e.prgCache[expr] = p
	return p, nil
}
