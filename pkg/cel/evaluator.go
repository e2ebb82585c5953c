package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

const costLimit = 1000000

// Variables exposed to guard expressions. Each is a dynamic map mirroring a
// section of the evaluation context; "event" carries the remaining keys.
var Variables = []string{"table", "order", "session", "status", "event"}

type Evaluator struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.RWMutex
}

func NewEvaluator() (*Evaluator, error) {
	opts := make([]cel.EnvOption, 0, len(Variables))
	for _, name := range Variables {
		opts = append(opts, cel.Variable(name, cel.MapType(cel.StringType, cel.DynType)))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return fmt.Errorf("guard expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluateGuard runs expression against the evaluation context. Compiled
// programs are cached by expression text.
func (e *Evaluator) EvaluateGuard(ctx context.Context, expression string, evalCtx map[string]any) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	result, _, err := program.ContextEval(ctx, Activation(evalCtx))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// Activation splits an evaluation context into the declared variables.
// Reserved sections that are absent become empty maps so has() checks work.
func Activation(evalCtx map[string]any) map[string]any {
	vars := map[string]any{
		"table":   map[string]any{},
		"order":   map[string]any{},
		"session": map[string]any{},
		"status":  map[string]any{},
	}
	event := make(map[string]any)

	for k, v := range evalCtx {
		if _, reserved := vars[k]; reserved {
			if m, ok := v.(map[string]any); ok {
				vars[k] = m
			}
			continue
		}
		event[k] = v
	}
	vars["event"] = event

	return vars
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := e.CompileExpression(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()

	return program, nil
}

func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

// CachedPrograms reports how many compiled programs are held.
func (e *Evaluator) CachedPrograms() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.programs)
}
