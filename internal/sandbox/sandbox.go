// Package sandbox implements the per-Rule embedded expression interpreter
// (§4.2): each Rule owns one goja runtime, its variables installed as
// top-level string bindings before the expression runs, a `main` entry
// point called with arguments shaped by rule kind, and a per-call deadline
// so a runaway script cannot stall a tick.
package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// ErrEvaluation is returned for both compilation and call failures. Per
// §4.2/§7 these are non-fatal: the caller skips the rule for that tick.
var ErrEvaluation = errors.New("evaluation_error")

// Program is a compiled, ready-to-call instance of a Rule's expression. It
// is not safe for concurrent use; the Evaluator calls each Rule's Program
// from a single goroutine at a time, consistent with §5's single-writer
// actors.
type Program struct {
	vm    *goja.Runtime
	main  goja.Callable
	timeout time.Duration
}

// DefaultTimeout bounds a single Call when the caller doesn't override it.
const DefaultTimeout = 250 * time.Millisecond

// Compile installs variables as top-level string globals, runs expression,
// and resolves the `main` entry point. Returns ErrEvaluation wrapping the
// underlying goja error on any failure (malformed script, missing main).
func Compile(expression string, variables map[string]string, timeout time.Duration) (*Program, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	vm := goja.New()
	for name, value := range variables {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("bind variable %s: %w: %v", name, ErrEvaluation, err)
		}
	}
	if _, err := vm.RunString(expression); err != nil {
		return nil, fmt.Errorf("compile expression: %w: %v", ErrEvaluation, err)
	}
	main, ok := goja.AssertFunction(vm.Get("main"))
	if !ok {
		return nil, fmt.Errorf("expression does not define main: %w", ErrEvaluation)
	}
	return &Program{vm: vm, main: main, timeout: timeout}, nil
}

// Call invokes main with args, enforcing the compile-time timeout via
// goja's interrupt mechanism, and returns the outcome_items strings main
// returned. Any failure (throw, timeout, wrong return shape) surfaces as
// ErrEvaluation.
func (p *Program) Call(args ...any) ([]string, error) {
	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = p.vm.ToValue(a)
	}

	done := make(chan struct{})
	timer := time.AfterFunc(p.timeout, func() {
		p.vm.Interrupt(fmt.Errorf("%w: rule evaluation exceeded %s", ErrEvaluation, p.timeout))
	})
	defer func() {
		timer.Stop()
		close(done)
	}()

	result, err := p.main(goja.Undefined(), jsArgs...)
	if err != nil {
		return nil, fmt.Errorf("call main: %w: %v", ErrEvaluation, err)
	}
	return exportStrings(result)
}

func exportStrings(v goja.Value) ([]string, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	exported := v.Export()
	switch t := exported.(type) {
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = fmt.Sprint(item)
		}
		return out, nil
	case string:
		return []string{t}, nil
	default:
		return nil, fmt.Errorf("main returned unsupported type %T: %w", exported, ErrEvaluation)
	}
}

// Close releases the runtime's interrupt state. Programs are cheap
// goja.Runtime wrappers; Close exists so callers (rule recompilation on
// variable rebinding) have an explicit disposal point even though goja
// itself needs no teardown.
func (p *Program) Close() {
	p.vm.ClearInterrupt()
}
