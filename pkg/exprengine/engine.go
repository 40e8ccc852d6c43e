// Package exprengine provides local JavaScript expression evaluation for
// SetVar ${...} values.
package exprengine

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

func jsonUnmarshal(raw string, out interface{}) error {
	return json.Unmarshal([]byte(raw), out)
}

// Engine wraps a goja runtime with the current variable bindings exposed
// as globals. Each device profile run owns one engine; it never touches
// the page, only local state.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]string
	mu        sync.Mutex
}

// New creates a new expression engine
func New() *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]string),
	}
	e.setupBuiltins()
	return e
}

// setupBuiltins registers the helpers scripts may call
func (e *Engine) setupBuiltins() {
	e.runtime.Set("json", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		var out interface{}
		raw := call.Arguments[0].String()
		if err := jsonUnmarshal(raw, &out); err != nil {
			panic(e.runtime.NewTypeError("json: %v", err))
		}
		return e.runtime.ToValue(out)
	})
}

// SetVariable exposes a variable as a JS global
func (e *Engine) SetVariable(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables exposes multiple variables
func (e *Engine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// DefineUndefinedIfMissing defines a name as undefined if it has no binding.
// This prevents ReferenceError when an expression references a variable that
// may not exist; undefined is falsy rather than fatal.
func (e *Engine) DefineUndefinedIfMissing(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	val := e.runtime.Get(name)
	if val == nil || goja.IsUndefined(val) {
		if _, exists := e.variables[name]; !exists {
			e.runtime.Set(name, goja.Undefined())
		}
	}
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(expr string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(expr)
	if err != nil {
		return nil, fmt.Errorf("expression error: %w", err)
	}
	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and renders the result as a
// string
func (e *Engine) EvalString(expr string) (string, error) {
	result, err := e.Eval(expr)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}
