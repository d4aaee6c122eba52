// Package toolregistry implements the Tool Registry external interface from
// spec.md section 6: a set of callables with strongly typed argument
// records, each validated against a JSON schema before invocation, grounded
// on the teacher's runtime/toolregistry/executor.Executor.
package toolregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Result is the envelope every tool call returns, per spec.md section 6:
// {ok, code?, message?, stepId?, graphId?, graphSnapshot?, ...}. A missing
// or false ok with a code/message is treated as a tool error.
type Result map[string]any

func (r Result) OK() bool {
	ok, _ := r["ok"].(bool)
	return ok
}

// Tool is one callable in the registry: a name, a compiled JSON schema for
// its arguments, and the invocation function itself.
type Tool struct {
	Name   string
	Schema *jsonschema.Schema
	Invoke func(ctx context.Context, args map[string]any) (Result, error)
}

// Registry holds the named tools a sub-agent may call, guarded by a
// sync.RWMutex so concurrent task nodes reading the registry never race
// with registration (which happens once, at startup, but the teacher's
// registries use this pattern uniformly).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Lookup returns the named tool, or false if it is not registered.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// Call validates argsJSON against the tool's schema, then invokes it.
// Schema-validation failures are converted into the VALIDATION_ERROR
// result envelope shape the sub-task runner's tool-result interpretation
// expects (spec.md section 4.3), mirroring the original's
// parse_pydantic_validation_error_text path (now a schema-validation path
// instead of a framework-specific exception string; see SPEC_FULL.md
// section 11.2).
func (r *Registry) Call(ctx context.Context, name string, argsJSON []byte) (Result, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return Result{"ok": false, "code": "NOT_FOUND", "message": fmt.Sprintf("unknown tool %q", name)}, nil
	}

	var args map[string]any
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return Result{"ok": false, "code": "VALIDATION_ERROR", "message": "tool arguments are not valid JSON"}, nil
	}

	if tool.Schema != nil {
		// jsonschema validates against any JSON-decoded value; re-decode
		// through json.Number-free interface{} since that's what
		// json.Unmarshal already produced.
		if err := tool.Schema.Validate(toValidatable(args)); err != nil {
			return Result{
				"ok":      false,
				"code":    "VALIDATION_ERROR",
				"message": "Tool arguments failed validation.",
				"detail":  err.Error(),
			}, nil
		}
	}

	return tool.Invoke(ctx, args)
}

func toValidatable(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = toValidatable(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toValidatable(val)
		}
		return out
	default:
		return v
	}
}

// CompileSchema compiles a JSON schema document (as a Go value, e.g. a
// map[string]any literal) into a *jsonschema.Schema usable by Tool.Schema.
func CompileSchema(name string, schemaDoc map[string]any) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, err
	}
	res, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if err := compiler.AddResource(name, res); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}
