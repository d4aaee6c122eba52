package toolregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerEcho(t *testing.T, r *Registry, name string, schema map[string]any) {
	t.Helper()
	compiled, err := CompileSchema(name, schema)
	require.NoError(t, err)
	r.Register(&Tool{
		Name:   name,
		Schema: compiled,
		Invoke: func(ctx context.Context, args map[string]any) (Result, error) {
			return Result{"ok": true, "received": args}, nil
		},
	})
}

func TestCall_UnknownTool_NotFound(t *testing.T) {
	r := NewRegistry()
	result, err := r.Call(context.Background(), "missing", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, "NOT_FOUND", result["code"])
}

func TestCall_InvalidJSON_ValidationError(t *testing.T) {
	r := NewRegistry()
	registerEcho(t, r, "get_search_parameters", map[string]any{
		"type": "object", "properties": map[string]any{"searchName": map[string]any{"type": "string"}},
	})
	result, err := r.Call(context.Background(), "get_search_parameters", []byte(`not json`))
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, "VALIDATION_ERROR", result["code"])
}

func TestCall_SchemaRejectsMissingRequiredField(t *testing.T) {
	r := NewRegistry()
	registerEcho(t, r, "create_step", map[string]any{
		"type":       "object",
		"properties": map[string]any{"searchName": map[string]any{"type": "string"}},
		"required":   []any{"searchName"},
	})
	result, err := r.Call(context.Background(), "create_step", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, "VALIDATION_ERROR", result["code"])
}

func TestCall_ValidArgs_InvokesTool(t *testing.T) {
	r := NewRegistry()
	registerEcho(t, r, "list_searches", map[string]any{
		"type":       "object",
		"properties": map[string]any{"recordType": map[string]any{"type": "string"}},
		"required":   []any{"recordType"},
	})
	result, err := r.Call(context.Background(), "list_searches", []byte(`{"recordType":"gene"}`))
	require.NoError(t, err)
	assert.True(t, result.OK())
}

func TestNames_ReflectsRegistrations(t *testing.T) {
	r := NewRegistry()
	registerEcho(t, r, "a", map[string]any{"type": "object"})
	registerEcho(t, r, "b", map[string]any{"type": "object"})
	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
}
