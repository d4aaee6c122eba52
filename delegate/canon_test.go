package delegate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestCanonSignature_KeyOrderInsensitive(t *testing.T) {
	a := map[string]any{"b": 1, "a": "x"}
	b := map[string]any{"a": "x", "b": 1}
	assert.Equal(t, CanonSignature(a), CanonSignature(b))
}

func TestCanonSignature_TrimsStrings(t *testing.T) {
	a := map[string]any{"task": "  find genes  "}
	b := map[string]any{"task": "find genes"}
	assert.Equal(t, CanonSignature(a), CanonSignature(b))
}

func TestCanonSignature_ListOrderSensitive(t *testing.T) {
	a := map[string]any{"inputs": []any{"node_1", "node_2"}}
	b := map[string]any{"inputs": []any{"node_2", "node_1"}}
	assert.NotEqual(t, CanonSignature(a), CanonSignature(b))
}

// TestCanon_Idempotent checks the idempotence guarantee Canon's doc comment
// promises, over signature objects shaped like the compiler's structural-dedup
// key (task text, hint, a dependency list, a numeric field).
func TestCanon_Idempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Canon(Canon(v)) has the same signature as Canon(v)", prop.ForAll(
		func(task, hint string, steps []string, upstream int) bool {
			obj := map[string]any{
				"task":       task,
				"hint":       hint,
				"depends_on": stringsToAny(steps),
				"upstream":   upstream,
			}
			once := Canon(obj)
			twice := Canon(once)
			return CanonSignature(once) == CanonSignature(twice)
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.SliceOfN(3, gen.AlphaString()),
		gen.IntRange(-10, 1000),
	))

	properties.TestingRun(t)
}

func stringsToAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
