package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veupathdb/strategy-delegate/delegate"
)

func TestCompile_SingleTask(t *testing.T) {
	plan := map[string]any{"type": "task", "task": "Find kinase genes."}
	out, err := Compile("goal", plan)
	require.Nil(t, err)
	require.Len(t, out.Tasks, 1)
	assert.Empty(t, out.Combines)
	assert.Equal(t, "Find kinase genes.", out.Tasks[0].Task)
}

func TestCompile_NilPlan_Rejected(t *testing.T) {
	_, err := Compile("goal", nil)
	require.NotNil(t, err)
	assert.Equal(t, delegate.CodeDelegationPlanInvalid, err.Code)
}

func TestCompile_CombineWithTwoTasks(t *testing.T) {
	plan := map[string]any{
		"type":     "combine",
		"operator": "INTERSECT",
		"left":     map[string]any{"type": "task", "task": "Find genes expressed in ring stage."},
		"right":    map[string]any{"type": "task", "task": "Find genes with kinase activity."},
	}
	out, err := Compile("goal", plan)
	require.Nil(t, err)
	require.Len(t, out.Tasks, 2)
	require.Len(t, out.Combines, 1)

	combine := out.Combines[0]
	assert.Equal(t, delegate.OpIntersect, combine.Operator)
	assert.ElementsMatch(t, combine.DependsOn, []string{out.Tasks[0].ID, out.Tasks[1].ID})
}

func TestCompile_StructuralDedup_IdenticalTasksShareOneNode(t *testing.T) {
	plan := map[string]any{
		"type":     "combine",
		"operator": "UNION",
		"left":     map[string]any{"type": "task", "task": "Find kinase genes."},
		"right":    map[string]any{"type": "task", "task": "  Find kinase genes.  "},
	}
	out, err := Compile("goal", plan)
	require.Nil(t, err)
	require.Len(t, out.Tasks, 1, "whitespace-only differing duplicate tasks must collapse to one node")
	require.Len(t, out.Combines, 1)
	assert.Equal(t, out.Tasks[0].ID, out.Combines[0].Inputs[0])
	assert.Equal(t, out.Tasks[0].ID, out.Combines[0].Inputs[1])
}

func TestCompile_CombineRequiresValidOperator(t *testing.T) {
	plan := map[string]any{
		"type":     "combine",
		"operator": "XOR",
		"left":     map[string]any{"type": "task", "task": "a"},
		"right":    map[string]any{"type": "task", "task": "b"},
	}
	_, err := Compile("goal", plan)
	require.NotNil(t, err)
	assert.Equal(t, delegate.CodeDelegationPlanInvalid, err.Code)
}

func TestCompile_TaskRequiresNonEmptyText(t *testing.T) {
	plan := map[string]any{"type": "task", "task": "   "}
	_, err := Compile("goal", plan)
	require.NotNil(t, err)
	assert.Equal(t, delegate.CodeDelegationPlanInvalid, err.Code)
}

func TestCompile_IDOnlyReferenceRejected(t *testing.T) {
	plan := map[string]any{"id": "node_1"}
	_, err := Compile("goal", plan)
	require.NotNil(t, err)
	assert.Contains(t, err.Fields["detail"], "id-only")
}

func TestCompile_ColocateRequiresValidParams(t *testing.T) {
	plan := map[string]any{
		"type":       "combine",
		"operator":   "COLOCATE",
		"left":       map[string]any{"type": "task", "task": "a"},
		"right":      map[string]any{"type": "task", "task": "b"},
		"upstream":   -5,
		"downstream": 500,
		"strand":     "both",
	}
	_, err := Compile("goal", plan)
	require.NotNil(t, err)
	assert.Equal(t, delegate.CodeValidationError, err.Code)
}

func TestCompile_TaskWithInputChainsDependency(t *testing.T) {
	plan := map[string]any{
		"type":  "task",
		"task":  "Filter genes near the combined locus.",
		"input": map[string]any{"type": "task", "task": "Find kinase genes."},
	}
	out, err := Compile("goal", plan)
	require.Nil(t, err)
	require.Len(t, out.Tasks, 2)

	var parent, child *delegate.Node
	for _, n := range out.Tasks {
		if len(n.DependsOn) == 0 {
			parent = n
		} else {
			child = n
		}
	}
	require.NotNil(t, parent)
	require.NotNil(t, child)
	assert.Equal(t, []string{parent.ID}, child.DependsOn)
}

func TestCompile_Deterministic_NodeIDsAreSequential(t *testing.T) {
	plan := map[string]any{
		"type":     "combine",
		"operator": "INTERSECT",
		"left":     map[string]any{"type": "task", "task": "first"},
		"right":    map[string]any{"type": "task", "task": "second"},
	}
	out, err := Compile("goal", plan)
	require.Nil(t, err)
	assert.Equal(t, "node_1", out.Tasks[0].ID)
	assert.Equal(t, "node_2", out.Tasks[1].ID)
	assert.Equal(t, "node_3", out.Combines[0].ID)
}
