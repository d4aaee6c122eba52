package temporalengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veupathdb/strategy-delegate/delegate"
	"github.com/veupathdb/strategy-delegate/delegate/wdk"
)

type fakeWDK struct {
	resp wdk.CreateStepResponse
	err  error
}

func (f *fakeWDK) CreateStep(ctx context.Context, req wdk.CreateStepRequest) (wdk.CreateStepResponse, error) {
	return f.resp, f.err
}

func (f *fakeWDK) GetRecordTypesForSearch(ctx context.Context, searchName string) ([]string, error) {
	return nil, nil
}

func TestRunNodeActivity_TaskNode_DelegatesToRunTaskNode(t *testing.T) {
	called := false
	a := &Activities{
		RunTaskNode: func(ctx context.Context, node *delegate.Node, depContext string) *delegate.RunResult {
			called = true
			return &delegate.RunResult{ID: node.ID, Status: delegate.RunOK}
		},
	}

	out, err := a.RunNodeActivity(context.Background(), NodeActivityInput{
		Node: &delegate.Node{ID: "node_1", Kind: delegate.KindTask},
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, delegate.RunOK, out.Result.Status)
}

func TestRunNodeActivity_CombineNode_InvalidColocation_FailsFast(t *testing.T) {
	a := &Activities{WDK: &fakeWDK{}}

	node := &delegate.Node{
		ID: "node_2", Kind: delegate.KindCombine, Operator: delegate.OpColocate,
		Inputs: [2]string{"node_0", "node_1"},
	}
	out, err := a.RunNodeActivity(context.Background(), NodeActivityInput{Node: node})
	require.NoError(t, err)
	assert.Equal(t, delegate.RunFailed, out.Result.Status)
	require.Len(t, out.Result.Errors, 1)
}

func TestRunNodeActivity_CombineNode_ResolvesThroughWDK(t *testing.T) {
	a := &Activities{WDK: &fakeWDK{resp: wdk.CreateStepResponse{OK: true, StepID: "combined_step"}}}

	node := &delegate.Node{
		ID: "node_2", Kind: delegate.KindCombine, Operator: delegate.OpIntersect,
		Inputs: [2]string{"node_0", "node_1"},
	}
	deps := map[string]*delegate.RunResult{
		"node_0": {Steps: []delegate.StepPayload{{StepID: "step_0"}}},
		"node_1": {Steps: []delegate.StepPayload{{StepID: "step_1"}}},
	}
	out, err := a.RunNodeActivity(context.Background(), NodeActivityInput{Node: node, DependencyResults: deps})
	require.NoError(t, err)
	require.Equal(t, delegate.RunOK, out.Result.Status)
	require.Len(t, out.Result.Steps, 1)
	assert.Equal(t, "combined_step", out.Result.Steps[0].StepID)
}
