package temporalengine

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/veupathdb/strategy-delegate/delegate"
)

func TestDelegationWorkflow_RunsDependentNodesInOrder(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()

	var a *Activities
	var order []string
	env.OnActivity(a.RunNodeActivity, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(1).(NodeActivityInput)
		order = append(order, in.Node.ID)
	}).Return(NodeActivityOutput{Result: &delegate.RunResult{
		Status: delegate.RunOK,
		Steps:  []delegate.StepPayload{{StepID: "step_1"}},
	}}, nil)

	nodesByID := map[string]*delegate.Node{
		"node_1": {ID: "node_1", Kind: delegate.KindTask, Task: "Find kinase genes."},
		"node_2": {ID: "node_2", Kind: delegate.KindTask, Task: "Find ring stage genes.", DependsOn: []string{"node_1"}},
	}
	input := WorkflowInput{
		GraphID:        "graph-1",
		NodesByID:      nodesByID,
		Dependents:     map[string][]string{"node_1": {"node_2"}},
		MaxConcurrency: 1,
	}

	env.ExecuteWorkflow(DelegationWorkflow, input)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out WorkflowOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Len(t, out.ResultsByID, 2)
	require.Equal(t, delegate.RunOK, out.ResultsByID["node_1"].Status)
	require.Equal(t, delegate.RunOK, out.ResultsByID["node_2"].Status)
	require.Equal(t, []string{"node_1", "node_2"}, order, "a dependent node must not start before its dependency finishes")
}

func TestDelegationWorkflow_ActivityFailure_RecordsSubkaniFailed(t *testing.T) {
	s := testsuite.WorkflowTestSuite{}
	env := s.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.RunNodeActivity, mock.Anything, mock.Anything).
		Return(NodeActivityOutput{}, assertError{"activity worker crashed"})

	nodesByID := map[string]*delegate.Node{
		"node_1": {ID: "node_1", Kind: delegate.KindTask, Task: "Find kinase genes."},
	}
	env.ExecuteWorkflow(DelegationWorkflow, WorkflowInput{NodesByID: nodesByID, MaxConcurrency: 1})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out WorkflowOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, delegate.RunFailed, out.ResultsByID["node_1"].Status)
	require.Contains(t, out.ResultsByID["node_1"].Errors[0], delegate.CodeSubkaniFailed)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
