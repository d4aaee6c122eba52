// Package temporalengine offers a durable DelegationWorkflow alternative to
// scheduler.Run, running each DAG node as a Temporal activity instead of a
// goroutine, grounded on the teacher's runtime/agent/engine/temporal
// adapter. spec.md section 5 specifies the DAG Scheduler's observable
// contract, not its execution substrate; this engine preserves that
// contract (dependency ordering, bounded concurrency) on Temporal's
// workflow primitives so a delegation run survives a worker crash and
// resumes from its event history.
package temporalengine

import (
	"context"

	"github.com/veupathdb/strategy-delegate/delegate"
	"github.com/veupathdb/strategy-delegate/delegate/combine"
	"github.com/veupathdb/strategy-delegate/delegate/wdk"
)

// RunNodeActivityName and DelegationWorkflowName are the Temporal
// registration names used by Engine and by activity/workflow options.
const (
	RunNodeActivityName   = "RunNodeActivity"
	DelegationWorkflowName = "DelegationWorkflow"
)

// NodeActivityInput is one node execution's serializable payload. Workflow
// and activity calls cross a JSON boundary in Temporal, so a combine node's
// dependency results travel by value rather than through the in-memory map
// scheduler.ResultLookup exposes to the goroutine engine.
type NodeActivityInput struct {
	Node              *delegate.Node
	DepContext        string
	DependencyResults map[string]*delegate.RunResult
}

// NodeActivityOutput wraps one node's RunResult for the activity boundary.
type NodeActivityOutput struct {
	Result *delegate.RunResult
}

// Activities bundles the external collaborators node activities need.
// RunTaskNode is supplied by the caller as a closure bound to the
// deployment's configured model client and tool registry: those are not
// JSON-serializable and so cannot be reconstructed generically from
// activity input the way WDK's request/response shapes can.
type Activities struct {
	WDK         wdk.Client
	RunTaskNode func(ctx context.Context, node *delegate.Node, depContext string) *delegate.RunResult
}

// RunNodeActivity executes one DAG node and is registered on a worker as
// RunNodeActivityName.
func (a *Activities) RunNodeActivity(ctx context.Context, in NodeActivityInput) (NodeActivityOutput, error) {
	node := in.Node
	if node.Kind != delegate.KindCombine {
		return NodeActivityOutput{Result: a.RunTaskNode(ctx, node, in.DepContext)}, nil
	}

	if verr := combine.ValidateColocation(node); verr != nil {
		return NodeActivityOutput{Result: &delegate.RunResult{
			ID: node.ID, Task: node.DisplayName, Kind: delegate.KindCombine,
			Status: delegate.RunFailed, Errors: []string{verr.Error()},
		}}, nil
	}

	noop := delegate.EmitterFunc(func(delegate.Event) error { return nil })
	return NodeActivityOutput{Result: combine.Run(ctx, node, in.DependencyResults, a.WDK, noop)}, nil
}
