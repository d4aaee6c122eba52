package temporalengine

import (
	"sort"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/veupathdb/strategy-delegate/delegate"
	"github.com/veupathdb/strategy-delegate/delegate/scheduler"
)

// WorkflowInput is DelegationWorkflow's input: the compiled plan's flat node
// index and dependency edges.
type WorkflowInput struct {
	GraphID        string
	NodesByID      map[string]*delegate.Node
	Dependents     map[string][]string
	MaxConcurrency int
}

// WorkflowOutput is DelegationWorkflow's result, keyed like scheduler.Run's
// resultsByID return value.
type WorkflowOutput struct {
	ResultsByID map[string]*delegate.RunResult
}

type nodeCompletion struct {
	id     string
	result *delegate.RunResult
}

// DelegationWorkflow reimplements scheduler.Run's algorithm (spec.md section
// 5: LIFO ready list, bounded concurrency, dependency-gated dispatch) using
// Temporal's deterministic workflow.Go/workflow.Channel primitives in place
// of raw goroutines and channels, which are not safe inside a replayable
// workflow.
func DelegationWorkflow(ctx workflow.Context, in WorkflowInput) (WorkflowOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
	})

	maxConcurrency := in.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	remainingDeps := make(map[string]map[string]struct{}, len(in.NodesByID))
	for id, n := range in.NodesByID {
		deps := make(map[string]struct{}, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if _, ok := in.NodesByID[dep]; ok {
				deps[dep] = struct{}{}
			}
		}
		remainingDeps[id] = deps
	}

	var ready []string
	for id, deps := range remainingDeps {
		if len(deps) == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	resultsByID := make(map[string]*delegate.RunResult, len(in.NodesByID))
	running := 0
	doneCh := workflow.NewChannel(ctx)

	startNode := func(id string) {
		node := in.NodesByID[id]
		depResults := make(map[string]*delegate.RunResult, len(node.Inputs))
		for _, inputID := range node.Inputs {
			if r, ok := resultsByID[inputID]; ok {
				depResults[inputID] = r
			}
		}
		depContext := scheduler.FormatDependencyContext(id, in.NodesByID, resultsByID)

		workflow.Go(ctx, func(gctx workflow.Context) {
			var out NodeActivityOutput
			err := workflow.ExecuteActivity(gctx, RunNodeActivityName, NodeActivityInput{
				Node: node, DepContext: depContext, DependencyResults: depResults,
			}).Get(gctx, &out)

			result := out.Result
			if err != nil {
				result = &delegate.RunResult{ID: id, Kind: node.Kind, Status: delegate.RunFailed,
					Errors: []string{delegate.CodeSubkaniFailed + ": " + err.Error()}}
			}
			doneCh.Send(gctx, nodeCompletion{id: id, result: result})
		})
	}

	for len(ready) > 0 || running > 0 {
		for len(ready) > 0 && running < maxConcurrency {
			// LIFO pop, matching scheduler.Run's ready-list discipline.
			id := ready[len(ready)-1]
			ready = ready[:len(ready)-1]
			running++
			startNode(id)
		}

		if running == 0 {
			break
		}

		var finished nodeCompletion
		doneCh.Receive(ctx, &finished)
		running--
		resultsByID[finished.id] = finished.result
		for _, child := range in.Dependents[finished.id] {
			delete(remainingDeps[child], finished.id)
			if len(remainingDeps[child]) == 0 {
				ready = append(ready, child)
			}
		}
	}

	return WorkflowOutput{ResultsByID: resultsByID}, nil
}
