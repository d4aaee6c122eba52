// Package combine implements the Combine Executor: for each combine node,
// resolve input step ids and invoke the WDK step-creation tool in sequence,
// grounded on ai/subkani/orchestrator.py's run_node closure for combine
// nodes and domain/strategy/compile.py's _compile_colocation.
package combine

import (
	"context"
	"fmt"

	"github.com/veupathdb/strategy-delegate/delegate"
	"github.com/veupathdb/strategy-delegate/delegate/wdk"
)

// Run executes the Combine Executor algorithm from spec.md section 4.4 for
// a single combine node.
func Run(ctx context.Context, node *delegate.Node, resultsByID map[string]*delegate.RunResult, client wdk.Client, emit delegate.Emitter) *delegate.RunResult {
	result := &delegate.RunResult{ID: node.ID, Task: node.DisplayName, Kind: delegate.KindCombine}

	resolved := make([]string, 0, len(node.Inputs))
	var missing []string
	for _, inputID := range node.Inputs {
		r, ok := resultsByID[inputID]
		if !ok {
			missing = append(missing, inputID)
			continue
		}
		stepID, ok := r.PrimaryStepID()
		if !ok {
			missing = append(missing, inputID)
			continue
		}
		resolved = append(resolved, stepID)
	}

	if len(missing) > 0 {
		result.Status = delegate.RunFailed
		result.Errors = []string{delegate.New(delegate.CodeMissingCombineInputs, "combine inputs could not be resolved").
			WithField("missing", missing).Error()}
		return result
	}

	current := resolved[0]
	for i := 1; i < len(resolved); i++ {
		isLast := i == len(resolved)-1
		req := wdk.CreateStepRequest{
			PrimaryInputStepID:   current,
			SecondaryInputStepID: resolved[i],
			Operator:             string(node.Operator),
		}
		if isLast {
			req.DisplayName = node.DisplayName
		}
		if node.Colocation != nil {
			req.Colocation = node.Colocation
		} else if name, ok := delegate.WDKOperator(node.Operator); ok {
			req.Operator = name
		}

		resp, err := client.CreateStep(ctx, req)
		if err != nil {
			result.Status = delegate.RunFailed
			result.Errors = []string{delegate.NewWithCause(delegate.CodeCombineFailed, "combine step creation failed", err).Error()}
			return result
		}
		if !resp.OK {
			result.Status = delegate.RunFailed
			result.Errors = []string{delegate.New(delegate.CodeCombineFailed, resp.Message).
				WithField("code", resp.Code).Error()}
			return result
		}

		if !isLast {
			_ = emit.Emit(delegate.StrategyUpdate(map[string]any{"stepId": resp.StepID, "intermediate": true}))
		}
		current = resp.StepID
	}

	result.Status = delegate.RunOK
	result.Steps = []delegate.StepPayload{{StepID: current, DisplayName: node.DisplayName}}
	_ = emit.Emit(delegate.StrategyUpdate(map[string]any{"stepId": current, "nodeId": node.ID}))
	return result
}

// ValidateColocation enforces spec.md section 4.4's validation rule: a
// COLOCATE combine with invalid upstream/downstream/strand fails with
// VALIDATION_ERROR rather than COMBINE_FAILED.
func ValidateColocation(node *delegate.Node) *delegate.ToolError {
	if node.Operator != delegate.OpColocate {
		return nil
	}
	if node.Colocation == nil {
		return delegate.New(delegate.CodeValidationError, "COLOCATE requires colocation parameters").
			WithField("nodeId", node.ID)
	}
	if err := node.Colocation.Validate(); err != nil {
		return delegate.New(delegate.CodeValidationError, fmt.Sprintf("invalid colocation parameters: %v", err)).
			WithField("nodeId", node.ID)
	}
	return nil
}
