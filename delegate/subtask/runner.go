// Package subtask implements the Sub-Task Runner: invokes a sub-agent with a
// tool set for one task node, retrying on empty output, enforcing a
// per-attempt timeout. Grounded on ai/subkani/orchestrator.py's
// run_subkani_task and ai/subkani_utils.py's consume_subkani_round /
// format_task_context.
package subtask

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/veupathdb/strategy-delegate/delegate"
	"github.com/veupathdb/strategy-delegate/delegate/agent"
	"github.com/veupathdb/strategy-delegate/delegate/agent/model"
)

// Options configures one Run call.
type Options struct {
	MaxAttempts    int           // default 5, per spec.md section 4.3
	TimeoutPerAttempt time.Duration // default 120s, per spec.md section 4.6
	GraphID        string
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.TimeoutPerAttempt <= 0 {
		o.TimeoutPerAttempt = 120 * time.Second
	}
	return o
}

// Run executes the Sub-Task Runner algorithm from spec.md section 4.3 for a
// single task node.
func Run(ctx context.Context, node *delegate.Node, goal, depContext string, engine agent.SubAgentEngine, emit delegate.Emitter, opts Options) *delegate.RunResult {
	opts = opts.withDefaults()

	_ = emit.Emit(delegate.SubtaskStart(node.Task))

	result := &delegate.RunResult{ID: node.ID, Task: node.Task, Kind: delegate.KindTask}

	prompt := buildRoundPrompt(node.Task, goal, opts.GraphID, depContext)
	var lastErrors []string

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.TimeoutPerAttempt)
		steps, errs, timedOut := consumeRound(attemptCtx, engine, prompt, node.ID, emit)
		cancel()

		if len(steps) > 0 {
			result.Steps = append(result.Steps, steps...)
			_ = emit.Emit(delegate.StrategyUpdate(map[string]any{"nodeId": node.ID, "stepCount": len(steps)}))
			for _, s := range steps {
				_ = emit.Emit(delegate.GraphSnapshot(map[string]any{"stepId": s.StepID}))
			}
			_ = emit.Emit(delegate.SubtaskEnd("done"))
			result.Status = delegate.RunOK
			return result
		}

		if timedOut {
			_ = emit.Emit(delegate.SubtaskEnd("timeout"))
			result.Status = delegate.RunTimeout
			result.Notes = "timeout"
			result.Errors = errs
			return result
		}

		lastErrors = errs
		if attempt < opts.MaxAttempts {
			_ = emit.Emit(delegate.SubtaskRetry(attempt + 1))
			prompt = buildRetryPrompt(node.Task, goal, opts.GraphID, depContext, lastErrors)
		}
	}

	_ = emit.Emit(delegate.SubtaskEnd("no_steps"))
	result.Status = delegate.RunNoSteps
	result.Notes = "no_steps"
	result.Errors = lastErrors
	return result
}

// consumeRound drives one agent attempt to completion (or timeout),
// mirroring ai/subkani_utils.py's consume_subkani_round: it mirrors
// tool-call/result events onto the bus and extracts created steps and
// tool errors from function-role messages.
func consumeRound(ctx context.Context, engine agent.SubAgentEngine, prompt, nodeID string, emit delegate.Emitter) (steps []delegate.StepPayload, errs []string, timedOut bool) {
	msgs, errCh := engine.FullRoundStream(ctx, prompt)

	for msg := range msgs {
		switch msg.Role {
		case model.RoleAssistant:
			for _, call := range msg.ToolCalls {
				_ = emit.Emit(delegate.NewEvent(delegate.EventSubtaskToolCallStart, map[string]any{
					"id": call.ID, "name": call.Name, "arguments": call.Arguments,
				}))
			}
		case model.RoleFunction:
			_ = emit.Emit(delegate.NewEvent(delegate.EventSubtaskToolCallEnd, map[string]any{
				"id": msg.ToolCallID, "result": msg.Content,
			}))

			parsed, ok := parseJSONObject(msg.Content)
			if !ok {
				continue
			}
			if stepID, ok := parsed["stepId"].(string); ok && stepID != "" {
				displayName, _ := parsed["displayName"].(string)
				steps = append(steps, delegate.StepPayload{StepID: stepID, DisplayName: displayName, Raw: parsed})
			}
			errs = append(errs, extractToolErrors(parsed)...)
		}
	}

	select {
	case err := <-errCh:
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			timedOut = true
		}
	default:
		if ctx.Err() == context.DeadlineExceeded {
			timedOut = true
		}
	}

	return steps, errs, timedOut
}

// extractToolErrors mirrors ai/subkani_utils.py's consume_subkani_round
// exactly: three independent, non-exclusive checks, each appending its own
// error string when it matches. A tool result can trip more than one (e.g.
// ok == false and a separate error field) and every match is kept.
func extractToolErrors(parsed map[string]any) []string {
	var errs []string

	if ok, hasOK := parsed["ok"].(bool); hasOK && !ok {
		msg := "tool error"
		if m, ok := parsed["message"].(string); ok && m != "" {
			msg = m
		} else if c, ok := parsed["code"].(string); ok && c != "" {
			msg = c
		}
		errs = append(errs, msg)
	}

	if errVal, present := parsed["error"]; present {
		switch e := errVal.(type) {
		case nil:
			// falsy, no error reported
		case string:
			if e != "" {
				errs = append(errs, e)
			}
		case bool:
			if e {
				errs = append(errs, "error")
			}
		case float64:
			if e != 0 {
				errs = append(errs, fmt.Sprint(e))
			}
		default:
			errs = append(errs, fmt.Sprint(e))
		}
	}

	if invalid, _ := parsed["invalid"].(bool); invalid {
		errs = append(errs, "invalid parameters")
	}

	return errs
}

func parseJSONObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// buildRoundPrompt constructs the first-attempt prompt from
// (task, goal, graph_id, dep_context), per spec.md section 4.3 step 3.
func buildRoundPrompt(task, goal, graphID, depContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Task: %s\n", task)
	if graphID != "" {
		fmt.Fprintf(&b, "Graph: %s\n", graphID)
	}
	if depContext != "" {
		b.WriteString(depContext)
		b.WriteByte('\n')
	}
	return b.String()
}

// buildRetryPrompt reconstructs the stricter attempt-2..5 prompt, reproducing
// the four parts from ai/subkani/orchestrator.py's retry-prompt construction
// exactly: the previous error hint, a mandatory catalog-exploration
// preamble, the required invocation sequence, and the string-parameters
// rule (SPEC_FULL.md section 12.4).
func buildRetryPrompt(task, goal, graphID, depContext string, lastErrors []string) string {
	var b strings.Builder
	if len(lastErrors) > 0 {
		fmt.Fprintf(&b, "Previous attempt failed: %s\n", strings.Join(lastErrors, "; "))
	}
	b.WriteString("Before calling create_step, you MUST first call get_record_types, " +
		"list_searches, and get_search_parameters to confirm the exact search name " +
		"and its required parameters.\n")
	b.WriteString("Required sequence: get_record_types -> list_searches -> " +
		"get_search_parameters -> create_step.\n")
	b.WriteString("All parameter values must be passed as strings, even numeric ones.\n")
	b.WriteString(buildRoundPrompt(task, goal, graphID, depContext))
	return b.String()
}
