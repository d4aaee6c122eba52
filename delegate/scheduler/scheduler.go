// Package scheduler implements the DAG Scheduler: concurrent execution of
// DelegationPlan nodes honoring depends_on edges under a bounded-concurrency
// policy, grounded on ai/subtask_scheduler.py's run_nodes_with_dependencies.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/veupathdb/strategy-delegate/delegate"
)

// ResultLookup gives a running node thread-safe read access to its already
// completed dependencies' results, keyed by node id. Every id a node's
// DependsOn or Inputs names is guaranteed present by the time that node is
// dispatched, since the scheduler only moves a node to ready once every
// dependency has finished.
type ResultLookup func(id string) (*delegate.RunResult, bool)

// RunNodeFunc executes one node and returns its result. It must not panic;
// any panic inside it is recovered at the scheduler boundary and converted
// into a RunResult with Status RunFailed and code SUBKANI_FAILED, per
// spec.md section 7's propagation policy.
type RunNodeFunc func(ctx context.Context, node *delegate.Node, depContext string, results ResultLookup) *delegate.RunResult

// FormatDependencyContextFunc mirrors ai/subkani_utils.py's
// format_dependency_context.
type FormatDependencyContextFunc func(nodeID string, nodesByID map[string]*delegate.Node, resultsByID map[string]*delegate.RunResult) string

// Run executes nodesByID/dependents concurrently, bounded by maxConcurrency,
// respecting dependency edges. It returns results in completion order and a
// map of results keyed by node id, matching
// run_nodes_with_dependencies's return shape.
//
// seed carries results for nodes that have already run in a prior pass (see
// orchestrator's two-phase record-type-before-combine-steps split); those
// ids are folded straight into the returned map without being dispatched
// again, and their dependents are unblocked as if they had just finished.
// A nil seed runs the whole graph from scratch.
//
// maxConcurrency <= 0 is treated as 1, per spec.md section 5.
func Run(
	ctx context.Context,
	nodesByID map[string]*delegate.Node,
	dependents map[string][]string,
	maxConcurrency int,
	runNode RunNodeFunc,
	formatDepContext FormatDependencyContextFunc,
	seed map[string]*delegate.RunResult,
) ([]*delegate.RunResult, map[string]*delegate.RunResult) {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	resultsByID := make(map[string]*delegate.RunResult, len(nodesByID))
	for id, r := range seed {
		if _, ok := nodesByID[id]; ok {
			resultsByID[id] = r
		}
	}

	remainingDeps := make(map[string]map[string]struct{}, len(nodesByID))
	for id, n := range nodesByID {
		if _, done := resultsByID[id]; done {
			continue
		}
		deps := make(map[string]struct{}, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if _, ok := nodesByID[dep]; !ok {
				continue
			}
			if _, done := resultsByID[dep]; done {
				continue
			}
			deps[dep] = struct{}{}
		}
		remainingDeps[id] = deps
	}

	var ready []string
	for id, deps := range remainingDeps {
		if len(deps) == 0 {
			ready = append(ready, id)
		}
	}
	// Deterministic starting order; the original iterates a Python dict
	// (insertion order). Sorting keeps Go's unordered map iteration from
	// introducing nondeterminism in which node starts first among ties.
	sort.Strings(ready)

	var results []*delegate.RunResult
	var resultsMu sync.Mutex

	lookup := func(id string) (*delegate.RunResult, bool) {
		resultsMu.Lock()
		defer resultsMu.Unlock()
		r, ok := resultsByID[id]
		return r, ok
	}

	sem := make(chan struct{}, maxConcurrency)
	done := make(chan struct{ id string; result *delegate.RunResult })
	running := 0

	guardedRun := func(id string, node *delegate.Node, depContext string) {
		sem <- struct{}{}
		defer func() { <-sem }()
		result := safeRunNode(ctx, node, depContext, lookup, runNode)
		done <- struct{ id string; result *delegate.RunResult }{id, result}
	}

	for len(ready) > 0 || running > 0 {
		for len(ready) > 0 && running < maxConcurrency {
			// LIFO pop, matching the original's ready.pop().
			id := ready[len(ready)-1]
			ready = ready[:len(ready)-1]
			node := nodesByID[id]
			resultsMu.Lock()
			depContext := formatDepContext(id, nodesByID, resultsByID)
			resultsMu.Unlock()
			running++
			go guardedRun(id, node, depContext)
		}

		if running == 0 {
			break
		}

		finished := <-done
		running--
		resultsMu.Lock()
		resultsByID[finished.id] = finished.result
		resultsMu.Unlock()
		results = append(results, finished.result)
		for _, child := range dependents[finished.id] {
			deps, ok := remainingDeps[child]
			if !ok {
				// child is already seeded/done or not part of this run.
				continue
			}
			delete(deps, finished.id)
			if len(deps) == 0 {
				ready = append(ready, child)
			}
		}
	}

	return results, resultsByID
}

func safeRunNode(ctx context.Context, node *delegate.Node, depContext string, lookup ResultLookup, runNode RunNodeFunc) (result *delegate.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &delegate.RunResult{
				ID:     node.ID,
				Task:   node.Task,
				Kind:   node.Kind,
				Status: delegate.RunFailed,
				Errors: []string{fmt.Sprintf("%s: panic: %v", delegate.CodeSubkaniFailed, r)},
			}
		}
	}()
	select {
	case <-ctx.Done():
		return &delegate.RunResult{ID: node.ID, Task: node.Task, Kind: node.Kind, Status: delegate.RunCancelled}
	default:
	}
	return runNode(ctx, node, depContext, lookup)
}

// FormatDependencyContext reproduces ai/subkani_utils.py's
// format_dependency_context exactly: one line per dependency of the form
// "- <dep_id>: <dep_task>[ (hint: <h>)] → <step ids/names, or 'no steps
// created'>", followed by a flat JSON array of every referenced step (in
// dependency order) under "Dependency steps (JSON):" — only when at least
// one dependency produced a step with an id. Returns "" if nodeID has no
// dependencies.
func FormatDependencyContext(nodeID string, nodesByID map[string]*delegate.Node, resultsByID map[string]*delegate.RunResult) string {
	node, ok := nodesByID[nodeID]
	if !ok || len(node.DependsOn) == 0 {
		return ""
	}

	var lines []string
	var structuredSteps []map[string]any

	for _, depID := range node.DependsOn {
		depNode := nodesByID[depID]
		depTask := depID
		if depNode != nil {
			depTask = depNode.Task
			if depTask == "" {
				depTask = depNode.DisplayName
			}
		}
		hintSuffix := ""
		if depNode != nil && depNode.Hint != "" {
			hintSuffix = fmt.Sprintf(" (hint: %s)", depNode.Hint)
		}

		var stepDescs []string
		if result := resultsByID[depID]; result != nil {
			for _, s := range result.Steps {
				stepID, name := stepIdentity(s)
				switch {
				case stepID != "" && name != "":
					stepDescs = append(stepDescs, fmt.Sprintf("%s (%s)", stepID, name))
				case stepID != "":
					stepDescs = append(stepDescs, stepID)
				}
				if stepID != "" {
					structuredSteps = append(structuredSteps, stepRaw(s))
				}
			}
		}

		if len(stepDescs) > 0 {
			lines = append(lines, fmt.Sprintf("- %s: %s%s → %s", depID, depTask, hintSuffix, strings.Join(stepDescs, ", ")))
		} else {
			lines = append(lines, fmt.Sprintf("- %s: %s%s → no steps created", depID, depTask, hintSuffix))
		}
	}

	if len(structuredSteps) > 0 {
		jsonBlob, _ := json.MarshalIndent(structuredSteps, "", "  ")
		lines = append(lines, "Dependency steps (JSON):", string(jsonBlob))
	}

	return strings.Join(lines, "\n")
}

// stepIdentity extracts a step's id and display name with the same field
// priority format_dependency_context uses: stepId falling back to id, and
// displayName falling back to display_name, searchName, transformName.
func stepIdentity(s delegate.StepPayload) (stepID, name string) {
	stepID = s.StepID
	name = s.DisplayName
	if s.Raw == nil {
		return stepID, name
	}
	if stepID == "" {
		stepID = stringField(s.Raw, "id")
	}
	if name == "" {
		for _, key := range []string{"display_name", "searchName", "transformName"} {
			if name = stringField(s.Raw, key); name != "" {
				break
			}
		}
	}
	return stepID, name
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// stepRaw is the structured payload appended to the dependency steps JSON
// array: the tool's raw result when available, otherwise a minimal
// reconstruction from the typed fields.
func stepRaw(s delegate.StepPayload) map[string]any {
	if s.Raw != nil {
		return s.Raw
	}
	return map[string]any{"stepId": s.StepID, "displayName": s.DisplayName}
}
