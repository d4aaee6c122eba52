// Package orchestrator implements the top-level delegate() entry point from
// spec.md section 4.6: compile the model's plan, ensure the target strategy
// graph exists, run the DAG Scheduler dispatching to the Sub-Task Runner and
// Combine Executor, and fold the results into a Summary. Grounded on
// ai/orchestration/delegation.py's build_delegation_plan orchestration
// wrapper and ai/subkani/orchestrator.py's run_node dispatch closure.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/veupathdb/strategy-delegate/delegate"
	"github.com/veupathdb/strategy-delegate/delegate/agent"
	"github.com/veupathdb/strategy-delegate/delegate/combine"
	"github.com/veupathdb/strategy-delegate/delegate/compiler"
	"github.com/veupathdb/strategy-delegate/delegate/config"
	"github.com/veupathdb/strategy-delegate/delegate/eventbus"
	"github.com/veupathdb/strategy-delegate/delegate/scheduler"
	"github.com/veupathdb/strategy-delegate/delegate/session"
	"github.com/veupathdb/strategy-delegate/delegate/subtask"
	"github.com/veupathdb/strategy-delegate/delegate/wdk"
)

// EngineFactory produces the SubAgentEngine a task node's sub-agent should
// run against. Implementations typically close over a shared model.Client
// and toolregistry.Registry and vary only the system prompt per node.
type EngineFactory func(node *delegate.Node) agent.SubAgentEngine

// Dependencies collects every external interface delegate() needs.
type Dependencies struct {
	Sessions session.Store
	WDK      wdk.Client
	Engines  EngineFactory
	Config   config.Config
}

// Request is one delegate() call's input, per spec.md section 4.6.
type Request struct {
	Goal    string
	Plan    map[string]any
	GraphID string
	SiteID  string
}

// Summary is delegate()'s return value: the plan's task and combine results,
// the graph identity it wrote to, and any non-fatal errors encountered along
// the way.
type Summary struct {
	GraphID        string
	Name           string
	Description    string
	TaskResults    []delegate.ValidatedResult
	CombineResults []delegate.ValidatedResult
	Errors         []string
}

// Delegate runs the full pipeline for one delegate() call, emitting the
// streaming events a caller drains from bus concurrently. bus.CloseProducer
// is always invoked before Delegate returns, guaranteeing message_end is
// eventually enqueued even on a validation failure or panic, mirroring the
// Python original's try/finally around the producer task.
func Delegate(ctx context.Context, bus *eventbus.Bus, req Request, deps Dependencies) (summary *Summary, toolErr *delegate.ToolError) {
	defer func() {
		if r := recover(); r != nil {
			_ = bus.Emit(delegate.ErrorEvent(fmt.Sprintf("internal error: %v", r)))
			toolErr = delegate.Errorf(delegate.CodeInternalError, "panic in delegate(): %v", r)
			summary = nil
		}
		_ = bus.Emit(delegate.MessageEnd())
		bus.CloseProducer()
	}()

	_ = bus.Emit(delegate.MessageStart(map[string]any{"goal": req.Goal}))

	plan, perr := compiler.Compile(req.Goal, req.Plan)
	if perr != nil {
		_ = bus.Emit(delegate.ErrorEvent(perr.Error()))
		return nil, perr
	}
	_ = bus.Emit(delegate.GraphPlan(renderPlan(plan)))

	graph, gerr := ensureGraph(ctx, deps.Sessions, req.GraphID, req.SiteID, req.Goal)
	if gerr != nil {
		_ = bus.Emit(delegate.ErrorEvent(gerr.Error()))
		return nil, gerr
	}
	_ = bus.Emit(delegate.GraphSnapshot(map[string]any{"graphId": graph.ID}))

	runNode := func(ctx context.Context, node *delegate.Node, depContext string, results scheduler.ResultLookup) *delegate.RunResult {
		if node.Kind == delegate.KindCombine {
			if verr := combine.ValidateColocation(node); verr != nil {
				return &delegate.RunResult{ID: node.ID, Task: node.DisplayName, Kind: delegate.KindCombine,
					Status: delegate.RunFailed, Errors: []string{verr.Error()}}
			}
			return combine.Run(ctx, node, resultsSnapshot(node, results), deps.WDK, bus)
		}
		return runTaskNode(ctx, node, req.Goal, depContext, graph.ID, deps, bus)
	}

	maxConcurrency := deps.Config.Scheduler.MaxConcurrency
	var errs []string

	// Record-type inference must happen before any combine step is created
	// (spec.md section 4.6, SPEC_FULL.md section 12.2), since COLOCATE
	// step creation needs to know which side of the pair is genes vs.
	// spans. Run every task node that doesn't sit downstream of a combine
	// node first, resolve the record type from the searches those tasks
	// created, then run the rest of the plan seeded with those results.
	seed := map[string]*delegate.RunResult{}
	if preNodes, preDependents, ok := taskOnlySubgraph(plan); ok {
		_, preResults := scheduler.Run(ctx, preNodes, preDependents, maxConcurrency, runNode, scheduler.FormatDependencyContext, nil)
		for id, r := range preResults {
			seed[id] = r
		}
		if searchNames := collectSearchNames(preResults); len(searchNames) > 0 {
			if recordType, rerr := wdk.ResolveStrategyRecordType(ctx, deps.WDK, searchNames); rerr == nil {
				graph.RecordType = recordType
			} else {
				errs = append(errs, rerr.Error())
			}
		}
	}

	_, resultsByID := scheduler.Run(ctx, plan.NodesByID, plan.Dependents, maxConcurrency, runNode, scheduler.FormatDependencyContext, seed)

	// graph.RecordType is still empty here when the pre-pass did not run (some
	// task depends on a combine's output), found no search names, or failed
	// to resolve; in that case the record type is resolved from the searches
	// of the full run.
	if graph.RecordType == "" {
		if searchNames := collectSearchNames(resultsByID); len(searchNames) > 0 {
			if recordType, rerr := wdk.ResolveStrategyRecordType(ctx, deps.WDK, searchNames); rerr == nil {
				graph.RecordType = recordType
			} else {
				errs = append(errs, rerr.Error())
			}
		}
	}

	taskResults, combineResults, partitionErrs := partitionResults(plan, resultsByID)
	errs = append(errs, partitionErrs...)

	name, description := deriveGraphMetadata(req.Goal)
	if serr := deps.Sessions.SetMetadata(ctx, graph.ID, name, description); serr != nil {
		errs = append(errs, delegate.FromError(serr).Error())
	}

	_ = bus.Emit(delegate.GraphSnapshot(map[string]any{
		"graphId":  graph.ID,
		"tasks":    len(taskResults),
		"combines": len(combineResults),
	}))

	return &Summary{
		GraphID:        graph.ID,
		Name:           name,
		Description:    description,
		TaskResults:    taskResults,
		CombineResults: combineResults,
		Errors:         errs,
	}, nil
}

func runTaskNode(ctx context.Context, node *delegate.Node, goal, depContext, graphID string, deps Dependencies, emit delegate.Emitter) *delegate.RunResult {
	engine := deps.Engines(node)
	opts := subtask.Options{
		MaxAttempts:       deps.Config.Subtask.MaxAttempts,
		TimeoutPerAttempt: time.Duration(deps.Config.Subtask.TimeoutSeconds) * time.Second,
		GraphID:           graphID,
	}
	return subtask.Run(ctx, node, goal, depContext, engine, emit, opts)
}

// resultsSnapshot builds the small map combine.Run expects (keyed by the
// node's own Inputs, which are always a subset of DependsOn and therefore
// always already present in results by the time a combine node is
// dispatched).
func resultsSnapshot(node *delegate.Node, results scheduler.ResultLookup) map[string]*delegate.RunResult {
	out := make(map[string]*delegate.RunResult, len(node.Inputs))
	for _, id := range node.Inputs {
		if id == "" {
			continue
		}
		if r, ok := results(id); ok {
			out[id] = r
		}
	}
	return out
}

// taskOnlySubgraph returns the subset of plan limited to task nodes whose
// dependency closure contains no combine node, plus the dependents map
// restricted to edges between those nodes. ok is false when any task node
// depends (directly or transitively) on a combine node's output, in which
// case splitting the run would execute that task before its combine
// dependency has produced a result; the caller falls back to resolving the
// record type from the single full-plan run instead.
func taskOnlySubgraph(plan *delegate.DelegationPlan) (nodesByID map[string]*delegate.Node, dependents map[string][]string, ok bool) {
	hasCombineAncestor := make(map[string]bool, len(plan.NodesByID))
	var walk func(id string) bool
	walk = func(id string) bool {
		if v, seen := hasCombineAncestor[id]; seen {
			return v
		}
		n, found := plan.NodesByID[id]
		if !found {
			return false
		}
		hasCombineAncestor[id] = false // break cycles defensively; Compile already rejects real cycles
		result := n.Kind == delegate.KindCombine
		for _, dep := range n.DependsOn {
			if walk(dep) {
				result = true
				break
			}
		}
		hasCombineAncestor[id] = result
		return result
	}
	for id := range plan.NodesByID {
		walk(id)
	}

	nodesByID = make(map[string]*delegate.Node)
	for _, n := range plan.Tasks {
		if hasCombineAncestor[n.ID] {
			return nil, nil, false
		}
		nodesByID[n.ID] = n
	}

	dependents = make(map[string][]string, len(nodesByID))
	for id := range nodesByID {
		dependents[id] = nil
	}
	for id, children := range plan.Dependents {
		if _, ok := nodesByID[id]; !ok {
			continue
		}
		for _, child := range children {
			if _, ok := nodesByID[child]; ok {
				dependents[id] = append(dependents[id], child)
			}
		}
	}
	return nodesByID, dependents, true
}

func ensureGraph(ctx context.Context, store session.Store, graphID, siteID, goal string) (*session.Graph, *delegate.ToolError) {
	if graphID != "" {
		if g, err := store.GetGraph(ctx, graphID); err == nil {
			return g, nil
		}
	}
	name, _ := deriveGraphMetadata(goal)
	g, err := store.CreateGraph(ctx, name, graphID)
	if err != nil {
		return nil, delegate.NewWithCause(delegate.CodeInternalError, "failed to create strategy graph", err)
	}
	g.SiteID = siteID
	return g, nil
}

// partitionResults mirrors ai/subtask_scheduler.py's partition_task_results,
// including its dual-insertion behavior (SPEC_FULL.md section 12.1): a task
// node that produced zero steps gets a trimmed validated entry (Steps: nil)
// in tasks *and* a NO_STEPS_CREATED error in errs — the two are not mutually
// exclusive, unlike a literal reading of spec.md section 4.6 step 4.
func partitionResults(plan *delegate.DelegationPlan, resultsByID map[string]*delegate.RunResult) (tasks, combines []delegate.ValidatedResult, errs []string) {
	for _, n := range plan.Tasks {
		r := resultsByID[n.ID]
		tasks = append(tasks, toValidated(n, r))
		errs = append(errs, errorsOf(r)...)
		if r != nil && len(r.Steps) == 0 {
			errs = append(errs, delegate.New(delegate.CodeNoStepsCreated, "task produced no steps").
				WithField("nodeId", n.ID).Error())
		}
	}
	for _, n := range plan.Combines {
		r := resultsByID[n.ID]
		combines = append(combines, toValidated(n, r))
		errs = append(errs, errorsOf(r)...)
	}
	return tasks, combines, errs
}

func toValidated(n *delegate.Node, r *delegate.RunResult) delegate.ValidatedResult {
	task := n.Task
	if task == "" {
		task = n.DisplayName
	}
	vr := delegate.ValidatedResult{ID: n.ID, Task: task}
	if r != nil {
		vr.Steps = r.Steps
		vr.Notes = r.Notes
	}
	return vr
}

func errorsOf(r *delegate.RunResult) []string {
	if r == nil {
		return nil
	}
	return r.Errors
}

func collectSearchNames(resultsByID map[string]*delegate.RunResult) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, r := range resultsByID {
		for _, s := range r.Steps {
			if s.Raw == nil {
				continue
			}
			if name, ok := s.Raw["searchName"].(string); ok && name != "" {
				if _, dup := seen[name]; !dup {
					seen[name] = struct{}{}
					names = append(names, name)
				}
			}
		}
	}
	return names
}

func deriveGraphMetadata(goal string) (name, description string) {
	trimmed := strings.TrimSpace(goal)
	const maxNameLen = 80
	name = trimmed
	if len(name) > maxNameLen {
		name = strings.TrimSpace(name[:maxNameLen]) + "..."
	}
	if name == "" {
		name = "Untitled strategy"
	}
	return name, trimmed
}

func renderPlan(plan *delegate.DelegationPlan) map[string]any {
	nodes := make([]map[string]any, 0, len(plan.NodesByID))
	for _, n := range plan.AllNodes() {
		nodes = append(nodes, map[string]any{
			"id": n.ID, "kind": string(n.Kind), "dependsOn": n.DependsOn,
		})
	}
	return map[string]any{"goal": plan.Goal, "nodes": nodes}
}
