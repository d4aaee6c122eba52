// Package compiler implements the Plan Compiler & Validator: it parses a
// model-produced nested plan into a validated, deduplicated, acyclic
// DelegationPlan, grounded on
// ai/orchestration/delegation.py's build_delegation_plan.
package compiler

import (
	"strings"

	"github.com/veupathdb/strategy-delegate/delegate"
)

// compileState holds the mutable bookkeeping a single Compile call threads
// through its recursive compile_node calls: a monotonic node counter, the
// flat task/combine lists being built, and the structural-dedup signature
// index.
type compileState struct {
	goal           string
	nodeCounter    int
	tasks          []*delegate.Node
	combines       []*delegate.Node
	seenSignatures map[string]string
}

// Compile parses plan (a JSON-object-shaped nested tree, per spec.md section
// 3) into a DelegationPlan, or returns a *delegate.ToolError describing the
// first validation failure encountered: code VALIDATION_ERROR for invalid
// COLOCATE parameters, DELEGATION_PLAN_INVALID for everything else.
func Compile(goal string, plan map[string]any) (*delegate.DelegationPlan, *delegate.ToolError) {
	if plan == nil {
		return nil, planError(goal, "plan is required when delegating.", "Provide a nested plan object as 'plan'.", nil)
	}

	st := &compileState{
		goal:           goal,
		seenSignatures: make(map[string]string),
	}

	rootID, err := st.compileNode(plan)
	if err != nil {
		return nil, err
	}

	nodesByID := make(map[string]*delegate.Node, len(st.tasks)+len(st.combines))
	for _, n := range st.tasks {
		nodesByID[n.ID] = n
	}
	for _, n := range st.combines {
		nodesByID[n.ID] = n
	}

	if _, ok := nodesByID[rootID]; !ok {
		return nil, planError(goal, "Invalid root node.", "Root id missing after compilation.", map[string]any{"rootId": rootID})
	}

	indegree := make(map[string]int, len(nodesByID))
	dependents := make(map[string][]string, len(nodesByID))
	for id := range nodesByID {
		indegree[id] = 0
		dependents[id] = nil
	}
	for id, n := range nodesByID {
		for _, dep := range n.DependsOn {
			if _, ok := nodesByID[dep]; !ok {
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	queue := make([]string, 0, len(nodesByID))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	pending := make(map[string]int, len(indegree))
	for id, deg := range indegree {
		pending[id] = deg
	}
	processed := 0
	for len(queue) > 0 {
		// LIFO pop, matching the Python original's list.pop() and the
		// scheduler's own LIFO ready list (see delegate/scheduler). This is
		// an explicit implementation choice for the "Open question" spec.md
		// Design Notes section 9 leaves unresolved.
		current := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		processed++
		for _, child := range dependents[current] {
			pending[child]--
			if pending[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed != len(nodesByID) {
		return nil, planError(goal, "Dependency cycle detected.", "Cycle detected in delegation graph (tasks/combines). Replan and retry.", nil)
	}

	return &delegate.DelegationPlan{
		Goal:       goal,
		Tasks:      st.tasks,
		Combines:   st.combines,
		NodesByID:  nodesByID,
		Dependents: dependents,
	}, nil
}

func planError(goal, message, detail string, extra map[string]any) *delegate.ToolError {
	fields := map[string]any{"goal": goal, "detail": detail}
	for k, v := range extra {
		fields[k] = v
	}
	return delegate.New(delegate.CodeDelegationPlanInvalid, message).WithFields(fields)
}

func (st *compileState) newID() string {
	st.nodeCounter++
	return idFor(st.nodeCounter)
}

func idFor(n int) string {
	// node_N, matching the original's f"node_{node_counter}".
	return "node_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

// getField reads the first of keys present in node, mirroring _get_field's
// multi-key alias lookup.
func getField(node map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := node[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// compileNode is the recursive descent over the nested plan tree, grounded
// on compile_node in ai/orchestration/delegation.py.
func (st *compileState) compileNode(node any) (string, *delegate.ToolError) {
	obj, ok := node.(map[string]any)
	if !ok {
		return "", planError(st.goal, "Invalid plan node.", "Each node must be an object.", nil)
	}

	nodeType := strings.ToLower(strings.TrimSpace(asString(firstOf(obj, "type", "kind"))))

	if nodeType == "" {
		op, hasOp := getField(obj, "operator", "op")
		_, hasLeft := getField(obj, "left")
		_, hasRight := getField(obj, "right")
		_, hasInputs := getField(obj, "inputs")
		if hasOp && op != nil && (hasLeft || hasRight || hasInputs) {
			nodeType = "combine"
		} else if t, hasTask := getField(obj, "task", "text"); hasTask && t != nil {
			nodeType = "task"
		}
	}

	if nodeType == "" {
		if _, hasID := obj["id"]; hasID {
			return "", planError(st.goal, "Invalid plan node.",
				"Do not use id-only references. Provide a full node object with 'type'.", nil)
		}
	}

	switch nodeType {
	case "combine", "op", "operator":
		return st.compileCombine(obj)
	case "task", "step", "subtask":
		return st.compileTask(obj)
	default:
		return "", planError(st.goal, "Invalid node type.", "Node 'type' must be either 'task' or 'combine'.",
			map[string]any{"nodeId": obj["id"], "nodeType": nodeType})
	}
}

func firstOf(obj map[string]any, keys ...string) any {
	v, _ := getField(obj, keys...)
	return v
}

func (st *compileState) compileCombine(obj map[string]any) (string, *delegate.ToolError) {
	opRaw, _ := getField(obj, "operator", "op")
	operator, perr := delegate.ParseOp(asString(opRaw))
	if perr != nil {
		return "", planError(st.goal, "Invalid combine operator.", "Combine node requires a valid operator.",
			map[string]any{"nodeId": obj["id"], "operator": opRaw})
	}

	var leftNode, rightNode any
	if inputsRaw, ok := getField(obj, "inputs"); ok && inputsRaw != nil {
		inputs, ok := inputsRaw.([]any)
		if !ok || len(inputs) != 2 {
			return "", planError(st.goal, "Invalid combine inputs.",
				"Combine node inputs must be a list of exactly 2 child nodes.",
				map[string]any{"nodeId": obj["id"]})
		}
		leftNode, rightNode = inputs[0], inputs[1]
	} else {
		leftNode, _ = getField(obj, "left")
		rightNode, _ = getField(obj, "right")
		if leftNode == nil || rightNode == nil {
			return "", planError(st.goal, "Invalid combine inputs.",
				"Combine node requires left and right child nodes.",
				map[string]any{"nodeId": obj["id"]})
		}
	}

	leftID, err := st.compileNode(leftNode)
	if err != nil {
		return "", err
	}
	rightID, err := st.compileNode(rightNode)
	if err != nil {
		return "", err
	}

	displayName := asString(firstOf(obj, "display_name", "displayName"))
	hint := asString(firstOf(obj, "hint"))

	var coloc *delegate.ColocationParams
	if operator == delegate.OpColocate {
		up := asInt(firstOf(obj, "upstream"))
		down := asInt(firstOf(obj, "downstream"))
		strandRaw := asString(firstOf(obj, "strand"))
		strand, serr := delegate.ParseStrand(strandRaw)
		if serr != nil {
			return "", delegate.New(delegate.CodeValidationError, serr.Error()).WithFields(map[string]any{"nodeId": obj["id"]})
		}
		cp := delegate.ColocationParams{Upstream: up, Downstream: down, Strand: strand}
		if verr := cp.Validate(); verr != nil {
			return "", delegate.New(delegate.CodeValidationError, verr.Error()).WithFields(map[string]any{"nodeId": obj["id"]})
		}
		coloc = &cp
	}

	sigObj := map[string]any{
		"kind":        "combine",
		"operator":    string(operator),
		"inputs":      []any{leftID, rightID},
		"display_name": displayName,
		"hint":        hint,
	}
	signature := delegate.CanonSignature(sigObj)
	if existing, ok := st.seenSignatures[signature]; ok {
		return existing, nil
	}

	id := st.newID()
	st.seenSignatures[signature] = id

	finalDisplayName := displayName
	if finalDisplayName == "" {
		finalDisplayName = "Combine " + id + " (" + string(operator) + ")"
	}

	n := &delegate.Node{
		ID:          id,
		Kind:        delegate.KindCombine,
		DependsOn:   []string{leftID, rightID},
		Operator:    operator,
		Inputs:      [2]string{leftID, rightID},
		DisplayName: finalDisplayName,
		Hint:        hint,
		Colocation:  coloc,
	}
	st.combines = append(st.combines, n)
	return id, nil
}

func (st *compileState) compileTask(obj map[string]any) (string, *delegate.ToolError) {
	taskText := strings.TrimSpace(asString(firstOf(obj, "task", "text")))
	if taskText == "" {
		return "", planError(st.goal, "Invalid task node.", "Task node requires a non-empty 'task' string.",
			map[string]any{"nodeId": obj["id"]})
	}
	hint := strings.TrimSpace(asString(firstOf(obj, "hint")))

	ctxVal, hasCtx := getField(obj, "context", "parameters", "params")
	if hasCtx && ctxVal != nil {
		switch ctxVal.(type) {
		case map[string]any, []any, string, int, int64, float64, bool:
		default:
			return "", planError(st.goal, "Invalid task context.",
				"Task node 'context' must be a JSON-serializable object/array/string/primitive.",
				map[string]any{"nodeId": obj["id"], "contextType": typeName(ctxVal)})
		}
	}

	var dependsOn []string
	if inputNode, ok := getField(obj, "input"); ok && inputNode != nil {
		depID, err := st.compileNode(inputNode)
		if err != nil {
			return "", err
		}
		dependsOn = []string{depID}
	}

	sigObj := map[string]any{
		"kind":       "task",
		"task":       taskText,
		"hint":       hint,
		"context":    ctxVal,
		"depends_on": toAnySlice(dependsOn),
	}
	signature := delegate.CanonSignature(sigObj)
	if existing, ok := st.seenSignatures[signature]; ok {
		return existing, nil
	}

	id := st.newID()
	st.seenSignatures[signature] = id

	n := &delegate.Node{
		ID:        id,
		Kind:      delegate.KindTask,
		DependsOn: dependsOn,
		Task:      taskText,
		Hint:      hint,
		Context:   ctxVal,
	}
	st.tasks = append(st.tasks, n)
	return id, nil
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// asInt coerces a decoded JSON number (always float64 via encoding/json into
// map[string]any) or a native Go int/int64 into an int, matching the numeric
// type set typeName() already accounts for. Non-numeric or absent values
// yield 0.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "dict"
	case []any:
		return "list"
	case string:
		return "str"
	case int, int64, float64:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "NoneType"
	default:
		return "unknown"
	}
}
