// Command delegate-demo wires the full Delegation Core pipeline end to end:
// configuration, an in-memory strategy session, an Anthropic-backed agent,
// a small tool registry, the streaming event bus, and the orchestrator.
// It prints each event as it drains and the final summary, grounded on the
// teacher's cmd/ wiring style of a single main that composes interfaces
// rather than hiding composition behind a DI framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/veupathdb/strategy-delegate/delegate"
	"github.com/veupathdb/strategy-delegate/delegate/agent"
	"github.com/veupathdb/strategy-delegate/delegate/agent/model"
	"github.com/veupathdb/strategy-delegate/delegate/agent/model/anthropic"
	"github.com/veupathdb/strategy-delegate/delegate/config"
	"github.com/veupathdb/strategy-delegate/delegate/eventbus"
	"github.com/veupathdb/strategy-delegate/delegate/orchestrator"
	"github.com/veupathdb/strategy-delegate/delegate/session"
	"github.com/veupathdb/strategy-delegate/delegate/session/inmemsession"
	"github.com/veupathdb/strategy-delegate/delegate/toolregistry"
	"github.com/veupathdb/strategy-delegate/delegate/wdk"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Defaults()

	sessions := inmemsession.New()
	wdkClient := newFakeWDK()
	registry := buildRegistry(wdkClient)

	modelClient, err := buildModelClient()
	if err != nil {
		return err
	}
	limiter := model.NewRateLimiter(cfg.ModelRateLimit.InitialRPM, cfg.ModelRateLimit.MaxRPM)
	modelClient = limiter.Wrap(modelClient)

	engines := orchestrator.EngineFactory(func(node *delegate.Node) agent.SubAgentEngine {
		system := fmt.Sprintf("You are a biomedical data search sub-agent. Current task: %s", node.Task)
		return agent.NewRunner(modelClient, registry, system, toolDecls(registry))
	})

	deps := orchestrator.Dependencies{
		Sessions: sessions,
		WDK:      wdkClient,
		Engines:  engines,
		Config:   cfg,
	}

	bus := eventbus.New(256, time.Duration(cfg.EventBus.DrainGraceMillis)*time.Millisecond)

	plan := map[string]any{
		"type": "combine",
		"operator": "INTERSECT",
		"left": map[string]any{
			"type": "task",
			"task": "Find genes differentially expressed in P. falciparum during the ring stage.",
		},
		"right": map[string]any{
			"type": "task",
			"task": "Find genes annotated with kinase activity in P. falciparum.",
		},
	}

	req := orchestrator.Request{
		Goal:    "Find kinases differentially expressed during the ring stage of P. falciparum.",
		Plan:    plan,
		GraphID: uuid.NewString(),
		SiteID:  "plasmodb",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var summary *orchestrator.Summary
	var delegateErr *delegate.ToolError

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- bus.Drain(ctx, func(e delegate.Event) error {
			fmt.Printf("[%s] %v\n", e.Type(), e.Data())
			return nil
		})
	}()

	summary, delegateErr = orchestrator.Delegate(ctx, bus, req, deps)
	if err := <-drainDone; err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "event drain ended: %v\n", err)
	}

	if delegateErr != nil {
		return delegateErr
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
	return nil
}

func buildModelClient() (model.Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required to run the demo")
	}
	return anthropic.NewFromAPIKey(apiKey, "claude-sonnet-4-5")
}

func buildRegistry(client wdk.Client) *toolregistry.Registry {
	registry := toolregistry.NewRegistry()

	recordTypesSchema, _ := toolregistry.CompileSchema("get_record_types", map[string]any{
		"type": "object", "properties": map[string]any{}, "additionalProperties": false,
	})
	registry.Register(&toolregistry.Tool{
		Name:   "get_record_types",
		Schema: recordTypesSchema,
		Invoke: func(ctx context.Context, args map[string]any) (toolregistry.Result, error) {
			return toolregistry.Result{"ok": true, "recordTypes": []string{"gene", "transcript"}}, nil
		},
	})

	listSearchesSchema, _ := toolregistry.CompileSchema("list_searches", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recordType": map[string]any{"type": "string"},
		},
		"required": []any{"recordType"},
	})
	registry.Register(&toolregistry.Tool{
		Name:   "list_searches",
		Schema: listSearchesSchema,
		Invoke: func(ctx context.Context, args map[string]any) (toolregistry.Result, error) {
			return toolregistry.Result{"ok": true, "searches": []string{"GenesByExpression", "GenesByGOTerm"}}, nil
		},
	})

	searchParamsSchema, _ := toolregistry.CompileSchema("get_search_parameters", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"searchName": map[string]any{"type": "string"},
		},
		"required": []any{"searchName"},
	})
	registry.Register(&toolregistry.Tool{
		Name:   "get_search_parameters",
		Schema: searchParamsSchema,
		Invoke: func(ctx context.Context, args map[string]any) (toolregistry.Result, error) {
			return toolregistry.Result{"ok": true, "parameters": []string{"organism", "min_fold_change"}}, nil
		},
	})

	createStepSchema, _ := toolregistry.CompileSchema("create_step", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"searchName":  map[string]any{"type": "string"},
			"recordType":  map[string]any{"type": "string"},
			"parameters":  map[string]any{"type": "object"},
			"displayName": map[string]any{"type": "string"},
		},
		"required": []any{"searchName", "recordType", "parameters"},
	})
	registry.Register(&toolregistry.Tool{
		Name:   "create_step",
		Schema: createStepSchema,
		Invoke: func(ctx context.Context, args map[string]any) (toolregistry.Result, error) {
			searchName, _ := args["searchName"].(string)
			recordType, _ := args["recordType"].(string)
			params, _ := args["parameters"].(map[string]any)
			displayName, _ := args["displayName"].(string)

			resp, err := client.CreateStep(ctx, wdk.CreateStepRequest{
				SearchName:  searchName,
				RecordType:  recordType,
				Parameters:  params,
				DisplayName: displayName,
			})
			if err != nil {
				return toolregistry.Result{"ok": false, "code": "WDK_ERROR", "message": err.Error()}, nil
			}
			if !resp.OK {
				return toolregistry.Result{"ok": false, "code": resp.Code, "message": resp.Message}, nil
			}
			return toolregistry.Result{
				"ok": true, "stepId": resp.StepID, "displayName": resp.DisplayName,
				"searchName": searchName,
			}, nil
		},
	})

	return registry
}

func toolDecls(registry *toolregistry.Registry) []model.ToolDecl {
	var decls []model.ToolDecl
	for _, name := range registry.Names() {
		tool, _ := registry.Lookup(name)
		decls = append(decls, model.ToolDecl{Name: tool.Name})
	}
	return decls
}

// newFakeWDK returns an in-process stand-in for the real WDK query service,
// sufficient to exercise the orchestrator and Combine Executor without a
// live VEuPathDB deployment. It assigns sequential step ids and reports a
// fixed "gene" record type for every search, matching the demo plan's shape.
func newFakeWDK() wdk.Client { return &fakeWDK{} }

type fakeWDK struct {
	counter int
}

func (f *fakeWDK) CreateStep(ctx context.Context, req wdk.CreateStepRequest) (wdk.CreateStepResponse, error) {
	f.counter++
	id := fmt.Sprintf("step_%d", f.counter)
	name := req.DisplayName
	if name == "" {
		name = req.SearchName
	}
	return wdk.CreateStepResponse{OK: true, StepID: id, DisplayName: name}, nil
}

func (f *fakeWDK) GetRecordTypesForSearch(ctx context.Context, searchName string) ([]string, error) {
	return []string{"gene"}, nil
}

var _ session.Store = (*inmemsession.Store)(nil)
