package temporalengine

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Options configures a durable scheduling Engine.
type Options struct {
	// Client is a configured Temporal client. Required.
	Client client.Client
	// TaskQueue is the queue the engine's worker polls and the queue
	// delegation workflows are started on. Required.
	TaskQueue string
}

// Engine runs delegation plans as Temporal workflows. It is a second
// implementation of the DAG Scheduler's contract alongside scheduler.Run;
// no configuration setting selects it, so callers use it directly
// (SPEC_FULL.md section 11.6).
type Engine struct {
	client    client.Client
	taskQueue string
}

// NewEngine constructs an Engine from opts.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Client == nil {
		return nil, errors.New("temporalengine: client is required")
	}
	if opts.TaskQueue == "" {
		return nil, errors.New("temporalengine: task queue is required")
	}
	return &Engine{client: opts.Client, taskQueue: opts.TaskQueue}, nil
}

// NewWorker builds a worker.Worker registered with DelegationWorkflow and
// activities' RunNodeActivity, instrumented with the same OTEL tracing
// interceptor the teacher's temporal engine installs on every worker. The
// caller starts and stops it.
func (e *Engine) NewWorker(activities *Activities) (worker.Worker, error) {
	opts := worker.Options{}
	tracer, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
	if err != nil {
		return nil, fmt.Errorf("temporalengine: configure tracing interceptor: %w", err)
	}
	opts.Interceptors = append(opts.Interceptors, tracer)

	w := worker.New(e.client, e.taskQueue, opts)
	w.RegisterWorkflowWithOptions(DelegationWorkflow, workflow.RegisterOptions{Name: DelegationWorkflowName})
	w.RegisterActivityWithOptions(activities.RunNodeActivity, activity.RegisterOptions{Name: RunNodeActivityName})
	return w, nil
}

// RunDelegation starts a DelegationWorkflow execution and blocks until it
// completes, returning the same resultsByID shape scheduler.Run produces.
// When GraphID is set, the workflow id is derived from it and any later start
// for the same graph is rejected, even after the earlier run has closed, so a
// retried client request can't fork two deliveries of the same strategy.
func (e *Engine) RunDelegation(ctx context.Context, in WorkflowInput) (WorkflowOutput, error) {
	opts := client.StartWorkflowOptions{
		TaskQueue:             e.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	if in.GraphID != "" {
		opts.ID = "delegation-" + in.GraphID
	}
	run, err := e.client.ExecuteWorkflow(ctx, opts, DelegationWorkflowName, in)
	if err != nil {
		return WorkflowOutput{}, err
	}
	var out WorkflowOutput
	if err := run.Get(ctx, &out); err != nil {
		return WorkflowOutput{}, err
	}
	return out, nil
}
