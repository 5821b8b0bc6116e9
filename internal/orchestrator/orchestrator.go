// Package orchestrator implements the deterministic workflow function
// registered with the durable scheduler. It owns no collaborators and
// performs no I/O of
// its own; every side effect — node execution, the wall clock, any
// randomness — is delegated to the Workflow Step Task activity. The
// only non-deterministic-looking operations it performs (timers,
// cancellation) go through workflow.Context primitives, which the
// scheduler replays deterministically.
package orchestrator

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/n8n-sub001/internal/model"
	"github.com/mfateev/n8n-sub001/internal/state"
	"github.com/mfateev/n8n-sub001/internal/step"
)

// Status is the terminal state of one workflow execution.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusWaiting  Status = "waiting"
	StatusCanceled Status = "canceled"
)

// Input is RunWorkflow's argument: the workflow graph plus the initial
// items fed to the start node.
type Input struct {
	WorkflowID   string
	WorkflowName string
	Nodes        []model.Node
	Connections  model.Connections
	Settings     map[string]interface{}
	StaticData   map[string]interface{}
	InputData    []model.ExecutionItem
	Mode         string
}

// Output is RunWorkflow's result. RunState is returned in full so a
// caller can inspect the final accumulated history; the workflow
// run/result CLI commands read only Data and Error.
type Output struct {
	Success  bool
	Data     []model.ExecutionItem
	Error    *model.SerializedError
	RunState model.RunState
	Status   Status
}

// RetryPolicy configures the step-task activity's retry behavior.
type RetryPolicy struct {
	MaximumAttempts    int32
	InitialInterval    time.Duration
	MaximumInterval    time.Duration
	BackoffCoefficient float64
}

// DefaultRetryPolicy is the step-task default: 3 attempts, exponential
// backoff from 1s to 60s, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaximumAttempts:    3,
		InitialInterval:    time.Second,
		MaximumInterval:    time.Minute,
		BackoffCoefficient: 2.0,
	}
}

// Options configures activity scheduling for the step task.
type Options struct {
	ActivityTimeout time.Duration
	Retry           RetryPolicy
	TaskQueue       string
}

// DefaultOptions returns sensible defaults: a 5-minute activity timeout
// and the default retry policy.
func DefaultOptions() Options {
	return Options{ActivityTimeout: 5 * time.Minute, Retry: DefaultRetryPolicy()}
}

// ExecuteWorkflowStepName is the activity name registered by cmd/temporal-n8n
// (bound to a step.Task method at worker registration time); RunWorkflow
// only ever references it by name so the workflow definition itself
// carries no collaborator state.
const ExecuteWorkflowStepName = "executeWorkflowStep"

// RunWorkflow drives one workflow execution to completion: it loops
// submitting the accumulated run state to the step task, merges each
// returned diff, sleeps on a durable timer when a step reports a wait
// instant, and returns the final verdict with the last node's output.
func RunWorkflow(ctx workflow.Context, in Input, opts Options) (Output, error) {
	logger := workflow.GetLogger(ctx)

	activityOpts := workflow.ActivityOptions{
		StartToCloseTimeout: opts.ActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    opts.Retry.InitialInterval,
			BackoffCoefficient: opts.Retry.BackoffCoefficient,
			MaximumInterval:    opts.Retry.MaximumInterval,
			MaximumAttempts:    opts.Retry.MaximumAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOpts)

	runState := state.Empty()
	previouslyExecuted := state.PreviouslyExecutedNodes(runState)

	workflowDef := model.WorkflowDefinition{
		ID:          in.WorkflowID,
		Name:        in.WorkflowName,
		Nodes:       in.Nodes,
		Connections: in.Connections,
		Settings:    in.Settings,
		StaticData:  in.StaticData,
	}
	mode := in.Mode
	if mode == "" {
		mode = "integrated"
	}

	firstIteration := true
	for {
		if err := ctx.Err(); err != nil {
			return Output{RunState: *runState, Status: StatusCanceled}, nil
		}

		stepIn := step.Input{
			Workflow:                workflowDef,
			RunState:                *runState,
			PreviouslyExecutedNodes: previouslyExecuted,
			Mode:                    mode,
			ExecutionID:             workflow.GetInfo(ctx).WorkflowExecution.ID,
		}
		if firstIteration {
			stepIn.InputData = in.InputData
		}
		firstIteration = false

		var stepOut step.Output
		future := workflow.ExecuteActivity(ctx, ExecuteWorkflowStepName, stepIn)
		if err := future.Get(ctx, &stepOut); err != nil {
			var canceledErr *temporal.CanceledError
			if errors.As(err, &canceledErr) {
				return Output{RunState: *runState, Status: StatusCanceled}, nil
			}
			serr := model.NewSchedulerFailureError(err.Error())
			runState.ResultData.Error = serr
			return Output{Success: false, Error: serr, RunState: *runState, Status: StatusError}, nil
		}

		state.MergeDiff(runState, stepOut.NewRunData)
		runState.ExecutionData = stepOut.ExecutionData
		if stepOut.LastNodeExecuted != "" {
			runState.ResultData.LastNodeExecuted = stepOut.LastNodeExecuted
		}

		if stepOut.WaitTill != nil {
			state.SetWaitTill(runState, nil)
			logger.Info("workflow suspended on wait node", "waitTill", stepOut.WaitTill)
			if err := workflow.NewTimer(ctx, stepOut.WaitTill.Sub(workflow.Now(ctx))).Get(ctx, nil); err != nil {
				var canceledErr *temporal.CanceledError
				if errors.As(err, &canceledErr) {
					return Output{RunState: *runState, Status: StatusCanceled}, nil
				}
				serr := model.NewSchedulerFailureError(err.Error())
				runState.ResultData.Error = serr
				return Output{Success: false, Error: serr, RunState: *runState, Status: StatusError}, nil
			}
			previouslyExecuted = state.PreviouslyExecutedNodes(runState)
			continue
		}

		if stepOut.Error != nil {
			runState.ResultData.Error = stepOut.Error
			return Output{Success: false, Error: stepOut.Error, RunState: *runState, Status: StatusError}, nil
		}

		return Output{Success: true, Data: stepOut.FinalOutput, RunState: *runState, Status: StatusSuccess}, nil
	}
}
