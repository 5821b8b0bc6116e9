package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/mfateev/n8n-sub001/internal/orchestrator"
)

// NewWorkflowCommand implements the workflow run/start/status/result
// client subcommands.
func NewWorkflowCommand(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Start, inspect, and await durable workflow executions",
	}
	cmd.AddCommand(newWorkflowRunCommand(flags))
	cmd.AddCommand(newWorkflowStartCommand(flags))
	cmd.AddCommand(newWorkflowStatusCommand(flags))
	cmd.AddCommand(newWorkflowResultCommand(flags))
	return cmd
}

func dialClient(flags *GlobalFlags) (client.Client, orchestrator.Options, string, error) {
	cfg, err := flags.loadConfig()
	if err != nil {
		return nil, orchestrator.Options{}, "", fmt.Errorf("load configuration: %w", err)
	}
	clientOptions, err := temporalClientOptions(cfg)
	if err != nil {
		return nil, orchestrator.Options{}, "", err
	}
	c, err := client.Dial(clientOptions)
	if err != nil {
		return nil, orchestrator.Options{}, "", fmt.Errorf("connect to durable scheduler: %w", err)
	}
	opts := orchestrator.Options{
		ActivityTimeout: cfg.Execution.ActivityTimeout.Std(),
		Retry: orchestrator.RetryPolicy{
			MaximumAttempts:    cfg.Execution.RetryPolicy.MaximumAttempts,
			InitialInterval:    cfg.Execution.RetryPolicy.InitialInterval.Std(),
			MaximumInterval:    cfg.Execution.RetryPolicy.MaximumInterval.Std(),
			BackoffCoefficient: cfg.Execution.RetryPolicy.BackoffCoefficient,
		},
		TaskQueue: cfg.Temporal.TaskQueue,
	}
	return c, opts, cfg.Temporal.TaskQueue, nil
}

func buildOrchestratorInput(workflowPath, inputPath, workflowID string) (orchestrator.Input, error) {
	wf, err := loadWorkflowFile(workflowPath)
	if err != nil {
		return orchestrator.Input{}, err
	}
	inputData, err := loadInputFile(inputPath)
	if err != nil {
		return orchestrator.Input{}, err
	}
	if workflowID == "" {
		workflowID = uuid.NewString()
	}
	return orchestrator.Input{
		WorkflowID:   workflowID,
		WorkflowName: wf.Name,
		Nodes:        wf.Nodes,
		Connections:  wf.Connections,
		Settings:     wf.Settings,
		StaticData:   wf.StaticData,
		InputData:    inputData,
		Mode:         "integrated",
	}, nil
}

func newWorkflowStartCommand(flags *GlobalFlags) *cobra.Command {
	var workflowPath, inputPath, taskQueue, workflowID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a workflow execution and return its workflow/run id",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c, opts, defaultTaskQueue, err := dialClient(flags)
			if err != nil {
				return err
			}
			defer c.Close()
			if taskQueue != "" {
				opts.TaskQueue = taskQueue
			} else {
				opts.TaskQueue = defaultTaskQueue
			}

			in, err := buildOrchestratorInput(workflowPath, inputPath, workflowID)
			if err != nil {
				return err
			}

			run, err := c.ExecuteWorkflow(context.Background(), client.StartWorkflowOptions{
				ID:        in.WorkflowID,
				TaskQueue: opts.TaskQueue,
			}, orchestrator.RunWorkflow, in, opts)
			if err != nil {
				return fmt.Errorf("start workflow execution: %w", err)
			}

			result := map[string]string{"workflowId": run.GetID(), "runId": run.GetRunID()}
			if asJSON {
				raw, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(raw))
			} else {
				fmt.Printf("workflowId: %s\nrunId: %s\n", run.GetID(), run.GetRunID())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workflowPath, "workflow", "", "path to the workflow definition file")
	cmd.Flags().StringVar(&inputPath, "input", "", "path to a JSON array of initial execution items")
	cmd.Flags().StringVar(&taskQueue, "task-queue", "", "override the task queue from the config file")
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow id to assign (default: a generated UUID)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable JSON")
	cmd.MarkFlagRequired("workflow")
	return cmd
}

func newWorkflowRunCommand(flags *GlobalFlags) *cobra.Command {
	var workflowPath, inputPath, taskQueue, workflowID string
	var timeout time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a workflow execution and wait for its result",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c, opts, defaultTaskQueue, err := dialClient(flags)
			if err != nil {
				return err
			}
			defer c.Close()
			if taskQueue != "" {
				opts.TaskQueue = taskQueue
			} else {
				opts.TaskQueue = defaultTaskQueue
			}

			in, err := buildOrchestratorInput(workflowPath, inputPath, workflowID)
			if err != nil {
				return err
			}

			ctx := context.Background()
			var cancel context.CancelFunc
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
				ID:        in.WorkflowID,
				TaskQueue: opts.TaskQueue,
			}, orchestrator.RunWorkflow, in, opts)
			if err != nil {
				return fmt.Errorf("start workflow execution: %w", err)
			}

			var out orchestrator.Output
			if err := run.Get(ctx, &out); err != nil {
				fmt.Fprintf(os.Stderr, "error: workflow execution failed: %s\n", err)
				os.Exit(1)
			}

			if out.Status != orchestrator.StatusSuccess {
				if out.Error != nil {
					printError(out.Error, asJSON, *flags.Verbose)
				}
				os.Exit(1)
			}

			if asJSON {
				raw, _ := json.MarshalIndent(out.Data, "", "  ")
				fmt.Println(string(raw))
			} else {
				for _, item := range out.Data {
					raw, _ := json.Marshal(item.JSON)
					fmt.Println(string(raw))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workflowPath, "workflow", "", "path to the workflow definition file")
	cmd.Flags().StringVar(&inputPath, "input", "", "path to a JSON array of initial execution items")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "maximum time to wait for the result (0 = no timeout)")
	cmd.Flags().StringVar(&taskQueue, "task-queue", "", "override the task queue from the config file")
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow id to assign (default: a generated UUID)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable JSON")
	cmd.MarkFlagRequired("workflow")
	return cmd
}

func newWorkflowStatusCommand(flags *GlobalFlags) *cobra.Command {
	var workflowID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a workflow execution's current scheduler status",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c, _, _, err := dialClient(flags)
			if err != nil {
				return err
			}
			defer c.Close()

			desc, err := c.DescribeWorkflowExecution(context.Background(), workflowID, "")
			if err != nil {
				return fmt.Errorf("describe workflow execution %s: %w", workflowID, err)
			}
			status := desc.WorkflowExecutionInfo.GetStatus().String()

			if asJSON {
				raw, _ := json.MarshalIndent(map[string]string{"workflowId": workflowID, "status": status}, "", "  ")
				fmt.Println(string(raw))
			} else {
				fmt.Printf("workflowId: %s\nstatus: %s\n", workflowID, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow id to inspect")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable JSON")
	cmd.MarkFlagRequired("workflow-id")
	return cmd
}

func newWorkflowResultCommand(flags *GlobalFlags) *cobra.Command {
	var workflowID string
	var wait bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "result",
		Short: "Print a workflow execution's final output or error",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c, _, _, err := dialClient(flags)
			if err != nil {
				return err
			}
			defer c.Close()

			if !wait {
				desc, err := c.DescribeWorkflowExecution(context.Background(), workflowID, "")
				if err != nil {
					return fmt.Errorf("describe workflow execution %s: %w", workflowID, err)
				}
				if desc.WorkflowExecutionInfo.GetCloseTime() == nil {
					return fmt.Errorf("workflow execution %s has not completed; pass --wait to block", workflowID)
				}
			}

			run := c.GetWorkflow(context.Background(), workflowID, "")
			var out orchestrator.Output
			if err := run.Get(context.Background(), &out); err != nil {
				fmt.Fprintf(os.Stderr, "error: workflow execution failed: %s\n", err)
				os.Exit(1)
			}

			if out.Error != nil {
				printError(out.Error, asJSON, *flags.Verbose)
				os.Exit(1)
			}

			if asJSON {
				raw, _ := json.MarshalIndent(out.Data, "", "  ")
				fmt.Println(string(raw))
			} else {
				for _, item := range out.Data {
					raw, _ := json.Marshal(item.JSON)
					fmt.Println(string(raw))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "workflow id to inspect")
	cmd.Flags().BoolVar(&wait, "wait", false, "block until the workflow execution completes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable JSON")
	cmd.MarkFlagRequired("workflow-id")
	return cmd
}
