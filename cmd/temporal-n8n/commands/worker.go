package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/mfateev/n8n-sub001/internal/orchestrator"
	"github.com/mfateev/n8n-sub001/internal/workerctx"
)

// NewWorkerCommand implements "worker start": a long-running process
// that registers the workflow function and the step task activity with
// the durable scheduler and blocks until it is asked to shut down.
// Exits 0 on a clean shutdown, 1 on initialization failure.
func NewWorkerCommand(flags *GlobalFlags) *cobra.Command {
	var taskQueueOverride string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the durable workflow worker",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the worker process and block until shutdown",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return runWorker(cobraCmd, flags, taskQueueOverride, concurrency)
		},
	}
	start.Flags().StringVar(&taskQueueOverride, "task-queue", "", "override the task queue name from the config file")
	start.Flags().IntVar(&concurrency, "concurrency", 0, "override the worker's max concurrent activity executions")

	cmd.AddCommand(start)
	return cmd
}

func runWorker(cobraCmd *cobra.Command, flags *GlobalFlags, taskQueueOverride string, concurrency int) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := flags.newLogger(cfg)

	if *flags.Verbose {
		cobraCmd.Flags().Visit(func(f *pflag.Flag) {
			logger.Debug("flag override", "flag", f.Name, "value", f.Value.String())
		})
	}

	taskQueue := cfg.Temporal.TaskQueue
	if taskQueueOverride != "" {
		taskQueue = taskQueueOverride
	}
	if concurrency > 0 {
		cfg.Temporal.MaxConcurrentActivityTaskExecutions = concurrency
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wctx, err := workerctx.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize worker context", "error", err)
		return err
	}

	clientOptions, err := temporalClientOptions(cfg)
	if err != nil {
		logger.Error("failed to build client options", "error", err)
		return err
	}
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to connect to the durable scheduler", "error", err, "address", cfg.Temporal.Address)
		return err
	}
	defer temporalClient.Close()

	if cfg.Temporal.MaxCachedWorkflows > 0 {
		worker.SetStickyWorkflowCacheSize(cfg.Temporal.MaxCachedWorkflows)
	}
	workerOptions := worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Temporal.MaxConcurrentActivityTaskExecutions,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Temporal.MaxConcurrentWorkflowTaskExecutions,
	}
	w := worker.New(temporalClient, taskQueue, workerOptions)

	w.RegisterWorkflow(orchestrator.RunWorkflow)
	w.RegisterActivityWithOptions(wctx.Step.Execute, activity.RegisterOptions{Name: orchestrator.ExecuteWorkflowStepName})

	logger.Info("starting durable workflow worker", "taskQueue", taskQueue, "address", cfg.Temporal.Address)

	// worker.InterruptCh traps SIGINT/SIGTERM itself; Run blocks until one
	// arrives (or the worker fails to start) and drains in-flight tasks
	// before returning.
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("worker stopped with error", "error", err)
		return err
	}
	logger.Info("worker stopped")
	return nil
}
