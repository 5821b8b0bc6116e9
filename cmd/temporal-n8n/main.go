// Command temporal-n8n is the worker bootstrap and operator CLI: it
// loads configuration, instantiates the engine's collaborators,
// registers the workflow function and step task with the durable
// scheduler, and exposes client commands to start, inspect, and await
// workflow executions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mfateev/n8n-sub001/cmd/temporal-n8n/commands"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:   "temporal-n8n",
		Short: "Durable workflow execution engine worker and client",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./temporal-n8n.config.json", "path to the worker configuration file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "print stack traces and extended diagnostics on failure")

	ctx := &commands.GlobalFlags{ConfigPath: &configPath, Verbose: &verbose}
	root.AddCommand(commands.NewWorkerCommand(ctx))
	root.AddCommand(commands.NewWorkflowCommand(ctx))
	return root
}
