// Package commands implements the temporal-n8n CLI subcommands: worker
// start, and workflow run/start/status/result.
package commands

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"

	"github.com/mfateev/n8n-sub001/internal/config"
	"github.com/mfateev/n8n-sub001/internal/model"
	"github.com/mfateev/n8n-sub001/internal/serialize"
)

// GlobalFlags carries the root command's persistent flags down to every
// subcommand.
type GlobalFlags struct {
	ConfigPath *string
	Verbose    *bool
}

func (g *GlobalFlags) loadConfig() (config.Config, error) {
	return config.Load(*g.ConfigPath)
}

// temporalClientOptions builds the dial options shared by the worker
// and every workflow client subcommand, including mutual-TLS material
// when the config names certificate paths.
func temporalClientOptions(cfg config.Config) (client.Options, error) {
	opts := client.Options{
		HostPort:      cfg.Temporal.Address,
		Namespace:     cfg.Temporal.Namespace,
		Identity:      cfg.Temporal.Identity,
		DataConverter: serialize.NewDataConverter(),
	}
	if cfg.Temporal.TLS == nil {
		return opts, nil
	}

	tlsCfg := &tls.Config{}
	if cfg.Temporal.TLS.CertPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Temporal.TLS.CertPath, cfg.Temporal.TLS.KeyPath)
		if err != nil {
			return client.Options{}, fmt.Errorf("load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if cfg.Temporal.TLS.CAPath != "" {
		caPEM, err := os.ReadFile(cfg.Temporal.TLS.CAPath)
		if err != nil {
			return client.Options{}, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return client.Options{}, fmt.Errorf("CA certificate %s contains no usable PEM data", cfg.Temporal.TLS.CAPath)
		}
		tlsCfg.RootCAs = pool
	}
	opts.ConnectionOptions = client.ConnectionOptions{TLS: tlsCfg}
	return opts, nil
}

func (g *GlobalFlags) newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// printError renders a SerializedError as a human-readable block, or as
// JSON when asJSON is set. The stack is only printed under --verbose.
func printError(serr *model.SerializedError, asJSON, verbose bool) {
	if asJSON {
		raw, _ := json.MarshalIndent(serr, "", "  ")
		fmt.Fprintln(os.Stderr, string(raw))
		return
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", serr.Message)
	if serr.Description != "" {
		fmt.Fprintf(os.Stderr, "  description: %s\n", serr.Description)
	}
	if serr.Node != "" {
		fmt.Fprintf(os.Stderr, "  node: %s\n", serr.Node)
	}
	if verbose && serr.Stack != "" {
		fmt.Fprintf(os.Stderr, "  stack:\n%s\n", serr.Stack)
	}
}

func loadWorkflowFile(path string) (model.WorkflowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.WorkflowDefinition{}, fmt.Errorf("read workflow file %s: %w", path, err)
	}
	var wf model.WorkflowDefinition
	if err := json.Unmarshal(raw, &wf); err != nil {
		return model.WorkflowDefinition{}, fmt.Errorf("parse workflow file %s: %w", path, err)
	}
	return wf, nil
}

func loadInputFile(path string) ([]model.ExecutionItem, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", path, err)
	}
	var items []model.ExecutionItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse input file %s: %w", path, err)
	}
	return items, nil
}
