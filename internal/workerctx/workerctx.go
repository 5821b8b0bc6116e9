// Package workerctx bootstraps the collaborators the step task needs
// (node type registry, credential resolver, binary data helper, logger)
// from a loaded config.Config and bundles them into an explicit
// WorkerContext value threaded through the worker bootstrap. Nothing
// here is a package-level singleton; the step task reaches no global
// mutable state.
package workerctx

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mfateev/n8n-sub001/internal/binarydata"
	"github.com/mfateev/n8n-sub001/internal/config"
	"github.com/mfateev/n8n-sub001/internal/credential"
	"github.com/mfateev/n8n-sub001/internal/execcontext"
	"github.com/mfateev/n8n-sub001/internal/nodetype"
	"github.com/mfateev/n8n-sub001/internal/step"
)

// WorkerContext bundles every collaborator the step task activity
// consumes, built once at worker startup and handed to step.Task.
type WorkerContext struct {
	Config      config.Config
	Logger      *slog.Logger
	Registry    *nodetype.InMemoryRegistry
	Credentials *credential.Resolver
	Binary      binarydata.Helper
	Step        *step.Task
}

// Build constructs a WorkerContext from a loaded configuration: it opens
// the credential store, builds the AES-256-GCM cipher from the
// CREDENTIALS_ENCRYPTION_KEY environment variable, wires the binary data
// backend selected by cfg.BinaryData.Mode, and seeds the built-in node
// type registry.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*WorkerContext, error) {
	registry := nodetype.NewInMemoryRegistry()
	nodetype.RegisterBuiltins(registry)

	credStore := credential.NewStore(cfg.Credentials.Path)
	if err := credStore.Load(); err != nil {
		return nil, fmt.Errorf("workerctx: load credential store: %w", err)
	}

	cipher, err := buildCipher()
	if err != nil {
		return nil, fmt.Errorf("workerctx: build credential cipher: %w", err)
	}

	resolver := credential.NewResolver(credStore, cipher, map[string]credential.TypeDescriptor{}, nil)

	binaryHelper, err := buildBinaryHelper(ctx, cfg.BinaryData)
	if err != nil {
		return nil, fmt.Errorf("workerctx: build binary data helper: %w", err)
	}

	stepTask := &step.Task{
		Registry:    registry,
		Credentials: resolver,
		Binary:      binaryHelper,
		HTTPClient:  http.DefaultClient,
		LogFactory: func(workflowID, executionID, nodeName string) nodetype.Logger {
			return execcontext.NewSlogLogger(logger, workflowID, executionID, nodeName)
		},
	}

	return &WorkerContext{
		Config:      cfg,
		Logger:      logger,
		Registry:    registry,
		Credentials: resolver,
		Binary:      binaryHelper,
		Step:        stepTask,
	}, nil
}

func buildCipher() (*credential.Cipher, error) {
	keyHex := os.Getenv("CREDENTIALS_ENCRYPTION_KEY")
	if keyHex == "" {
		return nil, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY environment variable is required (32 raw bytes, hex-encoded)")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY: %w", err)
	}
	return credential.NewCipher(key)
}

func buildBinaryHelper(ctx context.Context, cfg config.BinaryDataConfig) (binarydata.Helper, error) {
	switch cfg.Mode {
	case "s3":
		return binarydata.NewS3Helper(ctx, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.Region)
	case "filesystem", "":
		return binarydata.NewFilesystemHelper(cfg.Filesystem.BasePath), nil
	default:
		return nil, fmt.Errorf("unknown binaryData.mode %q", cfg.Mode)
	}
}
