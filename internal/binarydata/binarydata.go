// Package binarydata offloads binary payloads to either the local
// filesystem or an object store, addressed by a mode-namespaced id
// ("filesystem:…" or "s3:…"). It is consumed by the execution context's
// helpers surface, never by the orchestrator.
package binarydata

import (
	"context"
	"fmt"
)

// Locator identifies which execution a binary payload belongs to, used
// to build its storage key
// (workflows/{workflowId}/executions/{executionId}/binary_data/{uuid}).
type Locator struct {
	WorkflowID  string
	ExecutionID string
}

// Metadata describes a stored binary payload without its bytes.
type Metadata struct {
	FileSize int64
	FileName string
	MimeType string
}

// StoreOptions carries optional metadata supplied at store time.
type StoreOptions struct {
	FileName string
	MimeType string
}

// Helper is the BinaryDataHelper collaborator interface.
type Helper interface {
	Store(ctx context.Context, loc Locator, data []byte, opts StoreOptions) (id string, fileSize int64, err error)
	GetAsBuffer(ctx context.Context, id string) ([]byte, error)
	GetMetadata(ctx context.Context, id string) (Metadata, error)
	Delete(ctx context.Context, id string) error
}

// ErrUnknownMode is returned when an id's mode prefix matches no
// registered backend.
type ErrUnknownMode struct{ ID string }

func (e *ErrUnknownMode) Error() string {
	return fmt.Sprintf("binarydata: id %q has no recognized mode prefix", e.ID)
}
