// Package nodetype loads and serves node-type descriptors and their
// execute function by (typeName, version). The step task depends only
// on the Registry interface; loading node types from external packages
// is left to whatever wires a concrete Registry together (here, an
// in-memory one seeded with a handful of built-in node types).
package nodetype

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mfateev/n8n-sub001/internal/model"
)

// Logger is the leveled, contextual logging sink handed to a node's
// execute function through its ExecutionContext.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

// HTTPRequestOptions describes an outbound HTTP request a node issues
// through helpers.HTTPRequest. Credential authentication is not applied
// to it: credential.Resolver.Authenticate decorates its own
// credential.RequestOptions type instead.
type HTTPRequestOptions struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    interface{}
	Timeout time.Duration
}

// HTTPResponse is the result of an outbound HTTP request.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Helpers bundles the utility surface a node's execute function gets:
// HTTP and binary data; it has no JSON-parsing helper. Binary read/write goes through the
// binary data collaborator; this interface only depends on its narrow
// shape, not a concrete implementation.
type Helpers interface {
	HTTPRequest(ctx context.Context, opts HTTPRequestOptions) (HTTPResponse, error)
	StoreBinary(ctx context.Context, data []byte, fileName, mimeType string) (model.BinaryRef, error)
	ReadBinary(ctx context.Context, ref model.BinaryRef) ([]byte, error)
}

// ExecutionContext is the per-node execution surface a node's execute
// function runs against. nodetype only depends on this interface;
// internal/execcontext provides the concrete implementation so that
// nodetype itself stays free of any dependency on RunState or a running
// execution.
type ExecutionContext interface {
	GetInputData(port, index int) []model.ExecutionItem
	GetNodeParameter(name string, itemIndex int, fallback interface{}) (interface{}, error)
	GetCredentials(ctx context.Context, typeName string, itemIndex int) (map[string]interface{}, error)
	GetWorkflow() map[string]interface{}
	GetNode() model.Node
	GetExecutionID() string
	GetMode() string
	Logger() Logger
	Helpers() Helpers
	ContinueOnFail() bool
	SetWaitTill(t time.Time)
}

// ExecuteFunc is a node type's side-effecting body. It returns items per
// output port (outer slice = ports, inner = items on that port), or an
// error the step task classifies against the node's continueOnFail
// setting.
type ExecuteFunc func(ctx context.Context, ec ExecutionContext) ([][]model.ExecutionItem, error)

// Descriptor describes one node type, optionally as a versioned bundle
// of several ExecuteFuncs.
type Descriptor struct {
	TypeName       string
	CurrentVersion int
	Execute        ExecuteFunc         // used when Versions is nil
	Versions       map[int]ExecuteFunc // used for a versioned bundle
	IsTrigger      bool
}

// ErrUnknownNodeType is returned when a typeName has no registered
// descriptor.
type ErrUnknownNodeType struct{ TypeName string }

func (e *ErrUnknownNodeType) Error() string {
	return fmt.Sprintf("nodetype: unknown node type %q", e.TypeName)
}

// ErrUnknownNodeVersion is returned when a versioned bundle has no entry
// for the requested version.
type ErrUnknownNodeVersion struct {
	TypeName string
	Version  int
}

func (e *ErrUnknownNodeVersion) Error() string {
	return fmt.Sprintf("nodetype: %q has no version %d", e.TypeName, e.Version)
}

// KnownTypes is the catalog returned by GetKnownTypes.
type KnownTypes struct {
	Nodes       []string
	Credentials []string
}

// Registry loads and serves node-type descriptors and their execute
// function by (typeName, version).
type Registry interface {
	GetByName(typeName string) (Descriptor, error)
	GetByNameAndVersion(typeName string, version int) (ExecuteFunc, error)
	GetKnownTypes() KnownTypes
	HasNode(typeName string) bool
}

// InMemoryRegistry is a process-wide, read-only-during-dispatch registry
// of node type descriptors.
type InMemoryRegistry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	credTypes   []string
}

// NewInMemoryRegistry creates an empty registry. Callers register
// descriptors with Register; internal/workerctx wires the built-in set
// from this package's RegisterBuiltins.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{descriptors: make(map[string]Descriptor)}
}

// Register adds or replaces a node type descriptor.
func (r *InMemoryRegistry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.TypeName] = d
}

// RegisterCredentialType records a credential type name in the catalog
// returned by GetKnownTypes.
func (r *InMemoryRegistry) RegisterCredentialType(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credTypes = append(r.credTypes, name)
}

func (r *InMemoryRegistry) GetByName(typeName string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[typeName]
	if !ok {
		return Descriptor{}, &ErrUnknownNodeType{TypeName: typeName}
	}
	return d, nil
}

func (r *InMemoryRegistry) GetByNameAndVersion(typeName string, version int) (ExecuteFunc, error) {
	d, err := r.GetByName(typeName)
	if err != nil {
		return nil, err
	}
	v := version
	if v == 0 {
		v = d.CurrentVersion
	}
	if d.Versions != nil {
		fn, ok := d.Versions[v]
		if !ok {
			return nil, &ErrUnknownNodeVersion{TypeName: typeName, Version: v}
		}
		return fn, nil
	}
	return d.Execute, nil
}

func (r *InMemoryRegistry) GetKnownTypes() KnownTypes {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kt := KnownTypes{Credentials: append([]string(nil), r.credTypes...)}
	for name := range r.descriptors {
		kt.Nodes = append(kt.Nodes, name)
	}
	return kt
}

func (r *InMemoryRegistry) HasNode(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[typeName]
	return ok
}

var _ Registry = (*InMemoryRegistry)(nil)
