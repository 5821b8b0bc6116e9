// Package execcontext builds the per-node execution environment: the
// facade a node type's ExecuteFunc runs against, giving it
// read access to its input items, resolved parameters, credentials, and
// workflow metadata, plus the Helpers/Logger utility surface. It
// implements nodetype.ExecutionContext; nodetype itself stays free of
// any dependency on RunState or a concrete execution.
package execcontext

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mfateev/n8n-sub001/internal/binarydata"
	"github.com/mfateev/n8n-sub001/internal/credential"
	"github.com/mfateev/n8n-sub001/internal/expression"
	"github.com/mfateev/n8n-sub001/internal/model"
	"github.com/mfateev/n8n-sub001/internal/nodetype"
)

// Context is the concrete nodetype.ExecutionContext backing one node
// execution: the pending frame popped off the execution stack, the
// run data accumulated so far (for $node references), and the
// collaborators a node's execute function may reach.
type Context struct {
	frame       model.ExecuteFrame
	workflow    *model.WorkflowDefinition
	runData     map[string][]model.TaskData
	mode        string
	executionID string

	credentials *credential.Resolver
	binary      binarydata.Helper
	helpers     nodetype.Helpers
	logger      nodetype.Logger

	waitTill *time.Time
}

// New builds a Context for one popped execution frame.
func New(
	frame model.ExecuteFrame,
	workflow *model.WorkflowDefinition,
	runData map[string][]model.TaskData,
	mode, executionID string,
	credentials *credential.Resolver,
	binary binarydata.Helper,
	helpers nodetype.Helpers,
	logger nodetype.Logger,
) *Context {
	return &Context{
		frame:       frame,
		workflow:    workflow,
		runData:     runData,
		mode:        mode,
		executionID: executionID,
		credentials: credentials,
		binary:      binary,
		helpers:     helpers,
		logger:      logger,
	}
}

// GetInputData returns the items that arrived on input port port. index
// selects which recorded run of that port to read (always 0 outside a
// loop); it is currently unused by any built-in node but kept so a
// future looping node type can address a specific prior run without an
// interface change.
func (c *Context) GetInputData(port, _ int) []model.ExecutionItem {
	if port < 0 || port >= len(c.frame.Data) {
		return nil
	}
	return c.frame.Data[port]
}

// GetNodeParameter resolves a (possibly dotted) parameter path against
// the current node's Parameters map, evaluating "=" expression values
// against the item at itemIndex on input port 0. A dotted path like
// "fields.name" looks up nested maps produced by raw JSON parameters.
func (c *Context) GetNodeParameter(name string, itemIndex int, fallback interface{}) (interface{}, error) {
	raw, ok := lookupPath(c.frame.Node.Parameters, name)
	if !ok {
		return fallback, nil
	}

	str, isStr := raw.(string)
	if !isStr || !expression.IsExpression(str) {
		return raw, nil
	}

	env := c.envForItem(itemIndex)
	out, err := expression.Evaluate(str, env)
	if err != nil {
		return nil, fmt.Errorf("execcontext: evaluate parameter %q on node %q: %w", name, c.frame.Node.Name, err)
	}
	return out, nil
}

func lookupPath(params map[string]interface{}, path string) (interface{}, bool) {
	segs := strings.Split(path, ".")
	var cur interface{} = params
	for _, seg := range segs {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// envForItem builds the expression host surface for itemIndex on the
// node's primary (port 0) input.
func (c *Context) envForItem(itemIndex int) expression.Env {
	items := c.GetInputData(0, 0)
	var itemJSON map[string]interface{}
	var itemBinary map[string]interface{}
	if itemIndex >= 0 && itemIndex < len(items) {
		itemJSON = items[itemIndex].JSON
		if items[itemIndex].Binary != nil {
			itemBinary = make(map[string]interface{}, len(items[itemIndex].Binary))
			for k, v := range items[itemIndex].Binary {
				itemBinary[k] = v
			}
		}
	}

	nodeRefs := make(map[string]interface{}, len(c.runData))
	for name, runs := range c.runData {
		latest := model.LatestOutput(runs)
		jsonItems := make([]map[string]interface{}, 0, len(latest))
		for _, it := range latest {
			jsonItems = append(jsonItems, it.JSON)
		}
		var firstJSON map[string]interface{}
		if len(jsonItems) > 0 {
			firstJSON = jsonItems[0]
		}
		nodeRefs[name] = map[string]interface{}{
			"json": firstJSON,
			"all":  jsonItems,
		}
	}

	now := time.Now().UTC()
	return expression.Env{
		JSON:        itemJSON,
		Binary:      itemBinary,
		Input:       itemJSON,
		Node:        nodeRefs,
		Parameter:   c.frame.Node.Parameters,
		Workflow:    map[string]interface{}{"id": c.workflow.ID, "name": c.workflow.Name},
		Now:         now.Format(time.RFC3339),
		Today:       now.Format("2006-01-02"),
		ExecutionID: c.executionID,
	}
}

// GetCredentials resolves and decrypts the node's credential of the
// given type, evaluating any embedded expression fields against the
// item at itemIndex.
func (c *Context) GetCredentials(ctx context.Context, typeName string, itemIndex int) (map[string]interface{}, error) {
	ref, ok := c.frame.Node.Credentials[typeName]
	if !ok {
		return nil, fmt.Errorf("execcontext: node %q has no credential of type %q", c.frame.Node.Name, typeName)
	}
	return c.credentials.GetDecrypted(ctx, c.frame.Node, ref, typeName, false, c.envForItem(itemIndex))
}

func (c *Context) GetWorkflow() map[string]interface{} {
	return map[string]interface{}{
		"id":   c.workflow.ID,
		"name": c.workflow.Name,
	}
}

func (c *Context) GetNode() model.Node {
	return c.frame.Node
}

func (c *Context) GetExecutionID() string {
	return c.executionID
}

func (c *Context) GetMode() string {
	return c.mode
}

func (c *Context) Logger() nodetype.Logger {
	return c.logger
}

func (c *Context) Helpers() nodetype.Helpers {
	return c.helpers
}

// ContinueOnFail reads the node's own "continueOnFail" setting,
// defaulting to false.
func (c *Context) ContinueOnFail() bool {
	raw, ok := c.frame.Node.Parameters["continueOnFail"]
	if !ok {
		return false
	}
	b, _ := raw.(bool)
	return b
}

// SetWaitTill records a durable-suspend instant the step task propagates
// back onto RunState.WaitTill.
func (c *Context) SetWaitTill(t time.Time) {
	c.waitTill = &t
}

// WaitTill returns the instant set by SetWaitTill, or nil if the node
// did not request a wait.
func (c *Context) WaitTill() *time.Time {
	return c.waitTill
}

var _ nodetype.ExecutionContext = (*Context)(nil)
