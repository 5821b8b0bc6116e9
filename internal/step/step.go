// Package step implements the workflow step task: the side-effecting
// activity the orchestrator invokes once per checkpoint.
// It pops ready ExecuteFrames off the execution stack, builds an
// Execution Context Builder per node, invokes the node type's execute
// function, records TaskData, assembles multi-input merge nodes, and
// stops on completion, a wait-node instant, or a fatal error. It is the
// only layer in the engine that performs I/O or touches the wall clock.
package step

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/mfateev/n8n-sub001/internal/binarydata"
	"github.com/mfateev/n8n-sub001/internal/credential"
	"github.com/mfateev/n8n-sub001/internal/execcontext"
	"github.com/mfateev/n8n-sub001/internal/model"
	"github.com/mfateev/n8n-sub001/internal/nodetype"
	"github.com/mfateev/n8n-sub001/internal/serialize"
	"github.com/mfateev/n8n-sub001/internal/state"
)

// Task bundles the collaborators the step task consumes: the node type
// registry, the credential resolver, the binary data helper, an HTTP
// client for node-issued requests, and a logger factory.
type Task struct {
	Registry    nodetype.Registry
	Credentials *credential.Resolver
	Binary      binarydata.Helper
	HTTPClient  *http.Client
	LogFactory  func(workflowID, executionID, nodeName string) nodetype.Logger
}

// Input is the step task's activity argument.
type Input struct {
	Workflow                model.WorkflowDefinition
	RunState                model.RunState
	InputData               []model.ExecutionItem // only honored on the first invocation
	PreviouslyExecutedNodes map[string]bool
	Mode                    string
	ExecutionID             string
}

// Output is the step task's activity result. NewRunData carries only
// nodes absent from Input.PreviouslyExecutedNodes.
type Output struct {
	Complete         bool
	NewRunData       map[string][]model.TaskData
	ExecutionData    model.ExecutionData
	LastNodeExecuted string
	WaitTill         *time.Time
	Error            *model.SerializedError
	FinalOutput      []model.ExecutionItem
}

// Execute runs as many ready nodes as possible and returns the
// resulting diff. It stops when the stack drains (complete), when a
// node requests a wait instant, or when a node fails outside its
// continueOnFail allowance.
func (t *Task) Execute(ctx context.Context, in Input) (Output, error) {
	runData := cloneRunData(in.RunState.ResultData.RunData)
	stack := append([]model.ExecuteFrame(nil), in.RunState.ExecutionData.NodeExecutionStack...)
	waiting := cloneWaiting(in.RunState.ExecutionData.WaitingExecution)
	lastNodeExecuted := in.RunState.ResultData.LastNodeExecuted

	incoming := incomingPortCounts(in.Workflow)

	if len(runData) == 0 && len(stack) == 0 {
		startNode, err := findStartNode(in.Workflow, t.Registry)
		if err != nil {
			serr := serialize.EncodeError(err)
			return Output{
				Complete:         true,
				NewRunData:       map[string][]model.TaskData{},
				ExecutionData:    model.ExecutionData{WaitingExecution: make(model.WaitingExecution)},
				LastNodeExecuted: lastNodeExecuted,
				Error:            serr,
			}, nil
		}
		initialInput := in.InputData
		if initialInput == nil {
			initialInput = []model.ExecutionItem{{JSON: map[string]interface{}{}}}
		}
		stack = append(stack, model.ExecuteFrame{
			Node: startNode,
			Data: [][]model.ExecutionItem{initialInput},
		})
	}

	var waitTill *time.Time
	var terminalErr *model.SerializedError

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		fn, err := t.Registry.GetByNameAndVersion(frame.Node.TypeName, frame.Node.TypeVersion)
		if err != nil {
			serr := model.NewNodeOperationError(frame.Node.Name, err.Error(), "node type resolution failed")
			recordError(runData, frame.Node.Name, frame.Source, serr)
			lastNodeExecuted = frame.Node.Name
			terminalErr = serr
			break
		}

		ec := execcontext.New(
			frame,
			&in.Workflow,
			runData,
			in.Mode,
			in.ExecutionID,
			t.Credentials,
			t.Binary,
			execcontext.NewHTTPHelpers(t.HTTPClient, t.Binary, binarydata.Locator{WorkflowID: in.Workflow.ID, ExecutionID: in.ExecutionID}),
			t.loggerFor(in.Workflow.ID, in.ExecutionID, frame.Node.Name),
		)

		start := time.Now()
		outputs, execErr := fn(ctx, ec)
		elapsed := time.Since(start)

		if execErr != nil {
			serr := serialize.EncodeError(execErr)
			serr.Node = frame.Node.Name
			if !ec.ContinueOnFail() {
				recordTaskData(runData, frame.Node.Name, model.TaskData{
					StartTime:     start,
					ExecutionTime: elapsed,
					Source:        frame.Source,
					Error:         serr,
				})
				lastNodeExecuted = frame.Node.Name
				terminalErr = serr
				break
			}
			outputs = [][]model.ExecutionItem{{{JSON: map[string]interface{}{}, Error: serr}}}
		}

		recordTaskData(runData, frame.Node.Name, model.TaskData{
			StartTime:     start,
			ExecutionTime: elapsed,
			Source:        frame.Source,
			Data:          model.TaskOutputData{Main: outputs},
		})
		lastNodeExecuted = frame.Node.Name

		stack = dispatch(in.Workflow, incoming, waiting, frame.Node.Name, outputs, stack)

		// Downstream frames pushed above stay on the stack and return in
		// ExecutionData, so the resumed invocation picks them up after
		// the timer fires.
		if wt := ec.WaitTill(); wt != nil {
			waitTill = wt
			break
		}
	}

	newRunData := state.Diff(runData, in.PreviouslyExecutedNodes)
	executionData := model.ExecutionData{
		NodeExecutionStack: stack,
		WaitingExecution:   waiting,
	}

	if terminalErr != nil {
		return Output{
			Complete:         true,
			NewRunData:       newRunData,
			ExecutionData:    executionData,
			LastNodeExecuted: lastNodeExecuted,
			Error:            terminalErr,
		}, nil
	}
	if waitTill != nil {
		return Output{
			Complete:         false,
			NewRunData:       newRunData,
			ExecutionData:    executionData,
			LastNodeExecuted: lastNodeExecuted,
			WaitTill:         waitTill,
		}, nil
	}

	out := Output{
		Complete:         true,
		NewRunData:       newRunData,
		ExecutionData:    executionData,
		LastNodeExecuted: lastNodeExecuted,
	}
	if lastNodeExecuted != "" {
		out.FinalOutput = model.LatestOutput(runData[lastNodeExecuted])
	}
	return out, nil
}

func (t *Task) loggerFor(workflowID, executionID, nodeName string) nodetype.Logger {
	if t.LogFactory == nil {
		return execcontext.NewSlogLogger(slog.Default(), workflowID, executionID, nodeName)
	}
	return t.LogFactory(workflowID, executionID, nodeName)
}

func recordTaskData(runData map[string][]model.TaskData, name string, td model.TaskData) {
	runData[name] = append(runData[name], td)
}

func recordError(runData map[string][]model.TaskData, name string, source []model.SourceRef, serr *model.SerializedError) {
	recordTaskData(runData, name, model.TaskData{
		StartTime: time.Now(),
		Source:    source,
		Error:     serr,
	})
}

func cloneRunData(in map[string][]model.TaskData) map[string][]model.TaskData {
	out := make(map[string][]model.TaskData, len(in))
	for k, v := range in {
		out[k] = append([]model.TaskData(nil), v...)
	}
	return out
}

func cloneWaiting(in model.WaitingExecution) model.WaitingExecution {
	out := make(model.WaitingExecution, len(in))
	for node, byRun := range in {
		outByRun := make(map[int]model.WaitingNode, len(byRun))
		for runIndex, wn := range byRun {
			outWN := make(model.WaitingNode, len(wn))
			for port, bucket := range wn {
				outWN[port] = bucket
			}
			outByRun[runIndex] = outWN
		}
		out[node] = outByRun
	}
	return out
}

// incomingPortCounts computes, for every node name, the number of
// distinct main input ports it is wired to receive. Nodes absent from
// the result expect exactly one input port.
func incomingPortCounts(wf model.WorkflowDefinition) map[string]int {
	counts := make(map[string]int)
	for _, byKind := range wf.Connections {
		for _, ports := range byKind {
			for _, port := range ports {
				for _, target := range port {
					if target.InputIndex+1 > counts[target.TargetNodeName] {
						counts[target.TargetNodeName] = target.InputIndex + 1
					}
				}
			}
		}
	}
	return counts
}

// findStartNode locates the node a first invocation pushes: a
// registered trigger-typed node if one exists, else a manual-trigger
// node by type name, else the first node in the workflow.
func findStartNode(wf model.WorkflowDefinition, registry nodetype.Registry) (model.Node, error) {
	for _, n := range wf.Nodes {
		if d, err := registry.GetByName(n.TypeName); err == nil && d.IsTrigger {
			return n, nil
		}
	}
	for _, n := range wf.Nodes {
		if n.TypeName == "manualTrigger" {
			return n, nil
		}
	}
	if len(wf.Nodes) > 0 {
		return wf.Nodes[0], nil
	}
	return model.Node{}, &emptyWorkflowError{}
}

type emptyWorkflowError struct{}

func (e *emptyWorkflowError) Error() string { return "step: workflow has no nodes" }

// dispatch fans outputs out to downstream nodes: single-input targets
// push directly onto the stack; multi-input targets accumulate in
// waiting until every expected port has contributed for the same
// runIndex, then promote.
func dispatch(
	wf model.WorkflowDefinition,
	incoming map[string]int,
	waiting model.WaitingExecution,
	sourceName string,
	outputs [][]model.ExecutionItem,
	stack []model.ExecuteFrame,
) []model.ExecuteFrame {
	ports, ok := wf.Connections[sourceName]["main"]
	if !ok {
		return stack
	}
	for portIndex, port := range ports {
		if portIndex >= len(outputs) {
			continue
		}
		items := outputs[portIndex]
		outIdx := portIndex
		for _, target := range port {
			targetNode, ok := wf.NodeByName(target.TargetNodeName)
			if !ok {
				continue
			}
			source := model.SourceRef{PreviousNode: sourceName, OutputIndex: &outIdx}

			total := incoming[target.TargetNodeName]
			if total <= 1 {
				stack = append(stack, model.ExecuteFrame{
					Node:   targetNode,
					Data:   [][]model.ExecutionItem{items},
					Source: []model.SourceRef{source},
				})
				continue
			}

			const runIndex = 0
			if waiting[target.TargetNodeName] == nil {
				waiting[target.TargetNodeName] = make(map[int]model.WaitingNode)
			}
			if waiting[target.TargetNodeName][runIndex] == nil {
				waiting[target.TargetNodeName][runIndex] = make(model.WaitingNode)
			}
			bucket := waiting[target.TargetNodeName][runIndex]
			bucket[target.InputIndex] = model.PortBucket{Items: items, Source: source, Filled: true}

			if len(bucket) < total {
				continue
			}

			data := make([][]model.ExecutionItem, total)
			sources := make([]model.SourceRef, total)
			indices := make([]int, 0, len(bucket))
			for idx := range bucket {
				indices = append(indices, idx)
			}
			sort.Ints(indices)
			for _, idx := range indices {
				data[idx] = bucket[idx].Items
				sources[idx] = bucket[idx].Source
			}

			stack = append(stack, model.ExecuteFrame{
				Node:   targetNode,
				Data:   data,
				Source: sources,
			})
			delete(waiting[target.TargetNodeName], runIndex)
			if len(waiting[target.TargetNodeName]) == 0 {
				delete(waiting, target.TargetNodeName)
			}
		}
	}
	return stack
}
