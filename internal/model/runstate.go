package model

import "time"

// ExecuteFrame is one pending unit of work on the node execution stack: a
// node plus the input data already prepared for it (one slice per input
// port) and where that data came from.
type ExecuteFrame struct {
	Node     Node              `json:"node"`
	Data     [][]ExecutionItem `json:"data"`
	Source   []SourceRef       `json:"source"`
	RunIndex int               `json:"runIndex"`
}

// PortBucket accumulates the items (and their source) that have arrived
// on one input port of a merge node, for one runIndex, until all
// expected ports have reported.
type PortBucket struct {
	Items  []ExecutionItem `json:"items"`
	Source SourceRef       `json:"source"`
	Filled bool            `json:"filled"`
}

// WaitingNode is the full set of ports that have reported so far for one
// (node, runIndex) pair.
type WaitingNode map[int]PortBucket

// WaitingExecution indexes waiting merge-node input by node name, then
// run index.
type WaitingExecution map[string]map[int]WaitingNode

// ResultData is the append-only record of what has executed.
type ResultData struct {
	RunData          map[string][]TaskData `json:"runData"`
	LastNodeExecuted string                `json:"lastNodeExecuted,omitempty"`
	Error            *SerializedError      `json:"error,omitempty"`
}

// ExecutionData is the step task's resumable bookkeeping: the pending
// stack plus any merge nodes still waiting on branches.
type ExecutionData struct {
	NodeExecutionStack []ExecuteFrame         `json:"nodeExecutionStack"`
	WaitingExecution   WaitingExecution       `json:"waitingExecution"`
	ContextData        map[string]interface{} `json:"contextData,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// RunState is the durable state threaded between the orchestrator and
// the step task. It owns no collaborators and performs no I/O.
type RunState struct {
	ResultData    ResultData             `json:"resultData"`
	ExecutionData ExecutionData          `json:"executionData"`
	WaitTill      *time.Time             `json:"waitTill,omitempty"`
	StartData     map[string]interface{} `json:"startData,omitempty"`
}

// IsComplete reports whether the run state has no remaining work: no
// pending stack frames and no merge nodes still waiting on branches.
// Per the data-model invariant this is equivalent to execution being
// complete (absent a terminal error, which callers check separately).
func (s *RunState) IsComplete() bool {
	if len(s.ExecutionData.NodeExecutionStack) != 0 {
		return false
	}
	for _, byRun := range s.ExecutionData.WaitingExecution {
		if len(byRun) != 0 {
			return false
		}
	}
	return true
}
