// Package model holds the JSON-serializable workflow graph and execution
// types shared by the orchestrator, the step task, and the execution
// context builder. Nothing in this package performs I/O or references a
// running collaborator; it is pure data.
package model

import (
	"encoding/json"
	"time"
)

// Position is a node's canvas coordinate. Purely cosmetic, carried for
// round-tripping workflow files.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CredentialRef names a credential attached to a node by the credential
// store's id plus a human label.
type CredentialRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Node is a single unit of work in the workflow graph. Parameters is the
// raw parameter bag; values may be expression strings prefixed "=".
type Node struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	TypeName    string                   `json:"type"`
	TypeVersion int                      `json:"typeVersion"`
	Position    Position                 `json:"position"`
	Parameters  map[string]interface{}   `json:"parameters"`
	Credentials map[string]CredentialRef `json:"credentials,omitempty"`
}

// ConnectionTarget is one edge endpoint: the downstream node, its input
// port kind, and which input index on that port it binds to.
type ConnectionTarget struct {
	TargetNodeName string `json:"node"`
	InputPortKind  string `json:"type"`
	InputIndex     int    `json:"index"`
}

// Port is an ordered fan-out list: targets in the order items should be
// dispatched.
type Port []ConnectionTarget

// Connections maps source node name -> output port kind -> ordered ports.
// Ports themselves are ordered (branch order for multi-output nodes).
type Connections map[string]map[string][]Port

// WorkflowDefinition is the fully JSON-serializable workflow graph. It
// holds no reference to any running execution.
type WorkflowDefinition struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Nodes       []Node                 `json:"nodes"`
	Connections Connections            `json:"connections"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	StaticData  map[string]interface{} `json:"staticData,omitempty"`
}

// NodeByName returns the node with the given name, or false if absent.
func (w *WorkflowDefinition) NodeByName(name string) (Node, bool) {
	for _, n := range w.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// BinaryRef points at binary payload data held by the Binary Data
// collaborator, keeping the item itself small.
type BinaryRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileSize int64  `json:"fileSize"`
}

// PairedItem tracks item lineage back through the node that produced it.
type PairedItem struct {
	Item  int `json:"item"`
	Input int `json:"input,omitempty"`
}

// ExecutionItem is the elementary datum flowing between nodes.
type ExecutionItem struct {
	JSON       map[string]interface{} `json:"json"`
	Binary     map[string]BinaryRef   `json:"binary,omitempty"`
	PairedItem *PairedItem            `json:"pairedItem,omitempty"`
	Error      *SerializedError       `json:"error,omitempty"`
}

// SourceRef records which node (and which of its output ports) produced
// the input data consumed by a TaskData.
type SourceRef struct {
	PreviousNode string `json:"previousNode"`
	OutputIndex  *int   `json:"outputIndex,omitempty"`
}

// TaskOutputData holds per-output-port item arrays. Only "main" is
// defined today; the shape leaves room for named auxiliary outputs.
type TaskOutputData struct {
	Main [][]ExecutionItem `json:"main"`
}

// TaskData is the record of one node run. A node re-executed inside a
// loop accumulates multiple TaskData entries; earlier ones are never
// mutated.
type TaskData struct {
	StartTime     time.Time              `json:"startTime"`
	ExecutionTime time.Duration          `json:"executionTime"`
	Source        []SourceRef            `json:"source"`
	Data          TaskOutputData         `json:"data"`
	Error         *SerializedError       `json:"error,omitempty"`
	Hints         map[string]interface{} `json:"hints,omitempty"`
}

// LatestOutput returns the items on the main output of the most recently
// recorded TaskData, honoring the invariant that the last element of
// runData[name] is the most recent output for that node.
func LatestOutput(runs []TaskData) []ExecutionItem {
	if len(runs) == 0 {
		return nil
	}
	last := runs[len(runs)-1]
	if len(last.Data.Main) == 0 {
		return nil
	}
	return last.Data.Main[0]
}

// MarshalParameters is a convenience for round-tripping a node's raw
// parameter bag through json.RawMessage boundaries (e.g. the workflow
// file format).
func MarshalParameters(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
