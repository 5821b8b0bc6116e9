// Package state creates, inspects, and merges model.RunState, the
// durable record threaded between the orchestrator and the step task.
// It holds no collaborators; every function is a pure transformation of
// the RunState value.
package state

import (
	"time"

	"github.com/mfateev/n8n-sub001/internal/model"
)

// Empty returns a freshly initialized RunState with no recorded runs and
// an empty execution stack, the state an execution begins in before the
// first node frame is pushed.
func Empty() *model.RunState {
	return &model.RunState{
		ResultData: model.ResultData{
			RunData: make(map[string][]model.TaskData),
		},
		ExecutionData: model.ExecutionData{
			NodeExecutionStack: nil,
			WaitingExecution:   make(model.WaitingExecution),
		},
	}
}

// PreviouslyExecutedNodes returns the set of node names already present
// in runData, the input the step task uses to compute its diff.
func PreviouslyExecutedNodes(s *model.RunState) map[string]bool {
	out := make(map[string]bool, len(s.ResultData.RunData))
	for name := range s.ResultData.RunData {
		out[name] = true
	}
	return out
}

// MergeDiff appends newRunData's TaskData slices onto s in place,
// leaving all pre-existing entries untouched. It never replaces an
// existing slice; it only appends to it, preserving append-only
// semantics across repeated merges.
func MergeDiff(s *model.RunState, newRunData map[string][]model.TaskData) {
	if s.ResultData.RunData == nil {
		s.ResultData.RunData = make(map[string][]model.TaskData)
	}
	for name, runs := range newRunData {
		s.ResultData.RunData[name] = append(s.ResultData.RunData[name], runs...)
	}
}

// SetWaitTill records the instant execution must not resume before, or
// clears it when till is nil.
func SetWaitTill(s *model.RunState, till *time.Time) {
	s.WaitTill = till
}

// Diff computes the subset of runData whose keys are not in
// previouslyExecuted, the payload the step task returns instead of the
// full accumulated history. Bounding each step result to newly executed
// nodes keeps history payloads from growing quadratically in long
// workflows.
func Diff(runData map[string][]model.TaskData, previouslyExecuted map[string]bool) map[string][]model.TaskData {
	out := make(map[string][]model.TaskData)
	for name, runs := range runData {
		if previouslyExecuted[name] {
			continue
		}
		out[name] = runs
	}
	return out
}
