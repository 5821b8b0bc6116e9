package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/n8n-sub001/internal/model"
	"github.com/mfateev/n8n-sub001/internal/state"
)

func TestEmptyHasNoRecordedRuns(t *testing.T) {
	s := state.Empty()
	assert.Empty(t, s.ResultData.RunData)
	assert.True(t, s.IsComplete())
	assert.Empty(t, state.PreviouslyExecutedNodes(s))
}

func TestDiffExcludesPreviouslyExecutedNodes(t *testing.T) {
	runData := map[string][]model.TaskData{
		"Start": {{StartTime: time.Now()}},
		"Set":   {{StartTime: time.Now()}},
	}
	previously := map[string]bool{"Start": true}

	got := state.Diff(runData, previously)

	assert.NotContains(t, got, "Start")
	assert.Contains(t, got, "Set")
}

// The diff must exclude a previously executed node entirely, even when
// it re-executed during this step (e.g. inside a loop) and appended a
// new TaskData entry: the whole entry is excluded once its name has
// ever appeared in runData, not just the previously-recorded slice.
func TestDiffExcludesEntireHistoryOfAPreviouslyExecutedNode(t *testing.T) {
	runData := map[string][]model.TaskData{
		"Loop": {{StartTime: time.Now()}, {StartTime: time.Now()}},
	}
	previously := map[string]bool{"Loop": true}

	got := state.Diff(runData, previously)

	assert.NotContains(t, got, "Loop")
}

func TestMergeDiffAppendsWithoutReplacing(t *testing.T) {
	s := state.Empty()
	first := map[string][]model.TaskData{"A": {{StartTime: time.Now()}}}
	state.MergeDiff(s, first)
	require.Len(t, s.ResultData.RunData["A"], 1)

	second := map[string][]model.TaskData{"B": {{StartTime: time.Now()}}}
	state.MergeDiff(s, second)

	assert.Len(t, s.ResultData.RunData["A"], 1)
	assert.Len(t, s.ResultData.RunData["B"], 1)
}

func TestMergeDiffAppendsRepeatedRunsOfSameNode(t *testing.T) {
	s := state.Empty()
	state.MergeDiff(s, map[string][]model.TaskData{"Loop": {{StartTime: time.Now()}}})
	state.MergeDiff(s, map[string][]model.TaskData{"Loop": {{StartTime: time.Now()}}})

	assert.Len(t, s.ResultData.RunData["Loop"], 2)
}

func TestSetWaitTill(t *testing.T) {
	s := state.Empty()
	till := time.Now().Add(time.Hour)
	state.SetWaitTill(s, &till)
	require.NotNil(t, s.WaitTill)
	assert.Equal(t, till, *s.WaitTill)

	state.SetWaitTill(s, nil)
	assert.Nil(t, s.WaitTill)
}

func TestIsCompleteReflectsPendingWork(t *testing.T) {
	s := state.Empty()
	assert.True(t, s.IsComplete())

	s.ExecutionData.NodeExecutionStack = append(s.ExecutionData.NodeExecutionStack, model.ExecuteFrame{})
	assert.False(t, s.IsComplete())

	s.ExecutionData.NodeExecutionStack = nil
	s.ExecutionData.WaitingExecution["Merge"] = map[int]model.WaitingNode{0: {0: model.PortBucket{Filled: true}}}
	assert.False(t, s.IsComplete())
}
