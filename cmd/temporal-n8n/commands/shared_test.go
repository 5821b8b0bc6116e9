package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/n8n-sub001/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWorkflowFileIgnoresUnknownFields(t *testing.T) {
	path := writeFile(t, `{
		"id": "wf-1",
		"name": "Demo",
		"nodes": [{"name": "Trigger", "type": "manualTrigger", "typeVersion": 1}],
		"connections": {},
		"pinData": {"Trigger": [{"json": {"id": 1}}]}
	}`)

	wf, err := loadWorkflowFile(path)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, "Demo", wf.Name)
	require.Len(t, wf.Nodes, 1)
	assert.Equal(t, "Trigger", wf.Nodes[0].Name)
}

func TestLoadWorkflowFileMissingPathErrors(t *testing.T) {
	_, err := loadWorkflowFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadWorkflowFileMalformedJSONErrors(t *testing.T) {
	path := writeFile(t, `{not json`)
	_, err := loadWorkflowFile(path)
	assert.Error(t, err)
}

func TestLoadInputFileEmptyPathReturnsNil(t *testing.T) {
	items, err := loadInputFile("")
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestLoadInputFileParsesItemArray(t *testing.T) {
	path := writeFile(t, `[{"json": {"id": 1}}, {"json": {"id": 2}}]`)
	items, err := loadInputFile(path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.EqualValues(t, 1, items[0].JSON["id"])
}

func TestNewLoggerDefaultsToInfoJSON(t *testing.T) {
	flags := &GlobalFlags{}
	logger := flags.newLogger(config.Config{Logging: config.LoggingConfig{Level: "info", Format: "json"}})
	assert.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLoggerHonorsDebugLevel(t *testing.T) {
	flags := &GlobalFlags{}
	logger := flags.newLogger(config.Config{Logging: config.LoggingConfig{Level: "debug", Format: "text"}})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
