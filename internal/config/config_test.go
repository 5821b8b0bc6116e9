package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/n8n-sub001/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "temporal-n8n.config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"temporal": {"address": "localhost:7233", "taskQueue": "n8n"},
		"credentials": {"path": "./credentials.json"}
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "filesystem", cfg.BinaryData.Mode)
	assert.Equal(t, "./binary-data", cfg.BinaryData.Filesystem.BasePath)
	assert.Equal(t, 5*time.Minute, cfg.Execution.ActivityTimeout.Std())
	assert.EqualValues(t, 3, cfg.Execution.RetryPolicy.MaximumAttempts)
	assert.Equal(t, time.Second, cfg.Execution.RetryPolicy.InitialInterval.Std())
	assert.Equal(t, time.Minute, cfg.Execution.RetryPolicy.MaximumInterval.Std())
	assert.Equal(t, 2.0, cfg.Execution.RetryPolicy.BackoffCoefficient)
	assert.NotEmpty(t, cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Logging.Format)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	path := writeConfig(t, `{
		"temporal": {"address": "localhost:7233", "taskQueue": "n8n"},
		"credentials": {"path": "./credentials.json"},
		"execution": {
			"activityTimeout": "90s",
			"retryPolicy": {"maximumAttempts": 5, "initialInterval": "2s", "maximumInterval": "2m"}
		}
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Execution.ActivityTimeout.Std())
	assert.EqualValues(t, 5, cfg.Execution.RetryPolicy.MaximumAttempts)
	assert.Equal(t, 2*time.Second, cfg.Execution.RetryPolicy.InitialInterval.Std())
	assert.Equal(t, 2*time.Minute, cfg.Execution.RetryPolicy.MaximumInterval.Std())
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := writeConfig(t, `{
		"temporal": {"address": "localhost:7233", "taskQueue": "n8n"},
		"credentials": {"path": "./credentials.json"},
		"execution": {"activityTimeout": "ninety seconds"}
	}`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadHonorsExplicitLoggingEnvVars(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	path := writeConfig(t, `{
		"temporal": {"address": "localhost:7233", "taskQueue": "n8n"},
		"credentials": {"path": "./credentials.json"}
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `{"temporal": {"taskQueue": "n8n"}, "credentials": {"path": "x"}}`)
	_, err := config.Load(path)
	assert.Error(t, err, "temporal.address is required")
}

func TestLoadRejectsS3ModeWithoutBucket(t *testing.T) {
	path := writeConfig(t, `{
		"temporal": {"address": "localhost:7233", "taskQueue": "n8n"},
		"credentials": {"path": "./credentials.json"},
		"binaryData": {"mode": "s3"}
	}`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{not valid json`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
