package workerctx_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/n8n-sub001/internal/config"
	"github.com/mfateev/n8n-sub001/internal/workerctx"
)

// 32 zero bytes, hex-encoded: a syntactically valid (if operationally
// unsafe) AES-256 key for exercising the happy path.
const validEncryptionKeyHex = "0000000000000000000000000000000000000000000000000000000000000000"

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Temporal:    config.TemporalConfig{Address: "localhost:7233", TaskQueue: "n8n"},
		Credentials: config.CredentialsConfig{Path: filepath.Join(dir, "credentials.json")},
		BinaryData:  config.BinaryDataConfig{Mode: "filesystem", Filesystem: config.FilesystemConfig{BasePath: filepath.Join(dir, "binary-data")}},
	}
}

func TestBuildFailsWithoutEncryptionKey(t *testing.T) {
	_, err := workerctx.Build(context.Background(), baseConfig(t), slog.Default())
	assert.Error(t, err)
}

func TestBuildFailsWithMalformedEncryptionKey(t *testing.T) {
	t.Setenv("CREDENTIALS_ENCRYPTION_KEY", "not-hex")
	_, err := workerctx.Build(context.Background(), baseConfig(t), slog.Default())
	assert.Error(t, err)
}

func TestBuildFailsWithWrongSizeEncryptionKey(t *testing.T) {
	t.Setenv("CREDENTIALS_ENCRYPTION_KEY", "aabbcc")
	_, err := workerctx.Build(context.Background(), baseConfig(t), slog.Default())
	assert.Error(t, err)
}

func TestBuildSucceedsWithFilesystemBackend(t *testing.T) {
	t.Setenv("CREDENTIALS_ENCRYPTION_KEY", validEncryptionKeyHex)
	wctx, err := workerctx.Build(context.Background(), baseConfig(t), slog.Default())
	require.NoError(t, err)
	require.NotNil(t, wctx)
	assert.NotNil(t, wctx.Registry)
	assert.NotNil(t, wctx.Credentials)
	assert.NotNil(t, wctx.Binary)
	assert.NotNil(t, wctx.Step)
}

func TestBuildRejectsUnknownBinaryDataMode(t *testing.T) {
	t.Setenv("CREDENTIALS_ENCRYPTION_KEY", validEncryptionKeyHex)
	cfg := baseConfig(t)
	cfg.BinaryData.Mode = "gcs"
	_, err := workerctx.Build(context.Background(), cfg, slog.Default())
	assert.Error(t, err)
}
