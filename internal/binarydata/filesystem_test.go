package binarydata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/n8n-sub001/internal/binarydata"
)

func TestFilesystemHelperStoreRoundTrip(t *testing.T) {
	h := binarydata.NewFilesystemHelper(t.TempDir())
	loc := binarydata.Locator{WorkflowID: "wf-1", ExecutionID: "exec-1"}

	id, size, err := h.Store(context.Background(), loc, []byte("hello world"), binarydata.StoreOptions{
		FileName: "greeting.txt",
		MimeType: "text/plain",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)
	assert.Contains(t, id, "filesystem:")

	got, err := h.GetAsBuffer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	meta, err := h.GetMetadata(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(11), meta.FileSize)
	assert.Equal(t, "greeting.txt", meta.FileName)
	assert.Equal(t, "text/plain", meta.MimeType)
}

func TestFilesystemHelperDeleteRemovesDataAndMetadata(t *testing.T) {
	h := binarydata.NewFilesystemHelper(t.TempDir())
	loc := binarydata.Locator{WorkflowID: "wf-1", ExecutionID: "exec-1"}

	id, _, err := h.Store(context.Background(), loc, []byte("data"), binarydata.StoreOptions{})
	require.NoError(t, err)

	require.NoError(t, h.Delete(context.Background(), id))

	_, err = h.GetAsBuffer(context.Background(), id)
	assert.Error(t, err)
	_, err = h.GetMetadata(context.Background(), id)
	assert.Error(t, err)
}

func TestFilesystemHelperGetUnknownModeErrors(t *testing.T) {
	h := binarydata.NewFilesystemHelper(t.TempDir())
	_, err := h.GetAsBuffer(context.Background(), "s3:wf-1/exec-1/name")
	var unknownMode *binarydata.ErrUnknownMode
	assert.ErrorAs(t, err, &unknownMode)
}

func TestFilesystemHelperGetMalformedIDErrors(t *testing.T) {
	h := binarydata.NewFilesystemHelper(t.TempDir())
	_, err := h.GetAsBuffer(context.Background(), "filesystem:only-one-segment")
	assert.Error(t, err)
}
