package execcontext_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/n8n-sub001/internal/binarydata"
	"github.com/mfateev/n8n-sub001/internal/execcontext"
	"github.com/mfateev/n8n-sub001/internal/nodetype"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPHelpersRequestAppliesQueryAndHeaders(t *testing.T) {
	var gotQuery, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("key")
		gotHeader = r.Header.Get("X-Test")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ack"))
	}))
	defer srv.Close()

	h := execcontext.NewHTTPHelpers(nil, nil, binarydata.Locator{})
	resp, err := h.HTTPRequest(context.Background(), nodetype.HTTPRequestOptions{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Query:   map[string]string{"key": "value"},
		Headers: map[string]string{"X-Test": "present"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ack", string(resp.Body))
	assert.Equal(t, "value", gotQuery)
	assert.Equal(t, "present", gotHeader)
}

func TestHTTPHelpersDefaultsToGET(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer srv.Close()

	h := execcontext.NewHTTPHelpers(nil, nil, binarydata.Locator{})
	_, err := h.HTTPRequest(context.Background(), nodetype.HTTPRequestOptions{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
}

func TestHTTPHelpersStoreAndReadBinaryRoundTrip(t *testing.T) {
	backend := binarydata.NewFilesystemHelper(t.TempDir())
	loc := binarydata.Locator{WorkflowID: "wf-1", ExecutionID: "exec-1"}
	h := execcontext.NewHTTPHelpers(nil, backend, loc)

	ref, err := h.StoreBinary(context.Background(), []byte("payload"), "file.bin", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "file.bin", ref.FileName)
	assert.EqualValues(t, 7, ref.FileSize)

	got, err := h.ReadBinary(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestSlogLoggerImplementsNodetypeLogger(t *testing.T) {
	var l nodetype.Logger = execcontext.NewSlogLogger(testLogger(), "wf-1", "exec-1", "Node")
	l.Info("message", "key", "value")
	l.Debug("message")
	l.Warn("message")
	l.Error("message")
}
