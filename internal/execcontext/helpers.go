package execcontext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/mfateev/n8n-sub001/internal/binarydata"
	"github.com/mfateev/n8n-sub001/internal/model"
	"github.com/mfateev/n8n-sub001/internal/nodetype"
)

// SlogLogger adapts log/slog to nodetype.Logger, stamping every line
// with the workflow, execution, and node identifiers.
type SlogLogger struct {
	base *slog.Logger
}

// NewSlogLogger builds a SlogLogger scoped to one node execution.
func NewSlogLogger(base *slog.Logger, workflowID, executionID, nodeName string) *SlogLogger {
	return &SlogLogger{base: base.With(
		"workflow_id", workflowID,
		"execution_id", executionID,
		"node_name", nodeName,
	)}
}

func (l *SlogLogger) Debug(msg string, kv ...interface{}) { l.base.Debug(msg, kv...) }
func (l *SlogLogger) Info(msg string, kv ...interface{})  { l.base.Info(msg, kv...) }
func (l *SlogLogger) Warn(msg string, kv ...interface{})  { l.base.Warn(msg, kv...) }
func (l *SlogLogger) Error(msg string, kv ...interface{}) { l.base.Error(msg, kv...) }

var _ nodetype.Logger = (*SlogLogger)(nil)

// HTTPHelpers implements nodetype.Helpers: outbound HTTP requests over
// net/http, and binary storage delegated to a binarydata.Helper scoped
// to one workflow execution.
type HTTPHelpers struct {
	client *http.Client
	binary binarydata.Helper
	loc    binarydata.Locator
}

// NewHTTPHelpers builds an HTTPHelpers bound to one execution's binary
// data locator.
func NewHTTPHelpers(client *http.Client, binary binarydata.Helper, loc binarydata.Locator) *HTTPHelpers {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHelpers{client: client, binary: binary, loc: loc}
}

func (h *HTTPHelpers) HTTPRequest(ctx context.Context, opts nodetype.HTTPRequestOptions) (nodetype.HTTPResponse, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	reqURL := opts.URL
	if len(opts.Query) > 0 {
		parsed, err := url.Parse(opts.URL)
		if err != nil {
			return nodetype.HTTPResponse{}, fmt.Errorf("execcontext: parse url %q: %w", opts.URL, err)
		}
		q := parsed.Query()
		for k, v := range opts.Query {
			q.Set(k, v)
		}
		parsed.RawQuery = q.Encode()
		reqURL = parsed.String()
	}

	var body io.Reader
	if opts.Body != nil {
		if b, ok := opts.Body.([]byte); ok {
			body = bytes.NewReader(b)
		} else if s, ok := opts.Body.(string); ok {
			body = bytes.NewReader([]byte(s))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nodetype.HTTPResponse{}, fmt.Errorf("execcontext: build request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	client := h.client
	if opts.Timeout > 0 {
		c := *h.client
		c.Timeout = opts.Timeout
		client = &c
	}

	resp, err := client.Do(req)
	if err != nil {
		return nodetype.HTTPResponse{}, fmt.Errorf("execcontext: http request to %q: %w", reqURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nodetype.HTTPResponse{}, fmt.Errorf("execcontext: read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	return nodetype.HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       respBody,
	}, nil
}

func (h *HTTPHelpers) StoreBinary(ctx context.Context, data []byte, fileName, mimeType string) (model.BinaryRef, error) {
	id, size, err := h.binary.Store(ctx, h.loc, data, binarydata.StoreOptions{FileName: fileName, MimeType: mimeType})
	if err != nil {
		return model.BinaryRef{}, err
	}
	return model.BinaryRef{ID: id, FileName: fileName, MimeType: mimeType, FileSize: size}, nil
}

func (h *HTTPHelpers) ReadBinary(ctx context.Context, ref model.BinaryRef) ([]byte, error) {
	return h.binary.GetAsBuffer(ctx, ref.ID)
}

var _ nodetype.Helpers = (*HTTPHelpers)(nil)
