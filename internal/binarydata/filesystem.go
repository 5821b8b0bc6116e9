package binarydata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const filesystemPrefix = "filesystem:"

// FilesystemHelper stores binary payloads rooted at a configured base
// path, one file per id plus a sidecar .meta.json.
type FilesystemHelper struct {
	basePath string
}

// NewFilesystemHelper roots binary storage at basePath.
func NewFilesystemHelper(basePath string) *FilesystemHelper {
	return &FilesystemHelper{basePath: basePath}
}

func (h *FilesystemHelper) keyPath(loc Locator, name string) string {
	return filepath.Join(h.basePath, "workflows", loc.WorkflowID, "executions", loc.ExecutionID, "binary_data", name)
}

func (h *FilesystemHelper) Store(_ context.Context, loc Locator, data []byte, opts StoreOptions) (string, int64, error) {
	name := uuid.NewString()
	path := h.keyPath(loc, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", 0, fmt.Errorf("binarydata: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", 0, fmt.Errorf("binarydata: write file: %w", err)
	}
	meta := Metadata{FileSize: int64(len(data)), FileName: opts.FileName, MimeType: opts.MimeType}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return "", 0, fmt.Errorf("binarydata: marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta.json", metaRaw, 0o600); err != nil {
		return "", 0, fmt.Errorf("binarydata: write metadata: %w", err)
	}

	id := filesystemPrefix + strings.Join([]string{loc.WorkflowID, loc.ExecutionID, name}, "/")
	return id, meta.FileSize, nil
}

func (h *FilesystemHelper) pathFromID(id string) (string, error) {
	rel, ok := trimMode(id, filesystemPrefix)
	if !ok {
		return "", &ErrUnknownMode{ID: id}
	}
	segs := strings.Split(rel, "/")
	if len(segs) != 3 {
		return "", fmt.Errorf("binarydata: malformed filesystem id %q", id)
	}
	return filepath.Join(h.basePath, "workflows", segs[0], "executions", segs[1], "binary_data", segs[2]), nil
}

func (h *FilesystemHelper) GetAsBuffer(_ context.Context, id string) ([]byte, error) {
	path, err := h.pathFromID(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("binarydata: read %s: %w", id, err)
	}
	return data, nil
}

func (h *FilesystemHelper) GetMetadata(_ context.Context, id string) (Metadata, error) {
	path, err := h.pathFromID(id)
	if err != nil {
		return Metadata{}, err
	}
	raw, err := os.ReadFile(path + ".meta.json")
	if err != nil {
		return Metadata{}, fmt.Errorf("binarydata: read metadata %s: %w", id, err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("binarydata: parse metadata %s: %w", id, err)
	}
	return meta, nil
}

func (h *FilesystemHelper) Delete(_ context.Context, id string) error {
	path, err := h.pathFromID(id)
	if err != nil {
		return err
	}
	_ = os.Remove(path + ".meta.json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("binarydata: delete %s: %w", id, err)
	}
	return nil
}

func trimMode(id, prefix string) (string, bool) {
	if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
		return "", false
	}
	return id[len(prefix):], true
}

var _ Helper = (*FilesystemHelper)(nil)
