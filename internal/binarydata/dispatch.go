package binarydata

import "context"

// DispatchHelper routes Store calls to a configured default backend and
// Get/Delete calls to whichever backend owns the id's mode prefix,
// letting a workflow move between filesystem and S3 modes without
// breaking references to data written under the previous mode.
type DispatchHelper struct {
	def      Helper
	backends map[string]Helper // mode prefix -> backend
}

// NewDispatchHelper builds a DispatchHelper that writes new payloads
// through def and can read/delete from any backend listed in backends
// (keyed by its id mode prefix, e.g. "filesystem:" or "s3:").
func NewDispatchHelper(def Helper, backends map[string]Helper) *DispatchHelper {
	return &DispatchHelper{def: def, backends: backends}
}

func (d *DispatchHelper) Store(ctx context.Context, loc Locator, data []byte, opts StoreOptions) (string, int64, error) {
	return d.def.Store(ctx, loc, data, opts)
}

func (d *DispatchHelper) backendFor(id string) (Helper, error) {
	for prefix, backend := range d.backends {
		if _, ok := trimMode(id, prefix); ok {
			return backend, nil
		}
	}
	return nil, &ErrUnknownMode{ID: id}
}

func (d *DispatchHelper) GetAsBuffer(ctx context.Context, id string) ([]byte, error) {
	b, err := d.backendFor(id)
	if err != nil {
		return nil, err
	}
	return b.GetAsBuffer(ctx, id)
}

func (d *DispatchHelper) GetMetadata(ctx context.Context, id string) (Metadata, error) {
	b, err := d.backendFor(id)
	if err != nil {
		return Metadata{}, err
	}
	return b.GetMetadata(ctx, id)
}

func (d *DispatchHelper) Delete(ctx context.Context, id string) error {
	b, err := d.backendFor(id)
	if err != nil {
		return err
	}
	return b.Delete(ctx, id)
}

var _ Helper = (*DispatchHelper)(nil)
