package credential

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/mfateev/n8n-sub001/internal/expression"
	"github.com/mfateev/n8n-sub001/internal/model"
)

// AuthType is the declared authentication mechanism for a credential
// type.
type AuthType string

const (
	AuthHeader AuthType = "header"
	AuthQuery  AuthType = "query"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
)

// TypeDescriptor declares how one credential type authenticates a
// request and, optionally, which other credential type it inherits
// fields from.
type TypeDescriptor struct {
	Name       string
	Auth       AuthType
	FieldName  string // header/query field name, when applicable
	ParentType string
}

// RequestOptions is the subset of an outbound HTTP request that
// credential authentication decorates.
type RequestOptions struct {
	Headers map[string]string
	Query   map[string]string
	Body    interface{}
}

// Refresher optionally rotates a credential's stored value (e.g. OAuth
// token refresh). Returning (nil, false, nil) means no refresh was
// needed.
type Refresher func(ctx context.Context, typeName string, current map[string]interface{}) (refreshed map[string]interface{}, didRefresh bool, err error)

// Resolver is the credential resolution surface the step task consumes:
// GetDecrypted, Authenticate, PreAuthentication, GetParentTypes.
type Resolver struct {
	store  *Store
	cipher *Cipher
	types  map[string]TypeDescriptor

	refreshMu sync.Mutex
	inflight  map[string]*sync.WaitGroup // credential id -> in-progress refresh
	refresher Refresher
}

// NewResolver builds a Resolver over store and cipher with the given
// credential type catalog.
func NewResolver(store *Store, cipher *Cipher, types map[string]TypeDescriptor, refresher Refresher) *Resolver {
	return &Resolver{
		store:     store,
		cipher:    cipher,
		types:     types,
		inflight:  make(map[string]*sync.WaitGroup),
		refresher: refresher,
	}
}

// GetDecrypted returns the decrypted credential object for a node's
// credential reference. When raw is false (default), embedded
// expression values in the decrypted fields are resolved against
// exprValues; when raw is true, fields are returned verbatim.
func (r *Resolver) GetDecrypted(ctx context.Context, node model.Node, ref model.CredentialRef, typeName string, raw bool, exprValues expression.Env) (map[string]interface{}, error) {
	rec, err := r.store.GetByIDAndType(ref.ID, typeName)
	if err != nil {
		return nil, fmt.Errorf("credential: resolve %q for node %q: %w", ref.Name, node.Name, err)
	}
	value, err := r.cipher.Decrypt(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("credential: decrypt %q: %w", ref.Name, err)
	}
	if raw {
		return value, nil
	}

	resolved := make(map[string]interface{}, len(value))
	for k, v := range value {
		str, ok := v.(string)
		if !ok || !expression.IsExpression(str) {
			resolved[k] = v
			continue
		}
		out, err := expression.Evaluate(str, exprValues)
		if err != nil {
			return nil, fmt.Errorf("credential: resolve field %q: %w", k, err)
		}
		resolved[k] = out
	}
	return resolved, nil
}

// Authenticate decorates requestOptions per the credential type's
// declared authentication.
func (r *Resolver) Authenticate(credentials map[string]interface{}, typeName string, opts RequestOptions) (RequestOptions, error) {
	td, ok := r.types[typeName]
	if !ok {
		return opts, fmt.Errorf("credential: unknown credential type %q", typeName)
	}
	if opts.Headers == nil {
		opts.Headers = map[string]string{}
	}
	if opts.Query == nil {
		opts.Query = map[string]string{}
	}

	switch td.Auth {
	case AuthHeader:
		opts.Headers[td.FieldName] = fmt.Sprintf("%v", credentials["value"])
	case AuthQuery:
		opts.Query[td.FieldName] = fmt.Sprintf("%v", credentials["value"])
	case AuthBearer:
		opts.Headers["Authorization"] = "Bearer " + fmt.Sprintf("%v", credentials["token"])
	case AuthBasic:
		opts.Headers["Authorization"] = basicAuthHeader(fmt.Sprintf("%v", credentials["username"]), fmt.Sprintf("%v", credentials["password"]))
	}
	return opts, nil
}

// PreAuthentication optionally refreshes credentials (e.g. OAuth token
// rotation) before use. Concurrent refresh attempts for the same
// credential id collapse onto a single in-flight refresh.
func (r *Resolver) PreAuthentication(ctx context.Context, credentialID, typeName string, current map[string]interface{}, expired bool) (map[string]interface{}, bool, error) {
	if r.refresher == nil || !expired {
		return current, false, nil
	}

	r.refreshMu.Lock()
	if wg, inProgress := r.inflight[credentialID]; inProgress {
		r.refreshMu.Unlock()
		wg.Wait()
		rec, err := r.store.Get(credentialID)
		if err != nil {
			return nil, false, err
		}
		value, err := r.cipher.Decrypt(rec.Data)
		return value, false, err
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	r.inflight[credentialID] = wg
	r.refreshMu.Unlock()

	defer func() {
		r.refreshMu.Lock()
		delete(r.inflight, credentialID)
		r.refreshMu.Unlock()
		wg.Done()
	}()

	refreshed, didRefresh, err := r.refresher(ctx, typeName, current)
	if err != nil {
		return nil, false, fmt.Errorf("credential: refresh %s: %w", credentialID, err)
	}
	if !didRefresh {
		return current, false, nil
	}
	if err := r.UpdateCredentials(credentialID, typeName, refreshed); err != nil {
		return nil, false, err
	}
	return refreshed, true, nil
}

// UpdateCredentials persists a replacement credential value, encrypting
// it before writing to the store.
func (r *Resolver) UpdateCredentials(credentialID, typeName string, value map[string]interface{}) error {
	existing, err := r.store.Get(credentialID)
	if err != nil {
		return err
	}
	encrypted, err := r.cipher.Encrypt(value)
	if err != nil {
		return err
	}
	return r.store.Update(credentialID, Record{Name: existing.Name, Type: typeName, Data: encrypted})
}

// GetParentTypes returns the transitive parent credential-type names for
// inheritance resolution.
func (r *Resolver) GetParentTypes(name string) []string {
	var chain []string
	seen := map[string]bool{name: true}
	cur := name
	for {
		td, ok := r.types[cur]
		if !ok || td.ParentType == "" || seen[td.ParentType] {
			break
		}
		chain = append(chain, td.ParentType)
		seen[td.ParentType] = true
		cur = td.ParentType
	}
	return chain
}

func basicAuthHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
