package nodetype_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/n8n-sub001/internal/model"
	"github.com/mfateev/n8n-sub001/internal/nodetype"
)

// fakeContext is a minimal nodetype.ExecutionContext stand-in so builtins
// can be exercised without the full execcontext/RunState machinery.
type fakeContext struct {
	inputs     map[int][]model.ExecutionItem
	params     map[string]interface{}
	node       model.Node
	helpers    nodetype.Helpers
	waitTill   *time.Time
	continueOn bool
}

func (f *fakeContext) GetInputData(port, _ int) []model.ExecutionItem { return f.inputs[port] }

func (f *fakeContext) GetNodeParameter(name string, _ int, fallback interface{}) (interface{}, error) {
	if v, ok := f.params[name]; ok {
		return v, nil
	}
	return fallback, nil
}

func (f *fakeContext) GetCredentials(context.Context, string, int) (map[string]interface{}, error) {
	return nil, nil
}
func (f *fakeContext) GetWorkflow() map[string]interface{}   { return map[string]interface{}{} }
func (f *fakeContext) GetNode() model.Node                   { return f.node }
func (f *fakeContext) GetExecutionID() string                { return "exec-1" }
func (f *fakeContext) GetMode() string                       { return "integrated" }
func (f *fakeContext) Logger() nodetype.Logger                { return nil }
func (f *fakeContext) Helpers() nodetype.Helpers              { return f.helpers }
func (f *fakeContext) ContinueOnFail() bool                   { return f.continueOn }
func (f *fakeContext) SetWaitTill(t time.Time)                { f.waitTill = &t }

var _ nodetype.ExecutionContext = (*fakeContext)(nil)

func TestRegisterBuiltinsSeedsEveryBuiltinType(t *testing.T) {
	r := nodetype.NewInMemoryRegistry()
	nodetype.RegisterBuiltins(r)

	for _, typeName := range []string{
		nodetype.TypeManualTrigger, nodetype.TypeSet, nodetype.TypeIf,
		nodetype.TypeMerge, nodetype.TypeWait, nodetype.TypeNoOp, nodetype.TypeHTTPRequest,
	} {
		assert.True(t, r.HasNode(typeName), typeName)
	}
}

func TestGetByNameAndVersionUnknownType(t *testing.T) {
	r := nodetype.NewInMemoryRegistry()
	_, err := r.GetByNameAndVersion("doesNotExist", 1)
	var unknownType *nodetype.ErrUnknownNodeType
	assert.ErrorAs(t, err, &unknownType)
}

func TestGetByNameAndVersionZeroFallsBackToCurrentVersion(t *testing.T) {
	r := nodetype.NewInMemoryRegistry()
	r.Register(nodetype.Descriptor{
		TypeName: "versioned", CurrentVersion: 2,
		Versions: map[int]nodetype.ExecuteFunc{
			2: func(context.Context, nodetype.ExecutionContext) ([][]model.ExecutionItem, error) { return nil, nil },
		},
	})
	fn, err := r.GetByNameAndVersion("versioned", 0)
	require.NoError(t, err)
	assert.NotNil(t, fn)
}

func TestGetByNameAndVersionUnknownVersion(t *testing.T) {
	r := nodetype.NewInMemoryRegistry()
	r.Register(nodetype.Descriptor{
		TypeName: "versioned", CurrentVersion: 2,
		Versions: map[int]nodetype.ExecuteFunc{
			2: func(context.Context, nodetype.ExecutionContext) ([][]model.ExecutionItem, error) { return nil, nil },
		},
	})
	_, err := r.GetByNameAndVersion("versioned", 99)
	var unknownVersion *nodetype.ErrUnknownNodeVersion
	assert.ErrorAs(t, err, &unknownVersion)
}

func TestExecuteSetOverwritesOnlyConfiguredFields(t *testing.T) {
	ec := &fakeContext{
		inputs: map[int][]model.ExecutionItem{0: {{JSON: map[string]interface{}{"existing": "keep"}}}},
		params: map[string]interface{}{
			"fields":             map[string]interface{}{"greeting": "hello"},
			"includeOtherFields": true,
			"fields.greeting":    "hello",
		},
	}
	out, err := callBuiltin(t, nodetype.TypeSet, ec)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0], 1)
	assert.Equal(t, "keep", out[0][0].JSON["existing"])
	assert.Equal(t, "hello", out[0][0].JSON["greeting"])
}

func TestExecuteSetDropsOtherFieldsWhenDisabled(t *testing.T) {
	ec := &fakeContext{
		inputs: map[int][]model.ExecutionItem{0: {{JSON: map[string]interface{}{"existing": "drop-me"}}}},
		params: map[string]interface{}{
			"fields":             map[string]interface{}{"kept": "yes"},
			"includeOtherFields": false,
			"fields.kept":        "yes",
		},
	}
	out, err := callBuiltin(t, nodetype.TypeSet, ec)
	require.NoError(t, err)
	_, hasExisting := out[0][0].JSON["existing"]
	assert.False(t, hasExisting)
	assert.Equal(t, "yes", out[0][0].JSON["kept"])
}

func TestExecuteIfRoutesByConditionParameter(t *testing.T) {
	ec := &fakeContext{
		inputs: map[int][]model.ExecutionItem{0: {
			{JSON: map[string]interface{}{"id": 1}},
			{JSON: map[string]interface{}{"id": 2}},
		}},
		params: map[string]interface{}{"condition": true},
	}
	out, err := callBuiltin(t, nodetype.TypeIf, ec)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Len(t, out[0], 2, "both items route to the true branch")
	assert.Len(t, out[1], 0)
}

func TestExecuteIfRejectsNonBooleanCondition(t *testing.T) {
	ec := &fakeContext{
		inputs: map[int][]model.ExecutionItem{0: {{JSON: map[string]interface{}{}}}},
		params: map[string]interface{}{"condition": "not-a-bool"},
	}
	_, err := callBuiltin(t, nodetype.TypeIf, ec)
	assert.Error(t, err)
}

func TestExecuteMergeConcatenatesPortsInOrder(t *testing.T) {
	ec := &fakeContext{
		inputs: map[int][]model.ExecutionItem{
			0: {{JSON: map[string]interface{}{"from": "left"}}},
			1: {{JSON: map[string]interface{}{"from": "right"}}},
		},
		params: map[string]interface{}{"inputs": float64(2)},
	}
	out, err := callBuiltin(t, nodetype.TypeMerge, ec)
	require.NoError(t, err)
	require.Len(t, out[0], 2)
	assert.Equal(t, "left", out[0][0].JSON["from"])
	assert.Equal(t, "right", out[0][1].JSON["from"])
}

func TestExecuteWaitSetsWaitTillWhenDurationPositive(t *testing.T) {
	ec := &fakeContext{
		inputs: map[int][]model.ExecutionItem{0: {{JSON: map[string]interface{}{}}}},
		params: map[string]interface{}{"durationSeconds": float64(30)},
	}
	_, err := callBuiltin(t, nodetype.TypeWait, ec)
	require.NoError(t, err)
	require.NotNil(t, ec.waitTill)
	assert.True(t, ec.waitTill.After(time.Now()))
}

func TestExecuteWaitSkipsWaitTillWhenDurationZero(t *testing.T) {
	ec := &fakeContext{inputs: map[int][]model.ExecutionItem{0: {{JSON: map[string]interface{}{}}}}}
	_, err := callBuiltin(t, nodetype.TypeWait, ec)
	require.NoError(t, err)
	assert.Nil(t, ec.waitTill)
}

type stubHelpers struct {
	response nodetype.HTTPResponse
	err      error
}

func (s stubHelpers) HTTPRequest(context.Context, nodetype.HTTPRequestOptions) (nodetype.HTTPResponse, error) {
	return s.response, s.err
}
func (s stubHelpers) StoreBinary(context.Context, []byte, string, string) (model.BinaryRef, error) {
	return model.BinaryRef{}, nil
}
func (s stubHelpers) ReadBinary(context.Context, model.BinaryRef) ([]byte, error) { return nil, nil }

func TestExecuteHTTPRequestUsesHelpersAndReportsStatus(t *testing.T) {
	ec := &fakeContext{
		inputs:  map[int][]model.ExecutionItem{0: {{JSON: map[string]interface{}{}}}},
		params:  map[string]interface{}{"url": "https://example.com", "method": "GET"},
		helpers: stubHelpers{response: nodetype.HTTPResponse{StatusCode: 200, Body: []byte("ok")}},
	}
	out, err := callBuiltin(t, nodetype.TypeHTTPRequest, ec)
	require.NoError(t, err)
	require.Len(t, out[0], 1)
	assert.EqualValues(t, 200, out[0][0].JSON["statusCode"])
	assert.Equal(t, "ok", out[0][0].JSON["body"])
}

func callBuiltin(t *testing.T, typeName string, ec nodetype.ExecutionContext) ([][]model.ExecutionItem, error) {
	t.Helper()
	r := nodetype.NewInMemoryRegistry()
	nodetype.RegisterBuiltins(r)
	fn, err := r.GetByNameAndVersion(typeName, 0)
	require.NoError(t, err)
	return fn(context.Background(), ec)
}
