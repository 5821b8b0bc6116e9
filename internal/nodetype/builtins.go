package nodetype

import (
	"context"
	"fmt"
	"time"

	"github.com/mfateev/n8n-sub001/internal/model"
)

// Built-in node type names: a trigger, a data-shaping node, a
// branch/merge pair, a durable wait, and an outbound HTTP call.
const (
	TypeManualTrigger = "manualTrigger"
	TypeSet           = "set"
	TypeIf            = "if"
	TypeMerge         = "merge"
	TypeWait          = "wait"
	TypeNoOp          = "noOp"
	TypeHTTPRequest   = "httpRequest"
)

// RegisterBuiltins seeds r with the built-in node types. These exist so
// the engine is runnable end to end without an external node package
// loader.
func RegisterBuiltins(r *InMemoryRegistry) {
	r.Register(Descriptor{TypeName: TypeManualTrigger, CurrentVersion: 1, IsTrigger: true, Execute: executeManualTrigger})
	r.Register(Descriptor{TypeName: TypeSet, CurrentVersion: 1, Execute: executeSet})
	r.Register(Descriptor{TypeName: TypeIf, CurrentVersion: 1, Execute: executeIf})
	r.Register(Descriptor{TypeName: TypeMerge, CurrentVersion: 1, Execute: executeMerge})
	r.Register(Descriptor{TypeName: TypeWait, CurrentVersion: 1, Execute: executeWait})
	r.Register(Descriptor{TypeName: TypeNoOp, CurrentVersion: 1, Execute: executeNoOp})
	r.Register(Descriptor{TypeName: TypeHTTPRequest, CurrentVersion: 1, Execute: executeHTTPRequest})
}

func executeManualTrigger(_ context.Context, ec ExecutionContext) ([][]model.ExecutionItem, error) {
	return [][]model.ExecutionItem{ec.GetInputData(0, 0)}, nil
}

func executeNoOp(_ context.Context, ec ExecutionContext) ([][]model.ExecutionItem, error) {
	return [][]model.ExecutionItem{ec.GetInputData(0, 0)}, nil
}

// executeSet assigns parameters onto each input item's json, optionally
// keeping the item's existing fields.
func executeSet(_ context.Context, ec ExecutionContext) ([][]model.ExecutionItem, error) {
	items := ec.GetInputData(0, 0)
	if len(items) == 0 {
		items = []model.ExecutionItem{{JSON: map[string]interface{}{}}}
	}

	includeRaw, err := ec.GetNodeParameter("includeOtherFields", 0, true)
	if err != nil {
		return nil, err
	}
	includeOtherFields, _ := includeRaw.(bool)

	fieldsRaw, err := ec.GetNodeParameter("fields", 0, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	fields, _ := fieldsRaw.(map[string]interface{})

	out := make([]model.ExecutionItem, 0, len(items))
	for i, item := range items {
		json := map[string]interface{}{}
		if includeOtherFields {
			for k, v := range item.JSON {
				json[k] = v
			}
		}
		failed := false
		for k := range fields {
			v, err := ec.GetNodeParameter("fields."+k, i, nil)
			if err != nil {
				if !ec.ContinueOnFail() {
					return nil, err
				}
				out = append(out, erroredItem(ec, item, i, err, "parameter resolution failed"))
				failed = true
				break
			}
			json[k] = v
		}
		if failed {
			continue
		}
		out = append(out, model.ExecutionItem{JSON: json, Binary: item.Binary, PairedItem: &model.PairedItem{Item: i}})
	}
	return [][]model.ExecutionItem{out}, nil
}

// erroredItem carries the failing item forward with its error attached,
// preserving the original json so downstream nodes still see the datum.
func erroredItem(ec ExecutionContext, item model.ExecutionItem, i int, err error, description string) model.ExecutionItem {
	return model.ExecutionItem{
		JSON:       item.JSON,
		Binary:     item.Binary,
		PairedItem: &model.PairedItem{Item: i},
		Error:      model.NewNodeOperationError(ec.GetNode().Name, err.Error(), description),
	}
}

// executeIf evaluates a boolean "condition" parameter per item and
// routes each item to output port 0 (true) or port 1 (false). Errored
// items go to port 0 when the node continues on fail.
func executeIf(_ context.Context, ec ExecutionContext) ([][]model.ExecutionItem, error) {
	items := ec.GetInputData(0, 0)
	trueOut := make([]model.ExecutionItem, 0, len(items))
	falseOut := make([]model.ExecutionItem, 0, len(items))

	for i, item := range items {
		resultRaw, err := ec.GetNodeParameter("condition", i, false)
		result, ok := resultRaw.(bool)
		if err == nil && !ok {
			err = fmt.Errorf("if node: condition did not evaluate to a boolean, got %T", resultRaw)
		}
		if err != nil {
			if !ec.ContinueOnFail() {
				return nil, err
			}
			trueOut = append(trueOut, erroredItem(ec, item, i, err, "condition evaluation failed"))
			continue
		}
		if result {
			trueOut = append(trueOut, item)
		} else {
			falseOut = append(falseOut, item)
		}
	}
	return [][]model.ExecutionItem{trueOut, falseOut}, nil
}

// executeMerge concatenates items arriving on every input port, in port
// order, preserving within-port order. The number of input ports is a
// node parameter rather than inferred at runtime, since the
// ExecutionContext surface exposes ports by index, not a port count.
func executeMerge(_ context.Context, ec ExecutionContext) ([][]model.ExecutionItem, error) {
	inputsRaw, err := ec.GetNodeParameter("inputs", 0, float64(2))
	if err != nil {
		return nil, err
	}
	inputs, _ := toFloat(inputsRaw)
	if inputs < 1 {
		inputs = 2
	}
	var out []model.ExecutionItem
	for port := 0; port < int(inputs); port++ {
		out = append(out, ec.GetInputData(port, 0)...)
	}
	return [][]model.ExecutionItem{out}, nil
}

// executeWait sets a waitTill instant on the execution context from a
// "durationSeconds" parameter; the step task suspends after recording
// this node's run, leaving downstream frames parked on the execution
// stack until that instant passes.
func executeWait(_ context.Context, ec ExecutionContext) ([][]model.ExecutionItem, error) {
	items := ec.GetInputData(0, 0)
	secondsRaw, err := ec.GetNodeParameter("durationSeconds", 0, float64(0))
	if err != nil {
		return nil, err
	}
	seconds, _ := toFloat(secondsRaw)
	if seconds > 0 {
		ec.SetWaitTill(time.Now().Add(time.Duration(seconds * float64(time.Second))))
	}
	return [][]model.ExecutionItem{items}, nil
}

func executeHTTPRequest(ctx context.Context, ec ExecutionContext) ([][]model.ExecutionItem, error) {
	items := ec.GetInputData(0, 0)
	if len(items) == 0 {
		items = []model.ExecutionItem{{JSON: map[string]interface{}{}}}
	}
	out := make([]model.ExecutionItem, 0, len(items))
	for i, item := range items {
		json, err := requestForItem(ctx, ec, i)
		if err != nil {
			if !ec.ContinueOnFail() {
				return nil, err
			}
			out = append(out, erroredItem(ec, item, i, err, "request failed"))
			continue
		}
		out = append(out, model.ExecutionItem{JSON: json, PairedItem: &model.PairedItem{Item: i}})
	}
	return [][]model.ExecutionItem{out}, nil
}

func requestForItem(ctx context.Context, ec ExecutionContext, i int) (map[string]interface{}, error) {
	urlRaw, err := ec.GetNodeParameter("url", i, "")
	if err != nil {
		return nil, err
	}
	url, _ := urlRaw.(string)
	methodRaw, err := ec.GetNodeParameter("method", i, "GET")
	if err != nil {
		return nil, err
	}
	method, _ := methodRaw.(string)

	resp, err := ec.Helpers().HTTPRequest(ctx, HTTPRequestOptions{Method: method, URL: url})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"statusCode": resp.StatusCode,
		"body":       string(resp.Body),
	}, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
