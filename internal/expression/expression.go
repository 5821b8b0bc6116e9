// Package expression implements the restricted, side-effect-free
// expression evaluator for "="-prefixed parameter values: a small
// interpreter over an enumerated host surface ($json, $binary, $input,
// $node, $parameter, $workflow, $now, $today, $executionId), compiled
// with github.com/expr-lang/expr rather than a general embedded
// scripting engine. The evaluator never sees anything beyond the Env
// map built per call; it cannot reach process globals, the filesystem,
// or any collaborator.
package expression

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

// Prefix marks a parameter value as an expression rather than a literal.
const Prefix = "="

// templateRegexp matches one {{ ... }} span within an expression body.
var templateRegexp = regexp.MustCompile(`\{\{(.*?)\}\}`)

// hostIdentifiers are the only dollar-prefixed names the evaluator
// recognizes; anything else starting with "$" is left untouched by
// stripIdentifiers and, since Evaluate compiles with
// AllowUndefinedVariables, evaluates to nil. Only these names reach the
// host surface.
var hostIdentifiers = []string{
	"$json", "$binary", "$input", "$node", "$parameter", "$workflow",
	"$now", "$today", "$executionId",
}

// IsExpression reports whether a raw parameter value is an expression
// string (prefixed "=") rather than a literal.
func IsExpression(raw string) bool {
	return strings.HasPrefix(raw, Prefix)
}

// Env is the host surface exposed to an expression. All fields are pure
// reads over the current RunState snapshot; building an Env never
// mutates anything.
type Env struct {
	JSON        map[string]interface{}
	Binary      map[string]interface{}
	Input       interface{}
	Node        map[string]interface{} // node name -> {"json": ...}
	Parameter   map[string]interface{}
	Workflow    map[string]interface{}
	Now         string
	Today       string
	ExecutionID string
}

func (e Env) toMap() map[string]interface{} {
	return map[string]interface{}{
		"json":        orEmpty(e.JSON),
		"binary":      orEmptyIface(e.Binary),
		"input":       e.Input,
		"node":        orEmptyIface(e.Node),
		"parameter":   orEmptyIface(e.Parameter),
		"workflow":    orEmptyIface(e.Workflow),
		"now":         e.Now,
		"today":       e.Today,
		"executionId": e.ExecutionID,
	}
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func orEmptyIface(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// stripIdentifiers rewrites the enumerated $-prefixed host names to the
// bare identifiers expr's lexer accepts. Any other "$name" is left as-is;
// it names nothing in the env, so it evaluates to nil rather than
// falling through to an env entry of the same bare name.
func stripIdentifiers(src string) string {
	for _, id := range hostIdentifiers {
		src = strings.ReplaceAll(src, id, strings.TrimPrefix(id, "$"))
	}
	return src
}

// Evaluate resolves a raw parameter value against env. Non-expression
// strings and non-string values pass through unchanged. A string that is
// exactly "={{ <expr> }}" (no surrounding literal text) returns the
// expression's native result so types survive (numbers stay numbers,
// objects stay objects); anything else is treated as a template and each
// {{ }} span is substituted with its stringified result.
func Evaluate(raw interface{}, env Env) (interface{}, error) {
	str, ok := raw.(string)
	if !ok || !IsExpression(str) {
		return raw, nil
	}
	body := strings.TrimPrefix(str, Prefix)

	if m := fullTemplateMatch(body); m != "" {
		return run(m, env)
	}

	envMap := env.toMap()
	var evalErr error
	result := templateRegexp.ReplaceAllStringFunc(body, func(match string) string {
		if evalErr != nil {
			return match
		}
		inner := templateRegexp.FindStringSubmatch(match)[1]
		v, err := runWithMap(inner, envMap)
		if err != nil {
			evalErr = err
			return match
		}
		return fmt.Sprintf("%v", v)
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return result, nil
}

// fullTemplateMatch returns the inner expression text when body is
// exactly one {{ }} span with no surrounding literal characters.
func fullTemplateMatch(body string) string {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return ""
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "{{"), "}}")
	if strings.Count(inner, "{{") > 0 {
		return ""
	}
	return inner
}

func run(exprSrc string, env Env) (interface{}, error) {
	return runWithMap(exprSrc, env.toMap())
}

func runWithMap(exprSrc string, envMap map[string]interface{}) (interface{}, error) {
	clean := stripIdentifiers(strings.TrimSpace(exprSrc))
	program, err := expr.Compile(clean, expr.Env(envMap), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("expression: compile %q: %w", exprSrc, err)
	}
	result, err := expr.Run(program, envMap)
	if err != nil {
		return nil, fmt.Errorf("expression: evaluate %q: %w", exprSrc, err)
	}
	return result, nil
}
