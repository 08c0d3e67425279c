// Copyright 2025 The AP Engine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package expr implements the restricted expression sub-language used to
// render parameter references in an Application Package (spec.md §9):
// `$(inputs.<id>)`, `$(self)`, `$(runtime.<outdir|tmpdir|cores|ram>)`, and
// (when enabled) single-expression arithmetic/string/array manipulation.
//
// The evaluator is pure: no I/O, no global state, deterministic, bounded
// evaluation time, and fail-closed on unknown identifiers. It is disabled
// by default; a process may enable it only when its Application Package
// declares the inline-expression hint (apd.Requirements.ExpressionEnabled).
package expr

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Runtime exposes the `runtime.*` root to expressions.
type Runtime struct {
	OutDir string
	TmpDir string
	Cores  int
	RAM    int
}

// Env is the evaluation environment: the three roots an expression may
// reference.
type Env struct {
	Inputs  map[string]any
	Self    any
	Runtime Runtime
}

func (e Env) toMap() map[string]any {
	return map[string]any{
		"inputs": e.Inputs,
		"self":   e.Self,
		"runtime": map[string]any{
			"outdir": e.Runtime.OutDir,
			"tmpdir": e.Runtime.TmpDir,
			"cores":  e.Runtime.Cores,
			"ram":    e.Runtime.RAM,
		},
	}
}

// paramRefPattern matches the single-reference shorthand `$(expr)`,
// where expr may nest parentheses up to two levels deep (e.g.
// `join(split(x, ","), "-")`).
var paramRefPattern = regexp.MustCompile(`\$\(((?:[^()]|\((?:[^()]|\([^()]*\))*\))*)\)`)

// ErrDisabled is returned when Evaluate is called but the expression
// sub-language has not been enabled for the process.
var ErrDisabled = fmt.Errorf("expr: expression evaluation is disabled for this process")

// maxEvalTime bounds a single expression's evaluation wall-clock cost.
const maxEvalTime = 200 * time.Millisecond

// Evaluator compiles and runs restricted expressions against an Env. It
// caches compiled programs by source text since the same valueFrom
// expression is evaluated once per array element or per retry.
type Evaluator struct {
	enabled bool
	cache   map[string]*vm.Program
}

// New creates an Evaluator. enabled must be true for Evaluate/Render to
// do anything but fail closed; it mirrors
// apd.Requirements.ExpressionEnabled for the process being executed.
func New(enabled bool) *Evaluator {
	return &Evaluator{enabled: enabled, cache: make(map[string]*vm.Program)}
}

// Render substitutes every `$(...)` reference found in template with its
// evaluated, string-formatted value. If template contains no references
// it is returned unchanged without requiring the evaluator to be
// enabled (plain strings always pass through).
func (ev *Evaluator) Render(template string, env Env) (string, error) {
	if !paramRefPattern.MatchString(template) {
		return template, nil
	}
	if !ev.enabled {
		return "", ErrDisabled
	}
	var evalErr error
	out := paramRefPattern.ReplaceAllStringFunc(template, func(match string) string {
		if evalErr != nil {
			return ""
		}
		inner := paramRefPattern.FindStringSubmatch(match)[1]
		v, err := ev.Evaluate(inner, env)
		if err != nil {
			evalErr = err
			return ""
		}
		return formatValue(v)
	})
	if evalErr != nil {
		return "", evalErr
	}
	return out, nil
}

// Evaluate compiles (if not cached) and runs a single expression body
// (without the surrounding `$()`) against env, with a bounded deadline.
func (ev *Evaluator) Evaluate(body string, env Env) (any, error) {
	if !ev.enabled {
		return nil, ErrDisabled
	}
	body = strings.TrimSpace(body)

	prog, ok := ev.cache[body]
	if !ok {
		compiled, err := expr.Compile(body,
			expr.Env(env.toMap()),
			expr.DisableAllBuiltins(),
			expr.Function("replace", builtinReplace),
			expr.Function("split", builtinSplit),
			expr.Function("join", builtinJoin),
		)
		if err != nil {
			return nil, fmt.Errorf("expr: compile %q: %w", body, err)
		}
		ev.cache[body] = compiled
		prog = compiled
	}

	ctx, cancel := context.WithTimeout(context.Background(), maxEvalTime)
	defer cancel()

	resultCh := make(chan struct {
		v   any
		err error
	}, 1)
	go func() {
		v, err := expr.Run(prog, env.toMap())
		resultCh <- struct {
			v   any
			err error
		}{v, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("expr: evaluate %q: %w", body, r.err)
		}
		return r.v, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("expr: evaluate %q: exceeded %s budget", body, maxEvalTime)
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func builtinReplace(params ...any) (any, error) {
	if len(params) != 3 {
		return nil, fmt.Errorf("replace expects 3 arguments")
	}
	s, old, new := params[0].(string), params[1].(string), params[2].(string)
	return strings.ReplaceAll(s, old, new), nil
}

func builtinSplit(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("split expects 2 arguments")
	}
	s, sep := params[0].(string), params[1].(string)
	parts := strings.Split(s, sep)
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func builtinJoin(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("join expects 2 arguments")
	}
	items, ok := params[0].([]any)
	if !ok {
		return nil, fmt.Errorf("join: first argument must be an array")
	}
	sep, _ := params[1].(string)
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = formatValue(it)
	}
	return strings.Join(parts, sep), nil
}
