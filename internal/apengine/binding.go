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

// Package apengine is the Application Package Interpreter (C4): it runs
// a single CommandLineTool inside a container, assembling its command
// line from bound inputs, staging complex inputs onto the container's
// filesystem, applying resource/network/GPU requirements, and
// collecting declared outputs once the container exits.
package apengine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/expr"
	"github.com/weaver-engine/ap-engine/internal/model"
)

// boundArg is one input's rendered command-line tokens, ordered for
// final assembly by Position.
type boundArg struct {
	position int
	order    int
	tokens   []string
}

// RenderCommandLine assembles a CommandLineTool's argv: the base
// command followed by every bound input's rendered tokens, ordered by
// InputBinding.Position (ties keep declaration order, matching CWL's
// "inputs without an explicit position sort after none" convention
// closely enough for this engine's needs: declaration order is the
// tiebreak in both cases).
func RenderCommandLine(tool *apd.CommandLineTool, inputs map[string]model.Value, ev *expr.Evaluator, rt expr.Runtime) ([]string, error) {
	argv := append([]string(nil), tool.BaseCommand...)

	exprInputs := toExprInputs(inputs)
	var bound []boundArg
	for i, in := range tool.Inputs {
		if in.Binding == nil {
			continue
		}
		val, ok := inputs[in.ID]
		if !ok {
			continue
		}
		tokens, err := renderBinding(*in.Binding, val, ev, rt, exprInputs)
		if err != nil {
			return nil, fmt.Errorf("apengine: render binding for input %q: %w", in.ID, err)
		}
		if len(tokens) == 0 {
			continue
		}
		bound = append(bound, boundArg{position: in.Binding.Position, order: i, tokens: tokens})
	}

	sort.SliceStable(bound, func(i, j int) bool { return bound[i].position < bound[j].position })
	for _, b := range bound {
		argv = append(argv, b.tokens...)
	}
	return argv, nil
}

// renderBinding renders one InputBinding against its bound value into
// zero or more command-line tokens.
func renderBinding(b apd.InputBinding, v model.Value, ev *expr.Evaluator, rt expr.Runtime, exprInputs map[string]any) ([]string, error) {
	if b.ValueFrom != "" {
		env := expr.Env{Inputs: exprInputs, Self: toExprValue(v), Runtime: rt}
		rendered, err := ev.Render(b.ValueFrom, env)
		if err != nil {
			return nil, err
		}
		return prefixTokens(b, []string{rendered}), nil
	}

	if v.Kind == model.KindArray {
		items := make([]string, 0, len(v.Array))
		for _, elem := range v.Array {
			items = append(items, renderScalar(elem))
		}
		if b.ItemSeparator != "" {
			return prefixTokens(b, []string{strings.Join(items, b.ItemSeparator)}), nil
		}
		// No itemSeparator: repeat the prefix before every element.
		var out []string
		for _, item := range items {
			out = append(out, prefixTokens(b, []string{item})...)
		}
		return out, nil
	}

	return prefixTokens(b, []string{renderScalar(v)}), nil
}

// prefixTokens applies Prefix/Separate to a single rendered value.
// Separate==false glues the prefix directly onto the value
// ("-ofoo.tif"); Separate==true (the default) emits prefix and value as
// distinct argv entries.
func prefixTokens(b apd.InputBinding, values []string) []string {
	if b.Prefix == "" {
		return values
	}
	out := make([]string, 0, len(values)+1)
	for i, v := range values {
		if i == 0 && !b.Separate {
			out = append(out, b.Prefix+v)
			continue
		}
		if i == 0 {
			out = append(out, b.Prefix)
		}
		out = append(out, v)
	}
	return out
}

// renderScalar formats one Value as its bare command-line text.
func renderScalar(v model.Value) string {
	switch v.Kind {
	case model.KindLiteral:
		return fmt.Sprintf("%v", v.Literal)
	case model.KindComplex:
		if v.Complex == nil {
			return ""
		}
		if v.Complex.LocalPath != "" {
			return v.Complex.LocalPath
		}
		return v.Complex.Href
	case model.KindBBox:
		if v.BBox == nil {
			return ""
		}
		parts := make([]string, 0, len(v.BBox.Lower)+len(v.BBox.Upper))
		for _, f := range v.BBox.Lower {
			parts = append(parts, strconv.FormatFloat(f, 'g', -1, 64))
		}
		for _, f := range v.BBox.Upper {
			parts = append(parts, strconv.FormatFloat(f, 'g', -1, 64))
		}
		return strings.Join(parts, ",")
	default:
		return v.String()
	}
}

// toExprInputs converts the engine's input map into the plain-any map
// the restricted-expression evaluator's Env expects.
func toExprInputs(inputs map[string]model.Value) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = toExprValue(v)
	}
	return out
}

// toExprValue reduces a Value to the plain Go value an expression body
// can index or format: scalars pass through, complex values expose
// their staged path, arrays recurse.
func toExprValue(v model.Value) any {
	switch v.Kind {
	case model.KindLiteral:
		return v.Literal
	case model.KindComplex:
		if v.Complex == nil {
			return nil
		}
		if v.Complex.LocalPath != "" {
			return v.Complex.LocalPath
		}
		return v.Complex.Href
	case model.KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = toExprValue(e)
		}
		return out
	case model.KindBBox:
		if v.BBox == nil {
			return nil
		}
		return map[string]any{"lower": v.BBox.Lower, "upper": v.BBox.Upper, "crs": v.BBox.CRS}
	default:
		return nil
	}
}
