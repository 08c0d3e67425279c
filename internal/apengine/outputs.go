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

package apengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/expr"
	"github.com/weaver-engine/ap-engine/internal/model"
)

// CollectOutputs builds the result set of a completed CommandLineTool
// run: each declared output is resolved from its OutputBinding against
// the tool's working directory and captured stdout.
func CollectOutputs(tool *apd.CommandLineTool, workDir string, stdout []byte, ev *expr.Evaluator, rt expr.Runtime, inputs map[string]model.Value) (map[string]model.Value, error) {
	results := make(map[string]model.Value, len(tool.Outputs))
	for _, out := range tool.Outputs {
		v, err := collectOutput(out, workDir, stdout, ev, rt, inputs)
		if err != nil {
			return nil, err
		}
		results[out.ID] = v
	}
	return results, nil
}

func collectOutput(out apd.OutputParameter, workDir string, stdout []byte, ev *expr.Evaluator, rt expr.Runtime, inputs map[string]model.Value) (model.Value, error) {
	if out.Binding == nil {
		return model.Value{}, &apperrors.PackageOutputCollectionError{OutputID: out.ID, Message: "output has no collection binding"}
	}

	var self any
	switch {
	case out.Binding.LoadStdout:
		self = strings.TrimRight(string(stdout), "\n")
	case out.Binding.Glob != "":
		matches, err := globOutputs(workDir, out.Binding.Glob)
		if err != nil {
			return model.Value{}, &apperrors.PackageOutputCollectionError{OutputID: out.ID, Message: err.Error()}
		}
		if len(matches) == 0 && out.Binding.OutputEval == "" {
			return model.Value{}, &apperrors.PackageOutputCollectionError{OutputID: out.ID, Message: fmt.Sprintf("glob %q matched no files", out.Binding.Glob)}
		}
		self = matches
	}

	if out.Binding.OutputEval != "" {
		env := expr.Env{Inputs: toExprInputs(inputs), Self: self, Runtime: rt}
		result, err := ev.Evaluate(strings.TrimSuffix(strings.TrimPrefix(out.Binding.OutputEval, "$("), ")"), env)
		if err != nil {
			return model.Value{}, &apperrors.PackageOutputCollectionError{OutputID: out.ID, Message: fmt.Sprintf("outputEval failed: %v", err)}
		}
		return evalResultToValue(out, result)
	}

	if out.Binding.LoadStdout {
		return model.Value{Kind: model.KindLiteral, Literal: self}, nil
	}

	paths := self.([]string)
	if out.Type.IsArray {
		arr := make([]model.Value, len(paths))
		for i, p := range paths {
			arr[i] = model.Value{Kind: model.KindComplex, Complex: &model.ComplexValue{LocalPath: p}}
		}
		return model.Value{Kind: model.KindArray, Array: arr}, nil
	}
	return model.Value{Kind: model.KindComplex, Complex: &model.ComplexValue{LocalPath: paths[0]}}, nil
}

// globOutputs matches pattern against the files staged under workDir,
// returning absolute host paths in deterministic order.
func globOutputs(workDir, pattern string) ([]string, error) {
	fsys := os.DirFS(workDir)
	rel, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	sort.Strings(rel)
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(workDir, r)
	}
	return out, nil
}

// evalResultToValue maps an outputEval expression's result into a
// Value according to the output's declared type.
func evalResultToValue(out apd.OutputParameter, result any) (model.Value, error) {
	if out.Type.IsArray {
		items, ok := result.([]any)
		if !ok {
			return model.Value{}, &apperrors.PackageOutputCollectionError{OutputID: out.ID, Message: "outputEval did not return an array for an array-typed output"}
		}
		arr := make([]model.Value, len(items))
		for i, it := range items {
			arr[i] = literalOrPath(it)
		}
		return model.Value{Kind: model.KindArray, Array: arr}, nil
	}
	return literalOrPath(result), nil
}

func literalOrPath(v any) model.Value {
	if s, ok := v.(string); ok && strings.HasPrefix(s, "/") {
		return model.Value{Kind: model.KindComplex, Complex: &model.ComplexValue{LocalPath: s}}
	}
	return model.Value{Kind: model.KindLiteral, Literal: v}
}
