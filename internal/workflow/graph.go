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

// Package workflow is the Workflow Interpreter (C5): it executes a
// multi-step Application Package as a DAG, dispatching each step
// either to the local Application Package Interpreter (C4) or to a
// remote executor, with bounded fan-out and first-failure-terminates
// semantics.
package workflow

import (
	"fmt"
	"strings"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
)

// graph is the dependency structure derived from a Workflow's steps:
// edge stepID -> the step IDs it depends on, built from each step's
// `in` references of the form "other_step/out_id".
type graph struct {
	steps   map[string]*apd.WorkflowStep
	order   []string // declaration order, used as a tiebreak for scheduling
	dependsOn map[string]map[string]bool
}

// buildGraph indexes a Workflow's steps and resolves their dependency
// edges, rejecting unknown step references and dependency cycles.
func buildGraph(wf *apd.Workflow) (*graph, error) {
	g := &graph{
		steps:     make(map[string]*apd.WorkflowStep, len(wf.Steps)),
		dependsOn: make(map[string]map[string]bool, len(wf.Steps)),
	}

	for i := range wf.Steps {
		s := &wf.Steps[i]
		if _, dup := g.steps[s.ID]; dup {
			return nil, &apperrors.WorkflowError{StepID: s.ID, Message: "duplicate step id"}
		}
		g.steps[s.ID] = s
		g.order = append(g.order, s.ID)
		g.dependsOn[s.ID] = make(map[string]bool)
	}

	for _, s := range wf.Steps {
		for _, ref := range s.In {
			depStep, ok := stepSource(ref)
			if !ok {
				continue // references a workflow input, not another step
			}
			if _, known := g.steps[depStep]; !known {
				return nil, &apperrors.WorkflowError{StepID: s.ID, Message: fmt.Sprintf("input references unknown step %q", depStep)}
			}
			g.dependsOn[s.ID][depStep] = true
		}
	}

	if err := g.detectCycle(); err != nil {
		return nil, err
	}
	return g, nil
}

// stepSource splits an `in` reference of the form "step/out" into its
// source step ID. A reference with no "/" names a workflow input, not
// a step output.
func stepSource(ref string) (string, bool) {
	idx := strings.IndexByte(ref, '/')
	if idx < 0 {
		return "", false
	}
	return ref[:idx], true
}

// detectCycle runs a three-color DFS over the dependency edges.
func (g *graph) detectCycle() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.steps))

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		color[id] = gray
		path = append(path, id)
		for dep := range g.dependsOn[id] {
			switch color[dep] {
			case gray:
				return &apperrors.WorkflowError{StepID: id, Message: fmt.Sprintf("dependency cycle: %s -> %s", strings.Join(path, " -> "), dep)}
			case white:
				if err := visit(dep, path); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, id := range g.order {
		if color[id] == white {
			if err := visit(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// ready returns the steps in g whose dependencies are all present in
// done, excluding any step already present in done or in-flight.
func (g *graph) ready(done, inFlight map[string]bool) []string {
	var out []string
	for _, id := range g.order {
		if done[id] || inFlight[id] {
			continue
		}
		satisfied := true
		for dep := range g.dependsOn[id] {
			if !done[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			out = append(out, id)
		}
	}
	return out
}
