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

package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apengine"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/job"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/observability"
)

type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func newFakeStore() *fakeStore { return &fakeStore{jobs: make(map[string]*model.Job)} }

func (s *fakeStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "job", ID: id}
	}
	return j.Clone(), nil
}

func (s *fakeStore) UpdateJob(_ context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j.Clone()
	return nil
}

func newCollector(t *testing.T, jobID string) *observability.Collector {
	t.Helper()
	m := job.New(newFakeStore(), nil)
	m.Register(&model.Job{ID: jobID, ProcessID: "wf", Status: model.JobRunning})
	return observability.New(jobID, m, observability.NewMemoryLogStore())
}

// fakeRuntime runs every step instantly with exit code 0 and no other
// effect, so chains of steps can be exercised without a container
// runtime.
type fakeRuntime struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeRuntime) Run(_ context.Context, spec apengine.RunSpec) (apengine.RunResult, error) {
	return apengine.RunResult{ExitCode: 0}, nil
}

func toolStep(id string, in map[string]string, out []string) apd.WorkflowStep {
	return apd.WorkflowStep{
		ID: id,
		Run: &apd.Document{
			Class: apd.ClassCommandLineTool,
			Tool: &apd.CommandLineTool{
				Requirements: apd.Requirements{Docker: &apd.DockerRequirement{Image: "alpine:3.19"}},
				Outputs: func() []apd.OutputParameter {
					var ops []apd.OutputParameter
					for _, o := range out {
						ops = append(ops, apd.OutputParameter{ID: o, Binding: &apd.OutputBinding{LoadStdout: true}})
					}
					return ops
				}(),
			},
		},
		In:  in,
		Out: out,
	}
}

func TestBuildGraph_RejectsCycle(t *testing.T) {
	wf := &apd.Workflow{
		Steps: []apd.WorkflowStep{
			toolStep("a", map[string]string{"x": "b/y"}, []string{"x"}),
			toolStep("b", map[string]string{"y": "a/x"}, []string{"y"}),
		},
	}
	_, err := buildGraph(wf)
	require.Error(t, err)
	var werr *apperrors.WorkflowError
	require.ErrorAs(t, err, &werr)
}

func TestBuildGraph_RejectsUnknownStepReference(t *testing.T) {
	wf := &apd.Workflow{
		Steps: []apd.WorkflowStep{
			toolStep("a", map[string]string{"x": "ghost/y"}, []string{"x"}),
		},
	}
	_, err := buildGraph(wf)
	require.Error(t, err)
}

func TestGraph_ReadyRespectsDependencies(t *testing.T) {
	wf := &apd.Workflow{
		Steps: []apd.WorkflowStep{
			toolStep("a", nil, []string{"x"}),
			toolStep("b", map[string]string{"in": "a/x"}, []string{"y"}),
		},
	}
	g, err := buildGraph(wf)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a"}, g.ready(map[string]bool{}, map[string]bool{}))
	assert.ElementsMatch(t, []string{"b"}, g.ready(map[string]bool{"a": true}, map[string]bool{}))
}

func TestInterpreter_Run_LinearChain(t *testing.T) {
	wf := &apd.Workflow{
		Inputs: []apd.InputParameter{{ID: "start"}},
		Outputs: []apd.OutputParameter{
			{ID: "final", Source: "b/y"},
		},
		Steps: []apd.WorkflowStep{
			toolStep("a", map[string]string{"in": "start"}, []string{"x"}),
			toolStep("b", map[string]string{"in": "a/x"}, []string{"y"}),
		},
	}

	local := apengine.New(&fakeRuntime{}, nil, t.TempDir())
	interp := New(local, nil, nil, DefaultMaxConcurrency)

	outputs, err := interp.Run(context.Background(), RunRequest{
		JobID:     "job-1",
		Workflow:  wf,
		Inputs:    map[string]model.Value{"start": {Kind: model.KindLiteral, Literal: "go"}},
		Collector: newCollector(t, "job-1"),
	})
	require.NoError(t, err)
	require.Contains(t, outputs, "final")
}

func TestInterpreter_Run_ParallelFanOutCompletesUnderConcurrencyCap(t *testing.T) {
	wf := &apd.Workflow{
		Steps: []apd.WorkflowStep{
			toolStep("a", nil, []string{"x"}),
			toolStep("b", nil, []string{"x"}),
			toolStep("c", nil, []string{"x"}),
		},
	}

	local := apengine.New(&fakeRuntime{}, nil, t.TempDir())
	interp := New(local, nil, nil, 2)

	outputs, err := interp.Run(context.Background(), RunRequest{
		JobID:     "job-2",
		Workflow:  wf,
		Inputs:    map[string]model.Value{},
		Collector: newCollector(t, "job-2"),
	})
	require.NoError(t, err)
	assert.NotNil(t, outputs)
}

// failingRuntime fails every container run, so the step that uses it
// lets us exercise first-failure-terminates-workflow semantics.
type failingRuntime struct{}

func (failingRuntime) Run(_ context.Context, _ apengine.RunSpec) (apengine.RunResult, error) {
	return apengine.RunResult{}, fmt.Errorf("boom")
}

func TestInterpreter_Run_FirstFailureTerminatesWorkflow(t *testing.T) {
	wf := &apd.Workflow{
		Steps: []apd.WorkflowStep{
			toolStep("a", nil, []string{"x"}),
		},
	}

	local := apengine.New(failingRuntime{}, nil, t.TempDir())
	interp := New(local, nil, nil, DefaultMaxConcurrency)

	_, err := interp.Run(context.Background(), RunRequest{
		JobID:     "job-3",
		Workflow:  wf,
		Inputs:    map[string]model.Value{},
		Collector: newCollector(t, "job-3"),
	})
	require.Error(t, err)
	var werr *apperrors.WorkflowError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "a", werr.StepID)
}
