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
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/fetch"
	"github.com/weaver-engine/ap-engine/internal/job"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/observability"
)

// fakeStore backs a job.Machine with nothing but in-memory state, just
// enough for the Collector's Progress/Exception intents to round-trip.
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
	m.Register(&model.Job{ID: jobID, ProcessID: "echo", Status: model.JobRunning})
	return observability.New(jobID, m, observability.NewMemoryLogStore())
}

// fakeRuntime simulates a container run by writing a fixed output file
// into the run's working directory and echoing fixed stdout/stderr
// text, so the interpreter's staging/render/collect pipeline can be
// exercised without a Docker Engine API endpoint.
type fakeRuntime struct {
	exitCode  int
	calls     int
	stdout    string
	writeFile string
	writeBody string
}

func (f *fakeRuntime) Run(_ context.Context, spec RunSpec) (RunResult, error) {
	f.calls++
	if spec.Stdout != nil && f.stdout != "" {
		_, _ = io.WriteString(spec.Stdout, f.stdout)
	}
	if f.writeFile != "" {
		_ = os.WriteFile(filepath.Join(spec.WorkDir, f.writeFile), []byte(f.writeBody), 0o644)
	}
	return RunResult{ExitCode: f.exitCode}, nil
}

func newTestFetcher(t *testing.T, sourceDir string) *fetch.Fetcher {
	t.Helper()
	return fetch.New(map[string]fetch.Scheme{"file": fetch.NewFileScheme(sourceDir)}, nil)
}

func TestInterpreter_Run_StagesInputsRendersAndCollectsOutput(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "in.txt"), []byte("hello"), 0o644))

	tool := &apd.CommandLineTool{
		BaseCommand: []string{"cp"},
		Requirements: apd.Requirements{
			Docker: &apd.DockerRequirement{Image: "alpine:3.19"},
		},
		Inputs: []apd.InputParameter{
			{ID: "src", Binding: &apd.InputBinding{Position: 0}},
		},
		Outputs: []apd.OutputParameter{
			{ID: "out", Binding: &apd.OutputBinding{Glob: "*.txt"}},
		},
	}
	inputs := map[string]model.Value{
		"src": {Kind: model.KindComplex, Complex: &model.ComplexValue{Href: "file://" + filepath.Join(source, "in.txt")}},
	}

	runtime := &fakeRuntime{exitCode: 0, writeFile: "out.txt", writeBody: "copied"}
	stagingRoot := t.TempDir()
	interp := New(runtime, newTestFetcher(t, source), stagingRoot)

	outcome, err := interp.Run(context.Background(), RunRequest{
		JobID:     "job-1",
		Tool:      tool,
		Inputs:    inputs,
		Collector: newCollector(t, "job-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, ClassSuccess, outcome.Classification)
	assert.Equal(t, 1, outcome.Attempts)
	require.Contains(t, outcome.Outputs, "out")
	assert.Equal(t, filepath.Join(stagingRoot, "job-1", "work", "out.txt"), outcome.Outputs["out"].Complex.LocalPath)
	assert.Equal(t, 1, runtime.calls)
}

func TestInterpreter_Run_RetriesTemporaryFailure(t *testing.T) {
	tool := &apd.CommandLineTool{
		Requirements:       apd.Requirements{Docker: &apd.DockerRequirement{Image: "alpine:3.19"}},
		TemporaryFailCodes: []int{75},
	}
	runtime := &fakeRuntime{exitCode: 75}
	interp := New(runtime, newTestFetcher(t, t.TempDir()), t.TempDir())

	_, err := interp.Run(context.Background(), RunRequest{
		JobID:     "job-2",
		Tool:      tool,
		Inputs:    map[string]model.Value{},
		Collector: newCollector(t, "job-2"),
	})
	require.Error(t, err)
	var execErr *apperrors.PackageExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, maxAttempts, runtime.calls, "exhausts the full retry budget on persistent temporary failure")
}

func TestInterpreter_Run_PermanentFailureDoesNotRetry(t *testing.T) {
	tool := &apd.CommandLineTool{
		Requirements:       apd.Requirements{Docker: &apd.DockerRequirement{Image: "alpine:3.19"}},
		PermanentFailCodes: []int{1},
	}
	runtime := &fakeRuntime{exitCode: 1}
	interp := New(runtime, newTestFetcher(t, t.TempDir()), t.TempDir())

	_, err := interp.Run(context.Background(), RunRequest{
		JobID:     "job-3",
		Tool:      tool,
		Inputs:    map[string]model.Value{},
		Collector: newCollector(t, "job-3"),
	})
	require.Error(t, err)
	assert.Equal(t, 1, runtime.calls)
}

func TestInterpreter_Run_RequiresDockerImage(t *testing.T) {
	interp := New(&fakeRuntime{}, newTestFetcher(t, t.TempDir()), t.TempDir())
	_, err := interp.Run(context.Background(), RunRequest{
		JobID:     "job-4",
		Tool:      &apd.CommandLineTool{},
		Collector: newCollector(t, "job-4"),
	})
	require.Error(t, err)
	var stagingErr *apperrors.PackageStagingError
	require.ErrorAs(t, err, &stagingErr)
}
