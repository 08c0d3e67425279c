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

package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apengine"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/job"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/observability"
	"github.com/weaver-engine/ap-engine/internal/store/memory"
)

// fakeRuntime completes every container run instantly and successfully.
type fakeRuntime struct {
	exitCode int
	err      error
}

func (f *fakeRuntime) Run(_ context.Context, _ apengine.RunSpec) (apengine.RunResult, error) {
	return apengine.RunResult{ExitCode: f.exitCode}, f.err
}

func newDispatcher(t *testing.T, runtime apengine.ContainerRuntime, cfg Config) (*Dispatcher, *memory.Store) {
	t.Helper()
	st := memory.New()
	m := job.New(st, nil)
	local := apengine.New(runtime, nil, t.TempDir())
	d := New(m, st, local, nil, observability.NewMemoryLogStore(), nil, cfg, nil)
	return d, st
}

func singleStepTool() *apd.Document {
	return &apd.Document{
		Class: apd.ClassCommandLineTool,
		Tool: &apd.CommandLineTool{
			Requirements: apd.Requirements{Docker: &apd.DockerRequirement{Image: "alpine:3.19"}},
		},
	}
}

func TestDispatcher_Submit_SyncCompletesWithinWindow(t *testing.T) {
	d, _ := newDispatcher(t, &fakeRuntime{exitCode: 0}, Config{SyncTimeout: 2 * time.Second})

	result, completed, err := d.Submit(context.Background(), SubmitRequest{
		JobID:     uuid.NewString(),
		ProcessID: "echo",
		Package:   singleStepTool(),
		Inputs:    map[string]model.Value{},
		Mode:      model.ExecutionSync,
	})
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, model.JobSucceeded, result.Status)
}

// fakeSecretsCache records every runID passed to Clear.
type fakeSecretsCache struct {
	mu      sync.Mutex
	cleared []string
}

func (c *fakeSecretsCache) Clear(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, runID)
}

func TestDispatcher_Submit_ClearsSecretsCacheOnCompletion(t *testing.T) {
	d, _ := newDispatcher(t, &fakeRuntime{exitCode: 0}, Config{SyncTimeout: 2 * time.Second})
	cache := &fakeSecretsCache{}
	d.WithSecretsCache(cache)

	jobID := uuid.NewString()
	_, completed, err := d.Submit(context.Background(), SubmitRequest{
		JobID:     jobID,
		ProcessID: "echo",
		Package:   singleStepTool(),
		Inputs:    map[string]model.Value{},
		Mode:      model.ExecutionSync,
	})
	require.NoError(t, err)
	assert.True(t, completed)

	cache.mu.Lock()
	defer cache.mu.Unlock()
	assert.Equal(t, []string{jobID}, cache.cleared)
}

func TestDispatcher_Submit_AsyncReturnsAccepted(t *testing.T) {
	d, _ := newDispatcher(t, &fakeRuntime{exitCode: 0}, Config{})

	result, completed, err := d.Submit(context.Background(), SubmitRequest{
		JobID:     uuid.NewString(),
		ProcessID: "echo",
		Package:   singleStepTool(),
		Inputs:    map[string]model.Value{},
		Mode:      model.ExecutionAsync,
	})
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, model.JobAccepted, result.Status)
}

func TestDispatcher_Submit_FailureRecordsException(t *testing.T) {
	d, st := newDispatcher(t, &fakeRuntime{err: fmt.Errorf("container runtime unavailable")}, Config{SyncTimeout: 2 * time.Second})

	jobID := uuid.NewString()
	_, completed, err := d.Submit(context.Background(), SubmitRequest{
		JobID:     jobID,
		ProcessID: "echo",
		Package:   singleStepTool(),
		Inputs:    map[string]model.Value{},
		Mode:      model.ExecutionSync,
	})
	require.NoError(t, err)
	assert.True(t, completed)

	stored, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, stored.Status)
	require.NotEmpty(t, stored.Exceptions)
}

func TestDispatcher_Submit_RejectsAtCapacity(t *testing.T) {
	d, _ := newDispatcher(t, &fakeRuntime{exitCode: 0}, Config{MaxQueued: 0})
	d.maxQueued = 0

	_, _, err := d.Submit(context.Background(), SubmitRequest{
		JobID:     uuid.NewString(),
		ProcessID: "echo",
		Package:   singleStepTool(),
		Inputs:    map[string]model.Value{},
		Mode:      model.ExecutionAsync,
	})
	require.Error(t, err)
	var capErr *apperrors.CapacityError
	require.ErrorAs(t, err, &capErr)
}

func TestDispatcher_Dismiss(t *testing.T) {
	d, _ := newDispatcher(t, &fakeRuntime{exitCode: 0}, Config{})

	jobID := uuid.NewString()
	_, _, err := d.Submit(context.Background(), SubmitRequest{
		JobID:     jobID,
		ProcessID: "echo",
		Package:   singleStepTool(),
		Inputs:    map[string]model.Value{},
		Mode:      model.ExecutionAsync,
	})
	require.NoError(t, err)

	// The job may already have raced to a terminal state given how fast
	// the fake runtime completes; dismissing a terminal job legitimately
	// errors, so only assert that a live job dismisses cleanly.
	result, err := d.Dismiss(context.Background(), jobID)
	if err == nil {
		assert.True(t, result.Status == model.JobDismissed || result.Status.Terminal())
	}
}
