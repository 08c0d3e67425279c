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

package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
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

func newTestJob(id string) *model.Job {
	return &model.Job{ID: id, ProcessID: "echo", Status: model.JobAccepted, Created: time.Now(), Updated: time.Now()}
}

func TestMachine_HappyPathTransitions(t *testing.T) {
	m := New(newFakeStore(), nil)
	j := m.Register(newTestJob("job-1"))
	assert.Equal(t, model.JobAccepted, j.Status)

	ctx := context.Background()
	j, err := m.Apply(ctx, "job-1", Intent{Kind: IntentStart, WorkerID: "w1"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStarted, j.Status)
	assert.NotNil(t, j.Started)

	j, err = m.Apply(ctx, "job-1", Intent{Kind: IntentRun})
	require.NoError(t, err)
	assert.Equal(t, model.JobRunning, j.Status)

	j, err = m.Apply(ctx, "job-1", Intent{Kind: IntentProgress, Progress: 40})
	require.NoError(t, err)
	assert.Equal(t, 40, j.Progress)

	j, err = m.Apply(ctx, "job-1", Intent{Kind: IntentSucceed, Results: []model.Result{{ID: "out", Value: "ok"}}})
	require.NoError(t, err)
	assert.Equal(t, model.JobSucceeded, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.NotNil(t, j.Finished)
}

func TestMachine_IllegalTransitionDropped(t *testing.T) {
	m := New(newFakeStore(), nil)
	m.Register(newTestJob("job-2"))

	ctx := context.Background()
	_, err := m.Apply(ctx, "job-2", Intent{Kind: IntentRun})
	var illegal *apperrors.IllegalTransition
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "accepted", illegal.From)
	assert.Equal(t, "running", illegal.To)
}

func TestMachine_ProgressNeverMovesBackward(t *testing.T) {
	m := New(newFakeStore(), nil)
	m.Register(newTestJob("job-3"))
	ctx := context.Background()

	m.Apply(ctx, "job-3", Intent{Kind: IntentStart})
	m.Apply(ctx, "job-3", Intent{Kind: IntentRun})
	j, err := m.Apply(ctx, "job-3", Intent{Kind: IntentProgress, Progress: 60})
	require.NoError(t, err)
	assert.Equal(t, 60, j.Progress)

	j, err = m.Apply(ctx, "job-3", Intent{Kind: IntentProgress, Progress: 30})
	require.NoError(t, err)
	assert.Equal(t, 60, j.Progress)
}

func TestMachine_DismissFromAnyNonTerminalState(t *testing.T) {
	m := New(newFakeStore(), nil)
	m.Register(newTestJob("job-4"))
	ctx := context.Background()

	j, err := m.Apply(ctx, "job-4", Intent{Kind: IntentDismiss})
	require.NoError(t, err)
	assert.Equal(t, model.JobDismissed, j.Status)
}

func TestMachine_DismissOfTerminalJobRejected(t *testing.T) {
	m := New(newFakeStore(), nil)
	m.Register(newTestJob("job-5"))
	ctx := context.Background()

	m.Apply(ctx, "job-5", Intent{Kind: IntentDismiss})
	_, err := m.Apply(ctx, "job-5", Intent{Kind: IntentDismiss})
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMachine_SnapshotFallsBackToStoreAfterTermination(t *testing.T) {
	store := newFakeStore()
	m := New(store, nil)
	m.Register(newTestJob("job-6"))
	ctx := context.Background()

	_, err := m.Apply(ctx, "job-6", Intent{Kind: IntentDismiss})
	require.NoError(t, err)

	snap, err := m.Snapshot(ctx, "job-6")
	require.NoError(t, err)
	assert.Equal(t, model.JobDismissed, snap.Status)
}

func TestMachine_ApplyToUnknownJobFails(t *testing.T) {
	m := New(newFakeStore(), nil)
	_, err := m.Apply(context.Background(), "missing", Intent{Kind: IntentStart})
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
