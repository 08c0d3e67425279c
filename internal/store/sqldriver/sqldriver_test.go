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

package sqldriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ProcessCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &model.Process{ID: "echo", Version: "1.0.0", Title: "Echo", Visibility: model.VisibilityPublic}
	require.NoError(t, s.PutProcess(ctx, p))

	got, err := s.GetProcess(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, "Echo", got.Title)

	p.Title = "Echo v2"
	require.NoError(t, s.PutProcess(ctx, p))
	got, err = s.GetProcess(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, "Echo v2", got.Title, "PutProcess must upsert")

	require.NoError(t, s.DeleteProcess(ctx, "echo"))
	_, err = s.GetProcess(ctx, "echo")
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStore_ListProcessesFiltersByVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutProcess(ctx, &model.Process{ID: "a", Version: "1.0.0", Visibility: model.VisibilityPublic}))
	require.NoError(t, s.PutProcess(ctx, &model.Process{ID: "b", Version: "1.0.0", Visibility: model.VisibilityPrivate}))

	out, err := s.ListProcesses(ctx, store.ProcessFilter{Visibility: model.VisibilityPublic})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestStore_ProviderCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutProvider(ctx, &model.Provider{ID: "p1", URL: "https://wps.example.org", Type: model.ProviderWPS1}))
	list, err := s.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteProvider(ctx, "p1"))
	_, err = s.GetProvider(ctx, "p1")
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStore_CreateJobRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	j := &model.Job{ID: "job-1", ProcessID: "echo", Status: model.JobAccepted}

	require.NoError(t, s.CreateJob(ctx, j))
	err := s.CreateJob(ctx, j)
	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestStore_UpdateJobRequiresExisting(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateJob(context.Background(), &model.Job{ID: "missing", Status: model.JobAccepted})
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStore_ListJobsFiltersByStatusTagAndProcess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, &model.Job{
		ID: "j1", ProcessID: "echo", Status: model.JobRunning, Tags: []string{"nightly"},
	}))
	require.NoError(t, s.CreateJob(ctx, &model.Job{
		ID: "j2", ProcessID: "echo", Status: model.JobSucceeded, Tags: []string{"nightly"},
	}))
	require.NoError(t, s.CreateJob(ctx, &model.Job{
		ID: "j3", ProcessID: "other", Status: model.JobRunning, Tags: []string{"adhoc"},
	}))

	out, err := s.ListJobs(ctx, store.JobFilter{ProcessID: "echo", Statuses: []model.JobStatus{model.JobRunning}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "j1", out[0].ID)

	out, err = s.ListJobs(ctx, store.JobFilter{Tag: "nightly"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	require.NoError(t, s.DeleteJob(ctx, "j3"))
	out, err = s.ListJobs(ctx, store.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestStore_ImplementsFullInterface(t *testing.T) {
	s := newTestStore(t)
	var _ store.Store = s
}

func TestResolveDriver_RejectsUnknown(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "mysql", DSN: "n/a"})
	require.Error(t, err)
}
