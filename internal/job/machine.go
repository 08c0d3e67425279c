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
	"log/slog"
	"sync"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	internallog "github.com/weaver-engine/ap-engine/internal/log"
	"github.com/weaver-engine/ap-engine/internal/model"
)

// Machine is the Job State Machine (C6) entry point: it owns one actor
// per in-flight job and is the only path by which any component may
// mutate a Job record.
type Machine struct {
	mu     sync.RWMutex
	actors map[string]*actor
	store  Store
	logger *slog.Logger
}

// New creates a Machine backed by store for persistence.
func New(store Store, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = internallog.New(internallog.FromEnv())
	}
	return &Machine{actors: make(map[string]*actor), store: store, logger: logger}
}

// Register starts an actor for a freshly accepted job and returns its
// initial snapshot. Register must be called exactly once per job, by
// whichever component accepted the submission (C7 Dispatcher).
func (m *Machine) Register(j *model.Job) *model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := newActor(j, m.store, m.logger)
	m.actors[j.ID] = a
	return j.Clone()
}

// Apply submits an intent to the named job's actor and returns the
// resulting snapshot. If the job has no live actor (already terminal
// and evicted, or unknown), Apply fails with NotFoundError without
// consulting Store; Snapshot is the read path that falls back to Store.
func (m *Machine) Apply(ctx context.Context, jobID string, intent Intent) (*model.Job, error) {
	m.mu.RLock()
	a, ok := m.actors[jobID]
	m.mu.RUnlock()

	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "job", ID: jobID}
	}

	result, err := a.submit(ctx, intent)

	if result != nil && result.Status.Terminal() {
		m.mu.Lock()
		delete(m.actors, jobID)
		m.mu.Unlock()
	}

	return result, err
}

// Snapshot returns the current in-memory view of a job if it still has
// a live actor, or loads it from Store otherwise.
func (m *Machine) Snapshot(ctx context.Context, jobID string) (*model.Job, error) {
	m.mu.RLock()
	a, ok := m.actors[jobID]
	m.mu.RUnlock()
	if ok {
		return a.snapshot(), nil
	}
	return m.store.GetJob(ctx, jobID)
}
