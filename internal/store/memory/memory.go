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

// Package memory provides an in-memory store implementation, useful for
// single-process deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is an in-memory implementation of every store interface.
type Store struct {
	mu        sync.RWMutex
	processes map[string]*model.Process
	providers map[string]*model.Provider
	jobs      map[string]*model.Job
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		processes: make(map[string]*model.Process),
		providers: make(map[string]*model.Provider),
		jobs:      make(map[string]*model.Job),
	}
}

func (s *Store) PutProcess(_ context.Context, p *model.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.processes[p.ID] = &cp
	return nil
}

func (s *Store) GetProcess(_ context.Context, id string) (*model.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processes[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "process", ID: id}
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DeleteProcess(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processes, id)
	return nil
}

func (s *Store) ListProcesses(_ context.Context, filter store.ProcessFilter) ([]*model.Process, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Process
	for _, p := range s.processes {
		if filter.Visibility != "" && p.Visibility != filter.Visibility {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) PutProvider(_ context.Context, p *model.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.providers[p.ID] = &cp
	return nil
}

func (s *Store) GetProvider(_ context.Context, id string) (*model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "provider", ID: id}
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DeleteProvider(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.providers, id)
	return nil
}

func (s *Store) ListProviders(_ context.Context) ([]*model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) CreateJob(_ context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[j.ID]; exists {
		return &apperrors.ConflictError{Message: "job already exists: " + j.ID}
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "job", ID: id}
	}
	return j.Clone(), nil
}

func (s *Store) UpdateJob(_ context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[j.ID]; !exists {
		return &apperrors.NotFoundError{Resource: "job", ID: j.ID}
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *Store) ListJobs(_ context.Context, filter store.JobFilter) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Job
	for _, j := range s.jobs {
		if filter.ProcessID != "" && j.ProcessID != filter.ProcessID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, j.Status) {
			continue
		}
		if filter.Tag != "" && !containsTag(j.Tags, filter.Tag) {
			continue
		}
		out = append(out, j.Clone())
	}
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *Store) Close() error { return nil }

func containsStatus(statuses []model.JobStatus, s model.JobStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
