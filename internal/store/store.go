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

// Package store defines the persistence contract for the Store (C2):
// deployed processes, registered providers, and job records. Interfaces
// are segregated so a minimal implementation only needs to satisfy
// ProcessStore+JobStore, while ProcessLister/JobLister/ProviderStore
// are opt-in capabilities detected with a type assertion.
package store

import (
	"context"
	"io"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// ProcessStore is the core process persistence contract.
type ProcessStore interface {
	PutProcess(ctx context.Context, p *model.Process) error
	GetProcess(ctx context.Context, id string) (*model.Process, error)
	DeleteProcess(ctx context.Context, id string) error
}

// ProcessLister is an optional capability for listing deployed processes.
type ProcessLister interface {
	ListProcesses(ctx context.Context, filter ProcessFilter) ([]*model.Process, error)
}

// ProcessFilter narrows a ListProcesses call.
type ProcessFilter struct {
	Visibility model.Visibility
	Limit      int
	Offset     int
}

// ProviderStore persists registered remote providers (C5's remote step
// dispatch and the WPS1/ESGF-CWT proxy share this).
type ProviderStore interface {
	PutProvider(ctx context.Context, p *model.Provider) error
	GetProvider(ctx context.Context, id string) (*model.Provider, error)
	DeleteProvider(ctx context.Context, id string) error
	ListProviders(ctx context.Context) ([]*model.Provider, error)
}

// JobStore is the core job persistence contract. GetJob/UpdateJob are
// also the subset required to satisfy internal/job.Store.
type JobStore interface {
	CreateJob(ctx context.Context, j *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	UpdateJob(ctx context.Context, j *model.Job) error
}

// JobLister is an optional capability for listing/filtering jobs and
// for purging terminal jobs past their retention window.
type JobLister interface {
	ListJobs(ctx context.Context, filter JobFilter) ([]*model.Job, error)
	DeleteJob(ctx context.Context, id string) error
}

// JobFilter narrows a ListJobs call (OGC API - Processes job-list query
// parameters: processID, status, tag). There is no datetime filter.
type JobFilter struct {
	ProcessID string
	Statuses  []model.JobStatus
	Tag       string
	Limit     int
	Offset    int
}

// Store composes every capability a fully-featured backend provides.
type Store interface {
	ProcessStore
	ProcessLister
	ProviderStore
	JobStore
	JobLister
	io.Closer
}
