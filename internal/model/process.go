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

package model

import (
	"regexp"
	"time"
)

// Visibility controls whether a process/provider is discoverable by
// anonymous listing.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// JobControlOption is one of the two execution modes OGC API - Processes
// allows a process to advertise.
type JobControlOption string

const (
	JobControlSync  JobControlOption = "sync"
	JobControlAsync JobControlOption = "async"
)

// OutputTransmission controls whether a result is returned inline or as
// a reference.
type OutputTransmission string

const (
	TransmissionValue     OutputTransmission = "value"
	TransmissionReference OutputTransmission = "reference"
)

// ProcessType discriminates how a deployed process is executed.
type ProcessType string

const (
	ProcessTypeApplication ProcessType = "application"
	ProcessTypeWorkflow    ProcessType = "workflow"
	ProcessTypeBuiltin     ProcessType = "builtin"
	ProcessTypeWPS1        ProcessType = "wps1"
	ProcessTypeESGFCWT     ProcessType = "esgf-cwt"
	ProcessTypeRemote      ProcessType = "remote"
)

var processIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// Process is the canonical, store-persisted description of a deployed
// process, after §4.C3 reconciliation has run.
type Process struct {
	ID          string     `json:"id"`
	Version     string     `json:"version"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
	Metadata    []Metadata `json:"metadata,omitempty"`

	Visibility         Visibility           `json:"visibility"`
	JobControlOptions  []JobControlOption   `json:"jobControlOptions"`
	OutputTransmission []OutputTransmission `json:"outputTransmission"`

	Inputs  []IODef `json:"inputs"`
	Outputs []IODef `json:"outputs"`

	// Package is the reconciled Application Package tree (CWL-equivalent).
	Package any `json:"package"`

	Type ProcessType `json:"type"`

	// Payload is the original deploy payload, kept for re-introspection
	// (e.g. re-running the reconciler after a bug fix).
	Payload []byte `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata is a free-form {role, value} pair as used by OGC API - Processes.
type Metadata struct {
	Role  string `json:"role,omitempty"`
	Value string `json:"value"`
}

// Validate checks the Process invariants from spec.md §3. It does not
// validate package/output reconciliation; that is the I/O Reconciler's
// job and is assumed to have already run.
func (p *Process) Validate() error {
	if !processIDPattern.MatchString(p.ID) {
		return errProcess("id must match ^[A-Za-z0-9_.-]+$")
	}
	for _, out := range p.Outputs {
		if err := out.Validate(); err != nil {
			return err
		}
	}
	for _, in := range p.Inputs {
		if err := in.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type processError string

func (e processError) Error() string { return string(e) }

func errProcess(msg string) error { return processError("invalid Process: " + msg) }

// Provider is a live pass-through to a remote offering. It is never
// snapshotted: describe/execute against a provider's processes always
// proxies through to the remote endpoint.
type Provider struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Type       ProviderType `json:"type"`
	Visibility Visibility `json:"visibility"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ProviderType enumerates the remote protocols a Provider may speak.
type ProviderType string

const (
	ProviderWPS1 ProviderType = "wps1"
	ProviderWPS2 ProviderType = "wps2"
	ProviderREST ProviderType = "rest"
	ProviderESGFCWT ProviderType = "esgf-cwt"
)
