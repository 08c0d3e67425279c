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

// Package remoteexec defines the adapter contract the Workflow
// Interpreter (C5) dispatches a step through when it targets a remote
// protocol (WPS-1/2, ESGF-CWT, or a REST OGC API - Processes peer)
// instead of invoking C4 locally, and provides one adapter per
// protocol plus a protocol-keyed Registry.
package remoteexec

import (
	"context"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// StepRequest is everything an adapter needs to submit one workflow
// step to a remote executor.
type StepRequest struct {
	ProcessID   string
	ExecutorURL string
	Inputs      map[string]model.Value
}

// StepStatus is the adapter's normalized view of a remote step's
// progress, polled until Done is true.
type StepStatus struct {
	Done    bool
	Failed  bool
	Percent int
	Message string
	Outputs map[string]model.Value
	Cause   error
}

// Executor is the adapter contract for one remote protocol.
type Executor interface {
	// Submit starts the step and returns a handle the adapter can later
	// Poll or Dismiss with.
	Submit(ctx context.Context, req StepRequest) (handle string, err error)
	// Poll reports the current status of a previously submitted step.
	Poll(ctx context.Context, executorURL, handle string) (StepStatus, error)
	// Dismiss best-effort cancels a previously submitted step.
	Dismiss(ctx context.Context, executorURL, handle string) error
}

// Protocol names the remote protocols a workflow step may target,
// matching apd.RemoteProtocolHint.Protocol and model.ProviderType.
type Protocol string

const (
	ProtocolWPS1    Protocol = "wps1"
	ProtocolWPS2    Protocol = "wps2"
	ProtocolESGFCWT Protocol = "esgf-cwt"
	ProtocolREST    Protocol = "rest"
)

// Registry resolves a Protocol to its Executor.
type Registry struct {
	executors map[Protocol]Executor
}

// NewRegistry builds a Registry from the given protocol -> Executor map.
func NewRegistry(executors map[Protocol]Executor) *Registry {
	return &Registry{executors: executors}
}

// Resolve returns the Executor registered for a protocol.
func (r *Registry) Resolve(p Protocol) (Executor, bool) {
	e, ok := r.executors[p]
	return e, ok
}
