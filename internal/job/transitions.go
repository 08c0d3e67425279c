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

// Package job implements the Job State Machine (C6): the single writer
// of Job records. Every other component mutates a job only by sending
// an Intent to its actor; the actor applies legal transitions, drops
// illegal ones, and is the only goroutine that ever calls Store.UpdateJob
// for that job.
package job

import "github.com/weaver-engine/ap-engine/internal/model"

// legalTransitions enumerates, for each status, the statuses it may
// move to. A transition not present here is illegal and is logged and
// dropped rather than applied (spec.md §4).
var legalTransitions = map[model.JobStatus][]model.JobStatus{
	model.JobAccepted: {model.JobStarted, model.JobDismissed, model.JobFailed},
	model.JobStarted:  {model.JobRunning, model.JobDismissed, model.JobFailed},
	model.JobRunning:  {model.JobSucceeded, model.JobFailed, model.JobDismissed},
}

// isLegalTransition reports whether moving from `from` to `to` is
// allowed. Terminal states (succeeded, failed, dismissed) never have
// outgoing transitions.
func isLegalTransition(from, to model.JobStatus) bool {
	if from == to {
		return true
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
