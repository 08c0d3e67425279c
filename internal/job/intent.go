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

import "github.com/weaver-engine/ap-engine/internal/model"

// IntentKind names the mutation an Intent asks the job's actor to apply.
type IntentKind string

const (
	// IntentStart moves accepted -> started, stamping Started.
	IntentStart IntentKind = "start"
	// IntentRun moves started -> running.
	IntentRun IntentKind = "run"
	// IntentProgress updates Progress/Message without changing Status.
	// Progress is clamped to [0,100] and never allowed to move backward.
	IntentProgress IntentKind = "progress"
	// IntentAppendException records a failure observation without
	// necessarily ending the job (a workflow step failing mid-DAG, for
	// instance, may still be followed by cleanup steps).
	IntentAppendException IntentKind = "append_exception"
	// IntentSucceed moves running -> succeeded, attaching Results.
	IntentSucceed IntentKind = "succeed"
	// IntentFail moves any non-terminal state -> failed.
	IntentFail IntentKind = "fail"
	// IntentDismiss moves any non-terminal state -> dismissed
	// (cancellation).
	IntentDismiss IntentKind = "dismiss"
)

// Intent is the only way any component other than the job's own actor
// may request a mutation to a Job record.
type Intent struct {
	Kind IntentKind

	// Progress/Message apply to IntentProgress.
	Progress int
	Message  string

	// Exception applies to IntentAppendException and IntentFail.
	Exception *model.Exception

	// Results applies to IntentSucceed.
	Results []model.Result
	Outputs map[string]model.Value

	// WorkerID applies to IntentStart, recording ownership.
	WorkerID string

	// done, if non-nil, is closed by the actor once the intent has been
	// applied (or dropped), letting callers await application without
	// blocking the actor's processing loop on their own response read.
	done chan IntentResult
}

// IntentResult reports what happened to a submitted Intent.
type IntentResult struct {
	Applied bool
	Job     *model.Job
	Err     error
}
