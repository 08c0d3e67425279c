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
	"time"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	internallog "github.com/weaver-engine/ap-engine/internal/log"
	"github.com/weaver-engine/ap-engine/internal/model"
)

// actor is the single goroutine that owns mutation of one job. Every
// Intent for this job is serialized through intents and applied only by
// run(); currentMu guards reads of current from other goroutines
// (Machine.Snapshot) without adding them to the serialization path.
type actor struct {
	currentMu sync.RWMutex
	current   *model.Job

	store  Store
	logger *slog.Logger

	intents chan Intent
	done    chan struct{}
}

func (a *actor) snapshot() *model.Job {
	a.currentMu.RLock()
	defer a.currentMu.RUnlock()
	return a.current.Clone()
}

func (a *actor) setCurrent(j *model.Job) {
	a.currentMu.Lock()
	a.current = j
	a.currentMu.Unlock()
}

func newActor(initial *model.Job, store Store, logger *slog.Logger) *actor {
	a := &actor{
		current: initial,
		store:   store,
		logger:  internallog.WithJobContext(logger, initial.ID, initial.ProcessID),
		intents: make(chan Intent, 32),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *actor) run() {
	defer close(a.done)
	for intent := range a.intents {
		job, err := a.apply(intent)
		if intent.done != nil {
			intent.done <- IntentResult{Applied: err == nil, Job: job, Err: err}
			close(intent.done)
		}
		if job != nil && job.Status.Terminal() {
			return
		}
	}
}

// submit enqueues an intent and blocks until it has been applied.
func (a *actor) submit(ctx context.Context, intent Intent) (*model.Job, error) {
	intent.done = make(chan IntentResult, 1)
	select {
	case a.intents <- intent:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, &apperrors.ConflictError{Message: "job actor has already terminated"}
	}

	select {
	case res := <-intent.done:
		return res.Job, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *actor) apply(intent Intent) (*model.Job, error) {
	now := time.Now()
	before := a.snapshot()
	target := before.Clone()

	switch intent.Kind {
	case IntentStart:
		if !a.transition(target, model.JobStarted) {
			return a.reject(target, model.JobStarted)
		}
		target.Started = &now
		target.WorkerID = intent.WorkerID

	case IntentRun:
		if !a.transition(target, model.JobRunning) {
			return a.reject(target, model.JobRunning)
		}

	case IntentProgress:
		if target.Status.Terminal() {
			a.logger.Debug("dropped progress intent on terminal job")
			return before, nil
		}
		target.Progress = clampProgress(target.Progress, intent.Progress)
		if intent.Message != "" {
			target.Message = intent.Message
		}

	case IntentAppendException:
		if intent.Exception != nil {
			target.Exceptions = append(target.Exceptions, *intent.Exception)
		}

	case IntentSucceed:
		if !a.transition(target, model.JobSucceeded) {
			return a.reject(target, model.JobSucceeded)
		}
		target.Progress = 100
		target.Results = intent.Results
		target.Outputs = intent.Outputs
		target.Finished = &now

	case IntentFail:
		if !a.transition(target, model.JobFailed) {
			return a.reject(target, model.JobFailed)
		}
		if intent.Exception != nil {
			target.Exceptions = append(target.Exceptions, *intent.Exception)
		}
		target.Finished = &now

	case IntentDismiss:
		if target.Status.Terminal() {
			return a.reject(target, model.JobDismissed)
		}
		if !a.transition(target, model.JobDismissed) {
			return a.reject(target, model.JobDismissed)
		}
		target.Finished = &now

	default:
		return before, &apperrors.InternalError{Summary: "unknown job intent kind"}
	}

	target.Updated = now
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.store.UpdateJob(ctx, target); err != nil {
		return before, &apperrors.InternalError{Summary: "failed to persist job transition", Cause: err}
	}

	a.setCurrent(target)
	return target, nil
}

func (a *actor) transition(target *model.Job, to model.JobStatus) bool {
	if !isLegalTransition(target.Status, to) {
		return false
	}
	target.Status = to
	return true
}

func (a *actor) reject(current *model.Job, attempted model.JobStatus) (*model.Job, error) {
	a.logger.Warn("illegal job transition dropped",
		internallog.String("from", string(current.Status)),
		internallog.String("to", string(attempted)))
	return current, &apperrors.IllegalTransition{From: string(current.Status), To: string(attempted)}
}

// clampProgress enforces monotonic, bounded progress (spec.md §4.C8):
// never below the current value, never above 100.
func clampProgress(current, next int) int {
	if next < current {
		return current
	}
	if next > 100 {
		return 100
	}
	return next
}
