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

// Package dispatch implements the Dispatcher (C7): it accepts a job
// submission, owns the bounded worker pool that actually runs it (via
// the Application Package Interpreter or the Workflow Interpreter), and
// reconciles the synchronous-execution contract (block up to a fixed
// window for a terminal result, falling back to async) against the
// worker pool's concurrency limit.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apengine"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/job"
	internallog "github.com/weaver-engine/ap-engine/internal/log"
	"github.com/weaver-engine/ap-engine/internal/metrics"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/notify"
	"github.com/weaver-engine/ap-engine/internal/observability"
	"github.com/weaver-engine/ap-engine/internal/store"
	"github.com/weaver-engine/ap-engine/internal/tracing"
	"github.com/weaver-engine/ap-engine/internal/workflow"
	"go.opentelemetry.io/otel"
)

// tracer is looked up lazily against whatever TracerProvider is
// globally registered, following the package-level `otel.Tracer(...)`
// call-site idiom rather than threading a Tracer through New.
var tracer = otel.Tracer("ap-engine/dispatch")

// Config tunes the Dispatcher's worker pool and sync/async boundary.
type Config struct {
	// MaxParallel bounds how many jobs execute concurrently. <= 0 uses
	// DefaultMaxParallel.
	MaxParallel int
	// MaxQueued is the high-water mark of accepted-but-not-yet-running
	// jobs before Submit starts rejecting with apperrors.CapacityError.
	// <= 0 uses DefaultMaxQueued.
	MaxQueued int
	// SyncTimeout bounds how long Submit blocks for a sync-mode request
	// before falling back to an async (accepted) response. <= 0 uses
	// DefaultSyncTimeout.
	SyncTimeout time.Duration
}

const (
	DefaultMaxParallel = 10
	DefaultMaxQueued   = 100
	// DefaultSyncTimeout is the upper bound a synchronous execute call
	// blocks before the caller must poll the job resource instead.
	DefaultSyncTimeout = 20 * time.Second
)

// SecretsCache is implemented by *secrets.Cache. It is consulted only
// for cleanup here: the actual secret lookups it caches happen deeper,
// inside a fetch.Scheme resolving a request-options auth reference
// through a secrets.CacheResolver scoped to the same job ID.
type SecretsCache interface {
	Clear(runID string)
}

// SubmitRequest is one job acceptance.
type SubmitRequest struct {
	JobID                  string
	ProcessID              string
	Package                *apd.Document
	Inputs                 map[string]model.Value
	Mode                   model.ExecutionMode
	Tags                   []string
	UserID                 string
	Subscribers            []model.Subscriber
	CorrelationID          string
	NotificationEmailToken string
}

// Dispatcher is the C7 entry point: the only component that launches
// job execution.
type Dispatcher struct {
	machine  *job.Machine
	jobs     store.JobStore
	local    *apengine.Interpreter
	workflow *workflow.Interpreter
	logs     observability.LogStore
	notifier *notify.Notifier

	sem         chan struct{}
	maxQueued   int
	syncTimeout time.Duration

	mu     sync.Mutex
	queued int

	logger       *slog.Logger
	secretsCache SecretsCache
}

// New creates a Dispatcher. local runs single-step jobs; wf runs
// multi-step (Workflow) jobs; notifier may be nil (subscriber callbacks
// are then skipped).
func New(machine *job.Machine, jobs store.JobStore, local *apengine.Interpreter, wf *workflow.Interpreter, logs observability.LogStore, notifier *notify.Notifier, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.MaxQueued <= 0 {
		cfg.MaxQueued = DefaultMaxQueued
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = DefaultSyncTimeout
	}
	if logger == nil {
		logger = internallog.New(internallog.FromEnv())
	}
	return &Dispatcher{
		machine:     machine,
		jobs:        jobs,
		local:       local,
		workflow:    wf,
		logs:        logs,
		notifier:    notifier,
		sem:         make(chan struct{}, cfg.MaxParallel),
		maxQueued:   cfg.MaxQueued,
		syncTimeout: cfg.SyncTimeout,
		logger:      internallog.WithComponent(logger, "dispatch"),
	}
}

// WithSecretsCache registers a per-job secret cache to clear once a
// job's run goroutine exits. Optional: a Dispatcher with no cache
// configured just skips the cleanup step.
func (d *Dispatcher) WithSecretsCache(cache SecretsCache) *Dispatcher {
	d.secretsCache = cache
	return d
}

// Submit accepts a job, registers it with the Job State Machine, and
// launches its execution in the background (always-async-goroutine
// dispatch: unconditionally launches `go d.run(...)`, acquiring its
// concurrency-limiting semaphore from inside that goroutine rather than
// before accepting the submission). For Mode sync/auto, Submit then
// blocks up to syncTimeout for the job to reach a terminal state before
// returning, so the caller can decide whether to render an inline
// result or an accepted/async response.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (result *model.Job, completedSync bool, err error) {
	d.mu.Lock()
	if d.queued >= d.maxQueued {
		d.mu.Unlock()
		return nil, false, &apperrors.CapacityError{QueueDepth: d.queued, Limit: d.maxQueued}
	}
	d.queued++
	d.mu.Unlock()

	now := time.Now()
	j := &model.Job{
		ID:                     req.JobID,
		ProcessID:              req.ProcessID,
		Status:                 model.JobAccepted,
		Created:                now,
		Updated:                now,
		Inputs:                 req.Inputs,
		Tags:                   req.Tags,
		UserID:                 req.UserID,
		ExecutionMode:          req.Mode,
		Subscribers:            req.Subscribers,
		CorrelationID:          req.CorrelationID,
		NotificationEmailToken: req.NotificationEmailToken,
	}

	if err := d.jobs.CreateJob(ctx, j); err != nil {
		d.mu.Lock()
		d.queued--
		d.mu.Unlock()
		return nil, false, fmt.Errorf("dispatch: create job: %w", err)
	}
	snapshot := d.machine.Register(j)
	metrics.RecordJobAccepted(req.ProcessID)
	metrics.WorkerPoolQueued.Inc()

	done := make(chan struct{})
	go d.run(req, now, done)

	if req.Mode == model.ExecutionAsync {
		return snapshot, false, nil
	}

	select {
	case <-done:
		final, snapErr := d.machine.Snapshot(ctx, req.JobID)
		if snapErr != nil {
			return snapshot, false, nil
		}
		return final, true, nil
	case <-time.After(d.syncTimeout):
		current, snapErr := d.machine.Snapshot(ctx, req.JobID)
		if snapErr != nil {
			return snapshot, false, nil
		}
		return current, false, nil
	case <-ctx.Done():
		return snapshot, false, ctx.Err()
	}
}

// run executes one job to completion, acquiring a worker-pool slot
// first. It is always launched as its own goroutine from Submit.
func (d *Dispatcher) run(req SubmitRequest, started time.Time, done chan struct{}) {
	defer close(done)
	if d.secretsCache != nil {
		defer d.secretsCache.Clear(req.JobID)
	}

	d.sem <- struct{}{}
	metrics.WorkerPoolQueued.Dec()
	d.mu.Lock()
	d.queued--
	d.mu.Unlock()
	metrics.WorkerPoolActive.Inc()
	defer func() {
		<-d.sem
		metrics.WorkerPoolActive.Dec()
	}()

	ctx := context.Background()
	ctx, span := tracing.StartJob(ctx, tracer, req.JobID, req.ProcessID)
	var runErr error
	defer func() { tracing.End(span, runErr) }()

	if _, err := d.machine.Apply(ctx, req.JobID, job.Intent{Kind: job.IntentStart}); err != nil {
		d.logger.Error("start intent rejected", internallog.String("job_id", req.JobID), internallog.Error(err))
		return
	}
	if _, err := d.machine.Apply(ctx, req.JobID, job.Intent{Kind: job.IntentRun}); err != nil {
		d.logger.Error("run intent rejected", internallog.String("job_id", req.JobID), internallog.Error(err))
		return
	}

	collector := observability.New(req.JobID, d.machine, d.logs)

	var outputs map[string]model.Value
	outputs, runErr = d.execute(ctx, req, collector)

	var final *model.Job
	if runErr != nil {
		final, _ = d.machine.Apply(ctx, req.JobID, job.Intent{
			Kind: job.IntentFail,
			Exception: &model.Exception{
				Kind:      "execution_error",
				Message:   runErr.Error(),
				Timestamp: time.Now(),
			},
		})
		d.logger.Warn("job failed", internallog.String("job_id", req.JobID), internallog.Error(runErr))
	} else {
		final, _ = d.machine.Apply(ctx, req.JobID, job.Intent{
			Kind:    job.IntentSucceed,
			Outputs: outputs,
			Results: resultsFromOutputs(outputs),
		})
	}

	if final != nil {
		metrics.RecordJobTerminal(req.ProcessID, string(final.Status), time.Since(started))
		d.notify(final)
	}
}

// execute routes a job to the Application Package Interpreter or the
// Workflow Interpreter depending on the package's class.
func (d *Dispatcher) execute(ctx context.Context, req SubmitRequest, collector *observability.Collector) (map[string]model.Value, error) {
	switch req.Package.Class {
	case apd.ClassCommandLineTool:
		outcome, err := d.local.Run(ctx, apengine.RunRequest{
			JobID:     req.JobID,
			Tool:      req.Package.Tool,
			Inputs:    req.Inputs,
			Collector: collector,
		})
		if err != nil {
			return nil, err
		}
		return outcome.Outputs, nil
	case apd.ClassWorkflow:
		return d.workflow.Run(ctx, workflow.RunRequest{
			JobID:     req.JobID,
			Workflow:  req.Package.Workflow,
			Inputs:    req.Inputs,
			Collector: collector,
		})
	default:
		return nil, &apperrors.ValidationError{Field: "package.class", Message: fmt.Sprintf("unsupported class %q", req.Package.Class)}
	}
}

// Dismiss requests cancellation of an in-flight job.
func (d *Dispatcher) Dismiss(ctx context.Context, jobID string) (*model.Job, error) {
	return d.machine.Apply(ctx, jobID, job.Intent{Kind: job.IntentDismiss})
}

// resultsFromOutputs converts the Application Package Interpreter/
// Workflow Interpreter's tagged-value outputs into the OGC-facing
// Result list, one entry per output ID.
func resultsFromOutputs(outputs map[string]model.Value) []model.Result {
	results := make([]model.Result, 0, len(outputs))
	for id, v := range outputs {
		r := model.Result{ID: id}
		switch v.Kind {
		case model.KindComplex:
			if v.Complex != nil {
				r.Href = v.Complex.LocalPath
				if r.Href == "" {
					r.Href = v.Complex.Href
				}
				r.MediaType = v.Complex.MediaType
			}
		default:
			r.Value = v
		}
		results = append(results, r)
	}
	return results
}

// notify fires every registered subscriber's callback, best-effort.
func (d *Dispatcher) notify(j *model.Job) {
	if d.notifier == nil || len(j.Subscribers) == 0 {
		return
	}
	for _, s := range j.Subscribers {
		sub := s
		go func() {
			if err := d.notifier.NotifyTerminal(context.Background(), sub, j); err != nil {
				d.logger.Warn("subscriber notification failed", internallog.String("job_id", j.ID), internallog.Error(err))
			}
		}()
	}
}
