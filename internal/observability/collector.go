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

package observability

import (
	"context"
	"sync"
	"time"

	"github.com/weaver-engine/ap-engine/internal/job"
	"github.com/weaver-engine/ap-engine/internal/model"
)

// DefaultCommitInterval is the minimum spacing between committed
// progress updates for a single job (spec: "rate-limited to at most
// ~1 update/second").
const DefaultCommitInterval = time.Second

// Collector is the worker-owned path for every observability write for
// one job: it coalesces progress updates, appends log lines, and
// forwards exceptions, always through the job's single-writer Machine
// or its LogStore. Exactly one Collector exists per in-flight job.
type Collector struct {
	jobID    string
	jobs     *job.Machine
	logs     LogStore
	interval time.Duration

	mu         sync.Mutex
	lastCommit time.Time
	lastSent   int
	hasSent    bool
}

// New creates a Collector scoped to a single job.
func New(jobID string, jobs *job.Machine, logs LogStore) *Collector {
	return &Collector{jobID: jobID, jobs: jobs, logs: logs, interval: DefaultCommitInterval}
}

// Progress reports a new progress percentage and optional message.
// Updates are coalesced: only the first update, the terminal update
// (100), and updates spaced at least interval apart are committed to
// the Job State Machine. Intermediate values are dropped, not queued —
// the next committed update always carries the latest value.
func (c *Collector) Progress(ctx context.Context, pct int, message string) error {
	c.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(c.lastCommit)
	shouldCommit := !c.hasSent || pct >= 100 || elapsed >= c.interval
	if !shouldCommit {
		c.lastSent = pct
		c.mu.Unlock()
		return nil
	}
	c.lastCommit = now
	c.lastSent = pct
	c.hasSent = true
	c.mu.Unlock()

	_, err := c.jobs.Apply(ctx, c.jobID, job.Intent{Kind: job.IntentProgress, Progress: pct, Message: message})
	return err
}

// Log appends one line to the job's log stream.
func (c *Collector) Log(ctx context.Context, level Level, source Source, text string) error {
	return c.logs.AppendLog(ctx, c.jobID, LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Source:    source,
		Text:      text,
	})
}

// Exception records a failure observation. Exceptions accumulate and
// are never overwritten; the Job State Machine appends rather than
// replaces on every call.
func (c *Collector) Exception(ctx context.Context, kind, message, detail string) error {
	_, err := c.jobs.Apply(ctx, c.jobID, job.Intent{
		Kind: job.IntentAppendException,
		Exception: &model.Exception{
			Kind:      kind,
			Message:   message,
			Detail:    detail,
			Timestamp: time.Now(),
		},
	})
	return err
}

// LineWriter returns an io.Writer adapter that splits writes on '\n'
// and forwards each complete line to Log at the given source, for
// direct use as a container's stdout/stderr destination.
func (c *Collector) LineWriter(ctx context.Context, source Source) *LineWriter {
	return &LineWriter{ctx: ctx, collector: c, source: source}
}
