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

// Package observability implements the Observability Pipeline (C8): the
// per-job append-only log stream and the rate-limited progress commit
// path. Logs and progress updates from within a running Application
// Package are forwarded through a dedicated channel owned by the
// worker; the worker is the only thing that commits them to the store,
// so every write in this package goes through a Collector scoped to
// exactly one job.
package observability

import "time"

// Source identifies where a log line originated.
type Source string

const (
	SourceSetup  Source = "setup"
	SourceStdout Source = "stdout"
	SourceStderr Source = "stderr"
	SourceSystem Source = "system"
)

// Level is the severity of a log line.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// LogEntry is one line of a job's observability log stream.
type LogEntry struct {
	Timestamp time.Time `json:"ts"`
	Level     Level     `json:"level"`
	Source    Source    `json:"source"`
	Text      string    `json:"text"`
}
