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
	"bytes"
	"context"
)

// LineWriter is an io.Writer that buffers partial lines and forwards
// each complete line to a Collector as it arrives, so container stdout
// and stderr streams can be wired directly into the log pipeline
// without the caller managing buffering.
type LineWriter struct {
	ctx       context.Context
	collector *Collector
	source    Source
	buf       bytes.Buffer
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line: push it back and wait for more input.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		text := bytes.TrimRight([]byte(line), "\r\n")
		if len(text) == 0 {
			continue
		}
		level := LevelInfo
		if w.source == SourceStderr {
			level = LevelWarn
		}
		if err := w.collector.Log(w.ctx, level, w.source, string(text)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush forwards any buffered partial line (no trailing newline) as a
// final log entry. Call once after the underlying stream closes.
func (w *LineWriter) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	text := w.buf.String()
	w.buf.Reset()
	level := LevelInfo
	if w.source == SourceStderr {
		level = LevelWarn
	}
	return w.collector.Log(w.ctx, level, w.source, text)
}
