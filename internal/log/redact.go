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

package log

import (
	"context"
	"log/slog"

	"github.com/weaver-engine/ap-engine/internal/secrets"
)

// RedactingHandler wraps an slog.Handler and masks known secret values
// (registered via masker.AddSecret, e.g. an SMTP password or a resolved
// request-options bearer token) out of the message and every string
// attribute before the record reaches the underlying handler.
type RedactingHandler struct {
	next   slog.Handler
	masker *secrets.Masker
}

// NewRedactingHandler wraps next with masker-based redaction.
func NewRedactingHandler(next slog.Handler, masker *secrets.Masker) *RedactingHandler {
	return &RedactingHandler{next: next, masker: masker}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler, masking the message and every string
// attribute before delegating to the wrapped handler.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, h.masker.Mask(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, h.masker.Mask(a.Value.String()))
	}
	return a
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), masker: h.masker}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), masker: h.masker}
}

// NewRedacted builds a logger exactly like New, except every record
// passes through masker first. masker is a live pointer: secrets
// registered with it after the logger is built (e.g. once SMTP
// credentials or a request-options token are resolved, later in
// startup) are still masked in every subsequent log line. A nil masker
// behaves like New.
func NewRedacted(cfg *Config, masker *secrets.Masker) *slog.Logger {
	if masker == nil {
		return New(cfg)
	}
	return slog.New(NewRedactingHandler(buildHandler(cfg), masker))
}
