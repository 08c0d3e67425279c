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

package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartJob opens the root span for one job's execution (§4.C7), tagged
// with the identifiers every downstream step span inherits.
func StartJob(ctx context.Context, tracer trace.Tracer, jobID, processID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "job.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("job.process_id", processID),
		),
	)
}

// StartStep opens a child span for one workflow step dispatch (§4.C5).
func StartStep(ctx context.Context, tracer trace.Tracer, stepID, kind string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "workflow.step",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("step.id", stepID),
			attribute.String("step.kind", kind),
		),
	)
}

// End closes span, recording err (if any) as the span's terminal
// status. Safe to call with a nil span from a no-op tracer.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
