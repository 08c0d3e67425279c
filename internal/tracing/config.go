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

// Package tracing provides an OpenTelemetry span per job and per
// workflow step, plus the HTTP correlation-ID middleware that threads a
// request's trace through the engine's structured logs.
package tracing

// Exporter selects where finished spans are sent.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPGRPC Exporter = "otlp-grpc"
	ExporterOTLPHTTP Exporter = "otlp-http"
)

// Config configures the tracer provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Exporter       Exporter
	// Endpoint is the OTLP collector address, meaningful only for the
	// otlp-grpc/otlp-http exporters.
	Endpoint string
	Insecure bool
}

// DefaultConfig returns a Config that exports nothing: spans are
// created but immediately dropped, so instrumented code pays only the
// cost of a no-op span until an operator opts into an exporter.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "ap-engine",
		ServiceVersion: "dev",
		Exporter:       ExporterNone,
	}
}
