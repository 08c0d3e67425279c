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

// Package httpapi implements the external OGC API - Processes surface
// (§6): the landing page, conformance declaration, process
// deploy/describe/execute, job status/results/logs/dismiss, and
// registered-provider CRUD. It is the only component that speaks HTTP;
// everything it does is a thin translation between a request and the
// Store (C2), the I/O Reconciler (C3), and the Dispatcher (C7).
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/weaver-engine/ap-engine/internal/dispatch"
	internallog "github.com/weaver-engine/ap-engine/internal/log"
	"github.com/weaver-engine/ap-engine/internal/observability"
	"github.com/weaver-engine/ap-engine/internal/store"
	"github.com/weaver-engine/ap-engine/internal/tracing"
)

// Config names the engine's public identity, returned on the landing
// page and in OGC conformance responses.
type Config struct {
	Title       string
	Description string
	Version     string
}

// Router wraps an http.ServeMux with the engine's middleware chain: a
// correlation-ID middleware wraps a request-logging middleware wraps
// the mux itself.
type Router struct {
	mux    *http.ServeMux
	cfg    Config
	store  store.Store
	disp   *dispatch.Dispatcher
	logs   observability.LogStore
	logger *slog.Logger
}

// NewRouter builds a Router with every route registered. logs may be
// nil, in which case /jobs/{id}/logs always returns an empty list.
func NewRouter(cfg Config, st store.Store, disp *dispatch.Dispatcher, logs observability.LogStore, logger *slog.Logger) *Router {
	if logger == nil {
		logger = internallog.New(internallog.FromEnv())
	}
	r := &Router{
		mux:    http.NewServeMux(),
		cfg:    cfg,
		store:  st,
		disp:   disp,
		logs:   logs,
		logger: internallog.WithComponent(logger, "httpapi"),
	}
	r.routes()
	return r
}

// logsStore reports the configured LogStore, if any.
func (r *Router) logsStore() (observability.LogStore, bool) {
	return r.logs, r.logs != nil
}

func (r *Router) routes() {
	r.mux.HandleFunc("GET /", r.handleLandingPage)
	r.mux.HandleFunc("GET /conformance", r.handleConformance)

	r.mux.HandleFunc("GET /processes", r.handleListProcesses)
	r.mux.HandleFunc("POST /processes", r.handleDeployProcess)
	r.mux.HandleFunc("GET /processes/{id}", r.handleGetProcess)
	r.mux.HandleFunc("DELETE /processes/{id}", r.handleUndeployProcess)
	r.mux.HandleFunc("POST /processes/{id}/execution", r.handleExecute)

	r.mux.HandleFunc("GET /jobs", r.handleListJobs)
	r.mux.HandleFunc("GET /jobs/{id}", r.handleGetJob)
	r.mux.HandleFunc("DELETE /jobs/{id}", r.handleDismissJob)
	r.mux.HandleFunc("GET /jobs/{id}/inputs", r.handleJobInputs)
	r.mux.HandleFunc("GET /jobs/{id}/results", r.handleJobResults)
	r.mux.HandleFunc("GET /jobs/{id}/outputs", r.handleJobResults)
	r.mux.HandleFunc("GET /jobs/{id}/logs", r.handleJobLogs)
	r.mux.HandleFunc("GET /jobs/{id}/exceptions", r.handleJobExceptions)

	r.mux.HandleFunc("GET /providers", r.handleListProviders)
	r.mux.HandleFunc("POST /providers", r.handleRegisterProvider)
	r.mux.HandleFunc("GET /providers/{id}", r.handleGetProvider)
	r.mux.HandleFunc("DELETE /providers/{id}", r.handleUnregisterProvider)
	r.mux.HandleFunc("GET /providers/{id}/processes/{pid}", r.handleProxyDescribe)
}

// ServeHTTP implements http.Handler. Middleware runs outermost-to-
// innermost: correlation-ID extraction wraps request logging wraps the
// mux (correlation is the outermost concern so every line the request
// logger emits already carries a correlation ID).
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var handler http.Handler = r.mux
	handler = r.logRequests(handler)
	handler = tracing.CorrelationMiddleware(handler)
	handler.ServeHTTP(w, req)
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		defer func() {
			correlationID := tracing.CorrelationIDFromContext(req.Context())
			logger := internallog.WithCorrelationID(r.logger, correlationID)
			logger.Info("request completed",
				internallog.String("method", req.Method),
				internallog.String("path", req.URL.Path),
				internallog.Duration("duration", time.Since(start).Milliseconds()),
			)
		}()
		next.ServeHTTP(w, req)
	})
}

// Mux returns the underlying ServeMux for registering additional routes
// (e.g. a Prometheus /metrics handler from cmd/apengined).
func (r *Router) Mux() *http.ServeMux { return r.mux }
