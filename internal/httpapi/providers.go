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

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
)

// providerClient is the http.Client this package uses to proxy a
// registered provider's own process description, mirroring
// internal/fetch's plain-client idiom rather than pkg/httpclient's
// heavier retry/logging layering: a provider describe call is a single
// best-effort GET on the caller's behalf, not a policy-governed input
// fetch with a configured retry budget.
var providerClient = &http.Client{Timeout: 15 * time.Second}

type providerView struct {
	ID         string             `json:"id"`
	URL        string             `json:"url"`
	Type       model.ProviderType `json:"type"`
	Visibility model.Visibility   `json:"visibility"`
}

func providerViewOf(p *model.Provider) providerView {
	return providerView{ID: p.ID, URL: p.URL, Type: p.Type, Visibility: p.Visibility}
}

func (r *Router) handleListProviders(w http.ResponseWriter, req *http.Request) {
	providers, err := r.store.ListProviders(req.Context())
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	views := make([]providerView, 0, len(providers))
	for _, p := range providers {
		views = append(views, providerViewOf(p))
	}
	writeJSON(w, r.logger, http.StatusOK, map[string]any{"providers": views})
}

func (r *Router) handleGetProvider(w http.ResponseWriter, req *http.Request) {
	p, err := r.store.GetProvider(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	writeJSON(w, r.logger, http.StatusOK, providerViewOf(p))
}

type registerProviderRequest struct {
	ID         string             `json:"id,omitempty"`
	URL        string             `json:"url"`
	Type       model.ProviderType `json:"type"`
	Visibility model.Visibility   `json:"visibility,omitempty"`
}

func (r *Router) handleRegisterProvider(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(w, r.logger, &apperrors.ValidationError{Message: "could not read request body"})
		return
	}
	var rr registerProviderRequest
	if err := json.Unmarshal(body, &rr); err != nil {
		writeError(w, r.logger, &apperrors.ValidationError{Message: "malformed provider registration: " + err.Error()})
		return
	}
	if rr.URL == "" {
		writeError(w, r.logger, &apperrors.ValidationError{Field: "url", Message: "required"})
		return
	}
	if rr.Type == "" {
		writeError(w, r.logger, &apperrors.ValidationError{Field: "type", Message: "required"})
		return
	}
	if rr.ID == "" {
		rr.ID = uuid.NewString()
	}
	visibility := rr.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}

	p := &model.Provider{
		ID:         rr.ID,
		URL:        rr.URL,
		Type:       rr.Type,
		Visibility: visibility,
		CreatedAt:  time.Now(),
	}
	if err := r.store.PutProvider(req.Context(), p); err != nil {
		writeError(w, r.logger, err)
		return
	}
	writeJSON(w, r.logger, http.StatusCreated, providerViewOf(p))
}

func (r *Router) handleUnregisterProvider(w http.ResponseWriter, req *http.Request) {
	if err := r.store.DeleteProvider(req.Context(), req.PathValue("id")); err != nil {
		writeError(w, r.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProxyDescribe proxies a describe call for one of a registered
// provider's own processes: the engine never snapshots a provider's
// catalogue (model.Provider's doc comment), so every describe is a
// live pass-through.
func (r *Router) handleProxyDescribe(w http.ResponseWriter, req *http.Request) {
	p, err := r.store.GetProvider(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	pid := req.PathValue("pid")

	upstream, err := http.NewRequestWithContext(req.Context(), http.MethodGet, p.URL+"/processes/"+pid, nil)
	if err != nil {
		writeError(w, r.logger, &apperrors.InternalError{Summary: "could not build provider describe request", Cause: err})
		return
	}

	resp, err := providerClient.Do(upstream)
	if err != nil {
		writeError(w, r.logger, &apperrors.RemoteExecutorError{ExecutorURL: p.URL, Message: "describe request failed", Cause: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		writeError(w, r.logger, &apperrors.RemoteExecutorError{ExecutorURL: p.URL, Message: "describe returned non-2xx status"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}
