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
	"net/http"
	"strconv"
	"strings"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/store"
)

// jobStatus is the OGC API - Processes status document.
type jobStatus struct {
	JobID     string          `json:"jobID"`
	ProcessID string          `json:"processID"`
	Status    model.JobStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	Progress  int             `json:"progress"`
	Created   string          `json:"created"`
	Updated   string          `json:"updated"`
	Links     []link          `json:"links"`
}

func jobStatusOf(j *model.Job) jobStatus {
	return jobStatus{
		JobID:     j.ID,
		ProcessID: j.ProcessID,
		Status:    j.Status,
		Message:   j.Message,
		Progress:  j.Progress,
		Created:   j.Created.Format(rfc3339),
		Updated:   j.Updated.Format(rfc3339),
		Links: []link{
			{Href: "/jobs/" + j.ID, Rel: "self", Type: "application/json"},
			{Href: "/jobs/" + j.ID + "/results", Rel: "results", Type: "application/json"},
		},
	}
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"

func (r *Router) handleListJobs(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	filter := store.JobFilter{
		ProcessID: q.Get("processID"),
		Tag:       q.Get("tag"),
	}
	if status := q.Get("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			filter.Statuses = append(filter.Statuses, model.JobStatus(s))
		}
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	jobs, err := r.store.ListJobs(req.Context(), filter)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	statuses := make([]jobStatus, 0, len(jobs))
	for _, j := range jobs {
		statuses = append(statuses, jobStatusOf(j))
	}
	writeJSON(w, r.logger, http.StatusOK, map[string]any{"jobs": statuses})
}

func (r *Router) jobOrError(w http.ResponseWriter, req *http.Request) (*model.Job, bool) {
	id := req.PathValue("id")
	j, err := r.store.GetJob(req.Context(), id)
	if err != nil {
		writeError(w, r.logger, err)
		return nil, false
	}
	return j, true
}

func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) {
	j, ok := r.jobOrError(w, req)
	if !ok {
		return
	}
	writeJSON(w, r.logger, http.StatusOK, jobStatusOf(j))
}

// handleDismissJob cancels an in-flight job, or deletes a terminal
// one's record, matching the single DELETE /jobs/{id} verb spec.md §6
// overloads onto both operations.
func (r *Router) handleDismissJob(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	j, err := r.store.GetJob(req.Context(), id)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}

	if !j.Status.Terminal() {
		if _, err := r.disp.Dismiss(req.Context(), id); err != nil {
			writeError(w, r.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := r.store.DeleteJob(req.Context(), id); err != nil {
		writeError(w, r.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleJobInputs(w http.ResponseWriter, req *http.Request) {
	j, ok := r.jobOrError(w, req)
	if !ok {
		return
	}
	writeJSON(w, r.logger, http.StatusOK, map[string]any{"inputs": encodeValues(j.Inputs)})
}

// handleJobResults serves both /jobs/{id}/results and /jobs/{id}/outputs
// per spec.md §6; the two paths are the same OGC resource under the
// 1.0 and draft 1.1 naming.
func (r *Router) handleJobResults(w http.ResponseWriter, req *http.Request) {
	j, ok := r.jobOrError(w, req)
	if !ok {
		return
	}
	if !j.Status.Terminal() {
		writeError(w, r.logger, &apperrors.ConflictError{Message: "job has not reached a terminal state"})
		return
	}
	if j.Status != model.JobSucceeded {
		writeError(w, r.logger, &apperrors.ConflictError{Message: "job did not succeed"})
		return
	}

	transmission := model.TransmissionValue
	if req.URL.Query().Get("response") == "raw" {
		transmission = model.TransmissionReference
	}

	out := make(map[string]any, len(j.Results))
	for _, res := range j.Results {
		out[res.ID] = encodeResult(res, transmission)
	}
	writeJSON(w, r.logger, http.StatusOK, out)
}

func (r *Router) handleJobLogs(w http.ResponseWriter, req *http.Request) {
	j, ok := r.jobOrError(w, req)
	if !ok {
		return
	}
	logsStore, ok := r.logsStore()
	if !ok {
		writeJSON(w, r.logger, http.StatusOK, map[string]any{"logs": []any{}})
		return
	}
	entries, err := logsStore.ListLogs(req.Context(), j.ID)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	lines := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, map[string]any{
			"timestamp": e.Timestamp.Format(rfc3339),
			"level":     e.Level,
			"source":    e.Source,
			"text":      e.Text,
		})
	}
	writeJSON(w, r.logger, http.StatusOK, map[string]any{"logs": lines})
}

func (r *Router) handleJobExceptions(w http.ResponseWriter, req *http.Request) {
	j, ok := r.jobOrError(w, req)
	if !ok {
		return
	}
	writeJSON(w, r.logger, http.StatusOK, map[string]any{"exceptions": j.Exceptions})
}
