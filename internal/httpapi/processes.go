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
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/dispatch"
	"github.com/weaver-engine/ap-engine/internal/ioreconcile"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/notify"
	"github.com/weaver-engine/ap-engine/internal/store"
	"github.com/weaver-engine/ap-engine/internal/tracing"
)

// landingPage is the OGC API - Processes root document: links to
// /conformance, /processes, and /jobs.
type landingPage struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Links       []link `json:"links"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
}

func (r *Router) handleLandingPage(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, r.logger, http.StatusOK, landingPage{
		Title:       r.cfg.Title,
		Description: r.cfg.Description,
		Links: []link{
			{Href: "/", Rel: "self", Type: "application/json"},
			{Href: "/conformance", Rel: "conformance", Type: "application/json"},
			{Href: "/processes", Rel: "http://www.opengis.net/def/rel/ogc/1.0/processes", Type: "application/json"},
			{Href: "/jobs", Rel: "http://www.opengis.net/def/rel/ogc/1.0/job-list", Type: "application/json"},
		},
	})
}

// conformance declares the OGC API - Processes conformance classes this
// engine implements.
var conformanceClasses = []string{
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/core",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/ogc-process-description",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/json",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/job-list",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/callback",
	"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/dismiss",
}

func (r *Router) handleConformance(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, r.logger, http.StatusOK, map[string]any{"conformsTo": conformanceClasses})
}

// processSummary is the list-view OGC process record.
type processSummary struct {
	ID                 string                     `json:"id"`
	Version            string                     `json:"version"`
	Title              string                     `json:"title,omitempty"`
	Description        string                     `json:"description,omitempty"`
	Keywords           []string                   `json:"keywords,omitempty"`
	JobControlOptions  []model.JobControlOption   `json:"jobControlOptions"`
	OutputTransmission []model.OutputTransmission `json:"outputTransmission"`
}

// processDescription is the full OGC process record, adding I/O.
type processDescription struct {
	processSummary
	Inputs  []model.IODef `json:"inputs"`
	Outputs []model.IODef `json:"outputs"`
}

func summaryOf(p *model.Process) processSummary {
	return processSummary{
		ID:                 p.ID,
		Version:            p.Version,
		Title:              p.Title,
		Description:        p.Description,
		Keywords:           p.Keywords,
		JobControlOptions:  p.JobControlOptions,
		OutputTransmission: p.OutputTransmission,
	}
}

func (r *Router) handleListProcesses(w http.ResponseWriter, req *http.Request) {
	filter := store.ProcessFilter{Visibility: model.VisibilityPublic}
	if limit, err := strconv.Atoi(req.URL.Query().Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(req.URL.Query().Get("offset")); err == nil {
		filter.Offset = offset
	}

	procs, err := r.store.ListProcesses(req.Context(), filter)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	summaries := make([]processSummary, 0, len(procs))
	for _, p := range procs {
		summaries = append(summaries, summaryOf(p))
	}
	writeJSON(w, r.logger, http.StatusOK, map[string]any{"processes": summaries})
}

func (r *Router) handleGetProcess(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	p, err := r.store.GetProcess(req.Context(), id)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	writeJSON(w, r.logger, http.StatusOK, processDescription{
		processSummary: summaryOf(p),
		Inputs:         p.Inputs,
		Outputs:        p.Outputs,
	})
}

// deployRequest is the OGC API - Processes - Part 2 (Deploy, Replace,
// Undeploy) request body: process metadata plus an embedded or
// referenced Application Package.
type deployRequest struct {
	ProcessDescription struct {
		ID                 string                     `json:"id"`
		Title              string                     `json:"title,omitempty"`
		Description        string                     `json:"description,omitempty"`
		Keywords           []string                   `json:"keywords,omitempty"`
		Version            string                     `json:"version,omitempty"`
		JobControlOptions  []model.JobControlOption   `json:"jobControlOptions,omitempty"`
		OutputTransmission []model.OutputTransmission `json:"outputTransmission,omitempty"`
		Visibility         model.Visibility           `json:"visibility,omitempty"`
		Inputs             []model.IODef              `json:"inputs,omitempty"`
		Outputs            []model.IODef              `json:"outputs,omitempty"`
	} `json:"processDescription"`
	ExecutionUnit struct {
		Package string `json:"package"`
	} `json:"executionUnit"`
}

// handleDeployProcess reconciles a deploy request's declared I/O
// against its Application Package (C3) and persists the result (C2).
func (r *Router) handleDeployProcess(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(w, r.logger, &apperrors.ValidationError{Message: "could not read request body"})
		return
	}

	var dr deployRequest
	if err := json.Unmarshal(body, &dr); err != nil {
		writeError(w, r.logger, &apperrors.ValidationError{Message: "malformed deploy request: " + err.Error()})
		return
	}
	if dr.ProcessDescription.ID == "" {
		writeError(w, r.logger, &apperrors.ValidationError{Field: "processDescription.id", Message: "required"})
		return
	}

	doc, err := apd.Parse([]byte(dr.ExecutionUnit.Package))
	if err != nil {
		writeError(w, r.logger, &apperrors.ValidationError{Field: "executionUnit.package", Message: err.Error()})
		return
	}

	apInputs, apOutputs := doc.IOIDs()
	reconciledInputs, err := ioreconcile.Reconcile(dr.ProcessDescription.Inputs, apInputs, nil)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	reconciledOutputs, err := ioreconcile.Reconcile(dr.ProcessDescription.Outputs, apOutputs, nil)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}

	if _, err := r.store.GetProcess(req.Context(), dr.ProcessDescription.ID); err == nil {
		writeError(w, r.logger, &apperrors.ConflictError{Message: fmt.Sprintf("process %q already deployed", dr.ProcessDescription.ID)})
		return
	}

	visibility := dr.ProcessDescription.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	jobControl := dr.ProcessDescription.JobControlOptions
	if len(jobControl) == 0 {
		jobControl = []model.JobControlOption{model.JobControlAsync}
	}
	transmission := dr.ProcessDescription.OutputTransmission
	if len(transmission) == 0 {
		transmission = []model.OutputTransmission{model.TransmissionValue, model.TransmissionReference}
	}
	processType := model.ProcessTypeApplication
	if doc.Class == apd.ClassWorkflow {
		processType = model.ProcessTypeWorkflow
	}

	now := time.Now()
	p := &model.Process{
		ID:                 dr.ProcessDescription.ID,
		Version:            dr.ProcessDescription.Version,
		Title:              dr.ProcessDescription.Title,
		Description:        dr.ProcessDescription.Description,
		Keywords:           dr.ProcessDescription.Keywords,
		Visibility:         visibility,
		JobControlOptions:  jobControl,
		OutputTransmission: transmission,
		Inputs:             reconciledInputs,
		Outputs:            reconciledOutputs,
		Package:            doc,
		Type:               processType,
		Payload:            body,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := p.Validate(); err != nil {
		writeError(w, r.logger, &apperrors.ValidationError{Message: err.Error()})
		return
	}

	if err := r.store.PutProcess(req.Context(), p); err != nil {
		writeError(w, r.logger, err)
		return
	}
	writeJSON(w, r.logger, http.StatusCreated, processDescription{
		processSummary: summaryOf(p),
		Inputs:         p.Inputs,
		Outputs:        p.Outputs,
	})
}

func (r *Router) handleUndeployProcess(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.store.DeleteProcess(req.Context(), id); err != nil {
		writeError(w, r.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// executeRequest is the OGC API - Processes execute request body.
type executeRequest struct {
	Inputs            map[string]any     `json:"inputs"`
	Response          string             `json:"response,omitempty"` // "raw" | "document"
	NotificationEmail string             `json:"notificationEmail,omitempty"`
	Subscriber        *executeSubscriber `json:"subscriber,omitempty"`
}

type executeSubscriber struct {
	SuccessURI string `json:"successUri,omitempty"`
}

// handleExecute accepts an execute request for a deployed process and
// hands it to the Dispatcher (C7); the response shape and status code
// follow the sync/async contract of spec.md §5-6: 201 for an accepted
// async job, 200 with the job's status document for a job that completed
// synchronously before the dispatcher's wait window elapsed.
func (r *Router) handleExecute(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	p, err := r.store.GetProcess(req.Context(), id)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}
	doc, ok := p.Package.(*apd.Document)
	if !ok {
		writeError(w, r.logger, &apperrors.InternalError{Summary: "deployed package is not a parsed Application Package document"})
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(w, r.logger, &apperrors.ValidationError{Message: "could not read request body"})
		return
	}
	var er executeRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &er); err != nil {
			writeError(w, r.logger, &apperrors.ValidationError{Message: "malformed execute request: " + err.Error()})
			return
		}
	}

	mode := model.ExecutionAuto
	switch preferHeader := req.Header.Get("Prefer"); {
	case preferHeader == "respond-async":
		mode = model.ExecutionAsync
	case preferHeader == "wait":
		mode = model.ExecutionSync
	}

	var subscribers []model.Subscriber
	var notificationToken string
	if er.NotificationEmail != "" {
		token, err := notify.HashNotificationEmail(er.NotificationEmail)
		if err != nil {
			writeError(w, r.logger, &apperrors.InternalError{Summary: "failed to hash notification email", Cause: err})
			return
		}
		notificationToken = token
		subscribers = append(subscribers, model.Subscriber{CallbackURL: "mailto:" + er.NotificationEmail})
	}
	if er.Subscriber != nil && er.Subscriber.SuccessURI != "" {
		subscribers = append(subscribers, model.Subscriber{CallbackURL: er.Subscriber.SuccessURI})
	}

	submitReq := dispatch.SubmitRequest{
		JobID:                  uuid.NewString(),
		ProcessID:              id,
		Package:                doc,
		Inputs:                 decodeInputs(er.Inputs),
		Mode:                   mode,
		Subscribers:            subscribers,
		CorrelationID:          tracing.CorrelationIDFromContext(req.Context()),
		NotificationEmailToken: notificationToken,
	}

	job, completedSync, err := r.disp.Submit(req.Context(), submitReq)
	if err != nil {
		writeError(w, r.logger, err)
		return
	}

	if completedSync {
		writeJSON(w, r.logger, http.StatusOK, jobStatusOf(job))
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, r.logger, http.StatusCreated, jobStatusOf(job))
}
