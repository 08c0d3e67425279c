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

package remoteexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
)

// RESTExecutor dispatches a step to a peer instance of this system (or
// any other OGC API - Processes implementation) over HTTP.
type RESTExecutor struct {
	client *http.Client
}

var _ Executor = (*RESTExecutor)(nil)

// NewRESTExecutor creates a RESTExecutor using the given HTTP client.
func NewRESTExecutor(client *http.Client) *RESTExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTExecutor{client: client}
}

type restExecuteRequest struct {
	Inputs map[string]any `json:"inputs"`
}

type restJobStatus struct {
	JobID      string         `json:"jobID"`
	Status     string         `json:"status"`
	Progress   int            `json:"progress"`
	Message    string         `json:"message"`
	Results    map[string]any `json:"results"`
}

// Submit POSTs an async execute request to {executorURL}/processes/{id}/execution.
func (e *RESTExecutor) Submit(ctx context.Context, req StepRequest) (string, error) {
	inputs := make(map[string]any, len(req.Inputs))
	for k, v := range req.Inputs {
		inputs[k] = toJSON(v)
	}
	body, err := json.Marshal(restExecuteRequest{Inputs: inputs})
	if err != nil {
		return "", fmt.Errorf("remoteexec/rest: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/processes/%s/execution", req.ExecutorURL, req.ProcessID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("remoteexec/rest: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Prefer", "respond-async")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", &apperrors.RemoteExecutorError{ExecutorURL: req.ExecutorURL, Message: "execute request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", &apperrors.RemoteExecutorError{ExecutorURL: req.ExecutorURL, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		var status restJobStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err == nil && status.JobID != "" {
			return status.JobID, nil
		}
		return "", &apperrors.RemoteExecutorError{ExecutorURL: req.ExecutorURL, Message: "execute response carried no job location"}
	}
	return location, nil
}

// Poll GETs the job status document at the handle (a job location URL).
func (e *RESTExecutor) Poll(ctx context.Context, executorURL, handle string) (StepStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, handle, nil)
	if err != nil {
		return StepStatus{}, fmt.Errorf("remoteexec/rest: build poll request: %w", err)
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return StepStatus{}, &apperrors.RemoteExecutorError{ExecutorURL: executorURL, Message: "poll request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StepStatus{}, &apperrors.RemoteExecutorError{ExecutorURL: executorURL, Message: fmt.Sprintf("poll status %d", resp.StatusCode)}
	}

	var status restJobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return StepStatus{}, fmt.Errorf("remoteexec/rest: decode status: %w", err)
	}

	result := StepStatus{Percent: status.Progress, Message: status.Message}
	switch status.Status {
	case "succeeded":
		result.Done = true
		outputs := make(map[string]model.Value, len(status.Results))
		for k, v := range status.Results {
			outputs[k] = fromJSON(v)
		}
		result.Outputs = outputs
	case "failed", "dismissed":
		result.Done = true
		result.Failed = true
	}
	return result, nil
}

// Dismiss DELETEs the job.
func (e *RESTExecutor) Dismiss(ctx context.Context, executorURL, handle string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, handle, nil)
	if err != nil {
		return fmt.Errorf("remoteexec/rest: build dismiss request: %w", err)
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return &apperrors.RemoteExecutorError{ExecutorURL: executorURL, Message: "dismiss request failed", Cause: err}
	}
	defer resp.Body.Close()
	return nil
}
