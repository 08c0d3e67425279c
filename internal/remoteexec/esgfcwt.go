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

// ESGFCWTExecutor dispatches a step to an ESGF Compute (CWT) API
// endpoint: a JSON "execute" request naming the process and its inputs
// as a flat parameter list, and a JSON status document polled by job ID.
type ESGFCWTExecutor struct {
	client *http.Client
}

var _ Executor = (*ESGFCWTExecutor)(nil)

// NewESGFCWTExecutor creates an ESGFCWTExecutor.
func NewESGFCWTExecutor(client *http.Client) *ESGFCWTExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &ESGFCWTExecutor{client: client}
}

type cwtExecuteRequest struct {
	Process string         `json:"process"`
	Inputs  map[string]any `json:"inputs"`
}

type cwtStatus struct {
	JobID   string         `json:"jobID"`
	Status  string         `json:"status"` // "queued" | "started" | "succeeded" | "failed"
	Percent int            `json:"percent"`
	Error   string         `json:"error"`
	Output  map[string]any `json:"output"`
}

// Submit POSTs to {executorURL}/execute.
func (e *ESGFCWTExecutor) Submit(ctx context.Context, req StepRequest) (string, error) {
	inputs := make(map[string]any, len(req.Inputs))
	for k, v := range req.Inputs {
		inputs[k] = toJSON(v)
	}
	body, err := json.Marshal(cwtExecuteRequest{Process: req.ProcessID, Inputs: inputs})
	if err != nil {
		return "", fmt.Errorf("remoteexec/esgfcwt: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.ExecutorURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("remoteexec/esgfcwt: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", &apperrors.RemoteExecutorError{ExecutorURL: req.ExecutorURL, Message: "execute request failed", Cause: err}
	}
	defer resp.Body.Close()

	var status cwtStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("remoteexec/esgfcwt: decode response: %w", err)
	}
	if status.JobID == "" {
		return "", &apperrors.RemoteExecutorError{ExecutorURL: req.ExecutorURL, Message: "execute response carried no jobID"}
	}
	return status.JobID, nil
}

// Poll GETs {executorURL}/jobs/{handle}.
func (e *ESGFCWTExecutor) Poll(ctx context.Context, executorURL, handle string) (StepStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, executorURL+"/jobs/"+handle, nil)
	if err != nil {
		return StepStatus{}, fmt.Errorf("remoteexec/esgfcwt: build poll request: %w", err)
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return StepStatus{}, &apperrors.RemoteExecutorError{ExecutorURL: executorURL, Message: "poll request failed", Cause: err}
	}
	defer resp.Body.Close()

	var status cwtStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return StepStatus{}, fmt.Errorf("remoteexec/esgfcwt: decode status: %w", err)
	}

	result := StepStatus{Percent: status.Percent, Message: status.Error}
	switch status.Status {
	case "succeeded":
		result.Done = true
		outputs := make(map[string]model.Value, len(status.Output))
		for k, v := range status.Output {
			outputs[k] = fromJSON(v)
		}
		result.Outputs = outputs
	case "failed":
		result.Done = true
		result.Failed = true
	}
	return result, nil
}

// Dismiss POSTs {executorURL}/jobs/{handle}/kill, the CWT cancellation op.
func (e *ESGFCWTExecutor) Dismiss(ctx context.Context, executorURL, handle string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, executorURL+"/jobs/"+handle+"/kill", nil)
	if err != nil {
		return fmt.Errorf("remoteexec/esgfcwt: build dismiss request: %w", err)
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return &apperrors.RemoteExecutorError{ExecutorURL: executorURL, Message: "dismiss request failed", Cause: err}
	}
	defer resp.Body.Close()
	return nil
}
