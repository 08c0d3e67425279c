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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/wps1shim"
)

// WPSExecutor dispatches a step to a WPS-1.0.0 (or wire-compatible
// 2.0.0) provider via the KVP Execute operation, and polls the
// provider's statusLocation for completion.
type WPSExecutor struct {
	client  *http.Client
	version string // "1.0.0" or "2.0.0"
}

var _ Executor = (*WPSExecutor)(nil)

// NewWPSExecutor creates a WPSExecutor for the given protocol version.
func NewWPSExecutor(client *http.Client, version string) *WPSExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &WPSExecutor{client: client, version: version}
}

// Submit issues a KVP Execute request with status=true so the provider
// runs asynchronously and returns a statusLocation to poll.
func (e *WPSExecutor) Submit(ctx context.Context, req StepRequest) (string, error) {
	q := url.Values{}
	q.Set("service", "WPS")
	q.Set("version", e.version)
	q.Set("request", "Execute")
	q.Set("identifier", req.ProcessID)
	q.Set("storeExecuteResponse", "true")
	q.Set("status", "true")
	q.Set("DataInputs", encodeDataInputs(req.Inputs))

	execURL := req.ExecutorURL + "?" + q.Encode()
	resp, err := e.doGet(ctx, execURL)
	if err != nil {
		return "", &apperrors.RemoteExecutorError{ExecutorURL: req.ExecutorURL, Message: "execute request failed", Cause: err}
	}

	parsed, err := wps1shim.ParseExecuteResponse(resp)
	if err != nil {
		return "", &apperrors.RemoteExecutorError{ExecutorURL: req.ExecutorURL, Message: "invalid ExecuteResponse", Cause: err}
	}
	if parsed.StatusLocation == "" {
		return "", &apperrors.RemoteExecutorError{ExecutorURL: req.ExecutorURL, Message: "provider returned no statusLocation"}
	}
	return parsed.StatusLocation, nil
}

// Poll re-fetches the statusLocation document and normalizes its status.
func (e *WPSExecutor) Poll(ctx context.Context, executorURL, handle string) (StepStatus, error) {
	resp, err := e.doGet(ctx, handle)
	if err != nil {
		return StepStatus{}, &apperrors.RemoteExecutorError{ExecutorURL: executorURL, Message: "status poll failed", Cause: err}
	}
	parsed, err := wps1shim.ParseExecuteResponse(resp)
	if err != nil {
		return StepStatus{}, &apperrors.RemoteExecutorError{ExecutorURL: executorURL, Message: "invalid status document", Cause: err}
	}

	norm := parsed.Normalize()
	status := StepStatus{Done: norm.Done, Failed: norm.Failed, Percent: norm.Percent, Message: norm.Message}
	if norm.Done && !norm.Failed {
		outputs := make(map[string]model.Value, len(parsed.Outputs))
		for _, out := range parsed.Outputs {
			switch {
			case out.Reference != nil:
				outputs[out.Identifier] = model.Value{Kind: model.KindComplex, Complex: &model.ComplexValue{Href: out.Reference.Href, MediaType: out.Reference.MimeType}}
			case out.Data != nil && out.Data.ComplexData != "":
				outputs[out.Identifier] = model.Value{Kind: model.KindLiteral, Literal: out.Data.ComplexData}
			case out.Data != nil:
				outputs[out.Identifier] = model.Value{Kind: model.KindLiteral, Literal: out.Data.LiteralData}
			}
		}
		status.Outputs = outputs
	}
	if norm.Failed && len(norm.Exceptions) > 0 {
		status.Message = norm.Exceptions[0].Text
	}
	return status, nil
}

// Dismiss is a best-effort no-op: WPS-1.0.0 has no standard cancel
// operation, so the engine relies on the worker abandoning the poll
// loop and letting the provider's job run to completion untracked.
func (e *WPSExecutor) Dismiss(ctx context.Context, executorURL, handle string) error {
	return nil
}

func (e *WPSExecutor) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// encodeDataInputs renders WPS-1.0.0's DataInputs KVP encoding:
// "id=value;id2=value2" with literal values rendered as-is and complex
// values rendered by their staged href.
func encodeDataInputs(inputs map[string]model.Value) string {
	parts := make([]string, 0, len(inputs))
	for id, v := range inputs {
		parts = append(parts, fmt.Sprintf("%s=%s", id, encodeDataInputValue(v)))
	}
	return strings.Join(parts, ";")
}

func encodeDataInputValue(v model.Value) string {
	switch v.Kind {
	case model.KindComplex:
		if v.Complex == nil {
			return ""
		}
		if v.Complex.Href != "" {
			return v.Complex.Href
		}
		return v.Complex.LocalPath
	case model.KindLiteral:
		return fmt.Sprintf("%v", v.Literal)
	default:
		return v.String()
	}
}
