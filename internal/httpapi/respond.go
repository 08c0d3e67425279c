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
	"errors"
	"log/slog"
	"net/http"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
)

// writeJSON writes a JSON response with the given status code. Encoding
// failures are logged, not surfaced, since headers are already sent.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to write JSON response", slog.Any("error", err))
	}
}

// ogcError is the OGC API - Processes exception body: {type, title,
// detail, status}.
type ogcError struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status"`
}

// writeError maps err to its OGC status code and body per spec.md §7's
// 1:1 kind-to-HTTP mapping, never leaking internal detail for
// InternalError beyond its own Summary.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, kind, detail := classify(err)
	writeJSON(w, logger, status, ogcError{
		Type:   "https://ap-engine/errors/" + kind,
		Title:  kind,
		Detail: detail,
		Status: status,
	})
}

func classify(err error) (status int, kind, detail string) {
	var (
		valErr      *apperrors.ValidationError
		notFoundErr *apperrors.NotFoundError
		conflictErr *apperrors.ConflictError
		policyErr   *apperrors.PolicyError
		fetchErr    *apperrors.FetchError
		stagingErr  *apperrors.PackageStagingError
		execErr     *apperrors.PackageExecutionError
		collectErr  *apperrors.PackageOutputCollectionError
		workflowErr *apperrors.WorkflowError
		remoteErr   *apperrors.RemoteExecutorError
		cancelErr   *apperrors.CancelledError
		capacityErr *apperrors.CapacityError
		illegalErr  *apperrors.IllegalTransition
		internalErr *apperrors.InternalError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity, "ValidationError", valErr.Error()
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "NotFoundError", notFoundErr.Error()
	case errors.As(err, &conflictErr):
		return http.StatusConflict, "ConflictError", conflictErr.Error()
	case errors.As(err, &policyErr):
		return http.StatusForbidden, "PolicyError", policyErr.Error()
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "FetchError", fetchErr.Error()
	case errors.As(err, &stagingErr):
		return http.StatusInternalServerError, "PackageStagingError", stagingErr.Error()
	case errors.As(err, &execErr):
		return http.StatusInternalServerError, "PackageExecutionError", execErr.Error()
	case errors.As(err, &collectErr):
		return http.StatusInternalServerError, "PackageOutputCollectionError", collectErr.Error()
	case errors.As(err, &workflowErr):
		return http.StatusUnprocessableEntity, "WorkflowError", workflowErr.Error()
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway, "RemoteExecutorError", remoteErr.Error()
	case errors.As(err, &cancelErr):
		return http.StatusConflict, "CancelledError", cancelErr.Error()
	case errors.As(err, &capacityErr):
		return http.StatusServiceUnavailable, "CapacityError", capacityErr.Error()
	case errors.As(err, &illegalErr):
		return http.StatusConflict, "IllegalTransition", illegalErr.Error()
	case errors.As(err, &internalErr):
		return http.StatusInternalServerError, "InternalError", internalErr.Summary
	default:
		return http.StatusInternalServerError, "InternalError", "an unclassified internal error occurred"
	}
}
