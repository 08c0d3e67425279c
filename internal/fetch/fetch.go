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

// Package fetch implements the Reference Fetcher: it resolves an input
// reference URI to bytes staged on local disk inside a per-job staging
// directory, never outside it. Supported schemes are file://, http://,
// https://, s3://, vault://, and the opensearchfile:// sentinel, which
// is never fetched here — Fetch returns it as a *DeferredRef error.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/weaver-engine/ap-engine/internal/apperrors"
	internallog "github.com/weaver-engine/ap-engine/internal/log"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/secrets"
)

// DeferredRef is returned by Fetch when the reference's scheme is not
// resolved by this package (currently only opensearchfile://, see
// spec.md §6). No component in this module expands such a reference
// into concrete references; the error reaches the caller as is.
type DeferredRef struct {
	Scheme string
	URI    string
}

func (d *DeferredRef) Error() string {
	return fmt.Sprintf("fetch: %s:// reference deferred to workflow interpreter: %s", d.Scheme, d.URI)
}

// Staged describes a reference that has been materialized onto local
// disk within the job's staging directory.
type Staged struct {
	// LocalPath is the absolute path under the staging directory.
	LocalPath string
	// MediaType is the best-effort content type, when known.
	MediaType string
	// Size is the number of bytes written.
	Size int64
}

// Scheme fetches a single reference for one URL scheme.
type Scheme interface {
	// Fetch resolves uri and writes its content to destDir, returning the
	// staged file's path. destDir is guaranteed to exist and to be a
	// subdirectory of the job's staging root.
	Fetch(ctx context.Context, uri *url.URL, destDir string) (Staged, error)
}

// Fetcher dispatches references to per-scheme handlers and enforces the
// staging-directory containment invariant.
type Fetcher struct {
	schemes map[string]Scheme
	logger  *slog.Logger
}

// New creates a Fetcher with the given scheme handlers registered under
// their URL scheme names (e.g. "https", "s3", "vault").
func New(schemes map[string]Scheme, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = internallog.New(internallog.FromEnv())
	}
	return &Fetcher{schemes: schemes, logger: logger}
}

// Fetch resolves ref against the job's staging directory
// (stagingRoot/<jobID>), creating a fresh subdirectory per input ID so
// concurrent fetches for the same job never collide. It returns
// *DeferredRef (via errors.As) for schemes that cannot be resolved
// here.
func (f *Fetcher) Fetch(ctx context.Context, jobID, inputID, ref string, stagingRoot string) (Staged, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return Staged{}, &apperrors.ValidationError{Field: inputID, Message: fmt.Sprintf("invalid reference URI: %v", err)}
	}
	scheme := strings.ToLower(parsed.Scheme)

	if scheme == "opensearchfile" {
		return Staged{}, &DeferredRef{Scheme: scheme, URI: ref}
	}

	handler, ok := f.schemes[scheme]
	if !ok {
		return Staged{}, &apperrors.ValidationError{Field: inputID, Message: fmt.Sprintf("unsupported reference scheme %q", scheme)}
	}

	destDir, err := f.stagingDir(stagingRoot, jobID, inputID)
	if err != nil {
		return Staged{}, &apperrors.PackageStagingError{Message: "failed to create staging directory", Cause: err}
	}

	log := internallog.WithJobContext(f.logger, jobID, "")
	log.Debug("fetching reference", internallog.String("scheme", scheme), internallog.String("input_id", inputID))

	ctx = secrets.ContextWithRunID(ctx, jobID)
	staged, err := handler.Fetch(ctx, parsed, destDir)
	if err != nil {
		var deferred *DeferredRef
		if isDeferred(err, &deferred) {
			return Staged{}, deferred
		}
		return Staged{}, &apperrors.FetchError{URL: ref, Attempts: 1, Cause: err}
	}

	if !isWithin(stagingRoot, staged.LocalPath) {
		return Staged{}, &apperrors.InternalError{
			Summary: fmt.Sprintf("scheme handler %q staged a file outside the job staging directory", scheme),
		}
	}

	return staged, nil
}

// stagingDir creates and returns a fresh directory for a single input's
// fetched content, nested under the job's staging root.
func (f *Fetcher) stagingDir(stagingRoot, jobID, inputID string) (string, error) {
	safeInput := strings.ReplaceAll(inputID, string(filepath.Separator), "_")
	dir := filepath.Join(stagingRoot, jobID, fmt.Sprintf("%s-%s", safeInput, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// isWithin reports whether candidate is lexically contained within root
// after resolving both to absolute, cleaned paths.
func isWithin(root, candidate string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absCandidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isDeferred(err error, target **DeferredRef) bool {
	d, ok := err.(*DeferredRef)
	if !ok {
		return false
	}
	*target = d
	return true
}

// copyToFile streams src into a new file named base within destDir,
// returning the staged result.
func copyToFile(destDir, base string, src io.Reader, mediaType string) (Staged, error) {
	path := filepath.Join(destDir, base)
	out, err := os.Create(path)
	if err != nil {
		return Staged{}, err
	}
	defer out.Close()

	n, err := io.Copy(out, src)
	if err != nil {
		return Staged{}, err
	}
	return Staged{LocalPath: path, MediaType: mediaType, Size: n}, nil
}
