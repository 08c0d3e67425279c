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

package secrets

import "context"

type runIDContextKey struct{}

// ContextWithRunID attaches a job/run ID to ctx so a CacheResolver
// reached deeper in a call chain (e.g. a fetch.Scheme resolving a
// request-options auth reference) knows which Cache bucket to use.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey{}, runID)
}

// RunIDFromContext retrieves the run ID attached by ContextWithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(runIDContextKey{}).(string)
	return runID, ok && runID != ""
}

// CacheResolver adapts a Cache to the single-argument
// Resolve(ctx, reference) shape that fetch.SecretResolver expects,
// scoping every lookup to the run ID carried on ctx. References
// resolved outside of a run context (no run ID attached) fall back to
// an unscoped "" bucket, shared across every such call.
type CacheResolver struct {
	cache *Cache
}

// NewCacheResolver wraps cache for use as a fetch.SecretResolver.
func NewCacheResolver(cache *Cache) *CacheResolver {
	return &CacheResolver{cache: cache}
}

// Resolve implements the resolver shape fetch.SecretResolver expects.
func (r *CacheResolver) Resolve(ctx context.Context, reference string) (string, error) {
	runID, _ := RunIDFromContext(ctx)
	return r.cache.Resolve(ctx, runID, reference)
}
