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

package fetch

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// retryTransport wraps an http.RoundTripper with bounded exponential
// backoff, honoring a RequestOptions retry budget (spec.md §8: default
// 3 attempts, 1s initial backoff capped at 30s).
type retryTransport struct {
	base        http.RoundTripper
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func newRetryTransport(base http.RoundTripper, opts model.RequestOptions) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &retryTransport{
		base:        base,
		maxAttempts: attempts,
		baseBackoff: opts.BackoffStart,
		maxBackoff:  opts.BackoffCap,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotent(req.Method) {
		return t.base.RoundTrip(req)
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := t.backoff(attempt - 1)
			if lastResp != nil {
				if ra := retryAfter(lastResp); ra > 0 && ra < delay {
					delay = ra
				}
			}
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		lastErr, lastResp = err, resp
		if err != nil && !retryableError(err) {
			return nil, err
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}

func isIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		return true
	default:
		return false
	}
}

func retryableStatus(code int) bool {
	switch {
	case code >= 500 && code < 600:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return retryableError(urlErr.Err)
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"connection refused", "connection reset", "no such host", "network unreachable", "eof"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func (t *retryTransport) backoff(attempt int) time.Duration {
	b := float64(t.baseBackoff) * math.Pow(2, float64(attempt-1))
	if b > float64(t.maxBackoff) {
		b = float64(t.maxBackoff)
	}
	jitter := rand.Float64() * b * 0.2
	return time.Duration(b + jitter)
}

func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
