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

package model

import "time"

// DataSourceMapping picks a remote executor for a workflow step based on
// the network location of one of its file inputs.
type DataSourceMapping struct {
	NetlocGlob  string `json:"netloc"`
	ExecutorURL string `json:"executorUrl"`
	Default     bool   `json:"default,omitempty"`
}

// RequestAuth describes per-request authentication applied by C1/C5
// outbound HTTP.
type RequestAuth struct {
	Type   string `json:"type"` // bearer | basic | api_key | none
	Token  string `json:"token,omitempty"`
	User   string `json:"user,omitempty"`
	Pass   string `json:"pass,omitempty"`
	Header string `json:"header,omitempty"`
	Value  string `json:"value,omitempty"`
}

// RequestOptions is the effective policy applied to one outbound request.
type RequestOptions struct {
	MaxAttempts   int           `json:"maxAttempts"`
	BackoffStart  time.Duration `json:"backoffStart"`
	BackoffCap    time.Duration `json:"backoffCap"`
	VerifyTLS     bool          `json:"verifyTLS"`
	Timeout       time.Duration `json:"timeout"`
	Auth          *RequestAuth  `json:"auth,omitempty"`
}

// DefaultRequestOptions is the default retry budget applied to an
// outbound fetch with no matching policy rule: 3 attempts, exponential
// backoff starting at 1s, capped at 30s.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{
		MaxAttempts:  3,
		BackoffStart: time.Second,
		BackoffCap:   30 * time.Second,
		VerifyTLS:    true,
		Timeout:      30 * time.Second,
	}
}

// RequestOptionsRule binds a URL pattern and method set to a policy.
type RequestOptionsRule struct {
	URLRegex string   `json:"urlRegex"`
	Methods  []string `json:"methods,omitempty"`
	Options  RequestOptions `json:"options"`
}
