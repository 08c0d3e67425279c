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
	"net/http"
	"net/url"
	"regexp"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// Policy selects the RequestOptions to apply to a given outbound
// request, based on an ordered list of URL-matching rules (spec.md §8:
// request-options policy). The first rule whose URLRegex matches the
// URL and whose Methods (if any) include the request method wins;
// Default is used when nothing matches.
type Policy struct {
	Rules   []model.RequestOptionsRule
	Default model.RequestOptions

	compiled []*regexp.Regexp
}

// NewPolicy compiles rules for repeated lookups.
func NewPolicy(rules []model.RequestOptionsRule, def model.RequestOptions) (*Policy, error) {
	compiled := make([]*regexp.Regexp, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.URLRegex)
		if err != nil {
			return nil, err
		}
		compiled[i] = re
	}
	return &Policy{Rules: rules, Default: def, compiled: compiled}, nil
}

// Resolve returns the RequestOptions that apply to method/url.
func (p *Policy) Resolve(method, url string) model.RequestOptions {
	for i, rule := range p.Rules {
		if !p.compiled[i].MatchString(url) {
			continue
		}
		if len(rule.Methods) > 0 && !containsMethod(rule.Methods, method) {
			continue
		}
		return rule.Options
	}
	return p.Default
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == method || m == "*" {
			return true
		}
	}
	return false
}

// PolicyHTTPScheme is an HTTPScheme variant that re-resolves
// RequestOptions per request from a Policy, instead of using one fixed
// configuration for the scheme's whole lifetime.
type PolicyHTTPScheme struct {
	policy   *Policy
	resolver SecretResolver
}

// NewPolicyHTTPScheme builds a scheme handler that looks up per-request
// options from policy before building a transient HTTPScheme to
// execute the fetch. Auth values in the policy are used literally; use
// NewPolicyHTTPSchemeWithSecrets to resolve scheme-prefixed references.
func NewPolicyHTTPScheme(policy *Policy) *PolicyHTTPScheme {
	return NewPolicyHTTPSchemeWithSecrets(policy, nil)
}

// NewPolicyHTTPSchemeWithSecrets is NewPolicyHTTPScheme with a
// SecretResolver applied to every resolved RequestOptions' auth fields.
func NewPolicyHTTPSchemeWithSecrets(policy *Policy, resolver SecretResolver) *PolicyHTTPScheme {
	return &PolicyHTTPScheme{policy: policy, resolver: resolver}
}

func (s *PolicyHTTPScheme) Fetch(ctx context.Context, uri *url.URL, destDir string) (Staged, error) {
	opts := s.policy.Resolve(http.MethodGet, uri.String())
	return NewHTTPSchemeWithSecrets(opts, s.resolver).Fetch(ctx, uri, destDir)
}
