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

// Package datasource resolves the remote executor URL a workflow step
// should dispatch to, based on the network location (host[:port]) of
// any of the step's file inputs, per a configured netlocGlob -> executor
// mapping.
package datasource

import (
	"fmt"
	"net/url"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule maps one netloc glob to a target executor.
type Rule struct {
	// NetlocGlob is a doublestar glob matched against a URI's host[:port]
	// (e.g. "*.vito.be", "data.example.org:8443").
	NetlocGlob string `koanf:"netlocGlob" yaml:"netlocGlob"`
	// ExecutorURL is the base URL of the remote executor to dispatch to.
	ExecutorURL string `koanf:"executorUrl" yaml:"executorUrl"`
	// Default marks this rule as the fallback when no other rule matches.
	Default bool `koanf:"default" yaml:"default"`
}

// Mapping is a compiled set of data-source rules plus an optional
// default executor.
type Mapping struct {
	rules      []Rule
	defaultURL string
	hasDefault bool
}

// New compiles rules into a Mapping, validating every glob and
// recording whichever rule (or rules) is marked default. If more than
// one rule sets Default, the last one wins, matching simple
// last-write-wins config-merge semantics elsewhere in this system.
func New(rules []Rule) (*Mapping, error) {
	m := &Mapping{}
	for _, r := range rules {
		if _, err := doublestar.Match(r.NetlocGlob, "probe"); err != nil {
			return nil, fmt.Errorf("invalid netlocGlob %q: %w", r.NetlocGlob, err)
		}
		m.rules = append(m.rules, r)
		if r.Default {
			m.defaultURL = r.ExecutorURL
			m.hasDefault = true
		}
	}
	return m, nil
}

// Resolve returns the executor URL selected for the given file input
// URI's network location, falling back to the default executor if
// configured. ok is false if no rule matched and no default is set.
func (m *Mapping) Resolve(rawURI string) (executorURL string, ok bool) {
	netloc := hostport(rawURI)
	for _, r := range m.rules {
		if r.Default {
			continue
		}
		if matched, _ := doublestar.Match(r.NetlocGlob, netloc); matched {
			return r.ExecutorURL, true
		}
	}
	if m.hasDefault {
		return m.defaultURL, true
	}
	return "", false
}

// ResolveAny tries every candidate URI in order and returns the first
// rule match; if none match, it falls back to the default.
func (m *Mapping) ResolveAny(rawURIs []string) (executorURL string, ok bool) {
	for _, u := range rawURIs {
		netloc := hostport(u)
		for _, r := range m.rules {
			if r.Default {
				continue
			}
			if matched, _ := doublestar.Match(r.NetlocGlob, netloc); matched {
				return r.ExecutorURL, true
			}
		}
	}
	if m.hasDefault {
		return m.defaultURL, true
	}
	return "", false
}

func hostport(rawURI string) string {
	u, err := url.Parse(rawURI)
	if err != nil {
		return ""
	}
	return u.Host
}
