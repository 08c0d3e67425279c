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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileScheme resolves file:// references. It requires the target path
// to live under one of Roots, so a process cannot use a file reference
// to read arbitrary locations on the host.
type FileScheme struct {
	Roots []string
}

// NewFileScheme creates a FileScheme restricted to the given allowed
// root directories.
func NewFileScheme(roots ...string) *FileScheme {
	return &FileScheme{Roots: roots}
}

func (s *FileScheme) Fetch(_ context.Context, uri *url.URL, destDir string) (Staged, error) {
	path := uri.Path
	if !filepath.IsAbs(path) {
		return Staged{}, fmt.Errorf("file reference path must be absolute: %s", path)
	}
	if !s.allowed(path) {
		return Staged{}, fmt.Errorf("file reference %s is outside permitted roots", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return Staged{}, err
	}
	defer f.Close()

	return copyToFile(destDir, filepath.Base(path), f, "")
}

func (s *FileScheme) allowed(path string) bool {
	if len(s.Roots) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range s.Roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(rootAbs, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
