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

package job

import (
	"context"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// Store is the persistence contract the actor uses to make each
// applied transition durable before releasing the lock that protects
// in-memory state. Implemented by internal/store.
type Store interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	UpdateJob(ctx context.Context, j *model.Job) error
}
