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

package apengine

import "github.com/weaver-engine/ap-engine/internal/apd"

// Classification buckets a container's exit code per spec.md §4.C4:
// success, a retryable ("temporary") failure, or a permanent failure
// the dispatcher must not retry.
type Classification string

const (
	ClassSuccess   Classification = "success"
	ClassTemporary Classification = "temporary"
	ClassPermanent Classification = "permanent"
)

// ClassifyExitCode buckets exitCode against a tool's declared code
// lists. An empty SuccessCodes list defaults to "0 is success"; an
// exit code absent from every list defaults to permanent, since an
// undeclared non-zero code carries no retry guarantee.
func ClassifyExitCode(tool *apd.CommandLineTool, exitCode int) Classification {
	if containsCode(tool.SuccessCodes, exitCode) {
		return ClassSuccess
	}
	if len(tool.SuccessCodes) == 0 && exitCode == 0 {
		return ClassSuccess
	}
	if containsCode(tool.TemporaryFailCodes, exitCode) {
		return ClassTemporary
	}
	if containsCode(tool.PermanentFailCodes, exitCode) {
		return ClassPermanent
	}
	return ClassPermanent
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
