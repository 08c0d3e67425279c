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

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weaver-engine/ap-engine/internal/cliutil"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			js, err := fetchJobStatus(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(js)
			}
			printJobStatus(js)
			return nil
		},
	}
}

func fetchJobStatus(jobID string) (jobStatus, error) {
	resp, err := apiCall("GET", "/jobs/"+jobID, nil, nil, "")
	if err != nil {
		return jobStatus{}, err
	}
	var js jobStatus
	if jsonErr := json.Unmarshal(resp, &js); jsonErr != nil {
		return jobStatus{}, cliutil.NewExecutionError("could not decode job status", jsonErr)
	}
	return js, nil
}

func printJobStatus(js jobStatus) {
	fmt.Printf("job      %s\n", js.JobID)
	fmt.Printf("process  %s\n", js.ProcessID)
	fmt.Printf("status   %s\n", cliutil.RenderJobStatus(string(js.Status)))
	fmt.Printf("progress %d%%\n", js.Progress)
	if js.Message != "" {
		fmt.Printf("message  %s\n", js.Message)
	}
	fmt.Printf("created  %s\n", js.Created)
	fmt.Printf("updated  %s\n", js.Updated)
}
