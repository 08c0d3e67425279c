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

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Source    string `json:"source"`
	Text      string `json:"text"`
}

func newLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Show a job's collected log lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiCall("GET", "/jobs/"+args[0]+"/logs", nil, nil, "")
			if err != nil {
				return err
			}
			if jsonOutput {
				fmt.Println(string(resp))
				return nil
			}
			var body struct {
				Logs []logEntry `json:"logs"`
			}
			if jsonErr := json.Unmarshal(resp, &body); jsonErr != nil {
				return cliutil.NewExecutionError("could not decode job logs", jsonErr)
			}
			for _, e := range body.Logs {
				fmt.Printf("%s [%s/%s] %s\n", e.Timestamp, e.Level, e.Source, e.Text)
			}
			return nil
		},
	}
}
