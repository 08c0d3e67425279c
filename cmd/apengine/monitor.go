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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weaver-engine/ap-engine/internal/cliutil"
)

func isTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "dismissed":
		return true
	default:
		return false
	}
}

func newMonitorCommand() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "monitor <job-id>",
		Short: "Poll a job's status until it reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for {
				js, err := fetchJobStatus(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					if err := printJSON(js); err != nil {
						return err
					}
				} else {
					fmt.Printf("%s progress=%d%%\n", cliutil.RenderJobStatus(string(js.Status)), js.Progress)
				}
				if isTerminal(string(js.Status)) {
					if js.Status == "failed" {
						return cliutil.NewExecutionError(js.Message, nil)
					}
					return nil
				}
				time.Sleep(interval)
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	return cmd
}
