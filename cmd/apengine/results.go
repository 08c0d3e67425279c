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

func newResultsCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "results <job-id>",
		Short: "Fetch a succeeded job's outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{}
			if raw {
				params["response"] = "raw"
			}
			resp, err := apiCall("GET", "/jobs/"+args[0]+"/results", params, nil, "")
			if err != nil {
				return err
			}
			if jsonOutput {
				fmt.Println(string(resp))
				return nil
			}
			var out map[string]any
			if jsonErr := json.Unmarshal(resp, &out); jsonErr != nil {
				return cliutil.NewExecutionError("could not decode results", jsonErr)
			}
			for id, v := range out {
				fmt.Printf("%s %v\n", cliutil.RenderLabel(id+":"), v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Request outputs by reference instead of inline value")
	return cmd
}
