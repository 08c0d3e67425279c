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

func newDescribeCommand() *cobra.Command {
	var providerID string
	cmd := &cobra.Command{
		Use:   "describe <process-id>",
		Short: "Describe a deployed process, or a provider's remote process with --provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/processes/" + args[0]
			if providerID != "" {
				path = "/providers/" + providerID + "/processes/" + args[0]
			}
			resp, err := apiCall("GET", path, nil, nil, "")
			if err != nil {
				return err
			}
			if jsonOutput || providerID != "" {
				fmt.Println(string(resp))
				return nil
			}
			var pd processDescription
			if jsonErr := json.Unmarshal(resp, &pd); jsonErr != nil {
				return cliutil.NewExecutionError("could not decode process description", jsonErr)
			}
			fmt.Printf("%s %s\n", cliutil.Header.Render(pd.ID), pd.Title)
			if pd.Description != "" {
				fmt.Println(pd.Description)
			}
			fmt.Printf("%s %d input(s), %d output(s)\n", cliutil.RenderLabel("io:"), len(pd.Inputs), len(pd.Outputs))
			for _, in := range pd.Inputs {
				fmt.Printf("  in  %s (%d..%d)\n", in.ID, in.MinOccurs, in.MaxOccurs)
			}
			for _, out := range pd.Outputs {
				fmt.Printf("  out %s\n", out.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&providerID, "provider", "", "Describe a registered remote provider's process instead")
	return cmd
}
