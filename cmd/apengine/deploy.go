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
	"os"

	"github.com/spf13/cobra"

	"github.com/weaver-engine/ap-engine/internal/cliutil"
)

func newDeployCommand() *cobra.Command {
	var (
		title, description, visibility string
	)
	cmd := &cobra.Command{
		Use:   "deploy <process-id> <application-package.yaml>",
		Short: "Deploy an Application Package as a process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := os.ReadFile(args[1])
			if err != nil {
				return cliutil.NewInvalidRequestError("could not read application package file", err)
			}

			body, err := json.Marshal(map[string]any{
				"processDescription": map[string]any{
					"id":          args[0],
					"title":       title,
					"description": description,
					"visibility":  visibility,
				},
				"executionUnit": map[string]any{"package": string(pkg)},
			})
			if err != nil {
				return cliutil.NewInvalidRequestError("could not encode deploy request", err)
			}

			resp, err := apiCall("POST", "/processes", nil, body, "")
			if err != nil {
				return err
			}
			var pd processDescription
			if err := json.Unmarshal(resp, &pd); err != nil {
				return cliutil.NewExecutionError("could not decode deploy response", err)
			}
			if jsonOutput {
				return printJSON(pd)
			}
			fmt.Printf("%s deployed process %q (version %s)\n", cliutil.StatusOK.Render(cliutil.SymbolOK), pd.ID, pd.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Process title")
	cmd.Flags().StringVar(&description, "description", "", "Process description")
	cmd.Flags().StringVar(&visibility, "visibility", "public", "Process visibility (public|private)")
	return cmd
}
