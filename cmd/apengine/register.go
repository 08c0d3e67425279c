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

func newRegisterCommand() *cobra.Command {
	var providerType, visibility string
	cmd := &cobra.Command{
		Use:   "register <provider-url>",
		Short: "Register a remote process provider (wps1, wps2, esgf-cwt, rest)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerType == "" {
				return cliutil.NewInvalidRequestError("--type is required", nil)
			}
			body, err := json.Marshal(map[string]any{
				"url":        args[0],
				"type":       providerType,
				"visibility": visibility,
			})
			if err != nil {
				return cliutil.NewInvalidRequestError("could not encode registration request", err)
			}
			resp, err := apiCall("POST", "/providers", nil, body, "")
			if err != nil {
				return err
			}
			var pv providerView
			if jsonErr := json.Unmarshal(resp, &pv); jsonErr != nil {
				return cliutil.NewExecutionError("could not decode provider", jsonErr)
			}
			if jsonOutput {
				return printJSON(pv)
			}
			fmt.Printf("%s registered provider %s (%s) at %s\n", cliutil.StatusOK.Render(cliutil.SymbolOK), pv.ID, pv.Type, pv.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&providerType, "type", "", "Provider protocol: wps1, wps2, esgf-cwt, rest")
	cmd.Flags().StringVar(&visibility, "visibility", "public", "Provider visibility (public|private)")
	return cmd
}
