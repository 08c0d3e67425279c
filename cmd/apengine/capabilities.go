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

// newCapabilitiesCommand lists every public process the daemon
// currently serves (private processes are not listed), the OGC API - Processes analogue of a WPS GetCapabilities
// call.
func newCapabilitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List every public process currently deployed on the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := apiCall("GET", "/processes", nil, nil, "")
			if err != nil {
				return err
			}
			var body struct {
				Processes []processSummary `json:"processes"`
			}
			if jsonErr := json.Unmarshal(resp, &body); jsonErr != nil {
				return cliutil.NewExecutionError("could not decode process list", jsonErr)
			}
			if jsonOutput {
				return printJSON(body.Processes)
			}
			for _, p := range body.Processes {
				fmt.Printf("%s  %-10s  %s\n", cliutil.Header.Render(p.ID), p.Version, p.Title)
			}
			return nil
		},
	}
}
