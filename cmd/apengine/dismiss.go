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

	"github.com/spf13/cobra"

	"github.com/weaver-engine/ap-engine/internal/cliutil"
)

func newDismissCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <job-id>",
		Short: "Cancel a running job, or delete a terminal job's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := apiCall("DELETE", "/jobs/"+args[0], nil, nil, ""); err != nil {
				return err
			}
			fmt.Printf("%s dismissed job %s\n", cliutil.StatusOK.Render(cliutil.SymbolOK), args[0])
			return nil
		},
	}
}
