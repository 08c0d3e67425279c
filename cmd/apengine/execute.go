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
	"strings"

	"github.com/spf13/cobra"

	"github.com/weaver-engine/ap-engine/internal/cliutil"
)

func newExecuteCommand() *cobra.Command {
	var (
		inputs            []string
		inputRefs         []string
		wait, async       bool
		notificationEmail string
		successSubscriber string
	)
	cmd := &cobra.Command{
		Use:   "execute <process-id>",
		Short: "Execute a deployed process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputMap, err := parseInputs(inputs, inputRefs)
			if err != nil {
				return cliutil.NewInvalidRequestError("could not parse --input/--input-ref", err)
			}

			req := map[string]any{"inputs": inputMap}
			if notificationEmail != "" {
				req["notificationEmail"] = notificationEmail
			}
			if successSubscriber != "" {
				req["subscriber"] = map[string]any{"successUri": successSubscriber}
			}
			body, err := json.Marshal(req)
			if err != nil {
				return cliutil.NewInvalidRequestError("could not encode execute request", err)
			}

			prefer := ""
			switch {
			case async:
				prefer = "respond-async"
			case wait:
				prefer = "wait"
			}

			resp, err := apiCall("POST", "/processes/"+args[0]+"/execution", nil, body, prefer)
			if err != nil {
				return err
			}
			var js jobStatus
			if jsonErr := json.Unmarshal(resp, &js); jsonErr != nil {
				return cliutil.NewExecutionError("could not decode job status", jsonErr)
			}
			if jsonOutput {
				return printJSON(js)
			}
			fmt.Printf("job %s %s\n", js.JobID, cliutil.RenderJobStatus(string(js.Status)))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Literal input, key=value (value parsed as JSON when possible)")
	cmd.Flags().StringArrayVar(&inputRefs, "input-ref", nil, "Complex input by reference, key=href")
	cmd.Flags().BoolVar(&wait, "wait", false, "Prefer: wait (block for synchronous completion)")
	cmd.Flags().BoolVar(&async, "async", false, "Prefer: respond-async (force asynchronous acceptance)")
	cmd.Flags().StringVar(&notificationEmail, "notification-email", "", "Email to notify on terminal status")
	cmd.Flags().StringVar(&successSubscriber, "success-uri", "", "Callback URL to notify on success")
	return cmd
}

func parseInputs(literals, refs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, kv := range literals {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --input %q, expected key=value", kv)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			decoded = v // not JSON, treat as a plain string literal
		}
		out[k] = decoded
	}
	for _, kv := range refs {
		k, href, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --input-ref %q, expected key=href", kv)
		}
		out[k] = map[string]any{"href": href}
	}
	return out, nil
}
