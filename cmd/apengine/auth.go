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

// newAuthCommand groups the local credential-cache subcommands. Unlike
// every other verb it never talks to apengined: it only reads and
// writes the bearer token cached in the OS keychain (or the encrypted
// file store when no keychain is reachable).
func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the locally cached apengined bearer token",
	}
	cmd.AddCommand(newAuthLoginCommand(), newAuthLogoutCommand(), newAuthStatusCommand())
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Cache a bearer token so later commands don't need APENGINE_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return cliutil.NewInvalidRequestError("--token is required", nil)
			}
			source, err := cliutil.CacheAuthToken(token)
			if err != nil {
				return cliutil.NewExecutionError("could not cache token", err)
			}
			fmt.Printf("%s cached bearer token (%s)\n", cliutil.StatusOK.Render(cliutil.SymbolOK), source)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token to cache")
	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the locally cached bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cliutil.ClearCachedAuthToken(); err != nil {
				return cliutil.NewExecutionError("could not clear cached token", err)
			}
			fmt.Printf("%s cleared cached bearer token\n", cliutil.StatusOK.Render(cliutil.SymbolOK))
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a bearer token is cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			if source := cliutil.CachedAuthTokenSource(); source != "" {
				fmt.Printf("%s bearer token cached (%s)\n", cliutil.StatusOK.Render(cliutil.SymbolOK), source)
				return nil
			}
			fmt.Printf("%s no cached bearer token; set APENGINE_TOKEN or run \"apengine auth login\"\n", cliutil.StatusWarn.Render(cliutil.SymbolWarn))
			return nil
		},
	}
}
