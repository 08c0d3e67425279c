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

// Command apengine is the operator-facing client for a running
// apengined: deploy and describe processes, execute and track jobs,
// and manage registered remote providers.
package main

import (
	"github.com/spf13/cobra"

	"github.com/weaver-engine/ap-engine/internal/cliutil"
)

// Version information, injected via ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// jsonOutput is set by the persistent --json flag and read by every
// subcommand's output formatting.
var jsonOutput bool

func main() {
	root := &cobra.Command{
		Use:   "apengine",
		Short: "Operate an AP Engine OGC API - Processes deployment",
		Long: `apengine is the command-line client for apengined, the OGC API -
Processes / Application Package execution engine. It deploys and
describes processes, submits and tracks jobs, and manages registered
remote providers.

Point it at a running daemon with APENGINE_URL (default
http://localhost:8080); set APENGINE_TOKEN to send a bearer token, or
cache one with "apengine auth login".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output machine-readable JSON")

	root.AddCommand(
		newDeployCommand(),
		newDescribeCommand(),
		newExecuteCommand(),
		newStatusCommand(),
		newMonitorCommand(),
		newResultsCommand(),
		newLogsCommand(),
		newDismissCommand(),
		newCapabilitiesCommand(),
		newRegisterCommand(),
		newUnregisterCommand(),
		newAuthCommand(),
		newVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		cliutil.HandleExitError(err)
	}
}
