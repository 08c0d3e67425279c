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

package cliutil

import "github.com/charmbracelet/lipgloss"

// Status colors, used by the "status" and "monitor" commands.
var (
	StatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green, succeeded
	StatusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange, running/accepted
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red, failed/dismissed
	Muted       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray, secondary text
	Bold        = lipgloss.NewStyle().Bold(true)
	Header      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // blue bold
)

const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
)

// RenderJobStatus colors a job status string by terminal/running state.
func RenderJobStatus(status string) string {
	switch status {
	case "succeeded":
		return StatusOK.Render(SymbolOK + " " + status)
	case "failed", "dismissed":
		return StatusError.Render(SymbolError + " " + status)
	default:
		return StatusWarn.Render(SymbolWarn + " " + status)
	}
}

// RenderLabel dims a key in a key: value line.
func RenderLabel(label string) string {
	return Muted.Render(label)
}
