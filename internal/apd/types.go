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

// Package apd models the Application Package (a CWL-equivalent tree):
// the declarative description of a containerized command or a multi-step
// Workflow that the engine interprets. It covers parsing and structural
// validation only; execution lives in internal/apengine and
// internal/workflow.
package apd

// Class discriminates the two Application Package shapes the engine
// understands.
type Class string

const (
	ClassCommandLineTool Class = "CommandLineTool"
	ClassWorkflow        Class = "Workflow"
)

// TypeSpec is a CWL-equivalent type expression: a bare type name
// ("File", "string", "int", ...), an array ("type[]" or {items:...}), or
// a nullable union (append "?").
type TypeSpec struct {
	Base     string
	IsArray  bool
	Nullable bool
	Symbols  []string // populated when Base == "enum"
}

// InputParameter is one declared input of a CommandLineTool or Workflow.
type InputParameter struct {
	ID      string
	Type    TypeSpec
	Default any
	Format  []string // media type / ontology URIs (EDAM, IANA)

	// Binding, when non-nil, controls how this input is rendered into
	// the container's command line.
	Binding *InputBinding
}

// InputBinding controls command-line rendering of one input.
type InputBinding struct {
	Position      int
	Prefix        string
	Separate      bool
	ItemSeparator string
	ValueFrom     string // restricted expression, e.g. "$(inputs.x)"
}

// OutputParameter is one declared output of a CommandLineTool or
// Workflow.
type OutputParameter struct {
	ID     string
	Type   TypeSpec
	Format []string

	// Binding controls how the output value is collected. Only
	// meaningful on a CommandLineTool's outputs.
	Binding *OutputBinding

	// Source names the producer of a Workflow-level output, in the
	// same "step/out_id" form as WorkflowStep.In. Unused on a
	// CommandLineTool's outputs.
	Source string
}

// OutputBinding controls output collection after a successful container
// run.
type OutputBinding struct {
	Glob       string
	LoadStdout bool
	OutputEval string // restricted expression over the staged result
}

// ResourceRequirement bounds cores/RAM/disk for a CommandLineTool.
type ResourceRequirement struct {
	CoresMin int
	CoresMax int
	RAMMinMB int
	RAMMaxMB int
	TmpDirMB int
	OutDirMB int
}

// DockerRequirement names the container image to run.
type DockerRequirement struct {
	Image string // explicit tag required; "latest" permitted but warned
}

// NetworkAccess controls whether the container may reach the network.
// Default is denied per spec.md §4.C4.
type NetworkAccess struct {
	Enabled bool
}

// EnvVarRequirement sets environment variables inside the container.
type EnvVarRequirement struct {
	Vars map[string]string
}

// InitialWorkDirEntry materializes a constant file into the working
// directory before execution ("staging files").
type InitialWorkDirEntry struct {
	EntryName string
	Contents  string
}

// RemoteProtocolHint names a remote-protocol adapter a Workflow step
// should dispatch to instead of running locally.
type RemoteProtocolHint struct {
	Protocol string // "WPS1Requirement" | "ESGF-CWTRequirement"
	URL      string
	ProcessID string
}

// GPUHint is passed through to the container runtime untouched.
type GPUHint struct {
	Count int
	Model string
}

// Requirements bundles every hint/requirement a CommandLineTool or
// Workflow step may declare.
type Requirements struct {
	Docker        *DockerRequirement
	Resources     *ResourceRequirement
	Network       *NetworkAccess
	EnvVar        *EnvVarRequirement
	InitialWorkDir []InitialWorkDirEntry
	RemoteProtocol *RemoteProtocolHint
	GPU           *GPUHint
	ExpressionEnabled bool
	EffectiveUID  *int
	EffectiveGID  *int
}

// CommandLineTool is a single-step Application Package.
type CommandLineTool struct {
	Class       Class
	BaseCommand []string
	Inputs      []InputParameter
	Outputs     []OutputParameter
	Requirements Requirements

	SuccessCodes        []int
	TemporaryFailCodes  []int
	PermanentFailCodes  []int
}

// WorkflowStep is one node of a Workflow DAG.
type WorkflowStep struct {
	ID  string
	Run *Document // the step's own Application Package (tool or nested workflow)

	// In maps the step's input IDs to either "workflow_input_id" or
	// "other_step/out_id".
	In map[string]string

	// Out lists the step's output IDs that are eligible as sources for
	// `in` edges of later steps or as workflow outputs.
	Out []string

	Requirements Requirements
}

// Workflow is a multi-step Application Package.
type Workflow struct {
	Class   Class
	Inputs  []InputParameter
	Outputs []OutputParameter
	Steps   []WorkflowStep
}

// Document is the parsed Application Package: exactly one of Tool or
// Workflow is non-nil, selected by Class.
type Document struct {
	Class    Class
	Tool     *CommandLineTool
	Workflow *Workflow
}

// IOIDs returns the declared input and output IDs of the document,
// regardless of whether it is a tool or a workflow.
func (d *Document) IOIDs() (inputs, outputs []InputOrOutput) {
	switch d.Class {
	case ClassCommandLineTool:
		for _, in := range d.Tool.Inputs {
			inputs = append(inputs, InputOrOutput{ID: in.ID, Type: in.Type, Format: in.Format, Default: in.Default})
		}
		for _, out := range d.Tool.Outputs {
			outputs = append(outputs, InputOrOutput{ID: out.ID, Type: out.Type, Format: out.Format})
		}
	case ClassWorkflow:
		for _, in := range d.Workflow.Inputs {
			inputs = append(inputs, InputOrOutput{ID: in.ID, Type: in.Type, Format: in.Format, Default: in.Default})
		}
		for _, out := range d.Workflow.Outputs {
			outputs = append(outputs, InputOrOutput{ID: out.ID, Type: out.Type, Format: out.Format})
		}
	}
	return inputs, outputs
}

// InputOrOutput is a flattened view used by the I/O Reconciler so it
// doesn't need to know about CommandLineTool vs Workflow.
type InputOrOutput struct {
	ID      string
	Type    TypeSpec
	Format  []string
	Default any
}
