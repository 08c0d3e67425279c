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

package apengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/expr"
	"github.com/weaver-engine/ap-engine/internal/fetch"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/observability"
)

// maxAttempts bounds a tool's retry budget: the initial attempt plus up
// to two retries of a classified-temporary failure, per spec.md §4.C4.
const maxAttempts = 3

// Interpreter runs a single CommandLineTool invocation: staging inputs,
// assembling the command line, executing the container, classifying
// its exit, and collecting outputs.
type Interpreter struct {
	runtime     ContainerRuntime
	fetcher     *fetch.Fetcher
	stagingRoot string
}

// New creates an Interpreter. stagingRoot is the parent directory under
// which every job gets its own staging/working subdirectory.
func New(runtime ContainerRuntime, fetcher *fetch.Fetcher, stagingRoot string) *Interpreter {
	return &Interpreter{runtime: runtime, fetcher: fetcher, stagingRoot: stagingRoot}
}

// RunRequest is one invocation of a CommandLineTool for a single job
// (or workflow step).
type RunRequest struct {
	JobID     string
	StepID    string // empty for a single-step job; identifies the step within a workflow
	Tool      *apd.CommandLineTool
	Inputs    map[string]model.Value
	Collector *observability.Collector
}

// RunOutcome is the result of a completed (non-erroring) invocation.
type RunOutcome struct {
	Outputs        map[string]model.Value
	ExitCode       int
	Attempts       int
	Classification Classification
}

// Run stages inputs, executes the container (retrying temporary
// failures up to the tool's retry budget), and collects outputs. A
// permanent failure, or a temporary failure that exhausts its retry
// budget, is returned as *apperrors.PackageExecutionError.
func (in *Interpreter) Run(ctx context.Context, req RunRequest) (RunOutcome, error) {
	if req.Tool.Requirements.Docker == nil || req.Tool.Requirements.Docker.Image == "" {
		return RunOutcome{}, &apperrors.PackageStagingError{Message: "tool declares no DockerRequirement image"}
	}

	workDir, err := in.prepareWorkDir(req.JobID, req.StepID, req.Tool.Requirements.InitialWorkDir)
	if err != nil {
		return RunOutcome{}, &apperrors.PackageStagingError{Message: "failed to prepare working directory", Cause: err}
	}

	staged, err := in.stageInputs(ctx, req.JobID, req.Inputs)
	if err != nil {
		return RunOutcome{}, err
	}

	ev := expr.New(req.Tool.Requirements.ExpressionEnabled)
	rt := expr.Runtime{
		OutDir: workDir,
		TmpDir: workDir,
		Cores:  resourceOr(req.Tool.Requirements.Resources, func(r apd.ResourceRequirement) int { return r.CoresMax }, 1),
		RAM:    resourceOr(req.Tool.Requirements.Resources, func(r apd.ResourceRequirement) int { return r.RAMMaxMB }, 512),
	}

	argv, err := RenderCommandLine(req.Tool, staged, ev, rt)
	if err != nil {
		return RunOutcome{}, &apperrors.PackageStagingError{Message: "failed to render command line", Cause: err}
	}

	spec := RunSpec{
		Image:          req.Tool.Requirements.Docker.Image,
		Argv:           argv,
		Env:            envVars(req.Tool.Requirements.EnvVar),
		WorkDir:        workDir,
		NetworkEnabled: req.Tool.Requirements.Network != nil && req.Tool.Requirements.Network.Enabled,
		GPU:            req.Tool.Requirements.GPU,
		EffectiveUID:   req.Tool.Requirements.EffectiveUID,
		EffectiveGID:   req.Tool.Requirements.EffectiveGID,
	}
	if req.Tool.Requirements.Resources != nil {
		spec.Resources = *req.Tool.Requirements.Resources
	}

	var stdout bytes.Buffer
	var result RunResult
	var class Classification
	attempts := 0

	for attempts < maxAttempts {
		attempts++
		stdout.Reset()

		stdoutLines := req.Collector.LineWriter(ctx, observability.SourceStdout)
		stderrLines := req.Collector.LineWriter(ctx, observability.SourceStderr)
		spec.Stdout = io.MultiWriter(&stdout, stdoutLines)
		spec.Stderr = stderrLines

		result, err = in.runtime.Run(ctx, spec)
		_ = stdoutLines.Flush()
		_ = stderrLines.Flush()
		if err != nil {
			return RunOutcome{}, &apperrors.PackageExecutionError{ExitCode: -1, LastLogs: []string{err.Error()}}
		}

		class = ClassifyExitCode(req.Tool, result.ExitCode)
		if class != ClassTemporary {
			break
		}
	}

	if class != ClassSuccess {
		return RunOutcome{}, &apperrors.PackageExecutionError{ExitCode: result.ExitCode}
	}

	outputs, err := CollectOutputs(req.Tool, workDir, stdout.Bytes(), ev, rt, staged)
	if err != nil {
		return RunOutcome{}, err
	}

	return RunOutcome{Outputs: outputs, ExitCode: result.ExitCode, Attempts: attempts, Classification: class}, nil
}

// prepareWorkDir creates the per-invocation working directory and
// materializes any InitialWorkDir entries into it.
func (in *Interpreter) prepareWorkDir(jobID, stepID string, entries []apd.InitialWorkDirEntry) (string, error) {
	name := jobID
	if stepID != "" {
		name = jobID + "-" + stepID
	}
	dir := filepath.Join(in.stagingRoot, name, "work")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.EntryName)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, []byte(e.Contents), 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// stageInputs fetches every complex input (recursively through arrays)
// onto local disk, returning a copy of inputs with LocalPath populated.
func (in *Interpreter) stageInputs(ctx context.Context, jobID string, inputs map[string]model.Value) (map[string]model.Value, error) {
	out := make(map[string]model.Value, len(inputs))
	for id, v := range inputs {
		staged, err := in.stageValue(ctx, jobID, id, v)
		if err != nil {
			return nil, err
		}
		out[id] = staged
	}
	return out, nil
}

func (in *Interpreter) stageValue(ctx context.Context, jobID, inputID string, v model.Value) (model.Value, error) {
	switch v.Kind {
	case model.KindComplex:
		if v.Complex == nil || v.Complex.LocalPath != "" {
			return v, nil
		}
		staged, err := in.fetcher.Fetch(ctx, jobID, inputID, v.Complex.Href, in.stagingRoot)
		if err != nil {
			return model.Value{}, fmt.Errorf("apengine: stage input %q: %w", inputID, err)
		}
		v.Complex.LocalPath = staged.LocalPath
		if v.Complex.MediaType == "" {
			v.Complex.MediaType = staged.MediaType
		}
		return v, nil
	case model.KindArray:
		arr := make([]model.Value, len(v.Array))
		for i, e := range v.Array {
			staged, err := in.stageValue(ctx, jobID, fmt.Sprintf("%s[%d]", inputID, i), e)
			if err != nil {
				return model.Value{}, err
			}
			arr[i] = staged
		}
		v.Array = arr
		return v, nil
	default:
		return v, nil
	}
}

func envVars(req *apd.EnvVarRequirement) map[string]string {
	if req == nil {
		return nil
	}
	return req.Vars
}

// resourceOr lets a nil ResourceRequirement fall back to a sane
// runtime.* default for expression evaluation.
func resourceOr(r *apd.ResourceRequirement, get func(apd.ResourceRequirement) int, fallback int) int {
	if r == nil {
		return fallback
	}
	if v := get(*r); v > 0 {
		return v
	}
	return fallback
}

