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

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apengine"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/datasource"
	"github.com/weaver-engine/ap-engine/internal/model"
	"github.com/weaver-engine/ap-engine/internal/observability"
	"github.com/weaver-engine/ap-engine/internal/remoteexec"
	"github.com/weaver-engine/ap-engine/internal/tracing"
	"go.opentelemetry.io/otel"
)

// tracer is looked up lazily against whatever TracerProvider is
// globally registered (none, by default: see tracing.Config), following
// the package-level `otel.Tracer(...)` call-site idiom rather than
// threading a Tracer through every constructor.
var tracer = otel.Tracer("ap-engine/workflow")

// DefaultMaxConcurrency caps how many steps of one workflow run at
// once when more than that many are simultaneously ready, a
// conservative default for fanned-out work.
const DefaultMaxConcurrency = 4

// progressFloor/progressCeiling bound the percentage range the
// Workflow Interpreter reports: the Dispatcher already owns 0-2%
// (accepted/staged) and 95-100% (finalization), so step completion is
// mapped into the 2-95% band.
const (
	progressFloor   = 2
	progressCeiling = 95
)

// pollInterval is how often a remote step's handle is re-polled.
const pollInterval = 2 * time.Second

// Interpreter executes a multi-step Application Package as a DAG.
type Interpreter struct {
	local          *apengine.Interpreter
	registry       *remoteexec.Registry
	dataSource     *datasource.Mapping
	maxConcurrency int
}

// New creates a workflow Interpreter. local runs a step's
// CommandLineTool in-process; registry/dataSource resolve and dispatch
// steps that declare (or are mapped to) a remote executor. maxConcurrency
// <= 0 uses DefaultMaxConcurrency.
func New(local *apengine.Interpreter, registry *remoteexec.Registry, dataSource *datasource.Mapping, maxConcurrency int) *Interpreter {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Interpreter{local: local, registry: registry, dataSource: dataSource, maxConcurrency: maxConcurrency}
}

// RunRequest is one workflow execution for a job.
type RunRequest struct {
	JobID     string
	Workflow  *apd.Workflow
	Inputs    map[string]model.Value
	Collector *observability.Collector
}

type stepOutcome struct {
	id      string
	outputs map[string]model.Value
	err     error
}

// Run executes every step of req.Workflow to completion (or until the
// first step fails, which terminates the whole workflow), returning
// the workflow's declared outputs.
func (in *Interpreter) Run(ctx context.Context, req RunRequest) (map[string]model.Value, error) {
	g, err := buildGraph(req.Workflow)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := len(g.order)
	done := make(map[string]bool, total)
	inFlight := make(map[string]bool, total)
	stepOutputs := make(map[string]map[string]model.Value, total)
	results := make(chan stepOutcome, total)

	var firstErr error
	completed := 0

	launch := func(id string) {
		inFlight[id] = true
		step := g.steps[id]
		stepInputs := resolveStepInputs(step, req.Inputs, stepOutputs)
		go func() {
			outputs, err := in.dispatchStep(ctx, req.JobID, step, stepInputs, req.Collector)
			results <- stepOutcome{id: id, outputs: outputs, err: err}
		}()
	}

	for completed < total {
		if firstErr == nil {
			for _, id := range g.ready(done, inFlight) {
				if len(inFlight) >= in.maxConcurrency {
					break
				}
				launch(id)
			}
		}
		if len(inFlight) == 0 {
			break // nothing ready and nothing running: either done or blocked by a prior failure
		}

		r := <-results
		delete(inFlight, r.id)
		completed++

		if r.err != nil {
			if firstErr == nil {
				firstErr = &apperrors.WorkflowError{StepID: r.id, Message: "step failed", Cause: r.err}
				cancel()
				_ = req.Collector.Exception(ctx, "step_failed", fmt.Sprintf("step %q failed", r.id), r.err.Error())
			}
			continue
		}

		done[r.id] = true
		stepOutputs[r.id] = r.outputs
		_ = req.Collector.Progress(ctx, stepProgress(len(done), total), fmt.Sprintf("completed step %q", r.id))
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if len(done) != total {
		return nil, &apperrors.WorkflowError{Message: "workflow deadlocked: remaining steps never became ready"}
	}

	return resolveWorkflowOutputs(req.Workflow, stepOutputs), nil
}

// stepProgress maps a count of completed steps into the 2-95% band.
func stepProgress(completed, total int) int {
	if total == 0 {
		return progressCeiling
	}
	span := progressCeiling - progressFloor
	return progressFloor + completed*span/total
}

// remoteProtocolFor maps an Application Package requirement class name
// to the remoteexec.Protocol its Registry is keyed on.
func remoteProtocolFor(requirementClass string) (remoteexec.Protocol, bool) {
	switch requirementClass {
	case "WPS1Requirement":
		return remoteexec.ProtocolWPS1, true
	case "ESGF-CWTRequirement":
		return remoteexec.ProtocolESGFCWT, true
	default:
		return "", false
	}
}

// dispatchStep routes one step to its nested workflow, a remote
// executor, or the local Application Package Interpreter, per its
// declared requirements and the data-source mapping.
func (in *Interpreter) dispatchStep(ctx context.Context, jobID string, step *apd.WorkflowStep, inputs map[string]model.Value, collector *observability.Collector) (map[string]model.Value, error) {
	if step.Run == nil {
		return nil, &apperrors.WorkflowError{StepID: step.ID, Message: "step declares no run document"}
	}

	ctx, span := tracing.StartStep(ctx, tracer, step.ID, string(step.Run.Class))
	outputs, err := in.dispatchRunnableStep(ctx, jobID, step, inputs, collector)
	tracing.End(span, err)
	return outputs, err
}

// dispatchRunnableStep is dispatchStep's body once step.Run is known
// non-nil, split out so the span above wraps every return path.
func (in *Interpreter) dispatchRunnableStep(ctx context.Context, jobID string, step *apd.WorkflowStep, inputs map[string]model.Value, collector *observability.Collector) (map[string]model.Value, error) {
	if hint := step.Requirements.RemoteProtocol; hint != nil {
		protocol, ok := remoteProtocolFor(hint.Protocol)
		if !ok {
			return nil, &apperrors.WorkflowError{StepID: step.ID, Message: fmt.Sprintf("unknown remote protocol requirement %q", hint.Protocol)}
		}
		return in.dispatchRemote(ctx, protocol, hint.URL, hint.ProcessID, inputs)
	}

	switch step.Run.Class {
	case apd.ClassWorkflow:
		nested := New(in.local, in.registry, in.dataSource, in.maxConcurrency)
		return nested.Run(ctx, RunRequest{JobID: jobID, Workflow: step.Run.Workflow, Inputs: inputs, Collector: collector})

	case apd.ClassCommandLineTool:
		if in.dataSource != nil {
			if url, ok := in.resolveRemoteURL(inputs); ok {
				return in.dispatchRemote(ctx, remoteexec.ProtocolREST, url, step.ID, inputs)
			}
		}
		outcome, err := in.local.Run(ctx, apengine.RunRequest{
			JobID:     jobID,
			StepID:    step.ID,
			Tool:      step.Run.Tool,
			Inputs:    inputs,
			Collector: collector,
		})
		if err != nil {
			return nil, err
		}
		return outcome.Outputs, nil

	default:
		return nil, &apperrors.WorkflowError{StepID: step.ID, Message: fmt.Sprintf("unsupported run class %q", step.Run.Class)}
	}
}

// resolveRemoteURL checks every complex input's href against the
// data-source mapping, dispatching the step to the first matching
// executor rather than running it locally.
func (in *Interpreter) resolveRemoteURL(inputs map[string]model.Value) (string, bool) {
	var hrefs []string
	for _, v := range inputs {
		collectHrefs(v, &hrefs)
	}
	return in.dataSource.ResolveAny(hrefs)
}

func collectHrefs(v model.Value, out *[]string) {
	switch v.Kind {
	case model.KindComplex:
		if v.Complex != nil && v.Complex.Href != "" {
			*out = append(*out, v.Complex.Href)
		}
	case model.KindArray:
		for _, e := range v.Array {
			collectHrefs(e, out)
		}
	}
}

// dispatchRemote submits the step to the named protocol's executor and
// polls until it completes.
func (in *Interpreter) dispatchRemote(ctx context.Context, protocol remoteexec.Protocol, executorURL, processID string, inputs map[string]model.Value) (map[string]model.Value, error) {
	exec, ok := in.registry.Resolve(protocol)
	if !ok {
		return nil, &apperrors.WorkflowError{Message: fmt.Sprintf("no remote executor registered for protocol %q", protocol)}
	}

	handle, err := exec.Submit(ctx, remoteexec.StepRequest{ProcessID: processID, ExecutorURL: executorURL, Inputs: inputs})
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = exec.Dismiss(context.Background(), executorURL, handle)
			return nil, ctx.Err()
		case <-ticker.C:
			status, err := exec.Poll(ctx, executorURL, handle)
			if err != nil {
				return nil, err
			}
			if !status.Done {
				continue
			}
			if status.Failed {
				cause := status.Cause
				if cause == nil {
					cause = fmt.Errorf("%s", status.Message)
				}
				return nil, cause
			}
			return status.Outputs, nil
		}
	}
}

// resolveStepInputs builds one step's input map by following its `in`
// references to either a workflow input or an upstream step's output.
func resolveStepInputs(step *apd.WorkflowStep, workflowInputs map[string]model.Value, stepOutputs map[string]map[string]model.Value) map[string]model.Value {
	out := make(map[string]model.Value, len(step.In))
	for localID, ref := range step.In {
		if srcStep, ok := stepSource(ref); ok {
			outID := ref[len(srcStep)+1:]
			if v, ok := stepOutputs[srcStep][outID]; ok {
				out[localID] = v
			}
			continue
		}
		if v, ok := workflowInputs[ref]; ok {
			out[localID] = v
		}
	}
	return out
}

// resolveWorkflowOutputs maps the workflow's declared outputs to their
// source step's result.
func resolveWorkflowOutputs(wf *apd.Workflow, stepOutputs map[string]map[string]model.Value) map[string]model.Value {
	out := make(map[string]model.Value, len(wf.Outputs))
	for _, o := range wf.Outputs {
		srcStep, isStepRef := stepSource(o.Source)
		if !isStepRef {
			continue
		}
		outID := o.Source[len(srcStep)+1:]
		if v, ok := stepOutputs[srcStep][outID]; ok {
			out[o.ID] = v
		}
	}
	return out
}
