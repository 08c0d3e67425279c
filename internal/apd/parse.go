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

package apd

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawDocument mirrors the on-the-wire Application Package shape (JSON or
// YAML, both parsed the same way via yaml.v3 which is a superset of JSON).
type rawDocument struct {
	Class        string                 `yaml:"class"`
	BaseCommand  yaml.Node              `yaml:"baseCommand"`
	Inputs       map[string]rawParam    `yaml:"inputs"`
	Outputs      map[string]rawParam    `yaml:"outputs"`
	Steps        map[string]rawStep     `yaml:"steps"`
	Requirements map[string]yaml.Node   `yaml:"requirements"`
	Hints        map[string]yaml.Node   `yaml:"hints"`
	SuccessCodes []int                  `yaml:"successCodes"`
	TempFail     []int                  `yaml:"temporaryFailCodes"`
	PermFail     []int                  `yaml:"permanentFailCodes"`
}

type rawParam struct {
	Type         yaml.Node `yaml:"type"`
	Default      any       `yaml:"default"`
	Format       yaml.Node `yaml:"format"`
	OutputSource string    `yaml:"outputSource"`
	Binding *struct {
		Position      int    `yaml:"position"`
		Prefix        string `yaml:"prefix"`
		Separate      *bool  `yaml:"separate"`
		ItemSeparator string `yaml:"itemSeparator"`
		ValueFrom     string `yaml:"valueFrom"`
		Glob          string `yaml:"glob"`
		LoadStdout    bool   `yaml:"loadContents"`
		OutputEval    string `yaml:"outputEval"`
	} `yaml:"inputBinding,omitempty"`
	OutputBinding *struct {
		Glob       string `yaml:"glob"`
		LoadStdout bool   `yaml:"loadContents"`
		OutputEval string `yaml:"outputEval"`
	} `yaml:"outputBinding,omitempty"`
}

type rawStep struct {
	Run          yaml.Node            `yaml:"run"`
	In           map[string]string    `yaml:"in"`
	Out          []string             `yaml:"out"`
	Requirements map[string]yaml.Node `yaml:"requirements"`
	Hints        map[string]yaml.Node `yaml:"hints"`
}

// Parse decodes a JSON or YAML Application Package body into a Document.
func Parse(body []byte) (*Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("apd: parse: %w", err)
	}

	switch Class(raw.Class) {
	case ClassCommandLineTool:
		tool, err := parseTool(&raw)
		if err != nil {
			return nil, err
		}
		return &Document{Class: ClassCommandLineTool, Tool: tool}, nil
	case ClassWorkflow:
		wf, err := parseWorkflow(&raw)
		if err != nil {
			return nil, err
		}
		return &Document{Class: ClassWorkflow, Workflow: wf}, nil
	default:
		return nil, fmt.Errorf("apd: unsupported or missing class %q", raw.Class)
	}
}

func parseTool(raw *rawDocument) (*CommandLineTool, error) {
	t := &CommandLineTool{
		Class:              ClassCommandLineTool,
		SuccessCodes:       defaultOrList(raw.SuccessCodes, []int{0}),
		TemporaryFailCodes: raw.TempFail,
		PermanentFailCodes: raw.PermFail,
	}
	if !raw.BaseCommand.IsZero() {
		cmd, err := decodeStringOrList(&raw.BaseCommand)
		if err != nil {
			return nil, fmt.Errorf("apd: baseCommand: %w", err)
		}
		t.BaseCommand = cmd
	}
	ins, err := parseParams(raw.Inputs, true)
	if err != nil {
		return nil, err
	}
	t.Inputs = ins
	outs, err := parseOutputs(raw.Outputs)
	if err != nil {
		return nil, err
	}
	t.Outputs = outs
	t.Requirements = parseRequirements(raw.Requirements, raw.Hints)
	return t, nil
}

func parseWorkflow(raw *rawDocument) (*Workflow, error) {
	wf := &Workflow{Class: ClassWorkflow}
	ins, err := parseParams(raw.Inputs, true)
	if err != nil {
		return nil, err
	}
	wf.Inputs = ins
	outs, err := parseOutputs(raw.Outputs)
	if err != nil {
		return nil, err
	}
	wf.Outputs = outs

	for id, rs := range raw.Steps {
		var stepDoc *Document
		if !rs.Run.IsZero() {
			var body []byte
			body, err = yaml.Marshal(&rs.Run)
			if err != nil {
				return nil, fmt.Errorf("apd: step %s: %w", id, err)
			}
			stepDoc, err = Parse(body)
			if err != nil {
				return nil, fmt.Errorf("apd: step %s: %w", id, err)
			}
		}
		wf.Steps = append(wf.Steps, WorkflowStep{
			ID:           id,
			Run:          stepDoc,
			In:           rs.In,
			Out:          rs.Out,
			Requirements: parseRequirements(rs.Requirements, rs.Hints),
		})
	}
	return wf, nil
}

func parseParams(in map[string]rawParam, withBinding bool) ([]InputParameter, error) {
	var out []InputParameter
	for id, p := range in {
		ts, err := decodeTypeSpec(&p.Type)
		if err != nil {
			return nil, fmt.Errorf("apd: input %s: %w", id, err)
		}
		ip := InputParameter{ID: id, Type: ts, Default: p.Default}
		if fmts, err := decodeStringOrList(&p.Format); err == nil {
			ip.Format = fmts
		}
		if withBinding && p.Binding != nil {
			sep := true
			if p.Binding.Separate != nil {
				sep = *p.Binding.Separate
			}
			ip.Binding = &InputBinding{
				Position:      p.Binding.Position,
				Prefix:        p.Binding.Prefix,
				Separate:      sep,
				ItemSeparator: p.Binding.ItemSeparator,
				ValueFrom:     p.Binding.ValueFrom,
			}
		}
		out = append(out, ip)
	}
	return out, nil
}

func parseOutputs(in map[string]rawParam) ([]OutputParameter, error) {
	var out []OutputParameter
	for id, p := range in {
		ts, err := decodeTypeSpec(&p.Type)
		if err != nil {
			return nil, fmt.Errorf("apd: output %s: %w", id, err)
		}
		op := OutputParameter{ID: id, Type: ts, Source: p.OutputSource}
		if fmts, err := decodeStringOrList(&p.Format); err == nil {
			op.Format = fmts
		}
		if p.OutputBinding != nil {
			op.Binding = &OutputBinding{
				Glob:       p.OutputBinding.Glob,
				LoadStdout: p.OutputBinding.LoadStdout,
				OutputEval: p.OutputBinding.OutputEval,
			}
		}
		out = append(out, op)
	}
	return out, nil
}

func decodeTypeSpec(n *yaml.Node) (TypeSpec, error) {
	if n == nil || n.IsZero() {
		return TypeSpec{Base: "string"}, nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		base := n.Value
		ts := TypeSpec{Base: base}
		if strings.HasSuffix(base, "?") {
			ts.Nullable = true
			ts.Base = strings.TrimSuffix(base, "?")
		}
		if strings.HasSuffix(ts.Base, "[]") {
			ts.IsArray = true
			ts.Base = strings.TrimSuffix(ts.Base, "[]")
		}
		return ts, nil
	case yaml.SequenceNode:
		// Union type, e.g. [null, string] meaning optional string.
		ts := TypeSpec{}
		for _, item := range n.Content {
			if item.Value == "null" {
				ts.Nullable = true
				continue
			}
			sub, err := decodeTypeSpec(item)
			if err != nil {
				return ts, err
			}
			ts.Base = sub.Base
			ts.IsArray = sub.IsArray
			ts.Symbols = sub.Symbols
		}
		return ts, nil
	case yaml.MappingNode:
		m := map[string]yaml.Node{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = *n.Content[i+1]
		}
		typeNode := m["type"]
		switch typeNode.Value {
		case "array":
			itemsNode := m["items"]
			items, err := decodeTypeSpec(&itemsNode)
			if err != nil {
				return TypeSpec{}, err
			}
			items.IsArray = true
			return items, nil
		case "enum":
			symNode, ok := m["symbols"]
			var symbols []string
			if ok {
				for _, s := range symNode.Content {
					symbols = append(symbols, s.Value)
				}
			}
			return TypeSpec{Base: "enum", Symbols: symbols}, nil
		default:
			return decodeTypeSpec(&typeNode)
		}
	default:
		return TypeSpec{Base: "string"}, nil
	}
}

func decodeStringOrList(n *yaml.Node) ([]string, error) {
	if n == nil || n.IsZero() {
		return nil, fmt.Errorf("empty node")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		var out []string
		for _, c := range n.Content {
			out = append(out, c.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar or sequence")
	}
}

func parseRequirements(reqs, hints map[string]yaml.Node) Requirements {
	var r Requirements
	apply := func(m map[string]yaml.Node) {
		for class, node := range m {
			switch class {
			case "DockerRequirement":
				var d struct {
					Pull string `yaml:"dockerPull"`
				}
				_ = node.Decode(&d)
				r.Docker = &DockerRequirement{Image: d.Pull}
			case "ResourceRequirement":
				var rr struct {
					CoresMin int `yaml:"coresMin"`
					CoresMax int `yaml:"coresMax"`
					RAMMin   int `yaml:"ramMin"`
					RAMMax   int `yaml:"ramMax"`
					TmpDir   int `yaml:"tmpdirMin"`
					OutDir   int `yaml:"outdirMin"`
				}
				_ = node.Decode(&rr)
				r.Resources = &ResourceRequirement{
					CoresMin: rr.CoresMin, CoresMax: rr.CoresMax,
					RAMMinMB: rr.RAMMin, RAMMaxMB: rr.RAMMax,
					TmpDirMB: rr.TmpDir, OutDirMB: rr.OutDir,
				}
			case "NetworkAccess":
				var na struct {
					Enabled bool `yaml:"networkAccess"`
				}
				_ = node.Decode(&na)
				r.Network = &NetworkAccess{Enabled: na.Enabled}
			case "EnvVarRequirement":
				var ev struct {
					Vars map[string]string `yaml:"envDef"`
				}
				_ = node.Decode(&ev)
				r.EnvVar = &EnvVarRequirement{Vars: ev.Vars}
			case "InitialWorkDirRequirement":
				var iw struct {
					Listing []struct {
						EntryName string `yaml:"entryname"`
						Entry     string `yaml:"entry"`
					} `yaml:"listing"`
				}
				_ = node.Decode(&iw)
				for _, e := range iw.Listing {
					r.InitialWorkDir = append(r.InitialWorkDir, InitialWorkDirEntry{EntryName: e.EntryName, Contents: e.Entry})
				}
			case "WPS1Requirement", "ESGF-CWTRequirement":
				var rp struct {
					URL       string `yaml:"url"`
					ProcessID string `yaml:"process"`
				}
				_ = node.Decode(&rp)
				r.RemoteProtocol = &RemoteProtocolHint{Protocol: class, URL: rp.URL, ProcessID: rp.ProcessID}
			case "InlineJavascriptRequirement", "ExpressionRequirement":
				r.ExpressionEnabled = true
			case "cuda", "GPURequirement":
				var g struct {
					Count int    `yaml:"count"`
					Model string `yaml:"model"`
				}
				_ = node.Decode(&g)
				r.GPU = &GPUHint{Count: g.Count, Model: g.Model}
			}
		}
	}
	apply(reqs)
	apply(hints)
	return r
}

func defaultOrList(v []int, def []int) []int {
	if len(v) == 0 {
		return def
	}
	return v
}
