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

// Package wps1shim provides just enough WPS-1.0.0/2.0.0 XML parsing to
// let the Workflow Interpreter (C5) dispatch a step to a legacy WPS
// provider: parsing the ExecuteResponse into a status the
// remote-executor adapter can poll. The Execute request itself is built
// by that adapter, not here.
// It is a thin compatibility shim, not a general WPS client.
package wps1shim

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
)

var (
	doctypePattern = regexp.MustCompile(`(?i)<!DOCTYPE`)
	entityPattern  = regexp.MustCompile(`(?i)<!ENTITY`)
)

// scanForXXE rejects XML carrying DOCTYPE/ENTITY declarations before it
// ever reaches encoding/xml.Unmarshal.
func scanForXXE(data []byte) error {
	if doctypePattern.Match(data) {
		return fmt.Errorf("wps1shim: DOCTYPE declarations are not allowed in provider responses")
	}
	if entityPattern.Match(data) {
		return fmt.Errorf("wps1shim: ENTITY declarations are not allowed in provider responses")
	}
	return nil
}

// ExecuteResponse is the subset of a WPS ExecuteResponse document this
// engine needs: status, percent complete, exception report, and
// output references/values.
type ExecuteResponse struct {
	XMLName        xml.Name `xml:"ExecuteResponse"`
	StatusLocation string   `xml:"statusLocation,attr"`
	Status         Status   `xml:"Status"`
	Outputs        []Output `xml:"ProcessOutputs>Output"`
}

// Status is the WPS <Status> element; exactly one child is populated.
type Status struct {
	Accepted  *struct{}       `xml:"ProcessAccepted"`
	Started   *ProcessStarted `xml:"ProcessStarted"`
	Succeeded *struct{}       `xml:"ProcessSucceeded"`
	Failed    *ProcessFailed  `xml:"ProcessFailed"`
}

// ProcessStarted carries the percent-complete attribute WPS reports
// while a process is running.
type ProcessStarted struct {
	PercentCompleted int    `xml:"percentCompleted,attr"`
	Message          string `xml:",chardata"`
}

// ProcessFailed wraps the OWS ExceptionReport WPS returns on failure.
type ProcessFailed struct {
	ExceptionReport ExceptionReport `xml:"ExceptionReport"`
}

// ExceptionReport is the OWS exception envelope.
type ExceptionReport struct {
	Exceptions []Exception `xml:"Exception"`
}

// Exception is one OWS exception entry.
type Exception struct {
	Code string `xml:"exceptionCode,attr"`
	Text string `xml:"ExceptionText"`
}

// Output is one <Output> element of ProcessOutputs: either an inline
// value (Data) or a reference (Reference href).
type Output struct {
	Identifier string     `xml:"Identifier"`
	Reference  *Reference `xml:"Reference"`
	Data       *Data      `xml:"Data"`
}

// Reference is an output returned by URL.
type Reference struct {
	Href     string `xml:"href,attr"`
	MimeType string `xml:"mimeType,attr"`
}

// Data is an inline literal or complex output value.
type Data struct {
	LiteralData string `xml:"LiteralData"`
	ComplexData string `xml:"ComplexData"`
}

// ParseExecuteResponse parses raw ExecuteResponse XML bytes, rejecting
// any document carrying XXE-style DOCTYPE/ENTITY declarations.
func ParseExecuteResponse(data []byte) (*ExecuteResponse, error) {
	if err := scanForXXE(data); err != nil {
		return nil, err
	}
	var resp ExecuteResponse
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false // WPS providers are inconsistent about namespace prefixes
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("wps1shim: decode ExecuteResponse: %w", err)
	}
	return &resp, nil
}

// NormalizedStatus buckets the parsed Status into the engine's own
// progress/status vocabulary.
type NormalizedStatus struct {
	Done       bool
	Failed     bool
	Percent    int
	Message    string
	Exceptions []Exception
}

// Normalize reduces an ExecuteResponse's Status into NormalizedStatus.
func (r *ExecuteResponse) Normalize() NormalizedStatus {
	switch {
	case r.Status.Succeeded != nil:
		return NormalizedStatus{Done: true, Percent: 100}
	case r.Status.Failed != nil:
		return NormalizedStatus{
			Done:       true,
			Failed:     true,
			Exceptions: r.Status.Failed.ExceptionReport.Exceptions,
		}
	case r.Status.Started != nil:
		return NormalizedStatus{Percent: r.Status.Started.PercentCompleted, Message: r.Status.Started.Message}
	default:
		return NormalizedStatus{Percent: 0}
	}
}
