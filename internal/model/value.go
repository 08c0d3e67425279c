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

// Package model holds the canonical data types shared by every component:
// Process, IODef, Job, Provider, data-source mappings, and the tagged I/O
// value variant that flows between the reconciler, the fetcher, and the
// Application Package interpreters. No component introspects "whatever
// shape came in" — every cross-component boundary consumes or produces a
// Value.
package model

import "fmt"

// ValueKind discriminates the tagged Value variant.
type ValueKind string

const (
	KindLiteral ValueKind = "literal"
	KindComplex ValueKind = "complex"
	KindArray   ValueKind = "array"
	KindBBox    ValueKind = "bbox"
)

// Value is a tagged variant carrying one rendered I/O value. Exactly one
// of the kind-specific fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind

	// Literal holds a scalar for KindLiteral: int64, float64, string,
	// bool, or a RFC3339 date-time string.
	Literal any

	// Complex holds a staged file reference for KindComplex.
	Complex *ComplexValue

	// Array holds an ordered list of element values for KindArray. Every
	// element shares the same kind (enforced by the reconciler).
	Array []Value

	// BBox holds a bounding box for KindBBox.
	BBox *BBoxValue
}

// ComplexValue is a staged (or not-yet-staged) complex input/output.
type ComplexValue struct {
	// Href is the original reference (before staging) or a result URL
	// (after staging, subject to outputTransmission).
	Href string

	// LocalPath is set once C1 has staged the reference to a local file.
	LocalPath string

	MediaType string
	Encoding  string
}

// BBoxValue is a bounding box literal (OGC bbox encoding).
type BBoxValue struct {
	Lower []float64
	Upper []float64
	CRS   string
}

// String renders a Value for logging/debugging. Not used for wire
// serialization.
func (v Value) String() string {
	switch v.Kind {
	case KindLiteral:
		return fmt.Sprintf("%v", v.Literal)
	case KindComplex:
		if v.Complex == nil {
			return "<complex:nil>"
		}
		return fmt.Sprintf("<complex:%s>", v.Complex.Href)
	case KindArray:
		return fmt.Sprintf("<array:%d>", len(v.Array))
	case KindBBox:
		return "<bbox>"
	default:
		return "<unknown>"
	}
}
