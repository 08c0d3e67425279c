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

// Package ioreconcile implements the I/O Reconciler (C3): it merges the
// declarative process-description I/O with the AP-declared I/O into a
// single canonical IODef list. The reconciler is pure: the same inputs
// always yield the same canonical list, byte-for-byte after
// serialization.
package ioreconcile

import (
	"fmt"

	"github.com/weaver-engine/ap-engine/internal/apd"
	"github.com/weaver-engine/ap-engine/internal/apperrors"
	"github.com/weaver-engine/ap-engine/internal/model"
)

// knownOntologies maps bare media-type-ish tokens found in AP `format`
// fields to a canonical media type, standing in for EDAM/IANA lookup.
var knownOntologies = map[string]string{
	"edam:format_2330": "text/plain",
	"edam:format_3548": "application/json",
	"edam:format_2332": "application/xml",
	"iana:text/plain":  "text/plain",
	"iana:image/tiff":  "image/tiff",
}

// Reconcile merges description (possibly empty) with the AP's flattened
// input or output list, in that order, per spec.md §4.C3.
func Reconcile(description []model.IODef, apIO []apd.InputOrOutput, descMaxOccurs map[string]int) ([]model.IODef, error) {
	byID := make(map[string]*model.IODef, len(description))
	var order []string
	for i := range description {
		d := description[i]
		byID[d.ID] = &d
		order = append(order, d.ID)
	}

	apByID := make(map[string]apd.InputOrOutput, len(apIO))
	for _, a := range apIO {
		apByID[a.ID] = a
	}

	// Rule 2: a description-only I/O with no AP counterpart is rejected.
	for _, id := range order {
		if _, ok := apByID[id]; !ok {
			return nil, &apperrors.ValidationError{Field: id, Message: "IOReconcileError: description I/O has no AP counterpart"}
		}
	}

	// Rule 1 + 7: union keys, preserving description order, then
	// appending AP-only I/Os in AP order.
	for _, a := range apIO {
		if _, ok := byID[a.ID]; !ok {
			d := model.IODef{ID: a.ID, Title: a.ID}
			byID[a.ID] = &d
			order = append(order, a.ID)
		}
	}

	result := make([]model.IODef, 0, len(order))
	for _, id := range order {
		d := byID[id]
		a, hasAP := apByID[id]
		if hasAP {
			merged, err := mergeOne(*d, a, descMaxOccurs[id])
			if err != nil {
				return nil, err
			}
			result = append(result, merged)
		} else {
			result = append(result, *d)
		}
	}
	return result, nil
}

func mergeOne(d model.IODef, a apd.InputOrOutput, descMaxOccurs int) (model.IODef, error) {
	d.ID = a.ID
	if d.Title == "" {
		d.Title = a.ID
	}

	// Rule 3: types.
	switch {
	case a.Type.Base == "File":
		d.Kind = model.IOKindComplex
	case a.Type.Base == "enum":
		d.Kind = model.IOKindLiteral
		d.DataType = model.DataTypeString
		if len(d.AllowedValues) == 0 {
			d.AllowedValues = a.Type.Symbols
		}
	default:
		d.Kind = model.IOKindLiteral
		if d.DataType == "" {
			d.DataType = literalTypeFromAP(a.Type.Base)
		}
	}

	// Rule 4: multiplicity.
	if a.Type.IsArray {
		if descMaxOccurs > 0 {
			d.MaxOccurs = descMaxOccurs
		} else if d.MaxOccurs == 0 {
			d.MaxOccurs = model.Unbounded
		}
		if d.MinOccurs == 0 && descMaxOccurs == 0 {
			d.MinOccurs = 1
		}
	} else if d.MaxOccurs == 0 {
		d.MaxOccurs = 1
	}
	if a.Type.Nullable || a.Default != nil {
		d.MinOccurs = 0
	}

	// Rule 5: formats.
	if d.Kind == model.IOKindComplex {
		merged := mergeFormats(d.Formats, a.Format)
		if len(merged) == 0 {
			merged = []model.Format{{MediaType: "text/plain", Default: true}}
		}
		d.Formats = merged
	}

	// Rule 6: defaults. Description value (already in d.DefaultValue)
	// overrides AP default; otherwise keep the AP default.
	if d.DefaultValue == nil && a.Default != nil {
		d.DefaultValue = a.Default
	}

	if err := d.Validate(); err != nil {
		return d, fmt.Errorf("ioreconcile: %s: %w", d.ID, err)
	}
	return d, nil
}

func literalTypeFromAP(base string) model.LiteralDataType {
	switch base {
	case "int", "long":
		return model.DataTypeInt
	case "float", "double":
		return model.DataTypeFloat
	case "boolean":
		return model.DataTypeBoolean
	default:
		return model.DataTypeString
	}
}

// mergeFormats unions two format lists by media type, deduplicating. If
// only one list is present, it is used as-is (resolved against known
// ontologies).
func mergeFormats(description []model.Format, apFormats []string) []model.Format {
	seen := map[string]bool{}
	var out []model.Format
	for _, f := range description {
		mt := resolveOntology(f.MediaType)
		if seen[mt] {
			continue
		}
		seen[mt] = true
		f.MediaType = mt
		out = append(out, f)
	}
	for _, raw := range apFormats {
		mt := resolveOntology(raw)
		if seen[mt] {
			continue
		}
		seen[mt] = true
		out = append(out, model.Format{MediaType: mt})
	}
	return out
}

func resolveOntology(token string) string {
	if mt, ok := knownOntologies[token]; ok {
		return mt
	}
	return token
}
