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

package httpapi

import (
	"fmt"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// decodeInputs turns an OGC API - Processes execute-request `inputs`
// object (already JSON-decoded into Go `any` values) into the tagged
// model.Value the rest of the engine operates on. A complex input is
// any JSON object carrying an "href" key; everything else is literal,
// recursing into arrays.
func decodeInputs(raw map[string]any) map[string]model.Value {
	out := make(map[string]model.Value, len(raw))
	for k, v := range raw {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v any) model.Value {
	switch t := v.(type) {
	case []any:
		arr := make([]model.Value, 0, len(t))
		for _, e := range t {
			arr = append(arr, decodeValue(e))
		}
		return model.Value{Kind: model.KindArray, Array: arr}
	case map[string]any:
		if href, ok := t["href"].(string); ok {
			cv := &model.ComplexValue{Href: href}
			if mt, ok := t["type"].(string); ok {
				cv.MediaType = mt
			}
			if enc, ok := t["encoding"].(string); ok {
				cv.Encoding = enc
			}
			return model.Value{Kind: model.KindComplex, Complex: cv}
		}
		if bbox, ok := t["bbox"].([]any); ok {
			return model.Value{Kind: model.KindBBox, BBox: decodeBBox(bbox, t)}
		}
		return model.Value{Kind: model.KindLiteral, Literal: t}
	default:
		return model.Value{Kind: model.KindLiteral, Literal: t}
	}
}

func decodeBBox(coords []any, obj map[string]any) *model.BBoxValue {
	bb := &model.BBoxValue{}
	mid := len(coords) / 2
	for i, c := range coords {
		f, _ := toFloat(c)
		if i < mid {
			bb.Lower = append(bb.Lower, f)
		} else {
			bb.Upper = append(bb.Upper, f)
		}
	}
	if crs, ok := obj["crs"].(string); ok {
		bb.CRS = crs
	}
	return bb
}

func toFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// encodeValue renders a model.Value back to a JSON-ready `any`, the
// inverse of decodeValue, used for /jobs/{id}/outputs and /results.
func encodeValue(v model.Value) any {
	switch v.Kind {
	case model.KindLiteral:
		return v.Literal
	case model.KindComplex:
		if v.Complex == nil {
			return nil
		}
		out := map[string]any{"href": v.Complex.Href}
		if v.Complex.MediaType != "" {
			out["type"] = v.Complex.MediaType
		}
		if v.Complex.Encoding != "" {
			out["encoding"] = v.Complex.Encoding
		}
		return out
	case model.KindArray:
		arr := make([]any, 0, len(v.Array))
		for _, e := range v.Array {
			arr = append(arr, encodeValue(e))
		}
		return arr
	case model.KindBBox:
		if v.BBox == nil {
			return nil
		}
		coords := append(append([]float64{}, v.BBox.Lower...), v.BBox.Upper...)
		return map[string]any{"bbox": coords, "crs": v.BBox.CRS}
	default:
		return fmt.Sprintf("%v", v)
	}
}

func encodeValues(m map[string]model.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = encodeValue(v)
	}
	return out
}

// encodeResult renders one model.Result per the requested transmission
// mode: "reference" always surfaces Href (when present); "value" inlines
// whatever was captured, falling back to a reference if the output was
// never materialized inline.
func encodeResult(r model.Result, transmission model.OutputTransmission) any {
	if transmission == model.TransmissionReference && r.Href != "" {
		out := map[string]any{"href": r.Href}
		if r.MediaType != "" {
			out["type"] = r.MediaType
		}
		return out
	}
	if r.Href != "" {
		out := map[string]any{"href": r.Href}
		if r.MediaType != "" {
			out["type"] = r.MediaType
		}
		return out
	}
	if v, ok := r.Value.(model.Value); ok {
		return encodeValue(v)
	}
	return r.Value
}
