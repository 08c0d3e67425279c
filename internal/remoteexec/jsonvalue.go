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

package remoteexec

import "github.com/weaver-engine/ap-engine/internal/model"

// toJSON renders a Value into the plain-JSON shape OGC API - Processes
// execute requests and ESGF-CWT both use for inputs/outputs.
func toJSON(v model.Value) any {
	switch v.Kind {
	case model.KindLiteral:
		return v.Literal
	case model.KindComplex:
		if v.Complex == nil {
			return nil
		}
		href := v.Complex.Href
		if v.Complex.LocalPath != "" {
			href = v.Complex.LocalPath
		}
		return map[string]any{"href": href, "type": v.Complex.MediaType}
	case model.KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = toJSON(e)
		}
		return out
	case model.KindBBox:
		if v.BBox == nil {
			return nil
		}
		return map[string]any{"bbox": append(append([]float64{}, v.BBox.Lower...), v.BBox.Upper...), "crs": v.BBox.CRS}
	default:
		return nil
	}
}

// fromJSON is the inverse of toJSON for outputs returned by a remote
// executor, used where the remote's wire shape matches this engine's.
func fromJSON(raw any) model.Value {
	switch t := raw.(type) {
	case map[string]any:
		if href, ok := t["href"].(string); ok {
			mediaType, _ := t["type"].(string)
			return model.Value{Kind: model.KindComplex, Complex: &model.ComplexValue{Href: href, MediaType: mediaType}}
		}
		return model.Value{Kind: model.KindLiteral, Literal: raw}
	case []any:
		elems := make([]model.Value, len(t))
		for i, e := range t {
			elems[i] = fromJSON(e)
		}
		return model.Value{Kind: model.KindArray, Array: elems}
	default:
		return model.Value{Kind: model.KindLiteral, Literal: raw}
	}
}
