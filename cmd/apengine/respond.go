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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/weaver-engine/ap-engine/internal/cliutil"
)

// apiCall issues an HTTP request against apengined and, on a non-2xx
// response, decodes the OGC exception body into an *cliutil.ExitError
// carrying the right process exit code for the status class.
func apiCall(method, path string, params map[string]string, body []byte, preferHeader string) ([]byte, error) {
	url := cliutil.BuildURL(path, params)
	preferName := ""
	if preferHeader != "" {
		preferName = "Prefer"
	}
	respBody, status, err := cliutil.Request(method, url, body, preferName, preferHeader)
	if err != nil {
		return nil, cliutil.NewExecutionError("request to apengined failed", err)
	}
	if status >= 200 && status < 300 {
		return respBody, nil
	}

	var oe ogcError
	detail := string(respBody)
	if jsonErr := json.Unmarshal(respBody, &oe); jsonErr == nil && oe.Title != "" {
		detail = oe.Title
		if oe.Detail != "" {
			detail = fmt.Sprintf("%s: %s", oe.Title, oe.Detail)
		}
	}

	switch {
	case status == http.StatusNotFound:
		return nil, cliutil.NewNotFoundError(detail, nil)
	case status == http.StatusBadGateway:
		return nil, cliutil.NewProviderError(detail, nil)
	case status >= 400 && status < 500:
		return nil, cliutil.NewInvalidRequestError(detail, nil)
	default:
		return nil, cliutil.NewExecutionError(detail, nil)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
