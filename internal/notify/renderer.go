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

package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

const plainSubject = "Job {{.Job.ID}} {{.Job.Status}}"

const plainBody = `Job {{.Job.ID}} (process {{.Job.ProcessID}}) reached status {{.Job.Status}}.
{{if .Job.Message}}{{.Job.Message}}
{{end}}`

// PlainRenderer is the engine's built-in Renderer: a bare-bones
// text/template notification, used whenever no richer renderer is
// configured. It is deliberately minimal since the actual message
// design is an external concern (notify.Renderer's doc comment).
type PlainRenderer struct {
	subject *template.Template
	body    *template.Template
}

// NewPlainRenderer parses the built-in templates once.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{
		subject: template.Must(template.New("subject").Parse(plainSubject)),
		body:    template.Must(template.New("body").Parse(plainBody)),
	}
}

func (r *PlainRenderer) Render(_ context.Context, nctx Context) (Rendered, error) {
	var subjectBuf, bodyBuf bytes.Buffer
	if err := r.subject.Execute(&subjectBuf, nctx); err != nil {
		return Rendered{}, fmt.Errorf("notify: render subject: %w", err)
	}
	if err := r.body.Execute(&bodyBuf, nctx); err != nil {
		return Rendered{}, fmt.Errorf("notify: render body: %w", err)
	}
	return Rendered{Subject: subjectBuf.String(), Body: bodyBuf.String()}, nil
}
