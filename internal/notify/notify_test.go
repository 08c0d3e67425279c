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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/weaver-engine/ap-engine/internal/model"
)

type fakeRenderer struct {
	rendered Rendered
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, _ Context) (Rendered, error) {
	return f.rendered, f.err
}

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestNotifier_NotifyTerminal_SendsToMailtoSubscriber(t *testing.T) {
	sender := &fakeSender{}
	n := New(SMTPConfig{Host: "smtp.example.org", Port: 587, From: "jobs@example.org"}, &fakeRenderer{
		rendered: Rendered{Subject: "Job finished", Body: "done"},
	})
	n.dial = func(SMTPConfig) gomailSender { return sender }

	err := n.NotifyTerminal(context.Background(), model.Subscriber{CallbackURL: "mailto:user@example.org"}, &model.Job{ID: "job-1", Status: model.JobSucceeded})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
}

func TestNotifier_NotifyTerminal_SkipsNonMailtoSubscriber(t *testing.T) {
	sender := &fakeSender{}
	n := New(SMTPConfig{}, &fakeRenderer{})
	n.dial = func(SMTPConfig) gomailSender { return sender }

	err := n.NotifyTerminal(context.Background(), model.Subscriber{CallbackURL: "https://example.org/hook"}, &model.Job{ID: "job-2"})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestNotifier_NotifyTerminal_PropagatesRenderError(t *testing.T) {
	n := New(SMTPConfig{}, &fakeRenderer{err: assert.AnError})
	n.dial = func(SMTPConfig) gomailSender { return &fakeSender{} }

	err := n.NotifyTerminal(context.Background(), model.Subscriber{CallbackURL: "mailto:user@example.org"}, &model.Job{ID: "job-3"})
	require.Error(t, err)
}
