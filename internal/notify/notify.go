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

// Package notify delivers the single notification the core calls
// exactly once per job, on its final state transition: render a
// message for the job's subscribers and send it over SMTP. The message
// renderer itself is an external collaborator (its templates and
// copywriting are out of scope here); this package owns only the
// {to, job, settings} contract into that renderer and the SMTP
// delivery once a message comes back out.
package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/weaver-engine/ap-engine/internal/model"
)

// Context is everything a Renderer needs to produce a notification.
type Context struct {
	To  string
	Job *model.Job
}

// Rendered is the renderer's output: a ready-to-send message.
type Rendered struct {
	Subject string
	Body    string
	HTML    bool
}

// Renderer is the external template-rendering boundary named in
// spec.md §5 ("the notification email renderer"); this package never
// implements one, only calls it.
type Renderer interface {
	Render(ctx context.Context, nctx Context) (Rendered, error)
}

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Notifier renders and delivers one notification per terminal job
// transition. Subscribers without an email address (pure webhook
// callbacks) are skipped here; webhook delivery is handled by whichever
// component owns model.Subscriber.CallbackURL (the outward HTTP
// surface), not this package.
type Notifier struct {
	cfg      SMTPConfig
	renderer Renderer
	dial     func(cfg SMTPConfig) gomailSender
}

// gomailSender is the subset of *gomail.Dialer this package needs,
// narrowed so tests can substitute a fake without opening a socket.
type gomailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// New creates a Notifier that delivers over SMTP via cfg.
func New(cfg SMTPConfig, renderer Renderer) *Notifier {
	return &Notifier{
		cfg:      cfg,
		renderer: renderer,
		dial: func(cfg SMTPConfig) gomailSender {
			return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		},
	}
}

// NotifyTerminal renders and sends one notification for a job's final
// transition, addressed to the subscriber's decoded email. Subscribers
// only ever carry a callback URL at the model layer (webhook delivery,
// handled elsewhere); this method is a no-op unless sub.CallbackURL
// happens to be a mailto: URI, the one address form this package acts
// on.
func (n *Notifier) NotifyTerminal(ctx context.Context, sub model.Subscriber, j *model.Job) error {
	to, ok := mailtoAddress(sub.CallbackURL)
	if !ok {
		return nil
	}

	rendered, err := n.renderer.Render(ctx, Context{To: to, Job: j})
	if err != nil {
		return fmt.Errorf("notify: render: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", rendered.Subject)
	contentType := "text/plain"
	if rendered.HTML {
		contentType = "text/html"
	}
	m.SetBody(contentType, rendered.Body)

	if err := n.dial(n.cfg).DialAndSend(m); err != nil {
		return fmt.Errorf("notify: send to %s: %w", to, err)
	}
	return nil
}

func mailtoAddress(callbackURL string) (string, bool) {
	const prefix = "mailto:"
	if len(callbackURL) <= len(prefix) || callbackURL[:len(prefix)] != prefix {
		return "", false
	}
	return callbackURL[len(prefix):], true
}
