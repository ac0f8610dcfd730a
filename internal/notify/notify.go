/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package notify pushes swap announcements to external services. It is
// strictly fire-and-forget: rotation never blocks on, or fails because
// of, a notification.
package notify

import (
	"context"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"
)

const sendTimeout = 10 * time.Second

// Announcer fans one message out to every configured shoutrrr URL.
type Announcer struct {
	sender *router.ServiceRouter
	logger zerolog.Logger
}

// NewAnnouncer validates the URLs and builds the sender. An empty URL
// list yields a working announcer that does nothing.
func NewAnnouncer(urls []string, logger zerolog.Logger) (*Announcer, error) {
	a := &Announcer{logger: logger.With().Str("component", "notify").Logger()}
	if len(urls) == 0 {
		return a, nil
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, err
	}
	sender.Timeout = sendTimeout
	sender.SetLogger(log.New(io.Discard, "", 0))
	a.sender = sender
	return a, nil
}

// Announce delivers the message to all targets. Failures are logged per
// target and otherwise swallowed.
func (a *Announcer) Announce(_ context.Context, message string) {
	if a.sender == nil {
		return
	}
	params := types.Params{}
	params.SetTitle("nooku")
	for _, err := range a.sender.Send(message, &params) {
		if err != nil {
			a.logger.Warn().Err(err).Msg("notification delivery failed")
		}
	}
}
