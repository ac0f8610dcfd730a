/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewAnnouncerWithoutURLs(t *testing.T) {
	a, err := NewAnnouncer(nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAnnouncer: %v", err)
	}
	// Must be a safe no-op.
	a.Announce(context.Background(), "hello")
}

func TestNewAnnouncerRejectsBadURL(t *testing.T) {
	if _, err := NewAnnouncer([]string{"not-a-service-url"}, zerolog.Nop()); err == nil {
		t.Fatal("NewAnnouncer accepted a malformed service URL")
	}
}

func TestNewAnnouncerAcceptsGenericWebhook(t *testing.T) {
	a, err := NewAnnouncer([]string{"generic://example.com/hook"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAnnouncer: %v", err)
	}
	if a.sender == nil {
		t.Error("sender not built for a valid URL")
	}
}
