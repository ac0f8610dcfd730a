/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/megumew/nooku/internal/events"
	"github.com/megumew/nooku/internal/transcode"
)

// The pipeline binary is stubbed with /bin/true so the process exits
// immediately, which from the sink's point of view is one completed cycle.
func TestLoopEventPublishedPerCycle(t *testing.T) {
	bus := events.NewBus()
	loops := bus.Subscribe(events.EventTrackLoop)

	sink := NewGstSink("true", "room-1", bus, zerolog.Nop())
	handle, err := sink.Play(context.Background(), &transcode.Track{Ref: "000_a.mp3", Path: "/tmp/a.wav"}, Options{Volume: 1.0, Loop: true})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	defer func() { _ = handle.Stop() }()

	select {
	case payload := <-loops:
		if payload["room_id"] != "room-1" {
			t.Errorf("room_id = %v, want room-1", payload["room_id"])
		}
		if payload["ref"] != "000_a.mp3" {
			t.Errorf("ref = %v, want 000_a.mp3", payload["ref"])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no loop event within 5s")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	bus := events.NewBus()
	sink := NewGstSink("true", "room-1", bus, zerolog.Nop())

	handle, err := sink.Play(context.Background(), &transcode.Track{Ref: "000_a.mp3", Path: "/tmp/a.wav"}, Options{Volume: 1.0})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := handle.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := handle.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestPlayReplacesPreviousTrack(t *testing.T) {
	bus := events.NewBus()
	sink := NewGstSink("true", "room-1", bus, zerolog.Nop())
	ctx := context.Background()

	first, err := sink.Play(ctx, &transcode.Track{Ref: "000_a.mp3", Path: "/tmp/a.wav"}, Options{Volume: 1.0})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	second, err := sink.Play(ctx, &transcode.Track{Ref: "001_b.mp3", Path: "/tmp/b.wav"}, Options{Volume: 1.0})
	if err != nil {
		t.Fatalf("second Play: %v", err)
	}
	defer func() { _ = second.Stop() }()

	// The replaced handle must be stopped: another Stop is a no-op.
	if err := first.Stop(); err != nil {
		t.Errorf("Stop on replaced handle: %v", err)
	}
	if err := sink.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
