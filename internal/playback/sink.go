/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback hands decoded tracks to an audio output and reports
// loop completions on the event bus.
package playback

import (
	"context"

	"github.com/megumew/nooku/internal/transcode"
)

// Options control how a track is installed on the sink.
type Options struct {
	Volume float64
	Loop   bool
}

// Handle controls one playing track.
type Handle interface {
	// SetVolume adjusts playback volume; for process-backed sinks the new
	// value applies from the next playback cycle.
	SetVolume(volume float64)
	// Stop tears the track down. Idempotent.
	Stop() error
}

// Sink accepts decoded tracks for playback. Implementations publish one
// EventTrackLoop per completed playback cycle of the active handle.
type Sink interface {
	Play(ctx context.Context, track *transcode.Track, opts Options) (Handle, error)
}
