/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"context"
	"sync"
	"time"

	"github.com/megumew/nooku/internal/events"
	"github.com/megumew/nooku/internal/playback"
	"github.com/megumew/nooku/internal/telemetry"
	"github.com/megumew/nooku/internal/transcode"
	"github.com/megumew/nooku/internal/weather"
	"github.com/rs/zerolog"
)

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Playing
)

// String returns the lowercase state name.
func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Session is one room's rotation engine instance. Its weather cache and
// prefetch buffer belong to it alone; nothing is shared across rooms.
type Session struct {
	ID      string
	created time.Time

	weather *weather.Cache
	keys    *KeySource
	buffer  *PrefetchBuffer
	sink    playback.Sink
	bus     *events.Bus
	volume  float64
	logger  zerolog.Logger

	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	currentKey Key
	handle     playback.Handle
}

// swapTo installs a decoded track as the active one. The decode already
// happened; only the replace runs under the session lock.
func (s *Session) swapTo(ctx context.Context, key Key, track *transcode.Track, trigger string) error {
	handle, err := s.sink.Play(ctx, track, playback.Options{Volume: s.volume, Loop: true})
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.handle
	s.handle = handle
	s.currentKey = key
	s.state = Playing
	s.mu.Unlock()

	if prev != nil && prev != handle {
		if stopErr := prev.Stop(); stopErr != nil {
			s.logger.Debug().Err(stopErr).Msg("stop replaced track failed")
		}
	}

	telemetry.TrackSwapsTotal.WithLabelValues(trigger).Inc()
	s.bus.Publish(events.EventTrackSwap, events.Payload{
		"room_id": s.ID,
		"key":     key.String(),
		"ref":     track.Ref,
		"trigger": trigger,
	})
	s.logger.Info().Stringer("key", key).Str("trigger", trigger).Str("ref", track.Ref).Msg("active track swapped")
	return nil
}

// CurrentKey returns the key the active track was selected for.
func (s *Session) CurrentKey() Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentKey
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// teardown stops playback and clears the buffer. Idempotent.
func (s *Session) teardown() {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	handle := s.handle
	s.handle = nil
	s.state = Idle
	s.mu.Unlock()

	if handle != nil {
		if err := handle.Stop(); err != nil {
			s.logger.Debug().Err(err).Msg("stop active track failed")
		}
	}
	s.buffer.Clear()
}

// Status is a point-in-time snapshot for the API surface.
type Status struct {
	ID             string    `json:"id"`
	State          string    `json:"state"`
	CurrentKey     string    `json:"current_key"`
	PlayingWeather string    `json:"playing_weather"`
	CachedWeather  string    `json:"cached_weather"`
	BufferLen      int       `json:"buffer_len"`
	CreatedAt      time.Time `json:"created_at"`
}

// Status snapshots the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	state := s.state
	key := s.currentKey
	s.mu.Unlock()

	_, cached, playing := s.weather.Snapshot()
	return Status{
		ID:             s.ID,
		State:          state.String(),
		CurrentKey:     key.String(),
		PlayingWeather: playing.String(),
		CachedWeather:  cached.String(),
		BufferLen:      s.buffer.Len(),
		CreatedAt:      s.created,
	}
}
