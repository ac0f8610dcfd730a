/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/megumew/nooku/internal/events"
	"github.com/megumew/nooku/internal/transcode"
)

// GstSink plays decoded tracks through a GStreamer output process. One
// sink belongs to one room; starting a new track stops the previous one.
type GstSink struct {
	gstBin string
	roomID string
	bus    *events.Bus
	logger zerolog.Logger

	mu     sync.Mutex
	active *gstHandle
}

// NewGstSink creates a process-backed playback sink for a room.
func NewGstSink(gstBin, roomID string, bus *events.Bus, logger zerolog.Logger) *GstSink {
	return &GstSink{
		gstBin: gstBin,
		roomID: roomID,
		bus:    bus,
		logger: logger.With().Str("component", "playback").Str("room_id", roomID).Logger(),
	}
}

// Play installs the track, replacing whatever was playing. The handle's
// process is restarted after each complete cycle while looping is on; each
// restart publishes one EventTrackLoop.
func (s *GstSink) Play(ctx context.Context, track *transcode.Track, opts Options) (Handle, error) {
	h := &gstHandle{
		sink:   s,
		track:  track,
		volume: opts.Volume,
		loop:   opts.Loop,
		stopCh: make(chan struct{}),
	}

	s.mu.Lock()
	prev := s.active
	s.active = h
	s.mu.Unlock()

	if prev != nil {
		if err := prev.Stop(); err != nil {
			s.logger.Debug().Err(err).Msg("stop previous track failed")
		}
	}

	if err := h.startProcess(ctx); err != nil {
		return nil, err
	}
	go h.runLoop(ctx)

	s.logger.Info().Str("ref", track.Ref).Msg("track playing")
	return h, nil
}

// Shutdown stops the active track, if any.
func (s *GstSink) Shutdown() error {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active != nil {
		return active.Stop()
	}
	return nil
}

type gstHandle struct {
	sink  *GstSink
	track *transcode.Track
	loop  bool

	mu      sync.Mutex
	volume  float64
	cmd     *exec.Cmd
	done    chan struct{}
	stopped bool
	stopCh  chan struct{}
}

func (h *gstHandle) SetVolume(volume float64) {
	h.mu.Lock()
	h.volume = volume
	h.mu.Unlock()
}

func (h *gstHandle) startProcess(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return fmt.Errorf("playback: handle already stopped")
	}

	launch := fmt.Sprintf(
		"filesrc location=%q ! wavparse ! audioconvert ! audioresample ! volume volume=%g ! autoaudiosink sync=true",
		h.track.Path, h.volume,
	)
	shellCmd := fmt.Sprintf("%s -e %s", h.sink.gstBin, launch)
	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start playback pipeline: %w", err)
	}

	h.cmd = cmd
	h.done = make(chan struct{})

	go func(done chan struct{}, c *exec.Cmd) {
		err := c.Wait()
		close(done)
		if err != nil {
			h.sink.logger.Debug().Err(err).Msg("playback pipeline exited")
		}
	}(h.done, cmd)

	return nil
}

// runLoop restarts the pipeline after each completed cycle and publishes
// the loop event. It exits when the handle is stopped or the context ends.
func (h *gstHandle) runLoop(ctx context.Context) {
	for {
		h.mu.Lock()
		done := h.done
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-done:
		}

		h.mu.Lock()
		stopped := h.stopped
		loop := h.loop
		h.mu.Unlock()
		if stopped || !loop {
			return
		}

		h.sink.bus.Publish(events.EventTrackLoop, events.Payload{
			"room_id": h.sink.roomID,
			"ref":     h.track.Ref,
		})

		if err := h.startProcess(ctx); err != nil {
			h.sink.logger.Warn().Err(err).Msg("loop restart failed")
			return
		}
	}
}

func (h *gstHandle) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	close(h.stopCh)
	cmd := h.cmd
	done := h.done
	h.mu.Unlock()

	if cmd == nil || done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	if cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-time.After(5 * time.Second):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	case <-done:
	}

	return nil
}
