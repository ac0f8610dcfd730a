/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/megumew/nooku/internal/events"
	"github.com/megumew/nooku/internal/playback"
	"github.com/megumew/nooku/internal/telemetry"
	"github.com/megumew/nooku/internal/transcode"
	"github.com/megumew/nooku/internal/weather"
)

// ErrRoomNotFound indicates an operation against a closed or unknown room.
var ErrRoomNotFound = errors.New("rotation: room not found")

// Notifier delivers human-readable swap announcements. Failures are the
// implementation's problem; the engine never checks them.
type Notifier interface {
	Announce(ctx context.Context, message string)
}

// Options configures an Engine.
type Options struct {
	Fetcher  weather.Fetcher
	Location weather.Location
	Cooldown time.Duration
	Catalog  *Catalog
	Decoder  transcode.Decoder
	Bus      *events.Bus
	Notifier Notifier
	Volume   float64
	// SinkFactory builds the playback sink for a new room.
	SinkFactory func(roomID string) playback.Sink
	// Now overrides the time source, for tests.
	Now func() time.Time
}

// Engine owns the room registry and both rotation triggers. Trigger
// callbacks hold only a room ID and look the session up at fire time, so
// nothing keeps a torn-down room alive.
type Engine struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	rooms map[string]*Session
}

// NewEngine creates the rotation engine.
func NewEngine(opts Options, logger zerolog.Logger) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		opts:   opts,
		logger: logger.With().Str("component", "rotation").Logger(),
		now:    now,
		rooms:  make(map[string]*Session),
	}
}

// Run consumes track loop events until ctx is cancelled, then tears down
// every remaining room. One persistent subscription serves all rooms for
// the whole engine lifetime; it survives every active-track replacement.
func (e *Engine) Run(ctx context.Context) error {
	loops := e.opts.Bus.Subscribe(events.EventTrackLoop)
	defer e.opts.Bus.Unsubscribe(events.EventTrackLoop, loops)

	e.logger.Info().Msg("rotation engine started")
	for {
		select {
		case <-ctx.Done():
			e.closeAll()
			e.logger.Info().Msg("rotation engine stopped")
			return ctx.Err()
		case payload := <-loops:
			roomID, _ := payload["room_id"].(string)
			if roomID == "" {
				continue
			}
			e.handleLoop(ctx, roomID)
		}
	}
}

// CreateRoom starts a new rotation session: primes the active track and
// the look-ahead buffer, then arms the hourly trigger. A priming failure
// is fatal for the room.
func (e *Engine) CreateRoom(ctx context.Context) (Status, error) {
	id := uuid.NewString()
	logger := e.logger.With().Str("room_id", id).Logger()

	cache := weather.NewCache(e.opts.Fetcher, e.opts.Location, e.opts.Cooldown, logger)
	if e.opts.Now != nil {
		cache.SetClock(e.opts.Now)
	}
	keys := NewKeySource(cache, logger)
	if e.opts.Now != nil {
		keys.SetClock(e.opts.Now)
	}

	// The room's lifecycle context. Playback processes and the hour
	// scheduler hang off it, never off the caller's context: the creating
	// request ends long before the room does.
	roomCtx, cancel := context.WithCancel(context.Background())

	sess := &Session{
		ID:      id,
		created: e.now(),
		weather: cache,
		keys:    keys,
		buffer:  NewPrefetchBuffer(e.opts.Catalog, e.opts.Decoder, logger),
		sink:    e.opts.SinkFactory(id),
		bus:     e.opts.Bus,
		volume:  e.opts.Volume,
		logger:  logger,
		cancel:  cancel,
	}

	// Prime synchronously so there is no gap between room start and the
	// first scheduled trigger.
	key := keys.CurrentKey(ctx)
	track, err := sess.buffer.EnsureCurrent(roomCtx, key)
	if err != nil {
		cancel()
		return Status{}, fmt.Errorf("prime room: %w", err)
	}
	if err := sess.swapTo(roomCtx, key, track, "prime"); err != nil {
		cancel()
		return Status{}, fmt.Errorf("prime room: %w", err)
	}
	cache.SetPlaying(key.Class)

	if err := sess.buffer.EnsureLookahead(roomCtx, keys.NextKey(ctx)); err != nil {
		logger.Warn().Err(err).Msg("look-ahead prime failed, next swap will decode synchronously")
	}

	e.mu.Lock()
	e.rooms[id] = sess
	e.mu.Unlock()

	go e.runHourScheduler(roomCtx, id)

	telemetry.RoomsActive.Inc()
	e.opts.Bus.Publish(events.EventRoomCreated, events.Payload{"room_id": id})
	e.publishNowPlaying(sess, track.Ref, "prime")
	e.announce(ctx, fmt.Sprintf("Now playing %s for key %s.", track.Ref, key))

	logger.Info().Stringer("key", key).Msg("room created")
	return sess.Status(), nil
}

// CloseRoom tears a room down and deregisters its triggers. No trigger
// fires for the room afterwards.
func (e *Engine) CloseRoom(id string) error {
	e.mu.Lock()
	sess, ok := e.rooms[id]
	if ok {
		delete(e.rooms, id)
	}
	e.mu.Unlock()

	if !ok {
		return ErrRoomNotFound
	}

	sess.teardown()
	telemetry.RoomsActive.Dec()
	e.opts.Bus.Publish(events.EventRoomClosed, events.Payload{"room_id": id})
	sess.logger.Info().Msg("room closed")
	return nil
}

// Room returns a snapshot of one room.
func (e *Engine) Room(id string) (Status, error) {
	if sess := e.lookup(id); sess != nil {
		return sess.Status(), nil
	}
	return Status{}, ErrRoomNotFound
}

// Rooms returns snapshots of all live rooms.
func (e *Engine) Rooms() []Status {
	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.rooms))
	for _, sess := range e.rooms {
		sessions = append(sessions, sess)
	}
	e.mu.Unlock()

	out := make([]Status, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Status())
	}
	return out
}

func (e *Engine) lookup(id string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms[id]
}

func (e *Engine) closeAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.rooms))
	for id := range e.rooms {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if err := e.CloseRoom(id); err != nil {
			e.logger.Debug().Err(err).Str("room_id", id).Msg("close room during shutdown failed")
		}
	}
}

// runHourScheduler fires first at the top of the next wall-clock hour
// (plus a small offset), then every 60 minutes. It is the room's only
// periodic trigger and dies with the room.
func (e *Engine) runHourScheduler(ctx context.Context, roomID string) {
	first := nextTopOfHour(e.now())
	e.logger.Debug().Str("room_id", roomID).Time("first_fire", first).Msg("hour scheduler armed")

	timer := time.NewTimer(first.Sub(e.now()))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	if !e.HandleHourTick(ctx, roomID) {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.HandleHourTick(ctx, roomID) {
				return
			}
		}
	}
}

// HandleHourTick executes one hourly rotation for a room. It reports
// whether the room still exists so the caller can disarm.
func (e *Engine) HandleHourTick(ctx context.Context, roomID string) bool {
	sess := e.lookup(roomID)
	if sess == nil {
		return false
	}

	// Pop the buffered entry first, then recompute: the weather may have
	// drifted since the look-ahead was chosen.
	poppedKey, poppedTrack, popped := sess.buffer.PopFront()
	key := sess.keys.CurrentKey(ctx)

	track := poppedTrack
	if !popped || poppedKey != key {
		if popped {
			sess.logger.Debug().
				Stringer("buffered", poppedKey).
				Stringer("want", key).
				Msg("buffered entry stale, decoding fresh")
			telemetry.PrefetchMissesTotal.Inc()
		}
		ref, err := e.opts.Catalog.Lookup(key)
		if err != nil {
			telemetry.CatalogMissesTotal.Inc()
			sess.logger.Warn().Err(err).Time("at", e.now()).Msg("hourly key missing from catalog, keeping current track")
			e.fillLookahead(ctx, sess)
			return true
		}
		track, err = e.opts.Decoder.Decode(ctx, ref)
		if err != nil {
			telemetry.DecodeFailuresTotal.Inc()
			sess.logger.Warn().Err(err).Msg("hourly decode failed, keeping current track")
			e.fillLookahead(ctx, sess)
			return true
		}
	} else {
		telemetry.PrefetchHitsTotal.Inc()
	}

	if err := sess.swapTo(ctx, key, track, "hour"); err != nil {
		sess.logger.Warn().Err(err).Msg("hourly swap failed, keeping current track")
		e.fillLookahead(ctx, sess)
		return true
	}
	sess.weather.SetPlaying(key.Class)

	e.opts.Bus.Publish(events.EventHourBoundary, events.Payload{"room_id": roomID, "key": key.String()})
	e.publishNowPlaying(sess, track.Ref, "hour")
	e.announce(ctx, fmt.Sprintf("It is now %s!", e.now().Format("15:04")))

	e.fillLookahead(ctx, sess)
	return true
}

// handleLoop reacts to one completed playback cycle: swap only when the
// weather digit drifted from what is playing. Hour digit stays untouched.
func (e *Engine) handleLoop(ctx context.Context, roomID string) {
	sess := e.lookup(roomID)
	if sess == nil {
		return
	}

	key := sess.keys.CurrentKey(ctx)
	playing := sess.weather.Playing()
	if key.Class.Digit() == playing.Digit() {
		return
	}

	sess.logger.Info().
		Str("old_weather", playing.String()).
		Str("new_weather", key.Class.String()).
		Stringer("key", key).
		Msg("weather drift detected on loop")

	ref, err := e.opts.Catalog.Lookup(key)
	if err != nil {
		telemetry.CatalogMissesTotal.Inc()
		sess.logger.Warn().Err(err).Time("at", e.now()).Msg("drift key missing from catalog, keeping current track")
		return
	}
	track, err := e.opts.Decoder.Decode(ctx, ref)
	if err != nil {
		telemetry.DecodeFailuresTotal.Inc()
		sess.logger.Warn().Err(err).Msg("drift decode failed, keeping current track")
		return
	}

	if err := sess.swapTo(ctx, key, track, "weather"); err != nil {
		sess.logger.Warn().Err(err).Msg("drift swap failed, keeping current track")
		return
	}
	sess.weather.SetPlaying(key.Class)

	e.opts.Bus.Publish(events.EventWeatherChange, events.Payload{
		"room_id": roomID,
		"key":     key.String(),
		"weather": key.Class.String(),
	})
	e.publishNowPlaying(sess, track.Ref, "weather")
	e.announce(ctx, fmt.Sprintf("The weather turned %s.", key.Class))
}

func (e *Engine) fillLookahead(ctx context.Context, sess *Session) {
	if sess.buffer.Len() > 0 {
		return
	}
	next := sess.keys.NextKey(ctx)
	if err := sess.buffer.EnsureLookahead(ctx, next); err != nil {
		sess.logger.Warn().Err(err).Stringer("key", next).Msg("look-ahead fill failed")
	}
}

func (e *Engine) publishNowPlaying(sess *Session, ref, trigger string) {
	e.opts.Bus.Publish(events.EventNowPlaying, events.Payload{
		"room_id": sess.ID,
		"key":     sess.CurrentKey().String(),
		"ref":     ref,
		"trigger": trigger,
	})
}

func (e *Engine) announce(ctx context.Context, message string) {
	if e.opts.Notifier == nil {
		return
	}
	e.opts.Notifier.Announce(ctx, message)
}
