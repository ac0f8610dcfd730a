/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package weather

import (
	"context"
	"sync"
	"time"

	"github.com/megumew/nooku/internal/telemetry"
	"github.com/rs/zerolog"
)

// DefaultCooldown is the minimum interval between external weather calls.
const DefaultCooldown = 10 * time.Minute

// Fetcher performs the external weather lookup.
type Fetcher interface {
	Fetch(ctx context.Context, loc Location) (Class, error)
}

// Cache is a cooldown-gated holder of the last fetched classification.
// One instance belongs to exactly one rotation session; it is never shared
// across sessions.
type Cache struct {
	fetcher  Fetcher
	loc      Location
	cooldown time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	lastFetch time.Time
	cached    Class
	playing   Class
}

// NewCache creates a cooldown cache around fetcher. The cached class
// starts as Clear so a classification is always available.
func NewCache(fetcher Fetcher, loc Location, cooldown time.Duration, logger zerolog.Logger) *Cache {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Cache{
		fetcher:  fetcher,
		loc:      loc,
		cooldown: cooldown,
		logger:   logger.With().Str("component", "weather_cache").Logger(),
		now:      time.Now,
		cached:   Clear,
		playing:  Clear,
	}
}

// SetClock overrides the time source, for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Current returns the current classification. If the cooldown has elapsed
// it performs the external call, records the fetch time, and caches the
// fresh value; otherwise it returns the cached classification with no
// external call. On fetch failure the previous cached value is returned
// alongside the error so callers can fall back without a second lookup.
func (c *Cache) Current(ctx context.Context) (Class, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	elapsed := now.Sub(c.lastFetch)
	if elapsed <= c.cooldown {
		c.logger.Debug().
			Dur("since_last_fetch", elapsed).
			Str("class", c.cached.String()).
			Msg("weather served from cooldown cache")
		telemetry.WeatherCacheHitsTotal.Inc()
		return c.cached, nil
	}

	// lastFetch only moves forward; a failed call still consumes the slot
	// so a flapping upstream cannot be hammered.
	c.lastFetch = now

	class, err := c.fetcher.Fetch(ctx, c.loc)
	if err != nil {
		telemetry.WeatherFetchesTotal.WithLabelValues("error").Inc()
		return c.cached, err
	}

	telemetry.WeatherFetchesTotal.WithLabelValues("ok").Inc()
	c.cached = class
	return class, nil
}

// Cached returns the last known classification with no external call.
func (c *Cache) Cached() Class {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

// Playing returns the classification the active track was selected for.
func (c *Cache) Playing() Class {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// SetPlaying records the classification of the track actually installed.
// Called only when a swap occurs, never on mere observation.
func (c *Cache) SetPlaying(class Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = class
}

// Snapshot reports cache state for the status API.
func (c *Cache) Snapshot() (lastFetch time.Time, cached, playing Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetch, c.cached, c.playing
}
