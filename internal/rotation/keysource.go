/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"context"
	"time"

	"github.com/megumew/nooku/internal/weather"
	"github.com/rs/zerolog"
)

// KeySource derives selection keys from the clock and a session's weather
// cache. Derivation never fails: a fetch error falls back to the last
// cached classification so a key is always producible.
type KeySource struct {
	cache  *weather.Cache
	logger zerolog.Logger
	now    func() time.Time
}

// NewKeySource creates a key source over the session's weather cache.
func NewKeySource(cache *weather.Cache, logger zerolog.Logger) *KeySource {
	return &KeySource{
		cache:  cache,
		logger: logger.With().Str("component", "keysource").Logger(),
		now:    time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (ks *KeySource) SetClock(now func() time.Time) {
	ks.now = now
}

// CurrentKey derives the key for the current slot. May trigger a weather
// fetch through the cooldown cache.
func (ks *KeySource) CurrentKey(ctx context.Context) Key {
	return Key{Class: ks.observe(ctx), Hour: ks.now().Hour()}
}

// NextKey derives the key for the next slot: now plus one hour with
// minute and second zeroed.
func (ks *KeySource) NextKey(ctx context.Context) Key {
	return Key{Class: ks.observe(ctx), Hour: nextSlotHour(ks.now())}
}

func (ks *KeySource) observe(ctx context.Context) weather.Class {
	class, err := ks.cache.Current(ctx)
	if err != nil {
		// The cache already handed back its previous classification.
		ks.logger.Warn().Err(err).Str("fallback", class.String()).Msg("weather fetch failed, using cached classification")
	}
	return class
}
