/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"context"
	"sync"

	"github.com/megumew/nooku/internal/telemetry"
	"github.com/megumew/nooku/internal/transcode"
	"github.com/rs/zerolog"
)

// maxBufferLen bounds the buffer: the not-yet-consumed current entry plus
// at most one look-ahead. It is a read-ahead cache, not a general LRU.
const maxBufferLen = 2

type bufferEntry struct {
	key   Key
	track *transcode.Track
}

// PrefetchBuffer keeps the next required track decoded before it is
// needed, since decoding is slow relative to the triggers that swap.
// Entries are consumed front-first.
type PrefetchBuffer struct {
	catalog *Catalog
	decoder transcode.Decoder
	logger  zerolog.Logger

	mu      sync.Mutex
	entries []bufferEntry
}

// NewPrefetchBuffer creates an empty buffer over the catalog and decoder.
func NewPrefetchBuffer(catalog *Catalog, decoder transcode.Decoder, logger zerolog.Logger) *PrefetchBuffer {
	return &PrefetchBuffer{
		catalog: catalog,
		decoder: decoder,
		logger:  logger.With().Str("component", "prefetch").Logger(),
	}
}

// EnsureCurrent returns a decoded track for key. If the front entry
// matches it is popped and returned; otherwise the catalog entry is
// decoded synchronously (cache miss path) and the buffer is untouched.
func (b *PrefetchBuffer) EnsureCurrent(ctx context.Context, key Key) (*transcode.Track, error) {
	b.mu.Lock()
	if len(b.entries) > 0 && b.entries[0].key == key {
		front := b.entries[0]
		b.entries = b.entries[1:]
		b.mu.Unlock()
		telemetry.PrefetchHitsTotal.Inc()
		return front.track, nil
	}
	b.mu.Unlock()

	telemetry.PrefetchMissesTotal.Inc()
	b.logger.Debug().Stringer("key", key).Msg("prefetch miss, decoding synchronously")
	return b.decode(ctx, key)
}

// EnsureLookahead decodes and stores the entry for the given next-slot
// key if the buffer is empty; otherwise it is a no-op. Decode runs before
// the buffer lock is taken.
func (b *PrefetchBuffer) EnsureLookahead(ctx context.Context, key Key) error {
	b.mu.Lock()
	occupied := len(b.entries) > 0
	b.mu.Unlock()
	if occupied {
		return nil
	}

	track, err := b.decode(ctx, key)
	if err != nil {
		return err
	}

	if !b.push(key, track) {
		// Lost the race to a concurrent fill; drop the extra decode.
		return nil
	}
	b.logger.Debug().Stringer("key", key).Int("len", b.Len()).Msg("look-ahead buffered")
	return nil
}

// PopFront removes and returns the front entry.
func (b *PrefetchBuffer) PopFront() (Key, *transcode.Track, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return Key{}, nil, false
	}
	front := b.entries[0]
	b.entries = b.entries[1:]
	return front.key, front.track, true
}

// push stores an already decoded entry, refusing beyond capacity.
func (b *PrefetchBuffer) push(key Key, track *transcode.Track) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= maxBufferLen {
		return false
	}
	b.entries = append(b.entries, bufferEntry{key: key, track: track})
	return true
}

// Len reports the number of buffered entries.
func (b *PrefetchBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Clear drops all buffered entries, for session teardown.
func (b *PrefetchBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

func (b *PrefetchBuffer) decode(ctx context.Context, key Key) (*transcode.Track, error) {
	ref, err := b.catalog.Lookup(key)
	if err != nil {
		telemetry.CatalogMissesTotal.Inc()
		return nil, err
	}

	track, err := b.decoder.Decode(ctx, ref)
	if err != nil {
		telemetry.DecodeFailuresTotal.Inc()
		return nil, err
	}
	return track, nil
}
