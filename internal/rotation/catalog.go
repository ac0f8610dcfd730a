/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"context"
	"errors"
	"fmt"

	"github.com/megumew/nooku/internal/media"
	"github.com/rs/zerolog"
)

// ErrCatalogMiss indicates a selection key with no catalog entry.
var ErrCatalogMiss = errors.New("rotation: no catalog entry for key")

// Catalog is the immutable mapping from selection key to raw resource
// ref, built once at startup. Lookups are safe for concurrent use.
type Catalog struct {
	entries map[Key]string
}

// BuildCatalog scans the source once. Entries carrying the reserved
// prefix are skipped; entries whose prefix does not parse as a key are
// logged and skipped; two entries claiming the same key abort the build.
func BuildCatalog(ctx context.Context, src media.Source, logger zerolog.Logger) (*Catalog, error) {
	listed, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog source: %w", err)
	}

	entries := make(map[Key]string, len(listed))
	claimed := make(map[Key]string, len(listed))

	for _, entry := range listed {
		raw := entry.Key
		if raw == "" {
			if len(entry.Name) < 3 {
				logger.Warn().Str("name", entry.Name).Msg("catalog entry name too short for a key, skipping")
				continue
			}
			raw = entry.Name[:3]
		}

		if raw == ReservedPrefix {
			continue
		}

		key, err := ParseKey(raw)
		if err != nil {
			logger.Warn().Str("name", entry.Name).Err(err).Msg("catalog entry has no valid key prefix, skipping")
			continue
		}

		if prev, ok := claimed[key]; ok {
			return nil, fmt.Errorf("rotation: duplicate catalog key %s claimed by %q and %q", key, prev, entry.Name)
		}
		claimed[key] = entry.Name
		entries[key] = entry.Ref
	}

	logger.Info().Int("entries", len(entries)).Msg("song catalog built")
	return &Catalog{entries: entries}, nil
}

// Lookup resolves a key to its raw resource ref.
func (c *Catalog) Lookup(key Key) (string, error) {
	ref, ok := c.entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCatalogMiss, key)
	}
	return ref, nil
}

// Len reports the number of ingested entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}
