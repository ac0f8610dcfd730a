/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media enumerates playable catalog entries from a configured
// backend. Sources only list; key parsing and exclusion rules live in the
// rotation catalog.
package media

import "context"

// Entry is one playable resource offered by a source.
type Entry struct {
	// Name is the entry's base name; its leading characters carry the
	// selection key unless Key is set explicitly.
	Name string
	// Ref locates the raw resource (file path or URL) for the decoder.
	Ref string
	// Key optionally carries an explicit selection key (manifest backend).
	Key string
}

// Source enumerates catalog entries in a stable order.
type Source interface {
	List(ctx context.Context) ([]Entry, error)
}
