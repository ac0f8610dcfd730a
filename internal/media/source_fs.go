/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FSSource lists audio files from a local songs directory.
type FSSource struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFSSource creates a filesystem-backed catalog source.
func NewFSSource(rootDir string, logger zerolog.Logger) *FSSource {
	return &FSSource{
		rootDir: rootDir,
		logger:  logger.With().Str("component", "fs_source").Logger(),
	}
}

// List returns one entry per regular file, in lexical name order.
func (s *FSSource) List(ctx context.Context) ([]Entry, error) {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("songs directory does not exist: %s", s.rootDir)
		}
		return nil, fmt.Errorf("cannot access songs directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("songs path is not a directory: %s", s.rootDir)
	}

	dirEntries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("read songs directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Name: de.Name(),
			Ref:  filepath.Join(s.rootDir, de.Name()),
		})
	}

	s.logger.Debug().Int("count", len(entries)).Str("dir", s.rootDir).Msg("filesystem source listed")
	return entries, nil
}
