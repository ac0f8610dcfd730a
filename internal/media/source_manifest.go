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
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// manifest is the on-disk YAML shape for the manifest backend.
type manifest struct {
	Entries []manifestEntry `yaml:"entries"`
}

type manifestEntry struct {
	Key string `yaml:"key"`
	Ref string `yaml:"ref"`
}

// ManifestSource lists catalog entries from a YAML manifest with explicit
// selection keys, for installs where file naming cannot carry the key.
type ManifestSource struct {
	path   string
	logger zerolog.Logger
}

// NewManifestSource creates a manifest-backed catalog source.
func NewManifestSource(path string, logger zerolog.Logger) *ManifestSource {
	return &ManifestSource{
		path:   path,
		logger: logger.With().Str("component", "manifest_source").Logger(),
	}
}

// List parses the manifest. Relative refs are resolved against the
// manifest's directory. Entries keep manifest order.
func (s *ManifestSource) List(ctx context.Context) ([]Entry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	baseDir := filepath.Dir(s.path)
	entries := make([]Entry, 0, len(m.Entries))
	for i, me := range m.Entries {
		if me.Key == "" || me.Ref == "" {
			return nil, fmt.Errorf("manifest entry %d: key and ref are required", i)
		}
		ref := me.Ref
		if !filepath.IsAbs(ref) && !isURL(ref) {
			ref = filepath.Join(baseDir, ref)
		}
		entries = append(entries, Entry{
			Name: filepath.Base(me.Ref),
			Ref:  ref,
			Key:  me.Key,
		})
	}

	s.logger.Debug().Int("count", len(entries)).Str("path", s.path).Msg("manifest source listed")
	return entries, nil
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
