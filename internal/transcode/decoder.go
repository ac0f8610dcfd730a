/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package transcode turns raw catalog refs into decoded tracks ready for
// gapless looping. Decoding is expensive relative to the triggers that
// request a swap, which is why the rotation engine prefetches.
package transcode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Track is a decoded, loop-ready audio resource.
type Track struct {
	// Ref is the raw catalog ref the track was decoded from.
	Ref string
	// Path locates the decoded artifact on local disk.
	Path string
	// DecodedAt records when the decode completed.
	DecodedAt time.Time
}

// Decoder produces decoded tracks from raw catalog refs.
type Decoder interface {
	Decode(ctx context.Context, ref string) (*Track, error)
}

// GstDecoder decodes through a GStreamer pipeline process, writing a PCM
// artifact into a local cache directory.
type GstDecoder struct {
	gstBin   string
	cacheDir string
	logger   zerolog.Logger
}

// NewGstDecoder creates a GStreamer-backed decoder.
func NewGstDecoder(gstBin, cacheDir string, logger zerolog.Logger) *GstDecoder {
	return &GstDecoder{
		gstBin:   gstBin,
		cacheDir: cacheDir,
		logger:   logger.With().Str("component", "decoder").Logger(),
	}
}

// Decode runs the decode pipeline to completion. The artifact path is
// derived from the ref, so re-decoding the same ref overwrites in place.
func (d *GstDecoder) Decode(ctx context.Context, ref string) (*Track, error) {
	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create decode cache dir: %w", err)
	}

	outPath := filepath.Join(d.cacheDir, artifactName(ref))
	launch := buildDecodeLaunch(ref, outPath)

	started := time.Now()
	shellCmd := fmt.Sprintf("%s -e %s", d.gstBin, launch)
	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outPath)
		return nil, fmt.Errorf("decode %s: pipeline produced no output", ref)
	}

	d.logger.Debug().
		Str("ref", ref).
		Str("artifact", outPath).
		Dur("took", time.Since(started)).
		Msg("track decoded")

	return &Track{Ref: ref, Path: outPath, DecodedAt: time.Now()}, nil
}

// buildDecodeLaunch assembles the gst-launch pipeline for a ref. HTTP(S)
// refs stream through souphttpsrc, everything else is read as a file.
func buildDecodeLaunch(ref, outPath string) string {
	src := fmt.Sprintf("filesrc location=%q", ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		src = fmt.Sprintf("souphttpsrc location=%q", ref)
	}
	return fmt.Sprintf("%s ! decodebin ! audioconvert ! audioresample ! wavenc ! filesink location=%q", src, outPath)
}

// artifactName derives a stable cache file name from the ref.
func artifactName(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:8]) + ".wav"
}
