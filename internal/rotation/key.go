/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rotation selects, prefetches and swaps background tracks keyed
// by wall-clock hour and weather classification.
package rotation

import (
	"fmt"
	"time"

	"github.com/megumew/nooku/internal/weather"
)

// ReservedPrefix marks catalog entries excluded from ingestion (README
// and friends living alongside the songs).
const ReservedPrefix = "REA"

// hourFireOffset keeps the hourly trigger from firing before the boundary
// due to timer granularity.
const hourFireOffset = 500 * time.Millisecond

// Key identifies one catalog entry: a weather class plus an hour of day.
// The legacy 3-character string form (weather digit + zero-padded hour) is
// derived only at the catalog boundary.
type Key struct {
	Class weather.Class
	Hour  int
}

// String renders the legacy catalog form, e.g. "105" for rainy 5am.
func (k Key) String() string {
	return fmt.Sprintf("%c%02d", k.Class.Digit(), k.Hour)
}

// SameWeather reports whether both keys select the same weather digit.
// Clear and Unknown share a digit, so they compare equal here.
func (k Key) SameWeather(other Key) bool {
	return k.Class.Digit() == other.Class.Digit()
}

// ParseKey parses the legacy catalog form back into a structured key.
func ParseKey(s string) (Key, error) {
	if len(s) != 3 {
		return Key{}, fmt.Errorf("rotation: key %q must be 3 characters", s)
	}

	var class weather.Class
	switch s[0] {
	case '0':
		class = weather.Clear
	case '1':
		class = weather.Rainy
	case '2':
		class = weather.Snowy
	default:
		return Key{}, fmt.Errorf("rotation: key %q has invalid weather digit", s)
	}

	hour := int(s[1]-'0')*10 + int(s[2]-'0')
	if s[1] < '0' || s[1] > '9' || s[2] < '0' || s[2] > '9' || hour > 23 {
		return Key{}, fmt.Errorf("rotation: key %q has invalid hour", s)
	}

	return Key{Class: class, Hour: hour}, nil
}

// nextTopOfHour returns the next wall-clock hour boundary after t, plus a
// small positive offset.
func nextTopOfHour(t time.Time) time.Time {
	next := t.Add(time.Hour)
	return time.Date(next.Year(), next.Month(), next.Day(), next.Hour(), 0, 0, 0, next.Location()).
		Add(hourFireOffset)
}

// nextSlotHour returns the hour of the slot following t: t plus one hour
// with minute and second zeroed.
func nextSlotHour(t time.Time) int {
	return t.Add(time.Hour).Hour()
}
