/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package weather classifies OpenWeatherMap condition codes and throttles
// external lookups behind a cooldown cache.
package weather

// Class is the coarse playback-facing weather classification.
type Class int

const (
	Clear Class = iota
	Rainy
	Snowy
	Unknown
)

// String returns the lowercase name of the class.
func (c Class) String() string {
	switch c {
	case Clear:
		return "clear"
	case Rainy:
		return "rainy"
	case Snowy:
		return "snowy"
	default:
		return "unknown"
	}
}

// Digit returns the catalog key digit for the class. Clear and Unknown
// share the clear digit so a key is always producible.
func (c Class) Digit() byte {
	switch c {
	case Rainy:
		return '1'
	case Snowy:
		return '2'
	default:
		return '0'
	}
}

// ClassifyCode maps an OpenWeatherMap numeric condition code to a Class by
// its leading digit: 2xx/3xx/5xx are precipitation groups, 6xx snow, 8xx
// clear or clouds. 7xx covers atmospheric phenomena (mist, smoke, ash) and
// stays deliberately unmapped.
func ClassifyCode(code int) Class {
	lead := code
	for lead >= 10 {
		lead /= 10
	}
	switch lead {
	case 2, 3, 5:
		return Rainy
	case 6:
		return Snowy
	case 8:
		return Clear
	default:
		return Unknown
	}
}

// Location is an immutable latitude/longitude pair, configured once.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
