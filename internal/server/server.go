/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes room management and weather status over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/megumew/nooku/internal/config"
	"github.com/megumew/nooku/internal/rotation"
	"github.com/megumew/nooku/internal/telemetry"
	"github.com/megumew/nooku/internal/weather"
)

// WeatherStatus reports one room's weather cache state.
type WeatherStatus struct {
	RoomID     string `json:"room_id"`
	Cached     string `json:"cached"`
	Playing    string `json:"playing"`
	CurrentKey string `json:"current_key"`
}

// Server bundles the HTTP API and its dependencies.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	engine *rotation.Engine
}

// New constructs the server and wires routes.
func New(cfg *config.Config, engine *rotation.Engine, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
		router: chi.NewRouter(),
		engine: engine,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(telemetry.MetricsMiddleware)

	s.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// HTTPServer returns the configured API server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router returns the chi router, for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// MetricsServer returns a separate server exposing Prometheus metrics on
// the metrics bind address. Kept off the public API listener so the
// scrape endpoint is never internet-facing.
func (s *Server) MetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	return &http.Server{
		Addr:              s.cfg.MetricsBind,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/rooms", s.handleCreateRoom)
		r.Get("/rooms", s.handleListRooms)
		r.Get("/rooms/{id}", s.handleGetRoom)
		r.Delete("/rooms/{id}", s.handleCloseRoom)
		r.Get("/weather", s.handleWeather)
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.CreateRoom(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("create room failed")
		if errors.Is(err, rotation.ErrCatalogMiss) {
			writeError(w, http.StatusConflict, "no track for current key")
			return
		}
		writeError(w, http.StatusInternalServerError, "room creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms := s.engine.Rooms()
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.engine.Room(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCloseRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.CloseRoom(id); err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWeather reports the weather view of every live room. Caches are
// per room, so there is no single global classification to return.
func (s *Server) handleWeather(w http.ResponseWriter, _ *http.Request) {
	rooms := s.engine.Rooms()
	statuses := make([]WeatherStatus, 0, len(rooms))
	for _, room := range rooms {
		statuses = append(statuses, WeatherStatus{
			RoomID:     room.ID,
			Cached:     room.CachedWeather,
			Playing:    room.PlayingWeather,
			CurrentKey: room.CurrentKey,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": weather.Location{Latitude: s.cfg.Latitude, Longitude: s.cfg.Longitude},
		"rooms":    statuses,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
