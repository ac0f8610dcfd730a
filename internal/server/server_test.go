/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/megumew/nooku/internal/config"
	"github.com/megumew/nooku/internal/events"
	"github.com/megumew/nooku/internal/media"
	"github.com/megumew/nooku/internal/playback"
	"github.com/megumew/nooku/internal/rotation"
	"github.com/megumew/nooku/internal/transcode"
	"github.com/megumew/nooku/internal/weather"
)

type stubFetcher struct{ class weather.Class }

func (f *stubFetcher) Fetch(context.Context, weather.Location) (weather.Class, error) {
	return f.class, nil
}

type stubSource struct{ entries []media.Entry }

func (s *stubSource) List(context.Context) ([]media.Entry, error) { return s.entries, nil }

type stubDecoder struct{}

func (stubDecoder) Decode(_ context.Context, ref string) (*transcode.Track, error) {
	return &transcode.Track{Ref: ref, Path: "/tmp/" + ref}, nil
}

type stubHandle struct{}

func (stubHandle) SetVolume(float64) {}
func (stubHandle) Stop() error       { return nil }

type stubSink struct{}

func (stubSink) Play(context.Context, *transcode.Track, playback.Options) (playback.Handle, error) {
	return stubHandle{}, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()

	entries := make([]media.Entry, 0, 24*3)
	for _, digit := range []string{"0", "1", "2"} {
		for hour := 0; hour < 24; hour++ {
			key := digit + string([]byte{byte('0' + hour/10), byte('0' + hour%10)})
			entries = append(entries, media.Entry{Name: key + ".mp3", Ref: key + ".mp3"})
		}
	}
	cat, err := rotation.BuildCatalog(context.Background(), &stubSource{entries: entries}, zerolog.Nop())
	if err != nil {
		t.Fatalf("BuildCatalog: %v", err)
	}

	engine := rotation.NewEngine(rotation.Options{
		Fetcher:     &stubFetcher{class: weather.Clear},
		Location:    weather.Location{Latitude: 34.2, Longitude: -79.8},
		Cooldown:    10 * time.Minute,
		Catalog:     cat,
		Decoder:     stubDecoder{},
		Bus:         events.NewBus(),
		Volume:      0.5,
		SinkFactory: func(string) playback.Sink { return stubSink{} },
	}, zerolog.Nop())

	cfg := &config.Config{
		HTTPBind:  "127.0.0.1",
		HTTPPort:  0,
		Latitude:  34.2,
		Longitude: -79.8,
	}
	return New(cfg, engine, zerolog.Nop())
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	srv := testServer(t)

	// Create.
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var created rotation.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" || created.State != "playing" {
		t.Fatalf("unexpected create response: %+v", created)
	}
	if _, err := rotation.ParseKey(created.CurrentKey); err != nil {
		t.Errorf("CurrentKey %q malformed: %v", created.CurrentKey, err)
	}

	// List.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listed struct {
		Rooms []rotation.Status `json:"rooms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed.Rooms) != 1 || listed.Rooms[0].ID != created.ID {
		t.Fatalf("unexpected list response: %+v", listed)
	}

	// Get.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	// Close.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/rooms/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d, want 204", rec.Code)
	}

	// Gone.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/"+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after close = %d, want 404", rec.Code)
	}
}

func TestGetUnknownRoom(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Error("error body missing error field")
	}
}

func TestDeleteUnknownRoom(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/rooms/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWeatherEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/weather", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("weather status = %d, want 200", rec.Code)
	}
	var body struct {
		Location weather.Location `json:"location"`
		Rooms    []WeatherStatus  `json:"rooms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode weather response: %v", err)
	}
	if body.Location.Latitude != 34.2 {
		t.Errorf("latitude = %v, want 34.2", body.Location.Latitude)
	}
	if len(body.Rooms) != 1 {
		t.Fatalf("rooms = %d, want 1", len(body.Rooms))
	}
	if body.Rooms[0].Cached != "clear" || body.Rooms[0].Playing != "clear" {
		t.Errorf("weather fields = %+v, want clear/clear", body.Rooms[0])
	}
}
