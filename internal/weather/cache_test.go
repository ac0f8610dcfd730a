package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubFetcher struct {
	class Class
	err   error
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context, loc Location) (Class, error) {
	s.calls++
	return s.class, s.err
}

func newTestCache(f *stubFetcher) (*Cache, *time.Time) {
	cache := NewCache(f, Location{Latitude: 34.2, Longitude: -79.8}, 10*time.Minute, zerolog.Nop())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })
	return cache, &now
}

func TestCurrentFetchesOncePerCooldownWindow(t *testing.T) {
	fetcher := &stubFetcher{class: Rainy}
	cache, now := newTestCache(fetcher)

	first, err := cache.Current(context.Background())
	if err != nil {
		t.Fatalf("first current: %v", err)
	}
	if first != Rainy {
		t.Fatalf("first classification = %v, want Rainy", first)
	}

	// Second observation inside the window must not hit the fetcher and
	// must see the identical classification.
	*now = now.Add(5 * time.Minute)
	second, err := cache.Current(context.Background())
	if err != nil {
		t.Fatalf("second current: %v", err)
	}
	if second != first {
		t.Fatalf("classification changed inside cooldown: %v then %v", first, second)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected exactly 1 external fetch, got %d", fetcher.calls)
	}
}

func TestCurrentRefetchesAfterCooldown(t *testing.T) {
	fetcher := &stubFetcher{class: Clear}
	cache, now := newTestCache(fetcher)

	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatalf("prime fetch: %v", err)
	}

	fetcher.class = Snowy
	*now = now.Add(10*time.Minute + time.Second)

	got, err := cache.Current(context.Background())
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got != Snowy {
		t.Fatalf("expected fresh classification after cooldown, got %v", got)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected 2 external fetches, got %d", fetcher.calls)
	}
}

func TestCurrentBoundaryDoesNotFetchAtExactCooldown(t *testing.T) {
	fetcher := &stubFetcher{class: Clear}
	cache, now := newTestCache(fetcher)

	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatalf("prime fetch: %v", err)
	}

	// A fetch only occurs when the elapsed time exceeds the cooldown.
	*now = now.Add(10 * time.Minute)
	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatalf("boundary current: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected no fetch at exact cooldown boundary, got %d calls", fetcher.calls)
	}
}

func TestCurrentReturnsCachedValueOnFetchError(t *testing.T) {
	fetcher := &stubFetcher{class: Rainy}
	cache, now := newTestCache(fetcher)

	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatalf("prime fetch: %v", err)
	}

	fetcher.err = errors.New("connection refused")
	*now = now.Add(11 * time.Minute)

	got, err := cache.Current(context.Background())
	if err == nil {
		t.Fatal("expected fetch error to surface")
	}
	if got != Rainy {
		t.Fatalf("expected previously cached classification on error, got %v", got)
	}

	// The failed call still consumed the cooldown slot.
	*now = now.Add(time.Minute)
	if _, _ = cache.Current(context.Background()); fetcher.calls != 2 {
		t.Fatalf("expected failed fetch to consume cooldown slot, got %d calls", fetcher.calls)
	}
}

func TestPlayingUpdatedOnlyExplicitly(t *testing.T) {
	fetcher := &stubFetcher{class: Snowy}
	cache, _ := newTestCache(fetcher)

	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatalf("current: %v", err)
	}

	// Observation alone must not touch the playing classification.
	if cache.Playing() != Clear {
		t.Fatalf("playing classification changed on observation: %v", cache.Playing())
	}

	cache.SetPlaying(Snowy)
	if cache.Playing() != Snowy {
		t.Fatalf("playing = %v after SetPlaying(Snowy)", cache.Playing())
	}
}

func TestSnapshotLastFetchMonotonic(t *testing.T) {
	fetcher := &stubFetcher{class: Clear}
	cache, now := newTestCache(fetcher)

	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatalf("current: %v", err)
	}
	first, _, _ := cache.Snapshot()

	*now = now.Add(30 * time.Minute)
	if _, err := cache.Current(context.Background()); err != nil {
		t.Fatalf("current: %v", err)
	}
	second, _, _ := cache.Snapshot()

	if second.Before(first) {
		t.Fatalf("last fetch time regressed: %v then %v", first, second)
	}
}
