package weather

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
)

func newMockedClient(t *testing.T) *Client {
	t.Helper()

	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)

	cfg := DefaultClientConfig("https://api.openweathermap.org/data/2.5", "testkey")
	cfg.HTTPClient = hc
	cfg.Backoff = BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	return NewClient(cfg, zerolog.Nop())
}

func TestClientFetchClassifiesConditionCode(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder("GET", `=~^https://api\.openweathermap\.org/data/2\.5/weather`,
		httpmock.NewStringResponder(200, `{"weather":[{"id":501,"main":"Rain"}],"main":{"temp":284.2}}`))

	class, err := client.Fetch(context.Background(), Location{Latitude: 34.2, Longitude: -79.8})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if class != Rainy {
		t.Fatalf("classification = %v, want Rainy", class)
	}
}

func TestClientFetchSendsCredentialAndCoordinates(t *testing.T) {
	client := newMockedClient(t)

	var seen *http.Request
	httpmock.RegisterResponder("GET", `=~^https://api\.openweathermap\.org/data/2\.5/weather`,
		func(req *http.Request) (*http.Response, error) {
			seen = req
			return httpmock.NewStringResponse(200, `{"weather":[{"id":800,"main":"Clear"}]}`), nil
		})

	if _, err := client.Fetch(context.Background(), Location{Latitude: 51.5, Longitude: -0.12}); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	q := seen.URL.Query()
	if q.Get("appid") != "testkey" {
		t.Errorf("appid = %q", q.Get("appid"))
	}
	if q.Get("lat") == "" || q.Get("lon") == "" {
		t.Errorf("missing coordinates in query: %s", seen.URL.RawQuery)
	}
}

func TestClientFetchMalformedPayload(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder("GET", `=~^https://api\.openweathermap\.org/data/2\.5/weather`,
		httpmock.NewStringResponder(200, `{"cod":200}`))

	if _, err := client.Fetch(context.Background(), Location{}); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestClientFetchServerErrorAfterRetries(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder("GET", `=~^https://api\.openweathermap\.org/data/2\.5/weather`,
		httpmock.NewStringResponder(502, "bad gateway"))

	if _, err := client.Fetch(context.Background(), Location{}); err == nil {
		t.Fatal("expected error for repeated 5xx responses")
	}
	if httpmock.GetTotalCallCount() != 2 {
		t.Fatalf("expected initial call plus one retry, got %d calls", httpmock.GetTotalCallCount())
	}
}

func TestClientFetchRequiresAPIKey(t *testing.T) {
	cfg := DefaultClientConfig("https://api.openweathermap.org/data/2.5", "")
	client := NewClient(cfg, zerolog.Nop())

	if _, err := client.Fetch(context.Background(), Location{}); err == nil {
		t.Fatal("expected error without an API key")
	}
}
