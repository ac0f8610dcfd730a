/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	// ErrMalformedPayload indicates the API response carried no usable
	// condition code.
	ErrMalformedPayload = errors.New("weather: malformed payload")

	errRateLimited = errors.New("weather: rate limited")
	errServerError = errors.New("weather: server error")
	errCircuitOpen = errors.New("weather: circuit breaker open")
)

// BackoffConfig controls retry behaviour for the external call.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ClientConfig bundles HTTP access and resilience settings.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Backoff    BackoffConfig
	// RatePerMinute caps absolute call rate regardless of cooldown state.
	RatePerMinute int
}

// DefaultClientConfig returns client defaults for the given credentials.
func DefaultClientConfig(baseURL, apiKey string) ClientConfig {
	return ClientConfig{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		RatePerMinute: 30,
	}
}

// Client fetches current conditions from OpenWeatherMap.
type Client struct {
	cfg     ClientConfig
	circuit *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient creates an OpenWeatherMap client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 30
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		cfg:     cfg,
		circuit: cb,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1),
		logger:  logger.With().Str("component", "weather_client").Logger(),
	}
}

// Fetch performs the external weather call and classifies the result.
// Network failures, non-2xx responses and payloads without a condition
// code are explicit errors.
func (c *Client) Fetch(ctx context.Context, loc Location) (Class, error) {
	if c.cfg.APIKey == "" {
		return Unknown, fmt.Errorf("weather: api key is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Unknown, err
	}

	resp, err := c.doWithResilience(ctx, loc)
	if err != nil {
		return Unknown, err
	}
	defer resp.Body.Close()

	var payload struct {
		Weather []struct {
			ID   int    `json:"id"`
			Main string `json:"main"`
		} `json:"weather"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Unknown, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(payload.Weather) == 0 {
		return Unknown, ErrMalformedPayload
	}

	class := ClassifyCode(payload.Weather[0].ID)
	c.logger.Debug().
		Int("condition_code", payload.Weather[0].ID).
		Str("class", class.String()).
		Msg("weather fetched")

	return class, nil
}

func (c *Client) buildRequest(ctx context.Context, loc Location) (*http.Request, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", loc.Latitude))
	values.Set("lon", fmt.Sprintf("%f", loc.Longitude))
	values.Set("appid", c.cfg.APIKey)

	u := fmt.Sprintf("%s/weather?%s", c.cfg.BaseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// doWithResilience executes the HTTP request with retries, exponential
// backoff, and the circuit breaker.
func (c *Client) doWithResilience(ctx context.Context, loc Location) (*http.Response, error) {
	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := c.buildRequest(ctx, loc)
		if err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, execErr := c.cfg.HTTPClient.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return nil, errServerError
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				return nil, fmt.Errorf("weather: unexpected status %d", resp.StatusCode)
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("weather: unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= c.cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		delay := c.cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.cfg.Backoff.MaxInterval > 0 && delay > c.cfg.Backoff.MaxInterval {
			delay = c.cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}
