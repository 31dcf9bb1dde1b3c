package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitalrelay/vitalrelay/internal/model"
)

// ErrUnavailable marks the gateway as unreachable or access as revoked.
// The sync engine contains it at the category level: one category's
// provider outage never blocks the others.
var ErrUnavailable = errors.New("health gateway unavailable")

// RESTClient is the transport layer beneath the adapter. Defining it as an
// interface allows mock injection in tests.
type RESTClient interface {
	Ping(ctx context.Context) error
	// Get performs an authenticated GET against the given API path and
	// returns the response body.
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// httpClient is the production RESTClient backed by net/http with bearer
// authentication against the gateway.
type httpClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

func (c *httpClient) Ping(ctx context.Context) error {
	_, err := c.Get(ctx, "/v1/health", nil)
	return err
}

func (c *httpClient) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute gateway request: %w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		// Revoked permission reads the same as an unreachable provider.
		return nil, fmt.Errorf("gateway returned %d — check gateway_token and permissions: %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode == http.StatusBadRequest:
		var br struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&br)
		return nil, fmt.Errorf("gateway rejected request: %s", br.Message)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("gateway returned status %d: %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("gateway returned unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	return body, nil
}

// Adapter provides sync-engine–oriented reads from the local health gateway.
// Create one with [NewAdapter] or [NewAdapterWithClient]. One call per
// category per cycle; record ordering within the window is not guaranteed.
type Adapter struct {
	rest   RESTClient
	logger *slog.Logger
}

// NewAdapter creates an Adapter backed by a real HTTP client.
func NewAdapter(gatewayURL, token string, logger *slog.Logger) *Adapter {
	return &Adapter{
		rest: &httpClient{
			baseURL: gatewayURL,
			token:   token,
			hc:      &http.Client{Timeout: 30 * time.Second},
		},
		logger: logger,
	}
}

// NewAdapterWithClient creates an Adapter with a caller-supplied REST client.
// Intended for testing with a mock [RESTClient].
func NewAdapterWithClient(rest RESTClient, logger *slog.Logger) *Adapter {
	return &Adapter{rest: rest, logger: logger}
}

// Ping validates the gateway connection and token with retry.
func (a *Adapter) Ping(ctx context.Context) error {
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return a.rest.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("ping gateway: %w", err)
	}
	return nil
}

// fetch GETs one record collection with retry and decodes it into dst.
func (a *Adapter) fetch(ctx context.Context, kind string, from, to time.Time, dst any) error {
	query := url.Values{
		"from": {from.UTC().Format(time.RFC3339Nano)},
		"to":   {to.UTC().Format(time.RFC3339Nano)},
	}

	var body []byte
	err := Retry(ctx, defaultMaxAttempts, func() error {
		var callErr error
		body, callErr = a.rest.Get(ctx, "/v1/records/"+kind, query)
		return callErr
	})
	if err != nil {
		return fmt.Errorf("fetch %s records: %w", kind, err)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parse %s records: %w", kind, err)
	}
	return nil
}

// Steps returns step-count buckets whose native timestamps fall in [from, to).
func (a *Adapter) Steps(ctx context.Context, from, to time.Time) ([]model.StepsRecord, error) {
	var resp stepsResponse
	if err := a.fetch(ctx, "steps", from, to, &resp); err != nil {
		return nil, err
	}
	return convertSteps(resp.Records), nil
}

// Distance returns distance buckets in the window.
func (a *Adapter) Distance(ctx context.Context, from, to time.Time) ([]model.DistanceRecord, error) {
	var resp distanceResponse
	if err := a.fetch(ctx, "distance", from, to, &resp); err != nil {
		return nil, err
	}
	return convertDistance(resp.Records), nil
}

// Calories returns energy-burned buckets in the window.
func (a *Adapter) Calories(ctx context.Context, from, to time.Time) ([]model.CaloriesRecord, error) {
	var resp caloriesResponse
	if err := a.fetch(ctx, "calories", from, to, &resp); err != nil {
		return nil, err
	}
	return convertCalories(resp.Records), nil
}

// SleepSessions returns sleep sessions starting in the window.
func (a *Adapter) SleepSessions(ctx context.Context, from, to time.Time) ([]model.SleepSession, error) {
	var resp sleepResponse
	if err := a.fetch(ctx, "sleep", from, to, &resp); err != nil {
		return nil, err
	}
	return convertSleep(resp.Records), nil
}

// HeartRates returns heart-rate series in the window. A single series may
// carry several samples.
func (a *Adapter) HeartRates(ctx context.Context, from, to time.Time) ([]model.HeartRateSeries, error) {
	var resp heartRateResponse
	if err := a.fetch(ctx, "heart_rate", from, to, &resp); err != nil {
		return nil, err
	}
	return convertHeartRates(resp.Records), nil
}

// OxygenSaturation returns blood-oxygen readings in the window.
func (a *Adapter) OxygenSaturation(ctx context.Context, from, to time.Time) ([]model.OxygenReading, error) {
	var resp oxygenResponse
	if err := a.fetch(ctx, "oxygen_saturation", from, to, &resp); err != nil {
		return nil, err
	}
	return convertOxygen(resp.Records), nil
}

// ExerciseSessions returns workout sessions starting in the window.
func (a *Adapter) ExerciseSessions(ctx context.Context, from, to time.Time) ([]model.ExerciseSession, error) {
	var resp exerciseResponse
	if err := a.fetch(ctx, "exercise", from, to, &resp); err != nil {
		return nil, err
	}
	return convertExercise(resp.Records), nil
}
