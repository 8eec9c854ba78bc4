package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// Gateway fetches raw provider payloads. Each call makes at most one upstream attempt.
type Gateway interface {
	FetchCurrent(ctx context.Context, loc models.LocationQuery, units models.Units) (RawCurrent, error)
	FetchForecast(ctx context.Context, loc models.LocationQuery, units models.Units) (RawForecast, error)
	SearchLocations(ctx context.Context, text string, limit int) ([]RawLocation, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrTransport        = errors.New("transport failure")
)

// StatusError is a non-200 provider response. errors.Is maps 401 to ErrInvalidAPIKey,
// 404 to ErrLocationNotFound and every other code to ErrUpstreamFailure.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream HTTP %d", e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrInvalidAPIKey:
		return e.StatusCode == http.StatusUnauthorized
	case ErrLocationNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUpstreamFailure:
		return e.StatusCode != http.StatusUnauthorized && e.StatusCode != http.StatusNotFound
	}
	return false
}

// TransportError means the HTTP round trip did not complete.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Config configures an OpenWeatherClient.
type Config struct {
	APIKey  string
	BaseURL string // e.g. https://api.openweathermap.org/data/2.5
	GeoURL  string // e.g. https://api.openweathermap.org/geo/1.0
	Timeout time.Duration
}

// OpenWeatherClient implements Gateway against the OpenWeatherMap REST API.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	geoURL  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewOpenWeatherClient validates cfg and returns a client. An empty API key is allowed; the
// provider then answers 401 and callers see ErrInvalidAPIKey.
func NewOpenWeatherClient(cfg Config) (*OpenWeatherClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("weather API base URL is required")
	}
	if cfg.GeoURL == "" {
		return nil, fmt.Errorf("geocoding API URL is required")
	}
	for _, raw := range []string{cfg.BaseURL, cfg.GeoURL} {
		if _, err := url.Parse(raw); err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", raw, err)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &OpenWeatherClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		geoURL:  strings.TrimRight(cfg.GeoURL, "/"),
		timeout: cfg.Timeout,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// SetCircuitBreaker wraps every upstream call in cb. nil disables it.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// IsBreakerFailure reports whether err should count against the circuit. 401 and 404 are the
// provider answering correctly, so they do not.
func IsBreakerFailure(err error) bool {
	return !errors.Is(err, ErrLocationNotFound) && !errors.Is(err, ErrInvalidAPIKey) &&
		!errors.Is(err, context.Canceled)
}

func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, loc models.LocationQuery, units models.Units) (RawCurrent, error) {
	var out RawCurrent
	err := c.call(ctx, "current", c.baseURL+"/weather", locationParams(loc, units), &out)
	return out, err
}

func (c *OpenWeatherClient) FetchForecast(ctx context.Context, loc models.LocationQuery, units models.Units) (RawForecast, error) {
	var out RawForecast
	err := c.call(ctx, "forecast", c.baseURL+"/forecast", locationParams(loc, units), &out)
	return out, err
}

func (c *OpenWeatherClient) SearchLocations(ctx context.Context, text string, limit int) ([]RawLocation, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("limit", strconv.Itoa(limit))
	var out []RawLocation
	err := c.call(ctx, "locations", c.geoURL+"/direct", params, &out)
	return out, err
}

// ValidateAPIKey probes the current-weather endpoint with a fixed location.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: API key not configured", ErrInvalidAPIKey)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(ctx, c.baseURL+"/weather", locationParams(models.LocationQuery{Name: "London"}, models.UnitsMetric))
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// locationParams maps a LocationQuery to lat/lon or q query parameters.
func locationParams(loc models.LocationQuery, units models.Units) url.Values {
	params := url.Values{}
	if loc.Kind == models.Coordinates {
		params.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		params.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	} else {
		params.Set("q", loc.Name)
	}
	if units != "" {
		params.Set("units", string(units))
	}
	return params
}

// call performs one GET through the optional circuit breaker and decodes the JSON body into out.
func (c *OpenWeatherClient) call(ctx context.Context, operation, endpoint string, params url.Values, out any) error {
	do := func() error { return c.do(ctx, operation, endpoint, params, out) }
	if c.breaker == nil {
		return do()
	}
	err := c.breaker.Call(ctx, do)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		observability.WeatherAPICallsTotal.WithLabelValues(operation, "circuit_open").Inc()
		return fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	return err
}

func (c *OpenWeatherClient) do(ctx context.Context, operation, endpoint string, params url.Values, out any) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, params)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(operation, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(operation, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(operation, "error").Observe(time.Since(start).Seconds())
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(operation, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", ErrUpstreamFailure, err)
	}
	return nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	params.Set("appid", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
