package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/testhelpers"
)

func newTestClient(t *testing.T, fake *testhelpers.FakeOpenWeather) *OpenWeatherClient {
	t.Helper()
	c, err := NewOpenWeatherClient(Config{
		APIKey:  "test-key",
		BaseURL: fake.BaseURL(),
		GeoURL:  fake.GeoURL(),
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return c
}

func TestNewOpenWeatherClient_Config(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{APIKey: "k", BaseURL: "https://api.test.com/data/2.5", GeoURL: "https://api.test.com/geo/1.0"},
		},
		{
			name: "empty API key allowed",
			cfg:  Config{BaseURL: "https://api.test.com/data/2.5", GeoURL: "https://api.test.com/geo/1.0"},
		},
		{
			name:    "missing base URL",
			cfg:     Config{GeoURL: "https://api.test.com/geo/1.0"},
			wantErr: true,
		},
		{
			name:    "missing geo URL",
			cfg:     Config{BaseURL: "https://api.test.com/data/2.5"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewOpenWeatherClient(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewOpenWeatherClient() expected error, got nil")
				}
				if c != nil {
					t.Error("NewOpenWeatherClient() expected nil client on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOpenWeatherClient() unexpected error: %v", err)
			}
			if c.timeout != 5*time.Second {
				t.Errorf("default timeout = %v, want 5s", c.timeout)
			}
		})
	}
}

func TestOpenWeatherClient_FetchCurrent_PlaceName(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	c := newTestClient(t, fake)

	raw, err := c.FetchCurrent(context.Background(), models.LocationQuery{Name: "london"}, models.UnitsMetric)
	if err != nil {
		t.Fatalf("FetchCurrent() error = %v", err)
	}
	if raw.Name == nil || *raw.Name != "London" {
		t.Errorf("Name = %v, want London", raw.Name)
	}
	if raw.Main == nil || raw.Main.Temp == nil || *raw.Main.Temp != 15.5 {
		t.Errorf("Main.Temp = %+v, want 15.5", raw.Main)
	}

	q, _ := url.ParseQuery(fake.Queries()[0])
	if q.Get("q") != "london" || q.Get("units") != "metric" || q.Get("appid") != "test-key" {
		t.Errorf("query = %v, want q=london units=metric appid=test-key", q)
	}
	if q.Has("lat") || q.Has("lon") {
		t.Errorf("place name query sent coordinates: %v", q)
	}
}

func TestOpenWeatherClient_FetchCurrent_Coordinates(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	c := newTestClient(t, fake)

	loc := models.LocationQuery{Kind: models.Coordinates, Lat: 51.5074, Lon: -0.1278}
	if _, err := c.FetchCurrent(context.Background(), loc, models.UnitsImperial); err != nil {
		t.Fatalf("FetchCurrent() error = %v", err)
	}

	q, _ := url.ParseQuery(fake.Queries()[0])
	if q.Get("lat") != "51.5074" || q.Get("lon") != "-0.1278" {
		t.Errorf("lat/lon = %s/%s, want 51.5074/-0.1278", q.Get("lat"), q.Get("lon"))
	}
	if q.Has("q") {
		t.Errorf("coordinate query sent q=%s", q.Get("q"))
	}
	if q.Get("units") != "imperial" {
		t.Errorf("units = %s, want imperial", q.Get("units"))
	}
	if got := fake.Calls(testhelpers.PathGeo); got != 0 {
		t.Errorf("geocoding calls = %d, want 0", got)
	}
}

func TestOpenWeatherClient_FetchForecast(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	c := newTestClient(t, fake)

	raw, err := c.FetchForecast(context.Background(), models.LocationQuery{Name: "london"}, models.UnitsMetric)
	if err != nil {
		t.Fatalf("FetchForecast() error = %v", err)
	}
	if len(raw.List) != 16 {
		t.Errorf("len(List) = %d, want 16", len(raw.List))
	}
	if raw.City == nil || raw.City.Country == nil || *raw.City.Country != "GB" {
		t.Errorf("City = %+v, want country GB", raw.City)
	}
}

func TestOpenWeatherClient_SearchLocations(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	c := newTestClient(t, fake)

	raw, err := c.SearchLocations(context.Background(), "London", 5)
	if err != nil {
		t.Fatalf("SearchLocations() error = %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(raw))
	}
	if raw[1].State != nil {
		t.Errorf("results[1].State = %v, want nil", *raw[1].State)
	}

	q, _ := url.ParseQuery(fake.Queries()[0])
	if q.Get("q") != "London" || q.Get("limit") != "5" {
		t.Errorf("query = %v, want q=London limit=5", q)
	}
}

func TestOpenWeatherClient_ErrorHandling(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{name: "401 invalid API key", statusCode: http.StatusUnauthorized, wantErr: ErrInvalidAPIKey},
		{name: "404 location not found", statusCode: http.StatusNotFound, wantErr: ErrLocationNotFound},
		{name: "429 rate limited", statusCode: http.StatusTooManyRequests, wantErr: ErrUpstreamFailure},
		{name: "500 internal server error", statusCode: http.StatusInternalServerError, wantErr: ErrUpstreamFailure},
		{name: "503 service unavailable", statusCode: http.StatusServiceUnavailable, wantErr: ErrUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testhelpers.NewFakeOpenWeather(t)
			fake.SetStatus(testhelpers.PathCurrent, tt.statusCode)
			c := newTestClient(t, fake)

			_, err := c.FetchCurrent(context.Background(), models.LocationQuery{Name: "x"}, models.UnitsMetric)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchCurrent() error = %v, want %v", err, tt.wantErr)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.statusCode {
				t.Errorf("FetchCurrent() error = %v, want StatusError{%d}", err, tt.statusCode)
			}
		})
	}
}

func TestOpenWeatherClient_SingleAttempt(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	fake.SetStatus(testhelpers.PathForecast, http.StatusServiceUnavailable)
	c := newTestClient(t, fake)

	_, _ = c.FetchForecast(context.Background(), models.LocationQuery{Name: "x"}, models.UnitsMetric)
	if got := fake.Calls(testhelpers.PathForecast); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestOpenWeatherClient_MalformedBody(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	fake.SetBody(testhelpers.PathCurrent, []string{"not", "an", "object"})
	c := newTestClient(t, fake)

	_, err := c.FetchCurrent(context.Background(), models.LocationQuery{Name: "x"}, models.UnitsMetric)
	if !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("FetchCurrent() error = %v, want ErrUpstreamFailure", err)
	}
	if got := CategorizeError(err); got != ErrorCategoryParsing {
		t.Errorf("CategorizeError() = %q, want %q", got, ErrorCategoryParsing)
	}
}

func TestOpenWeatherClient_Transport(t *testing.T) {
	c, err := NewOpenWeatherClient(Config{
		BaseURL: "http://127.0.0.1:1/data/2.5",
		GeoURL:  "http://127.0.0.1:1/geo/1.0",
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	_, err = c.FetchCurrent(context.Background(), models.LocationQuery{Name: "x"}, models.UnitsMetric)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("FetchCurrent() error = %v, want ErrTransport", err)
	}
	if errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("transport error also matched ErrUpstreamFailure: %v", err)
	}
}

func TestOpenWeatherClient_ContextCancellation(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	c := newTestClient(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchCurrent(ctx, models.LocationQuery{Name: "x"}, models.UnitsMetric)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("FetchCurrent() error = %v, want context.Canceled", err)
	}
}

func TestOpenWeatherClient_CorrelationID(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	c := newTestClient(t, fake)

	ctx := observability.WithCorrelationID(context.Background(), "corr-123")
	if _, err := c.FetchCurrent(ctx, models.LocationQuery{Name: "x"}, models.UnitsMetric); err != nil {
		t.Fatalf("FetchCurrent() error = %v", err)
	}
	if got := fake.LastCorrelationID(); got != "corr-123" {
		t.Errorf("X-Correlation-ID = %q, want corr-123", got)
	}
}

func TestOpenWeatherClient_CircuitBreaker(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	fake.SetStatus(testhelpers.PathCurrent, http.StatusBadGateway)
	c := newTestClient(t, fake)
	c.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 2,
		Timeout:          time.Hour,
		Component:        "weather_api",
		IsFailure:        IsBreakerFailure,
	}))
	ctx := context.Background()
	loc := models.LocationQuery{Name: "x"}

	for i := 0; i < 2; i++ {
		_, _ = c.FetchCurrent(ctx, loc, models.UnitsMetric)
	}
	_, err := c.FetchCurrent(ctx, loc, models.UnitsMetric)
	if !errors.Is(err, circuitbreaker.ErrOpen) || !errors.Is(err, ErrUpstreamFailure) {
		t.Errorf("FetchCurrent() on open circuit error = %v, want ErrOpen and ErrUpstreamFailure", err)
	}
	if got := fake.Calls(testhelpers.PathCurrent); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestOpenWeatherClient_CircuitBreaker_IgnoresNotFound(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	fake.SetStatus(testhelpers.PathCurrent, http.StatusNotFound)
	c := newTestClient(t, fake)
	c.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 1,
		Timeout:          time.Hour,
		IsFailure:        IsBreakerFailure,
	}))

	for i := 0; i < 3; i++ {
		_, err := c.FetchCurrent(context.Background(), models.LocationQuery{Name: "nowhere"}, models.UnitsMetric)
		if !errors.Is(err, ErrLocationNotFound) {
			t.Fatalf("call %d error = %v, want ErrLocationNotFound", i, err)
		}
	}
}

func TestOpenWeatherClient_ValidateAPIKey(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	c := newTestClient(t, fake)
	if err := c.ValidateAPIKey(context.Background()); err != nil {
		t.Errorf("ValidateAPIKey() error = %v", err)
	}

	fake.SetStatus(testhelpers.PathCurrent, http.StatusUnauthorized)
	if err := c.ValidateAPIKey(context.Background()); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("ValidateAPIKey() error = %v, want ErrInvalidAPIKey", err)
	}

	noKey, _ := NewOpenWeatherClient(Config{BaseURL: fake.BaseURL(), GeoURL: fake.GeoURL()})
	err := noKey.ValidateAPIKey(context.Background())
	if !errors.Is(err, ErrInvalidAPIKey) || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("ValidateAPIKey() without key error = %v", err)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{
		200: "success",
		404: "client_error",
		429: "rate_limited",
		503: "server_error",
		301: "error",
	}
	for code, want := range tests {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}
