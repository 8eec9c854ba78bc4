package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/testhelpers"
)

func testConfig(fake *testhelpers.FakeOpenWeather) *config.Config {
	return &config.Config{
		ServiceName:                    "weather-dashboard",
		Version:                        "test",
		ServerPort:                     "0",
		WeatherAPIKey:                  "test-key",
		WeatherAPIURL:                  fake.BaseURL(),
		GeoAPIURL:                      fake.GeoURL(),
		WeatherAPITimeout:              2 * time.Second,
		RequestTimeout:                 3 * time.Second,
		CacheTTL:                       time.Minute,
		CacheKeysLimit:                 10,
		RateLimitRPS:                   100,
		RateLimitBurst:                 100,
		AllowedOrigins:                 []string{"*"},
		CircuitBreakerEnabled:          true,
		CircuitBreakerFailureThreshold: 2,
		CircuitBreakerSuccessThreshold: 1,
		CircuitBreakerTimeout:          time.Hour,
		HealthWindow:                   time.Minute,
		HealthErrorRatePct:             50,
		HealthMinRequests:              10,
		ShutdownTimeout:                time.Second,
	}
}

func TestNewApp_ServesWeatherAndHealth(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	a, err := newApp(testConfig(fake), zap.NewNop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/weather/current?location=London", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("current status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["cache_items"] != float64(1) {
		t.Errorf("cache_items = %v, want 1", health["cache_items"])
	}
	checks, _ := health["checks"].(map[string]interface{})
	if checks["circuitBreaker"] != "closed" {
		t.Errorf("checks.circuitBreaker = %v, want closed", checks["circuitBreaker"])
	}
}

func TestNewApp_BreakerOpensHealthDegrades(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	fake.SetStatus(testhelpers.PathCurrent, http.StatusBadGateway)
	a, err := newApp(testConfig(fake), zap.NewNop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	for _, loc := range []string{"London", "Paris", "Berlin"} {
		w := httptest.NewRecorder()
		a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/weather/current?location="+loc, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", loc, w.Code)
		}
	}
	if got := fake.Calls(testhelpers.PathCurrent); got != 2 {
		t.Errorf("upstream calls = %d, want 2 before the circuit opens", got)
	}

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503 with open circuit", w.Code)
	}
}

func TestNewApp_RejectsBadURL(t *testing.T) {
	fake := testhelpers.NewFakeOpenWeather(t)
	cfg := testConfig(fake)
	cfg.WeatherAPIURL = ""

	if _, err := newApp(cfg, zap.NewNop()); err == nil {
		t.Error("newApp() error = nil, want error for empty weather API URL")
	}
}
