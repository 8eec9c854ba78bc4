// Package testhelpers provides a fake OpenWeatherMap server for package tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// FakeOpenWeather serves canned /data/2.5 and /geo/1.0 responses and counts calls per path.
type FakeOpenWeather struct {
	Server *httptest.Server

	mu       sync.Mutex
	status   map[string]int
	bodies   map[string]any
	queries  []string
	calls    map[string]*atomic.Int64
	lastCorr string
}

// Upstream paths served by FakeOpenWeather.
const (
	PathCurrent  = "/data/2.5/weather"
	PathForecast = "/data/2.5/forecast"
	PathGeo      = "/geo/1.0/direct"
)

// NewFakeOpenWeather starts a server answering every path with its default payload.
// The server is closed when the test ends.
func NewFakeOpenWeather(t testing.TB) *FakeOpenWeather {
	t.Helper()
	f := &FakeOpenWeather{
		status: make(map[string]int),
		bodies: map[string]any{
			PathCurrent:  CurrentPayload(),
			PathForecast: ForecastPayload(2, 8),
			PathGeo:      LocationsPayload(),
		},
		calls: map[string]*atomic.Int64{
			PathCurrent:  {},
			PathForecast: {},
			PathGeo:      {},
		},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the weather API root (…/data/2.5).
func (f *FakeOpenWeather) BaseURL() string { return f.Server.URL + "/data/2.5" }

// GeoURL is the geocoding API root (…/geo/1.0).
func (f *FakeOpenWeather) GeoURL() string { return f.Server.URL + "/geo/1.0" }

// SetStatus makes path answer with code and an error body. 0 restores 200.
func (f *FakeOpenWeather) SetStatus(path string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[path] = code
}

// SetBody replaces the JSON payload served on path.
func (f *FakeOpenWeather) SetBody(path string, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[path] = body
}

// Calls returns how many requests path has received.
func (f *FakeOpenWeather) Calls(path string) int {
	return int(f.calls[path].Load())
}

// Queries returns the raw query strings received, in order.
func (f *FakeOpenWeather) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// LastCorrelationID returns the X-Correlation-ID header of the latest request.
func (f *FakeOpenWeather) LastCorrelationID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCorr
}

func (f *FakeOpenWeather) serve(w http.ResponseWriter, r *http.Request) {
	counter, ok := f.calls[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	counter.Add(1)

	f.mu.Lock()
	f.queries = append(f.queries, r.URL.RawQuery)
	f.lastCorr = r.Header.Get("X-Correlation-ID")
	code := f.status[r.URL.Path]
	body := f.bodies[r.URL.Path]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if code != 0 && code != http.StatusOK {
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"cod": code, "message": http.StatusText(code)})
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// CurrentPayload is a complete /weather response for London.
func CurrentPayload() map[string]any {
	return map[string]any{
		"name":       "London",
		"timezone":   3600,
		"visibility": 10000,
		"sys": map[string]any{
			"country": "GB",
			"sunrise": 1717214400,
			"sunset":  1717273800,
		},
		"main": map[string]any{
			"temp":       15.5,
			"feels_like": 14.8,
			"humidity":   72,
			"pressure":   1012,
		},
		"weather": []map[string]any{
			{"id": 803, "main": "Clouds", "description": "broken clouds", "icon": "04d"},
		},
		"wind": map[string]any{"speed": 4.1, "deg": 230},
	}
}

// ForecastPayload builds a /forecast response of days*perDay entries at 3h spacing starting
// at 2024-06-01 00:00 UTC. Day d has temperatures d*10+10 … d*10+10+perDay-1.
func ForecastPayload(days, perDay int) map[string]any {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	list := make([]map[string]any, 0, days*perDay)
	for d := 0; d < days; d++ {
		for i := 0; i < perDay; i++ {
			ts := start.Add(time.Duration(d)*24*time.Hour + time.Duration(i)*3*time.Hour)
			list = append(list, map[string]any{
				"dt": ts.Unix(),
				"main": map[string]any{
					"temp":     float64(d*10 + 10 + i),
					"humidity": 60 + i,
				},
				"weather": []map[string]any{
					{"id": 500 + i, "main": "Rain", "description": "light rain", "icon": "10d"},
				},
				"wind": map[string]any{"speed": 2.5 + float64(i)},
			})
		}
	}
	return map[string]any{
		"list": list,
		"city": map[string]any{"name": "London", "country": "GB", "timezone": 0},
	}
}

// LocationsPayload is a /direct response with one entry lacking a state.
func LocationsPayload() []map[string]any {
	return []map[string]any{
		{"name": "London", "country": "GB", "state": "England", "lat": 51.5073, "lon": -0.1276},
		{"name": "London", "country": "CA", "lat": 42.9836, "lon": -81.2497},
	}
}
