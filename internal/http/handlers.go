package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

const (
	defaultUnits = "metric"
	defaultDays  = 5
	defaultLimit = 5
)

// HealthConfig holds what the health and info handlers report besides live state.
type HealthConfig struct {
	ServiceName      string
	Version          string
	APIKeyConfigured bool
	// BreakerState, when set, reports the upstream circuit breaker state.
	BreakerState func() circuitbreaker.State
	// ValidateAPIKey probes the provider. Only run for GET /health?check=upstream.
	ValidateAPIKey func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService   *service.WeatherService
	traffic          *traffic.Tracker
	healthConfig     HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev traffic.Status
}

// NewHandler returns a new Handler.
func NewHandler(
	weatherService *service.WeatherService,
	tracker *traffic.Tracker,
	healthConfig HealthConfig,
	logger *zap.Logger,
) *Handler {
	if healthConfig.ServiceName == "" {
		healthConfig.ServiceName = "weather-dashboard"
	}
	if healthConfig.Version == "" {
		healthConfig.Version = "dev"
	}
	return &Handler{
		weatherService: weatherService,
		traffic:        tracker,
		healthConfig:   healthConfig,
		logger:         logger,
	}
}

// GetRoot handles GET /.
func (h *Handler) GetRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Weather Dashboard API",
		"service": h.healthConfig.ServiceName,
		"version": h.healthConfig.Version,
		"endpoints": map[string]string{
			"/weather/current":  "Get current weather for a location",
			"/weather/forecast": "Get up to 5-day weather forecast",
			"/locations/search": "Search for locations",
			"/cache/stats":      "Cache statistics",
			"/cache/clear":      "Clear the cache (DELETE)",
			"/health":           "Health check endpoint",
			"/metrics":          "Prometheus metrics",
		},
		"status":      "operational",
		"cache_items": h.weatherService.CacheSize(),
	})
}

// GetCurrentWeather handles GET /weather/current?location=&units=.
func (h *Handler) GetCurrentWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.weatherService.CurrentWeather(r.Context(), service.CurrentRequest{
		Location: q.Get("location"),
		Units:    queryDefault(q.Get("units"), defaultUnits),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.record(traffic.Success)
	writeCached(w, res.Cached)
	writeJSON(w, http.StatusOK, res.Value)
}

// GetForecast handles GET /weather/forecast?location=&units=&days=.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, ok := queryInt(w, r, "days", defaultDays)
	if !ok {
		return
	}
	res, err := h.weatherService.Forecast(r.Context(), service.ForecastRequest{
		Location: q.Get("location"),
		Units:    queryDefault(q.Get("units"), defaultUnits),
		Days:     days,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.record(traffic.Success)
	writeCached(w, res.Cached)
	writeJSON(w, http.StatusOK, res.Value)
}

// SearchLocations handles GET /locations/search?query=&limit=.
func (h *Handler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", defaultLimit)
	if !ok {
		return
	}
	res, err := h.weatherService.SearchLocations(r.Context(), service.SearchRequest{
		Query: r.URL.Query().Get("query"),
		Limit: limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.record(traffic.Success)
	writeCached(w, res.Cached)
	writeJSON(w, http.StatusOK, res.Value)
}

// GetCacheStats handles GET /cache/stats.
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	st := h.weatherService.CacheStats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_cache_items":      st.Total,
		"valid_cache_items":      st.Valid,
		"expired_cache_items":    st.Expired,
		"cache_duration_seconds": st.TTLSeconds,
		"cache_keys":             st.Keys,
	})
}

// ClearCache handles DELETE /cache/clear.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	n := h.weatherService.ClearCache()
	observability.LoggerFromContext(r.Context()).Info("cache cleared", zap.Int("items_removed", n))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Cache cleared successfully",
		"items_removed": n,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, reason := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", string(prev)),
			zap.String("current_status", string(status)),
			zap.String("reason", reason))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if status == traffic.StatusDegraded {
		checks["weatherApi"] = "unhealthy"
	}
	if h.healthConfig.BreakerState != nil {
		checks["circuitBreaker"] = h.healthConfig.BreakerState().String()
	}
	if !h.healthConfig.APIKeyConfigured {
		checks["apiKey"] = "missing"
	} else if r.URL.Query().Get("check") == "upstream" && h.healthConfig.ValidateAPIKey != nil {
		if err := h.healthConfig.ValidateAPIKey(r.Context()); err != nil {
			checks["apiKey"] = string(client.CategorizeError(err))
		} else {
			checks["apiKey"] = "valid"
		}
	}

	statusCode := http.StatusOK
	if status != traffic.StatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":             status,
		"service":            h.healthConfig.ServiceName,
		"version":            h.healthConfig.Version,
		"cache_items":        h.weatherService.CacheSize(),
		"api_key_configured": h.healthConfig.APIKeyConfigured,
		"checks":             checks,
		"traffic":            h.traffic.Snapshot(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, open circuit, error rate.
func (h *Handler) computeHealthStatus() (traffic.Status, string) {
	if lifecycle.IsShuttingDown() {
		return traffic.StatusShuttingDown, "signal"
	}
	if h.healthConfig.BreakerState != nil && h.healthConfig.BreakerState() == circuitbreaker.StateOpen {
		return traffic.StatusDegraded, "circuit_open"
	}
	if h.traffic.Health() == traffic.StatusDegraded {
		return traffic.StatusDegraded, "error_rate_breach"
	}
	return traffic.StatusHealthy, ""
}

func (h *Handler) record(o traffic.Outcome) {
	if h.traffic != nil {
		h.traffic.Record(o)
	}
}

// writeServiceError maps a service error category to status and code. Only upstream
// unavailability counts against health.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	switch service.CategoryOf(err) {
	case service.InvalidInput:
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case service.NotFound:
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	if status == http.StatusServiceUnavailable {
		h.record(traffic.Error)
	} else {
		h.record(traffic.Success)
	}

	message := "Weather service temporarily unavailable"
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Message
	}
	writeError(w, r, status, code, message)
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}

func writeCached(w http.ResponseWriter, cached bool) {
	if cached {
		w.Header().Set("X-Cache", "HIT")
		return
	}
	w.Header().Set("X-Cache", "MISS")
}

func queryDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// queryInt reads an integer query parameter, writing a 400 and returning false when it is
// present but not an integer.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", name+" must be an integer")
		return 0, false
	}
	return n, true
}
