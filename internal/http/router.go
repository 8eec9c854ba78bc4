package http

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

// RouterConfig holds the middleware settings for NewRouter.
type RouterConfig struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter // nil disables rate limiting
	Traffic        *traffic.Tracker
	InFlight       *InFlightTracker
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter wires every route. Data routes (/weather, /locations) are rate-limited and
// time-bounded; the whole tree is wrapped in CORS and panic recovery.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.InFlight == nil {
		cfg.InFlight = &InFlightTracker{}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(cfg.Logger))
	router.Use(MetricsMiddleware(cfg.InFlight))

	router.HandleFunc("/", h.GetRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/cache/stats", h.GetCacheStats).Methods(http.MethodGet)
	router.HandleFunc("/cache/clear", h.ClearCache).Methods(http.MethodDelete)

	data := router.NewRoute().Subrouter()
	data.Use(RateLimitMiddleware(cfg.Limiter, cfg.Traffic))
	data.Use(TimeoutMiddleware(cfg.RequestTimeout))
	data.HandleFunc("/weather/current", h.GetCurrentWeather).Methods(http.MethodGet)
	data.HandleFunc("/weather/forecast", h.GetForecast).Methods(http.MethodGet)
	data.HandleFunc("/locations/search", h.SearchLocations).Methods(http.MethodGet)

	return wrapOuter(router, cfg)
}

// wrapOuter adds CORS and panic recovery around next.
func wrapOuter(next http.Handler, cfg RouterConfig) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Correlation-ID"}),
		handlers.ExposedHeaders([]string{"X-Correlation-ID", "X-Cache"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(cfg.Logger)),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(cors(next))
}
