// Package service orchestrates parse, cache lookup, upstream fetch, normalization and cache
// store for every weather operation.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/fingerprint"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/normalize"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// Operation names, used as fingerprint prefixes and metric labels.
const (
	OpCurrent   = "current"
	OpForecast  = "forecast"
	OpLocations = "locations"
)

const (
	weatherProvider  = "Weather"
	locationProvider = "Location"

	// DefaultKeysLimit caps the keys listed by CacheStats.
	DefaultKeysLimit = 10
)

type (
	CurrentRequest  = validation.CurrentRequest
	ForecastRequest = validation.ForecastRequest
	SearchRequest   = validation.SearchRequest
)

// Result is a successful answer annotated with whether it came from the cache.
type Result[T any] struct {
	Value  T
	Cached bool
}

// CacheStats is the monitoring view of the response cache.
type CacheStats struct {
	Total      int
	Valid      int
	Expired    int
	TTLSeconds int
	Keys       []string
}

// WeatherService answers weather queries cache-aside over a single upstream attempt.
// Errors are never cached; concurrent misses on one key each fetch and the last write wins.
type WeatherService struct {
	gateway         client.Gateway
	cache           *cache.TTLCache
	stampedeTracker *stampedeTracker
	now             func() time.Time
	keysLimit       int
}

// Option configures a WeatherService.
type Option func(*WeatherService)

// WithClock sets the time source used to stamp normalized records.
func WithClock(now func() time.Time) Option {
	return func(s *WeatherService) { s.now = now }
}

// WithKeysLimit sets how many keys CacheStats lists.
func WithKeysLimit(n int) Option {
	return func(s *WeatherService) {
		if n > 0 {
			s.keysLimit = n
		}
	}
}

// NewWeatherService creates a WeatherService over gateway and c.
func NewWeatherService(gateway client.Gateway, c *cache.TTLCache, opts ...Option) *WeatherService {
	s := &WeatherService{
		gateway:         gateway,
		cache:           c,
		stampedeTracker: newStampedeTracker(),
		now:             time.Now,
		keysLimit:       DefaultKeysLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentWeather returns current conditions for req.Location.
func (s *WeatherService) CurrentWeather(ctx context.Context, req CurrentRequest) (Result[models.WeatherSnapshot], error) {
	var zero Result[models.WeatherSnapshot]
	req.Units = foldUnits(req.Units)
	if err := validation.ValidateRequest(req); err != nil {
		return zero, s.fail(ctx, OpCurrent, invalidInput(err))
	}
	loc, units, err := parseLocationAndUnits(req.Location, req.Units)
	if err != nil {
		return zero, s.fail(ctx, OpCurrent, invalidInput(err))
	}
	observability.RecordWeatherQuery(loc.String())

	key := fingerprint.Build(OpCurrent, map[string]any{
		"location": loc.String(),
		"units":    string(units),
	})
	res, err := lookup(ctx, s, OpCurrent, key, func(ctx context.Context) (models.WeatherSnapshot, error) {
		raw, err := s.gateway.FetchCurrent(ctx, loc, units)
		if err != nil {
			return models.WeatherSnapshot{}, err
		}
		return normalize.Current(raw, s.now())
	})
	if err != nil {
		return zero, s.fail(ctx, OpCurrent, upstreamError(weatherProvider, strings.TrimSpace(req.Location), err))
	}
	return res, nil
}

// Forecast returns up to req.Days daily summaries for req.Location.
func (s *WeatherService) Forecast(ctx context.Context, req ForecastRequest) (Result[models.Forecast], error) {
	var zero Result[models.Forecast]
	req.Units = foldUnits(req.Units)
	if err := validation.ValidateRequest(req); err != nil {
		return zero, s.fail(ctx, OpForecast, invalidInput(err))
	}
	loc, units, err := parseLocationAndUnits(req.Location, req.Units)
	if err != nil {
		return zero, s.fail(ctx, OpForecast, invalidInput(err))
	}
	observability.RecordWeatherQuery(loc.String())

	key := fingerprint.Build(OpForecast, map[string]any{
		"location": loc.String(),
		"units":    string(units),
		"days":     req.Days,
	})
	res, err := lookup(ctx, s, OpForecast, key, func(ctx context.Context) (models.Forecast, error) {
		raw, err := s.gateway.FetchForecast(ctx, loc, units)
		if err != nil {
			return models.Forecast{}, err
		}
		return normalize.Forecast(raw, req.Days, s.now())
	})
	if err != nil {
		return zero, s.fail(ctx, OpForecast, upstreamError(weatherProvider, strings.TrimSpace(req.Location), err))
	}
	return res, nil
}

// SearchLocations returns at most req.Limit geocoding matches for req.Query.
func (s *WeatherService) SearchLocations(ctx context.Context, req SearchRequest) (Result[[]models.LocationResult], error) {
	var zero Result[[]models.LocationResult]
	if err := validation.ValidateRequest(req); err != nil {
		return zero, s.fail(ctx, OpLocations, invalidInput(err))
	}
	query, err := validation.ValidateQuery(req.Query)
	if err != nil {
		return zero, s.fail(ctx, OpLocations, invalidInput(err))
	}

	key := fingerprint.Build(OpLocations, map[string]any{
		"query": strings.ToLower(query),
		"limit": req.Limit,
	})
	res, err := lookup(ctx, s, OpLocations, key, func(ctx context.Context) ([]models.LocationResult, error) {
		raw, err := s.gateway.SearchLocations(ctx, query, req.Limit)
		if err != nil {
			return nil, err
		}
		return normalize.Locations(raw)
	})
	if err != nil {
		return zero, s.fail(ctx, OpLocations, upstreamError(locationProvider, query, err))
	}
	return res, nil
}

// WarmCurrent loads current metric conditions for location into the cache if absent.
func (s *WeatherService) WarmCurrent(ctx context.Context, location string) error {
	_, err := s.CurrentWeather(ctx, CurrentRequest{Location: location, Units: string(models.UnitsMetric)})
	return err
}

// CacheStats classifies cached entries without evicting them.
func (s *WeatherService) CacheStats() CacheStats {
	st := s.cache.Stats()
	return CacheStats{
		Total:      st.Total,
		Valid:      st.Valid,
		Expired:    st.Expired,
		TTLSeconds: int(st.TTL / time.Second),
		Keys:       s.cache.Keys(s.keysLimit),
	}
}

// ClearCache removes every cached entry and returns how many there were.
func (s *WeatherService) ClearCache() int {
	return s.cache.Clear()
}

// CacheSize is the number of entries held, valid or expired.
func (s *WeatherService) CacheSize() int {
	return s.cache.Len()
}

// lookup runs CacheLookup, then UpstreamFetch and CacheStore on a miss. fetch errors are
// returned unclassified and never stored.
func lookup[T any](ctx context.Context, s *WeatherService, operation, key string, fetch func(context.Context) (T, error)) (Result[T], error) {
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	if v, ok := s.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			observability.CacheHitsTotal.WithLabelValues(operation).Inc()
			logger.Debug("cache hit", zap.String("operation", operation), zap.String("key", key))
			return Result[T]{Value: typed, Cached: true}, nil
		}
		logger.Warn("cached value has unexpected type, treating as miss",
			zap.String("operation", operation), zap.String("key", key))
	}
	observability.CacheMissesTotal.WithLabelValues(operation).Inc()

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.RecordHit(key)
	if concurrentMisses > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(operation).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(operation).Observe(float64(concurrentMisses))
	}
	logger.Debug("cache miss, fetching upstream", zap.String("operation", operation), zap.String("key", key))

	value, err := fetch(ctx)
	if err != nil {
		var zero Result[T]
		return zero, err
	}
	s.cache.Put(key, value)
	logger.Debug("upstream served",
		zap.String("operation", operation),
		zap.Bool("cached", false),
		zap.Duration("duration", time.Since(start)))
	return Result[T]{Value: value}, nil
}

// fail records err against operation and logs it at a level matching its category.
func (s *WeatherService) fail(ctx context.Context, operation string, err *Error) error {
	observability.ServiceErrorsTotal.WithLabelValues(operation, err.Category.String()).Inc()
	logger := observability.LoggerFromContext(ctx)
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("category", err.Category.String()),
		zap.Error(err.Err),
	}
	if err.Category == ServiceUnavailable {
		fields = append(fields, zap.String("upstream_category", string(client.CategorizeError(err.Err))))
		logger.Warn(err.Message, fields...)
	} else {
		logger.Debug(err.Message, fields...)
	}
	return err
}

// foldUnits makes units matching case-insensitive before tag validation.
func foldUnits(units string) string {
	return strings.ToLower(strings.TrimSpace(units))
}

func parseLocationAndUnits(location, units string) (models.LocationQuery, models.Units, error) {
	if _, err := validation.ValidateLocation(location, 1, 100); err != nil {
		return models.LocationQuery{}, "", err
	}
	loc, err := validation.ParseLocation(location)
	if err != nil {
		return models.LocationQuery{}, "", err
	}
	u, err := validation.ParseUnits(units)
	if err != nil {
		return models.LocationQuery{}, "", err
	}
	return loc, u, nil
}
