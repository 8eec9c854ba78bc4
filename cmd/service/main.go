package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/scheduler"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

const breakerComponent = "weather_api"

// app is the wired service, ready to serve.
type app struct {
	handler   http.Handler
	inFlight  *httphandler.InFlightTracker
	scheduler *scheduler.Scheduler
	client    *client.OpenWeatherClient
}

func main() {
	logger, err := observability.NewLogger("weather-dashboard")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}

	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHER_API_KEY not set; upstream requests will be rejected")
	} else {
		probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.WeatherAPITimeout)
		if err := a.client.ValidateAPIKey(probeCtx); err != nil {
			logger.Warn("weather API key check failed", zap.Error(err),
				zap.String("category", string(client.CategorizeError(err))))
		}
		probeCancel()
	}

	if err := a.scheduler.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.String("service", cfg.ServiceName),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.BeginShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", a.inFlight.Count()))
	if err := a.inFlight.WaitForZero(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", a.inFlight.Count()))
	}
	a.scheduler.Stop()

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newApp wires gateway, cache, service, handlers, router and scheduler from cfg.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	weatherClient, err := client.NewOpenWeatherClient(client.Config{
		APIKey:  cfg.WeatherAPIKey,
		BaseURL: cfg.WeatherAPIURL,
		GeoURL:  cfg.GeoAPIURL,
		Timeout: cfg.WeatherAPITimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}

	var breakerState func() circuitbreaker.State
	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        breakerComponent,
			IsFailure:        client.IsBreakerFailure,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(float64(to))
				logger.Warn("circuit breaker state change",
					zap.String("component", breakerComponent),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		weatherClient.SetCircuitBreaker(cb)
		breakerState = cb.State
		observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(float64(circuitbreaker.StateClosed))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	responseCache := cache.New(cfg.CacheTTL)
	weatherService := service.NewWeatherService(weatherClient, responseCache,
		service.WithKeysLimit(cfg.CacheKeysLimit))

	tracker := traffic.NewTracker(traffic.Config{
		Window:       cfg.HealthWindow,
		ErrorRatePct: cfg.HealthErrorRatePct,
		MinRequests:  cfg.HealthMinRequests,
	})
	observability.RegisterTrafficGauges(
		func() float64 { return float64(tracker.RequestCount(tracker.Window())) },
		func() float64 { errs, _ := tracker.ErrorRate(tracker.Window()); return float64(errs) },
		func() float64 { return float64(tracker.DenialCount(tracker.Window())) },
	)
	observability.RegisterCacheGauge(func() float64 { return float64(responseCache.Len()) })
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	handler := httphandler.NewHandler(weatherService, tracker, httphandler.HealthConfig{
		ServiceName:      cfg.ServiceName,
		Version:          cfg.Version,
		APIKeyConfigured: cfg.WeatherAPIKey != "",
		BreakerState:     breakerState,
		ValidateAPIKey:   weatherClient.ValidateAPIKey,
	}, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	inFlight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		Traffic:        tracker,
		InFlight:       inFlight,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	sched := scheduler.New(scheduler.Config{
		SweepInterval: cfg.SweepInterval,
		WarmInterval:  cfg.WarmInterval,
		Locations:     cfg.TrackedLocations,
	}, responseCache, cache.NewCacheWarmer(weatherService, logger), logger)

	return &app{
		handler:   router,
		inFlight:  inFlight,
		scheduler: sched,
		client:    weatherClient,
	}, nil
}
