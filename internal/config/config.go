// Package config loads service configuration from config/{ENV_NAME}.yaml, .env and the
// process environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServiceName string
	Version     string

	ServerPort string

	// WeatherAPIKey may be empty; the provider then answers 401.
	WeatherAPIKey     string
	WeatherAPIURL     string
	GeoAPIURL         string
	WeatherAPITimeout time.Duration

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheKeysLimit int
	SweepInterval  time.Duration
	WarmInterval   time.Duration

	RateLimitRPS   int
	RateLimitBurst int
	AllowedOrigins []string

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	HealthWindow       time.Duration
	HealthErrorRatePct int
	HealthMinRequests  int

	ShutdownTimeout time.Duration

	TrackedLocations []string
}

type fileConfig struct {
	Service struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"service"`

	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		GeoURL  string `yaml:"geo_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		TTL           string `yaml:"ttl"`
		KeysLimit     int    `yaml:"keys_limit"`
		SweepInterval string `yaml:"sweep_interval"`
		WarmInterval  string `yaml:"warm_interval"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Health struct {
		Window       string `yaml:"window"`
		ErrorRatePct int    `yaml:"error_rate_pct"`
		MinRequests  int    `yaml:"min_requests"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// envOverrides are applied after the YAML file. Empty or zero values leave the file value.
type envOverrides struct {
	WeatherAPIKey     string        `envconfig:"WEATHER_API_KEY"`
	OpenWeatherAPIKey string        `envconfig:"OPENWEATHER_API_KEY"`
	WeatherAPIURL     string        `envconfig:"WEATHER_API_URL"`
	GeoAPIURL         string        `envconfig:"GEO_API_URL"`
	CacheTTL          time.Duration `envconfig:"CACHE_TTL"`
	ServerPort        string        `envconfig:"SERVER_PORT"`
	AllowedOrigins    []string      `envconfig:"ALLOWED_ORIGINS"`
	TrackedLocations  []string      `envconfig:"TRACKED_LOCATIONS"`
}

// Load reads .env, config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml from the working
// directory, then applies environment overrides. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load rooted at dir instead of the working directory.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var ov envOverrides
	if err := envconfig.Process("", &ov); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg := fromFile(fc)

	cfg.WeatherAPIKey = firstNonEmpty(ov.WeatherAPIKey, ov.OpenWeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		key, err := readSecrets(filepath.Join(dir, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.WeatherAPIKey = key
	}
	if ov.WeatherAPIURL != "" {
		cfg.WeatherAPIURL = ov.WeatherAPIURL
	}
	if ov.GeoAPIURL != "" {
		cfg.GeoAPIURL = ov.GeoAPIURL
	}
	if ov.CacheTTL > 0 {
		cfg.CacheTTL = ov.CacheTTL
	}
	if ov.ServerPort != "" {
		cfg.ServerPort = ov.ServerPort
	}
	if len(ov.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = ov.AllowedOrigins
	}
	if len(ov.TrackedLocations) > 0 {
		cfg.TrackedLocations = ov.TrackedLocations
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromFile applies defaults to every field the file leaves unset.
func fromFile(fc fileConfig) *Config {
	cfg := &Config{
		ServiceName: strings.TrimSpace(fc.Service.Name),
		Version:     strings.TrimSpace(fc.Service.Version),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "weather-dashboard"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8002"
	}
	cfg.AllowedOrigins = fc.Server.AllowedOrigins
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5"
	}
	cfg.GeoAPIURL = fc.WeatherAPI.GeoURL
	if cfg.GeoAPIURL == "" {
		cfg.GeoAPIURL = "https://api.openweathermap.org/geo/1.0"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 600*time.Second)
	cfg.CacheKeysLimit = fc.Cache.KeysLimit
	if cfg.CacheKeysLimit <= 0 {
		cfg.CacheKeysLimit = 10
	}
	cfg.SweepInterval = parseDurationOrZero(fc.Cache.SweepInterval, 0)
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = true
	if cb.Enabled != nil {
		cfg.CircuitBreakerEnabled = *cb.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)

	cfg.HealthWindow = parseDuration(fc.Health.Window, 60*time.Second)
	cfg.HealthErrorRatePct = fc.Health.ErrorRatePct
	if cfg.HealthErrorRatePct <= 0 {
		cfg.HealthErrorRatePct = 50
	}
	cfg.HealthMinRequests = fc.Health.MinRequests
	if cfg.HealthMinRequests <= 0 {
		cfg.HealthMinRequests = 10
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 15*time.Second)
	cfg.TrackedLocations = fc.Metrics.TrackedLocations
	return cfg
}

func readSecrets(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised above WeatherAPITimeout so
// the upstream call always gets its full budget.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	if cfg.SweepInterval < 0 || cfg.WarmInterval < 0 {
		return fmt.Errorf("cache.sweep_interval and cache.warm_interval must not be negative")
	}
	if cfg.HealthErrorRatePct > 100 {
		return fmt.Errorf("health.error_rate_pct must be at most 100, got %d", cfg.HealthErrorRatePct)
	}
	return nil
}
