package models

import (
	"strconv"
	"time"
)

// Units selects the measurement system requested from the provider.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
	UnitsStandard Units = "standard"
)

// LocationKind tags which variant a LocationQuery holds.
type LocationKind int

const (
	PlaceName LocationKind = iota
	Coordinates
)

func (k LocationKind) String() string {
	switch k {
	case Coordinates:
		return "coordinates"
	default:
		return "place_name"
	}
}

// LocationQuery is either Coordinates{Lat, Lon} or PlaceName{Name}. Parsed once at the
// service boundary; Kind decides which upstream query parameters are sent.
type LocationQuery struct {
	Kind LocationKind
	Lat  float64
	Lon  float64
	Name string
}

// String returns the canonical text form used in cache fingerprints.
func (q LocationQuery) String() string {
	if q.Kind == Coordinates {
		return strconv.FormatFloat(q.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(q.Lon, 'f', -1, 64)
	}
	return q.Name
}

// Condition is the provider's weather classification for a point in time.
type Condition struct {
	Code        int
	Main        string
	Description string
	Icon        string
}

// RawSample is one forecast time-point. Timestamp is already in the provider-local zone so
// its calendar date is the provider's day.
type RawSample struct {
	Timestamp time.Time
	Temp      float64
	Humidity  int
	Condition Condition
	WindSpeed float64
}

// DailySummary collapses one calendar day of samples.
type DailySummary struct {
	Date               string  `json:"date"`
	TemperatureMin     float64 `json:"temperature_min"`
	TemperatureMax     float64 `json:"temperature_max"`
	Humidity           int     `json:"humidity"`
	WeatherCode        int     `json:"weather_code"`
	WeatherMain        string  `json:"weather_main"`
	WeatherDescription string  `json:"weather_description"`
	Icon               string  `json:"icon"`
	WindSpeed          float64 `json:"wind_speed"`
}

// WeatherSnapshot is the normalized current-conditions record.
type WeatherSnapshot struct {
	Location           string    `json:"location"`
	Country            string    `json:"country"`
	Temperature        float64   `json:"temperature"`
	FeelsLike          float64   `json:"feels_like"`
	Humidity           int       `json:"humidity"`
	Pressure           int       `json:"pressure"`
	Visibility         int       `json:"visibility"`
	WindSpeed          float64   `json:"wind_speed"`
	WindDirection      int       `json:"wind_direction"`
	WeatherCode        int       `json:"weather_code"`
	WeatherMain        string    `json:"weather_main"`
	WeatherDescription string    `json:"weather_description"`
	Icon               string    `json:"icon"`
	Sunrise            time.Time `json:"sunrise"`
	Sunset             time.Time `json:"sunset"`
	Timezone           int       `json:"timezone"`
	Timestamp          time.Time `json:"timestamp"`
}

// Forecast is the per-day forecast for one location.
type Forecast struct {
	Location  string         `json:"location"`
	Country   string         `json:"country"`
	Days      []DailySummary `json:"forecast"`
	Timestamp time.Time      `json:"timestamp"`
}

// LocationResult is one geocoding match. State is nil when the provider has none.
type LocationResult struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   *string `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}
