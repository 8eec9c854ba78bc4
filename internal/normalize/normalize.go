// Package normalize turns raw provider payloads into the service's domain records.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/forecast"
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ErrMalformedUpstreamData means a payload lacked a required field.
var ErrMalformedUpstreamData = errors.New("malformed upstream data")

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformedUpstreamData, field)
}

// Current maps a /weather payload. now stamps the snapshot.
func Current(raw client.RawCurrent, now time.Time) (models.WeatherSnapshot, error) {
	if raw.Name == nil {
		return models.WeatherSnapshot{}, missing("name")
	}
	if raw.Sys == nil || raw.Sys.Country == nil {
		return models.WeatherSnapshot{}, missing("sys.country")
	}
	if raw.Main == nil || raw.Main.Temp == nil {
		return models.WeatherSnapshot{}, missing("main.temp")
	}
	cond, err := condition(raw.Weather, "weather")
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	snap := models.WeatherSnapshot{
		Location:           *raw.Name,
		Country:            *raw.Sys.Country,
		Temperature:        *raw.Main.Temp,
		FeelsLike:          deref(raw.Main.FeelsLike),
		Humidity:           deref(raw.Main.Humidity),
		Pressure:           deref(raw.Main.Pressure),
		Visibility:         deref(raw.Visibility),
		WeatherCode:        cond.Code,
		WeatherMain:        cond.Main,
		WeatherDescription: cond.Description,
		Icon:               cond.Icon,
		Timezone:           deref(raw.Timezone),
		Timestamp:          now,
	}
	if raw.Wind != nil {
		snap.WindSpeed = deref(raw.Wind.Speed)
		snap.WindDirection = deref(raw.Wind.Deg)
	}
	if raw.Sys.Sunrise != nil {
		snap.Sunrise = time.Unix(*raw.Sys.Sunrise, 0).UTC()
	}
	if raw.Sys.Sunset != nil {
		snap.Sunset = time.Unix(*raw.Sys.Sunset, 0).UTC()
	}
	return snap, nil
}

// Forecast maps a /forecast payload and aggregates it into at most days daily summaries.
// Sample timestamps are shifted into the city's UTC offset so days follow the provider's
// local calendar.
func Forecast(raw client.RawForecast, days int, now time.Time) (models.Forecast, error) {
	if raw.City == nil || raw.City.Name == nil {
		return models.Forecast{}, missing("city.name")
	}
	if raw.City.Country == nil {
		return models.Forecast{}, missing("city.country")
	}
	offset := deref(raw.City.Timezone)
	zone := time.FixedZone(zoneName(offset), offset)

	samples := make([]models.RawSample, 0, len(raw.List))
	for i, entry := range raw.List {
		prefix := fmt.Sprintf("list[%d]", i)
		if entry.Dt == nil {
			return models.Forecast{}, missing(prefix + ".dt")
		}
		if entry.Main == nil || entry.Main.Temp == nil {
			return models.Forecast{}, missing(prefix + ".main.temp")
		}
		cond, err := condition(entry.Weather, prefix+".weather")
		if err != nil {
			return models.Forecast{}, err
		}
		sample := models.RawSample{
			Timestamp: time.Unix(*entry.Dt, 0).In(zone),
			Temp:      *entry.Main.Temp,
			Humidity:  deref(entry.Main.Humidity),
			Condition: cond,
		}
		if entry.Wind != nil {
			sample.WindSpeed = deref(entry.Wind.Speed)
		}
		samples = append(samples, sample)
	}

	return models.Forecast{
		Location:  *raw.City.Name,
		Country:   *raw.City.Country,
		Days:      forecast.Aggregate(samples, days),
		Timestamp: now,
	}, nil
}

// Locations maps a geocoding /direct payload. A nil payload yields an empty slice.
func Locations(raw []client.RawLocation) ([]models.LocationResult, error) {
	out := make([]models.LocationResult, 0, len(raw))
	for i, item := range raw {
		prefix := fmt.Sprintf("[%d]", i)
		switch {
		case item.Name == nil:
			return nil, missing(prefix + ".name")
		case item.Country == nil:
			return nil, missing(prefix + ".country")
		case item.Lat == nil || item.Lon == nil:
			return nil, missing(prefix + ".lat/lon")
		}
		out = append(out, models.LocationResult{
			Name:    *item.Name,
			Country: *item.Country,
			State:   item.State,
			Lat:     *item.Lat,
			Lon:     *item.Lon,
		})
	}
	return out, nil
}

// condition reads the first weather entry. Code and main are required.
func condition(list []client.RawCondition, field string) (models.Condition, error) {
	if len(list) == 0 {
		return models.Condition{}, missing(field)
	}
	first := list[0]
	if first.ID == nil {
		return models.Condition{}, missing(field + "[0].id")
	}
	if first.Main == nil {
		return models.Condition{}, missing(field + "[0].main")
	}
	return models.Condition{
		Code:        *first.ID,
		Main:        *first.Main,
		Description: titleCase(first.Description),
		Icon:        first.Icon,
	}, nil
}

// titleCase upper-cases the first letter of each word. Casers are stateful, so one is
// built per call.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

func zoneName(offset int) string {
	if offset == 0 {
		return "UTC"
	}
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
