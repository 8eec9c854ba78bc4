package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ErrInvalidCoordinates is returned for text that starts like a "lat,lon" pair but is not a
// valid one.
var ErrInvalidCoordinates = errors.New("invalid coordinates format")

// ErrInvalidUnits is returned for an unknown unit system.
var ErrInvalidUnits = errors.New("invalid units")

// ParseLocation classifies text as Coordinates or PlaceName. Text containing a comma whose
// first field is numeric or empty is a coordinate attempt and must be exactly two finite numbers with
// lat in [-90, 90] and lon in [-180, 180]. Anything else is a place name, trimmed and
// lower-cased.
func ParseLocation(text string) (models.LocationQuery, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return models.LocationQuery{}, ErrLocationEmpty
	}

	fields := strings.Split(s, ",")
	if len(fields) < 2 {
		return placeName(s), nil
	}
	first := strings.TrimSpace(fields[0])
	lat, err := parseFinite(first)
	if err != nil {
		if first == "" {
			return models.LocationQuery{}, fmt.Errorf("%w: missing latitude", ErrInvalidCoordinates)
		}
		return placeName(s), nil
	}
	if len(fields) != 2 {
		return models.LocationQuery{}, fmt.Errorf("%w: expected lat,lon", ErrInvalidCoordinates)
	}
	lon, err := parseFinite(fields[1])
	if err != nil {
		return models.LocationQuery{}, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinates, strings.TrimSpace(fields[1]))
	}
	if lat < -90 || lat > 90 {
		return models.LocationQuery{}, fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinates, lat)
	}
	if lon < -180 || lon > 180 {
		return models.LocationQuery{}, fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinates, lon)
	}
	return models.LocationQuery{Kind: models.Coordinates, Lat: lat, Lon: lon}, nil
}

func placeName(s string) models.LocationQuery {
	return models.LocationQuery{Kind: models.PlaceName, Name: strings.ToLower(s)}
}

func parseFinite(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", field)
	}
	return v, nil
}

// ParseUnits maps a units parameter to models.Units. Empty selects metric; "kelvin" is an
// alias for standard.
func ParseUnits(s string) (models.Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric":
		return models.UnitsMetric, nil
	case "imperial":
		return models.UnitsImperial, nil
	case "standard", "kelvin":
		return models.UnitsStandard, nil
	}
	return "", fmt.Errorf("%w: %q (want metric, imperial or standard)", ErrInvalidUnits, s)
}
