package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/normalize"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// Category classifies an orchestrator error for the caller-facing surface.
type Category int

const (
	InvalidInput Category = iota + 1
	NotFound
	ServiceUnavailable
)

func (c Category) String() string {
	switch c {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case ServiceUnavailable:
		return "service_unavailable"
	default:
		return "unknown"
	}
}

// Error is returned by every WeatherService operation. Message is safe to show callers;
// Err keeps the cause for errors.Is and logs.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// CategoryOf returns the category of err, or ServiceUnavailable for errors that did not come
// from this package.
func CategoryOf(err error) Category {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Category
	}
	return ServiceUnavailable
}

func invalidInput(err error) *Error {
	msg := err.Error()
	if errors.Is(err, validation.ErrInvalidCoordinates) {
		msg = "Invalid coordinates format"
	}
	return &Error{Category: InvalidInput, Message: msg, Err: err}
}

// upstreamError maps a gateway or normalizer failure. provider is "Weather" or "Location";
// location is the caller's text, echoed in not-found messages.
func upstreamError(provider, location string, err error) *Error {
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		if provider == locationProvider {
			return &Error{Category: NotFound, Message: fmt.Sprintf("No locations found for '%s'", location), Err: err}
		}
		return &Error{Category: NotFound, Message: fmt.Sprintf("Location '%s' not found", location), Err: err}
	case errors.Is(err, client.ErrInvalidAPIKey):
		return &Error{Category: ServiceUnavailable, Message: provider + " service unavailable - API key required", Err: err}
	case errors.Is(err, normalize.ErrMalformedUpstreamData):
		return &Error{Category: ServiceUnavailable, Message: provider + " service returned malformed data", Err: err}
	case errors.Is(err, client.ErrTransport):
		return &Error{Category: ServiceUnavailable, Message: "Unable to connect to " + strings.ToLower(provider) + " service", Err: err}
	default:
		return &Error{Category: ServiceUnavailable, Message: provider + " service temporarily unavailable", Err: err}
	}
}
