package client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels.
const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey    ErrorCategory = "invalid_api_key"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryRateLimited      ErrorCategory = "rate_limited"
	ErrorCategoryUpstream5xx      ErrorCategory = "upstream_5xx"
	ErrorCategoryUpstreamOther    ErrorCategory = "upstream_other"
	ErrorCategoryCircuitOpen      ErrorCategory = "circuit_open"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ErrorCategoryCircuitOpen
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized:
			return ErrorCategoryInvalidAPIKey
		case statusErr.StatusCode == http.StatusNotFound:
			return ErrorCategoryLocationNotFound
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return ErrorCategoryRateLimited
		case statusErr.StatusCode >= 500:
			return ErrorCategoryUpstream5xx
		default:
			return ErrorCategoryUpstreamOther
		}
	}

	if errors.Is(err, ErrTransport) {
		if strings.Contains(err.Error(), "Client.Timeout") || strings.Contains(err.Error(), "timeout") {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		return ErrorCategoryInvalidAPIKey
	}
	if errors.Is(err, ErrUpstreamFailure) && strings.Contains(err.Error(), "parse") {
		return ErrorCategoryParsing
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return ErrorCategoryUpstreamOther
	}
	return ErrorCategoryUnknown
}
