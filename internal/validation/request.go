package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest wraps every struct-tag validation failure.
var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New()

// CurrentRequest asks for current conditions.
type CurrentRequest struct {
	Location string `validate:"required,max=100"`
	Units    string `validate:"omitempty,oneof=metric imperial standard kelvin"`
}

// ForecastRequest asks for up to Days daily summaries.
type ForecastRequest struct {
	Location string `validate:"required,max=100"`
	Units    string `validate:"omitempty,oneof=metric imperial standard kelvin"`
	Days     int    `validate:"min=1,max=5"`
}

// SearchRequest asks the geocoder for at most Limit matches.
type SearchRequest struct {
	Query string `validate:"required,min=2,max=100"`
	Limit int    `validate:"min=1,max=10"`
}

// ValidateRequest runs the struct tags on v and rewrites failures into one readable error
// wrapping ErrInvalidRequest.
func ValidateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
