// Package service implements the event and participant operations on top of
// the repositories: capacity checks, relationship bookkeeping, persistence
// and notification fan-out.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-roster/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ErrDuplicateEvent is returned when an event with the same name and date exists.
var ErrDuplicateEvent = errors.New("an event with the same name and date already exists")

// ErrDuplicateEmail is returned when another participant already uses the email.
var ErrDuplicateEmail = errors.New("a participant with this email already exists")

// Notifier hands a message to the external sink for each recipient without
// blocking and without reporting the outcome.
type Notifier interface {
	Dispatch(message string, recipients ...string)
}

// ValidationError reports invalid input.
type ValidationError struct {
	Err error
}

func (e ValidationError) Error() string {
	return "validation failed: " + describe(e.Err)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	return ValidationError{Err: err}
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// loggerFor prefers the request-scoped logger carried by ctx.
func loggerFor(ctx context.Context, fallback zerolog.Logger, component string) zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return fallback
	}
	return l.With().Str("component", component).Logger()
}

// countFailures returns how many deliveries a broadcast error covers.
func countFailures(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

func recordBroadcastFailures(logger zerolog.Logger, eventID string, err error) {
	n := countFailures(err)
	if n == 0 {
		return
	}
	metrics.BroadcastFailures.Add(float64(n))
	logger.Warn().Err(err).Str("event_id", eventID).Int("failures", n).Msg("broadcast delivered with failures")
}
