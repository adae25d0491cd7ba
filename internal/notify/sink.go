// Package notify delivers notification messages to an external sink without
// blocking the caller.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sink sends one message to one recipient address.
type Sink interface {
	Send(ctx context.Context, recipient, message string) error
}

// LogSink simulates email delivery by writing each message to the log after
// a fixed latency.
type LogSink struct {
	latency time.Duration
	logger  zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(latency time.Duration, logger zerolog.Logger) *LogSink {
	return &LogSink{
		latency: latency,
		logger:  logger.With().Str("component", "email").Logger(),
	}
}

// Send validates the recipient, waits for the simulated latency and logs the message.
func (s *LogSink) Send(ctx context.Context, recipient, message string) error {
	if err := validateEmailAddress(recipient); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.logger.Info().
		Str("to", recipient).
		Str("message", message).
		Msg("notification email sent")
	return nil
}

// validateEmailAddress rejects malformed addresses and header injection attempts.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}
