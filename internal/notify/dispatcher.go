package notify

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Shivanand-hulikatti/event-roster/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options tunes a Dispatcher.
type Options struct {
	// MaxInFlight bounds concurrent delivery tasks. Work submitted while the
	// bound is reached is dropped.
	MaxInFlight int
	// RatePerSecond throttles sink calls; zero or less disables throttling.
	RatePerSecond float64
	Burst         int
}

// Dispatcher hands messages to a Sink on background goroutines. Dispatch
// never blocks on the sink, never retries, and never reports the outcome to
// the caller; failures are logged and counted.
type Dispatcher struct {
	sink    Sink
	limiter *rate.Limiter
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	group  errgroup.Group
}

// NewDispatcher creates a Dispatcher delivering to sink.
func NewDispatcher(sink Sink, opts Options, logger zerolog.Logger) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:    sink,
		limiter: limiter,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	if opts.MaxInFlight > 0 {
		d.group.SetLimit(opts.MaxInFlight)
	}
	return d
}

// Dispatch submits message for every recipient as one background task and
// returns immediately.
func (d *Dispatcher) Dispatch(message string, recipients ...string) {
	if len(recipients) == 0 {
		return
	}
	recipients = slices.Clone(recipients)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(message, recipients, "dispatcher closed")
		return
	}
	started := d.group.TryGo(func() error {
		d.deliver(message, recipients)
		return nil
	})
	if !started {
		d.drop(message, recipients, "too many deliveries in flight")
	}
}

func (d *Dispatcher) deliver(message string, recipients []string) {
	for i, to := range recipients {
		if err := d.limiter.Wait(d.ctx); err != nil {
			d.drop(message, recipients[i:], err.Error())
			return
		}
		if err := d.send(to, message); err != nil {
			metrics.NotificationsDispatched.WithLabelValues("failed").Inc()
			d.logger.Error().Err(err).Str("to", to).Msg("notification delivery failed")
			continue
		}
		metrics.NotificationsDispatched.WithLabelValues("sent").Inc()
	}
}

func (d *Dispatcher) send(to, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return d.sink.Send(d.ctx, to, message)
}

func (d *Dispatcher) drop(message string, recipients []string, reason string) {
	metrics.NotificationsDispatched.WithLabelValues("dropped").Add(float64(len(recipients)))
	d.logger.Warn().
		Strs("to", recipients).
		Str("message", message).
		Str("reason", reason).
		Msg("notification dropped")
}

// Close stops accepting work and waits for in-flight deliveries. If ctx ends
// first, pending deliveries are abandoned and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

// Discard drops every message. It stands in for a Dispatcher when delivery
// is disabled.
type Discard struct{}

func (Discard) Dispatch(string, ...string) {}
