package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/event-roster/internal/config"
	"github.com/Shivanand-hulikatti/event-roster/internal/handler"
	"github.com/Shivanand-hulikatti/event-roster/internal/notify"
	"github.com/Shivanand-hulikatti/event-roster/internal/repository"
	"github.com/Shivanand-hulikatti/event-roster/internal/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Load participants, then events, from the data directory
- Start the notification dispatcher
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration
  event-roster serve

  # Start on a specific host and port
  event-roster serve --host 127.0.0.1 --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "server port (default: 8080)")
	return cmd
}

// app is the wired service graph.
type app struct {
	events     *service.EventService
	people     *service.ParticipantService
	dispatcher *notify.Dispatcher
}

// buildApp opens both stores, participants first so events can re-link
// them, and wires the services.
func buildApp(cfg config.Config, logger zerolog.Logger) (*app, error) {
	participants, err := repository.NewParticipantRepository(cfg.Storage.ParticipantsPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("open participant store: %w", err)
	}
	events, err := repository.NewEventRepository(cfg.Storage.EventsPath(), participants, logger)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	a := &app{}
	var notifier service.Notifier = notify.Discard{}
	if cfg.Notify.Enabled {
		a.dispatcher = notify.NewDispatcher(
			notify.NewLogSink(cfg.Notify.SimulatedLatency, logger),
			notify.Options{
				MaxInFlight:   cfg.Notify.MaxInFlight,
				RatePerSecond: cfg.Notify.RatePerSecond,
				Burst:         cfg.Notify.Burst,
			},
			logger,
		)
		notifier = a.dispatcher
	}

	a.people = service.NewParticipantService(participants, logger)
	a.events = service.NewEventService(events, a.people, service.NewIndex(), notifier, logger)
	return a, nil
}

func (a *app) close(ctx context.Context) error {
	if a.dispatcher == nil {
		return nil
	}
	return a.dispatcher.Close(ctx)
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("environment", cfg.Environment).Msg("starting event roster server")

	a, err := buildApp(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler.Router(handler.New(a.events, a.people), logger),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	if err := a.close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("notification dispatcher did not drain")
	}
	logger.Info().Msg("server stopped")
	return nil
}
