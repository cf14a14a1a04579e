package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eventhub/auth"
	"eventhub/broker"
	"eventhub/config"
	"eventhub/handlers"
	"eventhub/middleware"
	"eventhub/service"
	"eventhub/telemetry"
	"eventhub/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.Init(ctx, telemetry.Config{
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return multierr.Append(err, shutdownTracer(context.Background()))
	}
	log.Info("database ready", zap.String("driver", cfg.Database.Driver))

	pub, err := broker.New(cfg.Broker.Kind, cfg.Broker.URL, cfg.Broker.Exchange)
	if err != nil {
		return multierr.Combine(err, store.Close(), shutdownTracer(context.Background()))
	}

	// Close the store last, after in-flight requests and workers are done.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err = multierr.Combine(err, pub.Close(), shutdownTracer(cleanupCtx), store.Close())
		log.Info("server exited")
	}()

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	h := &handlers.Handlers{
		Auth:          service.NewAuthService(store, tokens, log),
		Events:        service.NewEventService(store),
		Registrations: service.NewRegistrationService(store, pub, log),
		Log:           log,
	}
	router := handlers.NewRouter(h, middleware.Authenticate(tokens))

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      withMiddleware(router, cfg, log),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return worker.Reconcile(gctx, store, cfg.Reconcile.Interval, log)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// withMiddleware wraps the router. Logging sits outside Recovery so a request
// that panics is still logged, with the 500 Recovery wrote.
func withMiddleware(h http.Handler, c config.Config, log *zap.Logger) http.Handler {
	return middleware.Chain(h,
		middleware.Logging(log),
		middleware.Recovery(log),
		middleware.CORS(c.HTTP.CORSOrigin),
		middleware.RateLimit(c.RateLimit.RPS, c.RateLimit.Burst),
	)
}
