package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/install-tickets/internal/api/http"
	"github.com/spec-kit/install-tickets/internal/api/http/handlers"
	"github.com/spec-kit/install-tickets/internal/auth"
	"github.com/spec-kit/install-tickets/internal/events"
	"github.com/spec-kit/install-tickets/internal/notify"
	"github.com/spec-kit/install-tickets/internal/observability"
	"github.com/spec-kit/install-tickets/internal/persistence"
	"github.com/spec-kit/install-tickets/internal/repository"
	"github.com/spec-kit/install-tickets/internal/service"
	"github.com/spec-kit/install-tickets/internal/worker"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()
	pool := pg.PoolHandle()
	if pool == nil {
		return fmt.Errorf("serve: POSTGRES_DSN is not set")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	rds := persistence.NewRedis(cfg.Redis, logger)
	defer rds.Close()

	metrics := observability.NewMetrics(strings.ReplaceAll(cfg.App.Name, "-", "_"))

	notifier, err := notify.New(cfg.Notification, logger)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	defer notifier.Close() //nolint:errcheck

	notifications := worker.NewNotificationWorker(notifier, logger, metrics, cfg.Worker.Concurrency, cfg.Worker.QueueSize)
	notifications.Start()

	store := repository.NewStore(pool)
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, store.Users(), notifications, logger).RegisterHandlers()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	authService := service.NewAuthService(cfg.Auth, store, tokens, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		Observer:   metrics,
	})

	probes := map[string]handlers.Pinger{"postgres": pg}
	if rds.Client != nil {
		probes["redis"] = rds
	}

	app := httptransport.NewServer(cfg.App, logger, metrics, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, probes),
		Users:          handlers.NewUsersHandler(authService),
		Clients:        handlers.NewClientsHandler(service.NewCustomerService(store, logger)),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Reports:        handlers.NewReportsHandler(service.NewReportService(store)),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		LoginLimiter:   httptransport.LoginRateLimiter(cfg.RateLimit, rds.Scripter(), logger),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	var serveErr error
	select {
	case serveErr = <-listenErr:
		if serveErr != nil {
			logger.Error("fiber listen", zap.Error(serveErr))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := notifications.Stop(shutdownCtx); err != nil {
		logger.Warn("notification worker drain", zap.Error(err))
	}
	return serveErr
}
