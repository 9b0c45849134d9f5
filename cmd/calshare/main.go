package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/example/calshare/internal/application"
	"github.com/example/calshare/internal/async"
	"github.com/example/calshare/internal/config"
	httptransport "github.com/example/calshare/internal/http"
	"github.com/example/calshare/internal/icsexport"
	"github.com/example/calshare/internal/logging"
	"github.com/example/calshare/internal/metrics"
	"github.com/example/calshare/internal/notify"
	"github.com/example/calshare/internal/persistence/sqlite"
	"github.com/example/calshare/internal/wiring"
)

const shutdownTimeout = 10 * time.Second

func main() {
	bootstrap := logging.New(os.Stdout, "info")

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("calshare exited with error", "error", err)
		os.Exit(1)
	}
}

// app is the assembled process: storage, services, HTTP handler and the
// background machinery that must be drained on shutdown.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	storage  *sqlite.Storage
	services *wiring.Services
	metrics  *metrics.Metrics
	runner   *async.Runner
	cron     *cron.Cron
	handler  http.Handler
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	storage, err := sqlite.Open(cfg.SQLiteDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	links, err := notify.NewLinkBuilder(cfg.AppURL)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	m := metrics.New(nil)
	runner := async.NewRunner(async.DefaultTaskTimeout, logger)

	services := wiring.NewServices(wiring.Options{
		Store:          storage,
		Notifier:       notifier,
		Links:          links,
		Tasks:          runner,
		Exporter:       icsexport.NewExporter(""),
		Observer:       m,
		IDGenerator:    uuid.NewString,
		SessionTokens:  func() string { return randomHex(32) },
		InviteTokens:   application.NewInviteToken,
		PasswordHasher: application.HashPassword,
		PasswordVerify: application.VerifyPassword,
		Now:            time.Now,
		SessionTTL:     cfg.SessionTTL,
		InviteTTL:      cfg.InviteTTL,
		Logger:         logger,
	})

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:      httptransport.NewAuthHandler(services.Auth, services.Users, logger),
		Calendars: httptransport.NewCalendarHandler(services.Calendars, logger),
		Members:   httptransport.NewMemberHandler(services.Members, logger),
		Invites: httptransport.NewInviteHandler(services.Invites, httptransport.InviteHandlerOptions{
			Links:        links,
			ExposeTokens: cfg.ExposeInviteTokens,
			Logger:       logger,
		}),
		Events:      httptransport.NewEventHandler(services.Events, logger),
		Health:      httptransport.NewHealthHandler(storage, logger),
		Sessions:    services.Auth,
		Metrics:     m.Handler(),
		Observer:    m,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SessionCleanup, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := services.Auth.PruneExpiredSessions(jobCtx); err != nil {
			logger.Error("session cleanup failed", "error", err)
		}
	}); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("schedule session cleanup: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		storage:  storage,
		services: services,
		metrics:  m,
		runner:   runner,
		cron:     scheduler,
		handler:  handler,
	}, nil
}

// shutdown stops the cron scheduler, drains background tasks and closes storage.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error

	cronDone := a.cron.Stop()
	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for cron jobs: %w", ctx.Err()))
	}
	if err := a.runner.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.cron.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("calshare API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
		if err := a.shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		logger.Info("calshare stopped")
		return errors.Join(errs...)
	})
	return g.Wait()
}

func buildNotifier(cfg config.Config, logger *slog.Logger) (application.InviteNotifier, error) {
	if !cfg.SMTP.Enabled() {
		logger.Warn("SMTP is not configured; invite notifications are only logged")
		return notify.NewLogSender(logger), nil
	}
	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return nil, fmt.Errorf("configure smtp: %w", err)
	}
	return sender, nil
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
