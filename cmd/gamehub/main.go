package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/gamehub/internal/adapter/driven/keyfile"
	sqliteadapter "github.com/ericfisherdev/gamehub/internal/adapter/driven/sqlite"
	steamadapter "github.com/ericfisherdev/gamehub/internal/adapter/driven/steam"
	httphandler "github.com/ericfisherdev/gamehub/internal/adapter/driving/http"
	"github.com/ericfisherdev/gamehub/internal/application"
	"github.com/ericfisherdev/gamehub/internal/config"
	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"steam_base_url", cfg.SteamBaseURL,
		"session_ttl", cfg.SessionTTL,
		"bind_session_ip", cfg.BindSessionIP,
		"revoke_on_reauth", cfg.RevokeOnReauth,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Load or create the credential encryption key.
	key, err := keyfile.LoadOrCreate(cfg.KeyPath)
	if err != nil {
		return err
	}
	slog.Info("encryption key ready", "path", cfg.KeyPath)

	// 4. Open database (dual reader/writer with WAL mode) and migrate.
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	m := metrics.New()

	credentialStore, err := sqliteadapter.NewCredentialRepo(db, key)
	if err != nil {
		return err
	}
	sessionStore := sqliteadapter.NewSessionRepo(db)
	rateLimitStore := sqliteadapter.NewRateLimitRepo(db)
	auditStore := sqliteadapter.NewAuditRepo(db)

	steamClient, err := steamadapter.NewClient(cfg.SteamBaseURL, cfg.UpstreamTimeout, m)
	if err != nil {
		return err
	}

	// 6. Create application services.
	auditor := application.NewAuditor(auditStore, cfg.StoreTimeout)
	limiter := application.NewRateLimiter(rateLimitStore, application.RateLimiterConfig{
		Limits: map[model.RateAction]application.RateLimit{
			model.RateActionAuth: {Max: cfg.AuthRateLimit, Window: cfg.AuthRateWindow},
			model.RateActionAPI:  {Max: cfg.APIRateLimit, Window: cfg.APIRateWindow},
		},
		Block:        cfg.BlockDuration,
		StoreTimeout: cfg.StoreTimeout,
	}, m)

	sessionSvc := application.NewSessionService(
		credentialStore,
		sessionStore,
		steamClient,
		limiter,
		auditor,
		application.SessionConfig{
			TTL:            cfg.SessionTTL,
			StoreTimeout:   cfg.StoreTimeout,
			BindIP:         cfg.BindSessionIP,
			RevokeOnReauth: cfg.RevokeOnReauth,
		},
		m,
	)
	viewSvc := application.NewViewService(
		sessionSvc,
		limiter,
		credentialStore,
		steamClient,
		auditor,
		application.ViewConfig{RecentLimit: cfg.RecentLimit, StoreTimeout: cfg.StoreTimeout},
	)

	// 7. Start the expiry sweeper.
	sweepSvc := application.NewSweepService(
		sessionStore,
		rateLimitStore,
		cfg.SweepInterval,
		cfg.SessionRetention,
		cfg.StoreTimeout,
		m,
	)
	sweepDone := sweepSvc.Run(ctx)

	// 8. Create HTTP handler with routes and middleware.
	apiHandler := httphandler.NewHandler(sessionSvc, viewSvc, cfg.TrustProxy, logger)
	handler := httphandler.NewServeMux(apiHandler, m, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("gamehub started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal or a listener failure.
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			runErr = err
		}
	}
	stop()

	// 10. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// 11. Wait for the sweeper so the database is not closed under it.
	<-sweepDone

	slog.Info("shutdown complete")
	return runErr
}

// newLogger builds the process logger from the configured level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
