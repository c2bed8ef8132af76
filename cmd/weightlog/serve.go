package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	adapthttp "weightlog/internal/adapter/http"
	"weightlog/internal/adapter/memory"
	"weightlog/internal/adapter/postgres"
	"weightlog/internal/app"
	"weightlog/internal/config"
	"weightlog/internal/domain"
)

const shutdownTimeout = 10 * time.Second

// store bundles the repositories behind one backend.
type store struct {
	weights  domain.WeightRepository
	users    domain.UserRepository
	sessions domain.SessionRepository
	close    func() error
}

// openStore uses Postgres when a database URL is configured and the
// in-memory store otherwise.
func openStore(c *config.Config, log *zap.Logger) (*store, error) {
	if c.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store; data is lost on exit")
		db := memory.New()
		return &store{weights: db, users: db, sessions: db.NewSessionRepo(), close: func() error { return nil }}, nil
	}

	db, err := postgres.Open(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	return &store{weights: db, users: db, sessions: postgres.NewSessionRepo(db), close: db.Close}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	authSvc := app.NewAuthService(st.users, st.sessions).WithSessionTTL(cfg.SessionTTL())
	srv := adapthttp.New(app.NewWeightService(st.weights), app.NewHistoryService(st.weights), authSvc, cfg.WebDir).
		WithLogger(logger).
		WithForwardAuth(cfg.Auth.ForwardAuth)

	if cfg.OIDC.Enabled() {
		oidcCfg, err := adapthttp.NewOIDCConfig(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURL)
		if err != nil {
			return fmt.Errorf("oidc setup: %w", err)
		}
		srv.WithOIDC(oidcCfg)
		logger.Info("sso enabled", zap.String("issuer", cfg.OIDC.Issuer))
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return purgeSessions(gctx, authSvc, cfg.SessionCleanupInterval())
	})

	return g.Wait()
}

// purgeSessions removes expired sessions every interval until ctx is done.
func purgeSessions(ctx context.Context, auth *app.AuthService, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := auth.PurgeExpiredSessions(ctx); err != nil {
				logger.Warn("session cleanup failed", zap.Error(err))
			}
		}
	}
}
