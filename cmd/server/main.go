package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/internal/server"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/authz"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := server.ConfigFromEnv()

	logger, err := server.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg server.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := server.OpenRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	tenants, err := rt.TenancyResolver(cfg)
	if err != nil {
		return err
	}
	verifier, err := server.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}
	authorizer, err := authz.AuthorizerFromEnv()
	if err != nil {
		return err
	}

	h, err := server.NewHandlerWithOptions(server.HandlerOptions{
		TenancyResolver: tenants,
		Verifier:        verifier,
		Authorizer:      authorizer,
		Service:         rt.Service,
		Health:          rt.Health(),
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	if len(cfg.CORSAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "traceparent", "X-Request-ID"},
			MaxAge:         600,
		}).Handler(h)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.SettlementStore),
			zap.String("authz_mode", string(authorizer.Mode())),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
