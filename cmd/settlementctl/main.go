package main

import (
	"context"
	"fmt"
	"os"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/internal/server"
	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/presentation/controllers"
	"github.com/joho/godotenv"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load()

	root := newRootCmd(openService, os.Stdout)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openService wires the settlement service from the same environment as the
// HTTP server.
func openService(ctx context.Context) (controllers.SettlementService, func(), error) {
	cfg := server.ConfigFromEnv()
	logger, err := server.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	rt, err := server.OpenRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return rt.Service, func() {
		rt.Close()
		_ = logger.Sync()
	}, nil
}

