package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/gophdata/internal/app"
	"github.com/dmitrijs2005/gophdata/internal/config"
	"github.com/dmitrijs2005/gophdata/internal/logging"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	a, err := app.NewApp(cfg, logger)
	if err != nil {
		logger.Error(ctx, "init failed", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		logger.Error(ctx, "run failed", "error", err)
		os.Exit(1)
	}
}
