package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/phillip-england/hrms/internal/apiapp"
	"github.com/phillip-england/hrms/internal/envutil"
	"github.com/phillip-england/hrms/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loadErr := envutil.Load(".env")
	logger := logging.FromEnv()
	if loadErr != nil {
		logger.WithError(loadErr).Fatal("load .env")
	}
	cfg, err := apiapp.DefaultConfigFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("api config")
	}
	if err := apiapp.Run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("api stopped")
	}
}
