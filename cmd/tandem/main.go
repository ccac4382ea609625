package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/tandem"
)

func main() {
	log := logger.New(logger.DefaultConfig)
	atexit.Register(func() {
		_ = log.Sync()
	})

	ctx, cancel := signal.NotifyContext(logger.WithLogger(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		log.Error("Command failed", zap.Error(err))
	}
	atexit.Exit(tandem.ExitCode(err))
}
