package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/saker-ai/chiku/pkg/runtime"
)

func main() {
	configPath := flag.String("config", "", "path to conf.yaml (defaults to searching upward from the working directory)")
	flag.Parse()

	server, err := runtime.New(*configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		defer fallback.Sync()
		fallback.Fatal("failed to start chiku", zap.Error(err))
	}

	logger := server.Logger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("http server error", zap.Error(err))
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
}
