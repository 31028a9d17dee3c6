package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iris-relay/iris-relay/internal/config"
	"github.com/iris-relay/iris-relay/internal/directory"
	"github.com/iris-relay/iris-relay/internal/logging"
	"github.com/iris-relay/iris-relay/internal/registry"
	"github.com/iris-relay/iris-relay/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML/JSON config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // best-effort flush

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := directory.NewUserStore()
	sessions := directory.NewSessionStore()
	contacts := directory.NewContactStore()
	reg := registry.NewInMemory()

	srv := server.NewRelayServer(cfg, logger, users, sessions, contacts, reg)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("relay exited", zap.Error(err))
	}
}
