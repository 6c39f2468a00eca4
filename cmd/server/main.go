package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/iudanet/boardsync/internal/config"
	"github.com/iudanet/boardsync/internal/logging"
	"github.com/iudanet/boardsync/internal/server/broker"
	"github.com/iudanet/boardsync/internal/server/hub"
	"github.com/iudanet/boardsync/internal/server/router"
	"github.com/iudanet/boardsync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	fs := pflag.NewFlagSet("boardsync-server", pflag.ExitOnError)
	showVersion := fs.Bool("version", false, "Show version information")
	config.RegisterFlags(fs, config.SectionLog, config.SectionServer)
	_ = fs.Parse(os.Args[1:])

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.Server, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	logger.Info("Boardsync relay starting", "version", Version, "address", cfg.Address)

	opts := hub.Options{
		Logger:   logger,
		PongWait: cfg.PongWait,
	}

	if cfg.Database != "" {
		store, err := sqlite.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close database", "error", err)
			}
		}()
		opts.Store = store
		logger.Info("Room state persisted", "database", cfg.Database)
	}

	var fanout *broker.Broker
	if cfg.RedisAddr != "" {
		b, err := broker.Connect(ctx, cfg.RedisAddr, cfg.RedisChannel, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			if err := b.Close(); err != nil {
				logger.Error("Failed to close redis", "error", err)
			}
		}()
		opts.Publisher = b
		fanout = b
	}

	relay := hub.New(opts)
	defer relay.Close()

	if fanout != nil {
		go func() {
			if err := fanout.Run(ctx, relay.ApplyExternal); err != nil {
				logger.Error("Redis subscription stopped", "error", err)
			}
		}()
	}

	rt := router.New(relay, logger, router.Limits{
		ConnectRate: cfg.ConnectRate,
		APIRate:     cfg.APIRate,
		Window:      cfg.RateWindow,
	})
	defer rt.Stop()

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           rt,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "address", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// websocket-подключения не закрываются Shutdown, их закрывает relay.Close
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func printVersion() {
	fmt.Printf("Boardsync Relay Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
