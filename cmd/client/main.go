package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/iudanet/boardsync/internal/client/adapter"
	"github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/client/cli"
	"github.com/iudanet/boardsync/internal/client/iocli"
	"github.com/iudanet/boardsync/internal/client/session"
	"github.com/iudanet/boardsync/internal/client/storage/boltdb"
	"github.com/iudanet/boardsync/internal/client/transport"
	"github.com/iudanet/boardsync/internal/config"
	"github.com/iudanet/boardsync/internal/logging"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	fs := pflag.NewFlagSet("boardsync-client", pflag.ExitOnError)
	// флаги только до команды: координаты вида -2 не должны разбираться как флаги
	fs.SetInterspersed(false)
	showVersion := fs.Bool("version", false, "Show version information")
	config.RegisterFlags(fs, config.SectionLog, config.SectionClient)
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

	stdio := iocli.NewStdio()

	// Получаем команду
	args := fs.Args()
	if len(args) == 0 {
		_ = cli.New(stdio, nil, nil, cli.Options{}).PrintUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.Client, logger, stdio, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUnknownCommand) {
			_ = cli.New(stdio, nil, nil, cli.Options{}).PrintUsage()
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ClientConfig, logger *slog.Logger, stdio iocli.IO, args []string) error {
	// Открываем BoltDB storage
	store, err := boltdb.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	c := cli.New(stdio, api.NewClient(cfg.API), store, cli.Options{
		Logger: logger,
		Session: session.Options{
			Logger:           logger,
			NodeID:           cfg.NodeID,
			FrameInterval:    cfg.FrameInterval,
			SnapshotInterval: cfg.SnapshotInterval,
			Transport: transport.Options{
				URL:          cfg.Relay,
				PingInterval: cfg.PingInterval,
				PongWait:     cfg.PongWait,
				MaxAttempts:  cfg.MaxAttempts,
			},
			Adapter: adapter.Options{
				Debounce: cfg.Debounce,
				MaxWait:  cfg.MaxWait,
				Grace:    cfg.Grace,
			},
		},
	})

	return c.Run(ctx, args[0], args[1:])
}

func printVersion() {
	fmt.Printf("Boardsync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
