package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"inboxd/internal/config"
	"inboxd/internal/constants"
	"inboxd/internal/database"
	"inboxd/internal/lock"
	"inboxd/internal/metrics"
	"inboxd/internal/models"
	"inboxd/internal/retry"
	"inboxd/internal/service"
	"inboxd/internal/tracing"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes message content)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	once       = flag.Bool("once", false, "Run exactly one ingest+dispatch cycle and exit")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("inboxd %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting inboxd")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - message content will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Missing collaborator binaries are a configuration error, fatal before
	// the loop; anything after startup is retried on the next poll.
	if err := checkCollaborators(cfg); err != nil {
		return err
	}

	// A second instance against the same store would double-dispatch, so
	// the lock is a hard precondition, not an optimization.
	guard, err := lock.Acquire(cfg.Lock.Path)
	if err != nil {
		return fmt.Errorf("failed to acquire single-instance lock: %w", err)
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logger.Warnf("Failed to release instance lock: %v", err)
		}
	}()

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize the store with exponential backoff retry
	var db *database.Database
	backoffConfig := retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	}
	backoff := retry.NewBackoff(backoffConfig)

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	registry := metrics.NewRegistry()

	ingestor := service.NewIngestor(db,
		service.NewExecRunner(time.Duration(cfg.Reader.TimeoutSec)*time.Second),
		service.IngestorOptions{
			ReaderPath:       cfg.Reader.Path,
			BootstrapMinutes: cfg.BootstrapLookbackMinutes,
			MaxMinutes:       cfg.MaxLookbackMinutes,
		}, logger)

	dispatcher := service.NewDispatcher(db,
		service.NewExecRunner(time.Duration(cfg.Dispatcher.TimeoutSec)*time.Second),
		service.NewLedger(cfg.Ledger.Path, logger),
		service.NoRetryPolicy{},
		service.DispatcherOptions{
			DispatcherPath: cfg.Dispatcher.Path,
			BatchSize:      cfg.DispatchBatchSize,
			MaxMinutes:     cfg.MaxLookbackMinutes,
		}, logger)

	daemon := service.NewDaemon(ingestor, dispatcher, db, registry,
		time.Duration(cfg.PollIntervalSec)*time.Second, logger)

	ctxWithVerbose := context.WithValue(ctx, service.VerboseContextKey, *verbose)

	if *once {
		result := daemon.RunOnce(ctxWithVerbose)
		logger.WithFields(logrus.Fields{
			"ingested":   result.Ingested,
			"dispatched": result.Dispatched,
		}).Info("Single cycle complete")
		return nil
	}

	if cfg.Server.Enabled {
		server := NewServer(cfg, db, registry, logger)
		serverErrCh := make(chan error, constants.ServerErrorChannelSize)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrCh <- fmt.Errorf("server error: %w", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("Failed to shutdown status server gracefully: %v", err)
			}
		}()

		go func() {
			if err, ok := <-serverErrCh; ok && err != nil {
				logger.Error(err)
			}
		}()
	}

	daemon.Start(ctxWithVerbose)

	logger.Info("Shutdown complete")
	return nil
}

// checkCollaborators verifies the reader and dispatcher binaries exist
// before the loop begins.
func checkCollaborators(cfg *models.Config) error {
	if _, err := exec.LookPath(cfg.Reader.Path); err != nil {
		return fmt.Errorf("reader binary not found at %s: %w", cfg.Reader.Path, err)
	}
	if _, err := exec.LookPath(cfg.Dispatcher.Path); err != nil {
		return fmt.Errorf("dispatcher binary not found at %s: %w", cfg.Dispatcher.Path, err)
	}
	return nil
}
