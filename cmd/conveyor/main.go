// Package main implements the entry point for the conveyor application, a
// bounded-buffer producer/consumer engine with live observation feeds.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/conveyor/config"
	"github.com/c360/conveyor/engine"
	"github.com/c360/conveyor/event"
	"github.com/c360/conveyor/item"
	"github.com/c360/conveyor/metric"
	"github.com/c360/conveyor/output/logfeed"
	"github.com/c360/conveyor/output/wsfeed"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "conveyor"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	registry := metric.NewRegistry()
	sim := newSimulation(cfg, item.NewSequence())

	eng, err := engine.New(cfg,
		engine.WithLogger(logger),
		engine.WithMetrics(registry),
		engine.WithBuild(sim.build),
		engine.WithDeliver(sim.deliver),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Observers fed by the dispatcher
	var observers []event.Observer
	if cfg.Observe.LogEvents {
		observers = append(observers, logfeed.New(logger, slog.LevelInfo))
	}

	var feed *wsfeed.Server
	if cfg.Observe.FeedAddr != "" {
		feed = wsfeed.New(cfg.Observe.FeedAddr, "/feed",
			func() any { return eng.Snapshot() }, logger)
		if err := feed.Start(); err != nil {
			return err
		}
		observers = append(observers, feed)
	}

	// The dispatcher outlives the signal context so shutdown events still
	// reach the observers; it is cancelled after the engine has stopped.
	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())
	defer dispatchCancel()
	dispatcher := event.NewDispatcher(eng.Sink(), logger, observers...)

	var metricsServer *http.Server
	if cfg.Observe.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Observe.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if cliCfg.StatusInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cliCfg.StatusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					snap := eng.Snapshot()
					logger.Info("status",
						"queued", snap.Buffer.Size,
						"produced", snap.Buffer.Produced,
						"consumed", snap.Buffer.Consumed,
						"produce_timeouts", snap.Buffer.ProduceTimeouts,
						"consume_timeouts", snap.Buffer.ConsumeTimeouts,
						"events_dropped", snap.Events.Dropped)
				}
			}
		})
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}
	logger.Info("conveyor running",
		"producers", cfg.Workers.Producers,
		"consumers", cfg.Workers.Consumers,
		"capacity", cfg.Buffer.Capacity)

	<-gctx.Done()
	logger.Info("shutdown signal received")

	stopErr := eng.Stop(cliCfg.ShutdownTimeout)
	if stopErr != nil {
		logger.Error("engine stop failed", "error", stopErr)
	}

	// Let the dispatcher drain the shutdown events, then tear down the feeds.
	dispatchCancel()

	if feed != nil {
		feedCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := feed.Stop(feedCtx); err != nil {
			logger.Warn("feed stop failed", "error", err)
		}
		cancel()
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return stopErr
}
