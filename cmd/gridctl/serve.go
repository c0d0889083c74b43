package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/gridlink/internal/api"
	"github.com/mattjoyce/gridlink/internal/auth"
	"github.com/mattjoyce/gridlink/internal/bus"
	"github.com/mattjoyce/gridlink/internal/config"
	"github.com/mattjoyce/gridlink/internal/events"
	"github.com/mattjoyce/gridlink/internal/grid"
	"github.com/mattjoyce/gridlink/internal/inspect"
	"github.com/mattjoyce/gridlink/internal/journal"
	"github.com/mattjoyce/gridlink/internal/lock"
	"github.com/mattjoyce/gridlink/internal/log"
	"github.com/mattjoyce/gridlink/internal/metrics"
	"github.com/mattjoyce/gridlink/internal/storage"
	"github.com/mattjoyce/gridlink/internal/webhook"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(configPathOrDefault(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.SetupWith(cfg.Service.LogLevel, cfg.Service.LogFormat, os.Stdout)
	logger := log.WithComponent("main")
	logger.Info("gridctl starting", "version", version, "config", cfg.Source, "config_hash", cfg.Fingerprint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := serve(ctx, cfg); err != nil {
		logger.Error("gridctl failed", "error", err)
		return 1
	}
	logger.Info("gridctl stopped")
	return 0
}

// serve runs the grid behind the API until ctx ends or a component fails.
func serve(ctx context.Context, cfg *config.Config) error {
	logger := log.WithComponent("main")
	if !cfg.API.Enabled {
		return errors.New("api.enabled is false: nothing to serve")
	}

	var (
		history   inspect.History
		observers []bus.Observer
		j         *journal.Journal
	)
	if cfg.Journal.Enabled {
		lockPath := lock.PathFor(cfg.Journal.Path)
		pidLock, err := lock.Acquire(lockPath)
		if err != nil {
			if pid, perr := lock.Holder(lockPath); perr == nil && errors.Is(err, lock.ErrHeld) {
				return fmt.Errorf("journal in use by pid %d: %w", pid, err)
			}
			return err
		}
		defer pidLock.Release()
		logger.Info("acquired PID lock", "path", lockPath)

		db, err := storage.OpenSQLite(context.Background(), cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()
		logger.Info("journal opened", "path", cfg.Journal.Path)

		j = journal.New(db, log.WithComponent("journal"))
		history = j
		observers = append(observers, j.Observe)
	}

	registry, err := discoverPlugins(cfg)
	if err != nil {
		return fmt.Errorf("plugin discovery: %w", err)
	}
	plugins := enabledPlugins(cfg, registry)
	logger.Info("plugin discovery complete", "discovered", registry.Len(), "enabled", len(plugins))

	hub := events.NewHub(cfg.Grid.EventBuffer)
	m := metrics.New()
	g, err := grid.New[json.RawMessage](grid.Options{
		TableOwner: cfg.Grid.TableOwner,
		KeyStep:    cfg.Grid.KeyStep,
		Logger:     log.WithComponent("grid"),
		Events:     hub,
		Recorder:   m,
		Observers:  observers,
	}, plugins...)
	if err != nil {
		return fmt.Errorf("build grid: %w", err)
	}
	defer func() {
		if err := g.Close(); err != nil {
			logger.Warn("plugin shutdown failed", "error", err)
		}
		if j != nil && j.Failures() > 0 {
			logger.Warn("journal dropped entries", "count", j.Failures())
		}
	}()

	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Tokens))
	for _, t := range cfg.API.Tokens {
		tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	server := api.New(api.Config{
		Listen:     cfg.API.Listen,
		APIKey:     cfg.API.APIKey,
		Tokens:     tokens,
		Columns:    cfg.Grid.Columns,
		MaxColumns: cfg.Grid.MaxColumns,
	}, g, history, hub, m, log.WithComponent("api"))

	var hooks *webhook.Server
	if cfg.Webhooks != nil && len(cfg.Webhooks.Endpoints) > 0 {
		hookCfg, err := webhook.FromConfig(cfg.Webhooks)
		if err != nil {
			return fmt.Errorf("webhooks: %w", err)
		}
		hooks = webhook.New(hookCfg, server, log.WithComponent("webhook"))
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	if hooks != nil {
		group.Go(func() error {
			if err := hooks.Start(gctx); err != nil {
				return fmt.Errorf("webhooks: %w", err)
			}
			return nil
		})
	}

	logger.Info("gridctl running (press Ctrl+C to stop)", "listen", cfg.API.Listen, "webhooks", hooks != nil, "segments", len(g.Segments()))
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
