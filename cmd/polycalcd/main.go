// polycalcd serves the combat calculator over HTTP and websocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/polycalc/internal/api"
	"github.com/udisondev/polycalc/internal/config"
	"github.com/udisondev/polycalc/internal/data"
	"github.com/udisondev/polycalc/internal/db"
)

const ServerConfigPath = "config/polycalcd.yaml"

// statsInterval — период логирования числа открытых brawl-сессий.
const statsInterval = time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Config first: it decides the log level
	cfgPath := ServerConfigPath
	if p := os.Getenv("POLYCALC_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	slog.Info("polycalcd starting",
		"log_level", cfg.LogLevel,
		"addr", cfg.Addr(),
		"default_version", cfg.DefaultVersion,
		"database", cfg.Database.Enabled)

	catalog, err := data.LoadCatalog()
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	slog.Info("catalog loaded", "versions", len(catalog.Versions()), "latest", catalog.Latest().ID)

	var opts []api.ServerOption
	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		opts = append(opts, api.WithStore(db.NewScenarioRepository(database.Pool())))
	} else {
		slog.Info("database disabled, scenario sharing unavailable")
	}

	server := api.NewServer(cfg, catalog, opts...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting http server", "addr", cfg.Addr())
		if err := server.Run(gctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				slog.Debug("brawl sessions", "open", server.Sessions().Count())
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
