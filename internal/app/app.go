// Package app wires configuration, storage and the engine for the CLI and server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"founderaudit/internal/config"
	"founderaudit/internal/db"
	"founderaudit/internal/engine"
	"founderaudit/internal/logger"
	"founderaudit/internal/metrics"
	"founderaudit/internal/migrate"
)

// Options tune Open for callers that do not want process-global side effects.
type Options struct {
	// LogOutput defaults to stdout.
	LogOutput io.Writer
	// Registerer receives the Prometheus collectors; the default registry when nil.
	Registerer prometheus.Registerer
}

type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Logger    *logger.Logger
	Metrics   *metrics.Observer
}

// Open loads funnel.yml (defaults when absent), opens and migrates the
// database and builds the engine.
func Open(ctx context.Context, workspace string, opts Options) (*App, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	dbCfg := db.Config{Workspace: workspace, Path: cfg.Storage.Path}
	if dbCfg.Path != "" && !filepath.IsAbs(dbCfg.Path) {
		dbCfg.Path = filepath.Join(workspace, dbCfg.Path)
	}
	conn, err := db.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: opts.LogOutput,
	})
	a := &App{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    engine.New(conn, cfg),
		Logger:    log,
	}
	if cfg.Metrics.Enabled {
		obs, err := metrics.New(cfg.Metrics.Namespace, opts.Registerer)
		if err != nil {
			conn.Close()
			return nil, err
		}
		a.Metrics = obs
		a.Engine.Observer = obs
	}
	return a, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
