package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"melody-planner/internal/config"
	"melody-planner/internal/logging"
	"melody-planner/internal/model"
	"melody-planner/internal/repository"
	"melody-planner/internal/service"
)

// app holds the storage and sync pieces every command needs.
type app struct {
	cfg    config.Config
	logger *log.Logger
	remote *repository.WorkspaceRepository
	cache  *repository.Cache
	sync   *service.SyncService
	store  *service.Store
	close  []func() error
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	db, err := repository.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.close = append(a.close, sqlDB.Close)
	}

	cache, err := repository.OpenCache(cfg.CachePath)
	if err != nil {
		a.shutdown()
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.cache = cache
	a.close = append(a.close, cache.Close)

	a.remote = repository.NewWorkspaceRepository(db)
	a.sync = service.NewSyncService(
		a.remote,
		cache,
		service.NewStaticIdentity(cfg.UserID),
		logger,
		service.SyncOptions{
			Debounce: cfg.Debounce.Duration,
			Retries:  cfg.WriteRetries,
			Backoff:  cfg.RetryBackoff.Duration,
		},
	)
	return a, nil
}

// load picks the starting workspace and binds the store to the sync service.
func (a *app) load(ctx context.Context) error {
	ws, err := a.sync.Load(ctx)
	if err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}
	if ws.Name == "" || ws.Name == model.DefaultWorkspaceName {
		ws.Name = a.cfg.WorkspaceName
	}
	if ws.Logo == "" || ws.Logo == model.DefaultWorkspaceLogo {
		ws.Logo = a.cfg.WorkspaceLogo
	}
	a.store = service.NewStore(ws)
	a.sync.Bind(a.store)
	a.close = append([]func() error{func() error { a.sync.Close(); return nil }}, a.close...)
	return nil
}

// shutdown flushes pending sync work and closes storage, in that order.
func (a *app) shutdown() error {
	var errs []error
	for _, fn := range a.close {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.close = nil
	return errors.Join(errs...)
}
