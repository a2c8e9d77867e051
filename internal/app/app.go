// Package app wires configuration, storage and the builder together for the
// server and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cv-builder/internal/adapter/repository"
	"cv-builder/internal/config"
	"cv-builder/internal/draft"
	"cv-builder/internal/form"
	"cv-builder/internal/infrastructure/migration"
	"cv-builder/internal/session"
	"cv-builder/internal/usecase"
	"cv-builder/pkg/api"
	infra "cv-builder/pkg/infrastructure"
)

// App holds the long-lived components of one profile.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Store    draft.Store
	Drafts   *draft.Drafts
	Sessions *session.Manager
	Client   *api.Client
	Builder  *usecase.Builder

	closers []func()
}

// Open builds every component and restores the signed-in user's draft.
// notifier and busy may be nil.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger, notifier usecase.Notifier, busy usecase.Busy) (*App, error) {
	a := &App{Config: cfg, Log: log}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Drafts = draft.New(store, log)
	a.Sessions = session.NewManager(store, a.Drafts, log)

	a.Client = api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, a.Sessions.Token, log)
	a.Client.MaxAttempts = cfg.API.MaxAttempts

	a.Builder = usecase.NewBuilder(form.NewDefault(), a.Drafts, a.Sessions, a.Client, usecase.Options{
		InputDelay:  cfg.Autosave.InputDelay,
		ChangeDelay: cfg.Autosave.ChangeDelay,
		Renderer:    infra.NewChromedpRenderer(cfg.Chrome.Path),
		Notifier:    notifier,
		Busy:        busy,
		Log:         log,
	})
	a.Builder.Load(ctx)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (draft.Store, error) {
	switch a.Config.Store.Driver {
	case config.DriverMemory:
		return draft.NewMemoryStore(), nil
	case config.DriverPostgres:
		pool, err := infra.NewStorePool(ctx, a.Config.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect store: %w", err)
		}
		if err := migration.RunMigrations(ctx, pool, a.Log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		return repository.NewPostgresStore(pool, a.Config.Store.Profile), nil
	default:
		db, err := infra.OpenSQLite(ctx, a.Config.Store.Path)
		if err != nil {
			return nil, err
		}
		s, err := repository.NewSQLiteStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		return s, nil
	}
}

// Close writes any pending draft and releases storage.
func (a *App) Close() {
	if a.Builder != nil {
		a.Builder.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.Log.Sync()
}
