package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/zulandar/sessionlens/internal/config"
	"github.com/zulandar/sessionlens/internal/db"
	"github.com/zulandar/sessionlens/internal/inspector"
	"github.com/zulandar/sessionlens/internal/override"
	"github.com/zulandar/sessionlens/internal/segment"
	"github.com/zulandar/sessionlens/internal/store"
	"gorm.io/gorm"
)

// app is everything a command needs to run inspector operations.
type app struct {
	cfg   *config.Config
	db    *gorm.DB
	store *store.Store
	kv    override.KV
	svc   *inspector.Service
	log   *slog.Logger
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	return cfg, gormDB, nil
}

// openApp connects the record store and the local override store. The
// caller must Close the result.
func openApp(configPath string, logger *slog.Logger) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: gormDB, log: logger}

	a.store, err = store.New(gormDB)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.kv, err = override.OpenBadger(override.BadgerOpts{
		Path:       cfg.Override.Path,
		InMemory:   cfg.Override.InMemory,
		SyncWrites: true,
		Logger:     logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open override store: %w", err)
	}

	cache, err := override.NewCache(a.kv)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.svc, err = inspector.New(inspector.Opts{
		Records: a.store,
		Cache:   cache,
		Logger:  logger,
		Ceilings: segment.Ceilings{
			Slide: cfg.Limits.SlideCeiling,
			Page:  cfg.Limits.PageCeiling,
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the override store and the database connection.
func (a *app) Close() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.log.Warn("close override store", "error", err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
