package main

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ferndale/shiftboard/internal/blobstore"
	"github.com/ferndale/shiftboard/internal/catalog"
	"github.com/ferndale/shiftboard/internal/clock"
	"github.com/ferndale/shiftboard/internal/config"
	"github.com/ferndale/shiftboard/internal/db"
	"github.com/ferndale/shiftboard/internal/evidence"
	"github.com/ferndale/shiftboard/internal/lifecycle"
	"github.com/ferndale/shiftboard/internal/models"
	"github.com/ferndale/shiftboard/internal/period"
	"github.com/ferndale/shiftboard/internal/verify"
)

// openStore loads config and connects to the configured store.
func openStore(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Connect(db.Options{
		Driver:   cfg.Store.Driver,
		Path:     cfg.Store.Path,
		Host:     cfg.Store.Host,
		Port:     cfg.Store.Port,
		User:     cfg.Store.User,
		Password: cfg.Store.Password,
		Database: cfg.Store.Database,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}

// buildEngine assembles the lifecycle engine from config: period table,
// catalog, object store with retry, verifier. Hydrates live state and
// restores any persisted clock offset.
func buildEngine(cfg *config.Config, conn *gorm.DB, clk *clock.Clock) (*lifecycle.Engine, error) {
	table, err := period.NewTable(cfg.Periods)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.CatalogPath, table)
	if err != nil {
		return nil, err
	}

	var blobs blobstore.Store
	if cfg.Uploads.Endpoint != "" {
		blobs, err = blobstore.NewHTTPStore(cfg.Uploads.Endpoint, cfg.Uploads.Token, cfg.Uploads.Timeout)
	} else {
		blobs, err = blobstore.NewDiskStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
	}
	if err != nil {
		return nil, err
	}
	blobs = blobstore.WithRetry(blobs, blobstore.RetryPolicy{
		MaxAttempts: cfg.Uploads.MaxAttempts,
		BaseBackoff: cfg.Uploads.BaseBackoff,
		MaxBackoff:  cfg.Uploads.MaxBackoff,
	})

	var verifier verify.Verifier = verify.AllowAll{}
	if cfg.Verify.Enabled {
		verifier, err = verify.NewHTTPVerifier(cfg.Verify.Endpoint, cfg.Verify.Token, cfg.Verify.Timeout)
		if err != nil {
			return nil, err
		}
	}

	restoreClockOffset(conn, clk)

	eng, err := lifecycle.New(lifecycle.Options{
		Clock:          clk,
		Periods:        table,
		Catalog:        cat,
		Store:          &lifecycle.GormStore{DB: conn},
		Assembler:      &evidence.Assembler{Store: blobs},
		Verifier:       verifier,
		DayOpenMinutes: cfg.DayOpenMinutes(),
	})
	if err != nil {
		return nil, err
	}
	if err := eng.Hydrate(); err != nil {
		return nil, fmt.Errorf("hydrate: %w", err)
	}
	return eng, nil
}

// restoreClockOffset applies the persisted simulated offset, if any.
func restoreClockOffset(conn *gorm.DB, clk *clock.Clock) {
	var state models.ClockState
	if err := conn.First(&state, 1).Error; err != nil {
		return
	}
	if state.OffsetSeconds != 0 {
		clk.SetOffset(time.Duration(state.OffsetSeconds) * time.Second)
	}
}
