package main

import (
	"fmt"
	"io"
	"strings"

	"paywall-entitlement/internal/client"
	"paywall-entitlement/internal/config"
	"paywall-entitlement/internal/logging"
	"paywall-entitlement/internal/store"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app holds the dependencies every command shares.
type app struct {
	cfg     *config.Config
	db      *gorm.DB
	store   store.Store
	backend string
}

func bootstrap() (*app, error) {
	// load .env into os.Environ
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Format:      cfg.Log.Format,
		Level:       cfg.Log.Level,
		Component:   "paywall",
		Environment: cfg.Environment.Name,
	})
	if envErr != nil {
		log.Debug().Msg("no .env file found")
	}

	if missing := cfg.MissingPayments(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("payment settings incomplete; checkout and webhooks will be refused")
	}

	var db *gorm.DB
	if strings.TrimSpace(cfg.Database.URL) != "" {
		db, err = client.InitDatabase(cfg.Database)
		if err != nil {
			log.Warn().Err(err).Str("driver", cfg.Database.Driver).Msg("database unavailable; webhook event log disabled")
			db = nil
		}
	}

	entitlements, backend, err := store.Open(cfg.Store, db)
	if err != nil {
		return nil, fmt.Errorf("open entitlement store: %w", err)
	}
	log.Info().Str("backend", backend).Dur("ttl", cfg.Store.EntitlementTTL).Msg("entitlement store ready")

	return &app{cfg: cfg, db: db, store: entitlements, backend: backend}, nil
}

func (a *app) close() {
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Warn().Err(err).Msg("close entitlement store")
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
