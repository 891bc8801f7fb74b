package cmd

import (
	"context"
	"fmt"

	"github.com/feedlens/feedlens/internal/config"
	"github.com/feedlens/feedlens/internal/core/store"
)

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// loadConfigAndStore is the common preamble for store-backed commands.
func loadConfigAndStore(ctx context.Context) (*config.Config, *store.Store, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}

	return cfg, db, nil
}
