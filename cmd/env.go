package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/verdantiq/esg-cli/internal/importer"
	"github.com/verdantiq/esg-cli/internal/section"
	"github.com/verdantiq/esg-cli/internal/store"
)

// openStore builds the configured store backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store database URL is required (ESG_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "esg.db"
		}
		return store.NewSQLite(dsn)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// loadRegistry resolves section rule tables, preferring the configured
// override file over the embedded defaults.
func loadRegistry() (*section.Registry, error) {
	if cfg.Import.RulesPath != "" {
		return section.LoadRegistry(cfg.Import.RulesPath)
	}
	return section.DefaultRegistry()
}

// newImporter wires the pipeline against a store.
func newImporter(st store.Store) (*importer.Importer, error) {
	registry, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	return importer.New(registry, st), nil
}
