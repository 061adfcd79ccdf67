package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/store"
)

// initStore opens the configured store backend. Callers own Close.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "acquire.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
