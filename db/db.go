// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielhkuo/quickly-buzz/store"
	"github.com/danielhkuo/quickly-buzz/store/memstore"
	"github.com/danielhkuo/quickly-buzz/store/redisstore"
	"github.com/danielhkuo/quickly-buzz/store/sqlstore"
	"github.com/danielhkuo/quickly-buzz/timeouts"
)

// Store kinds accepted by OpenStore.
const (
	Memory   = "memory"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Redis    = "redis"
)

// DefaultSQLitePath is used when the sqlite kind is given no URL.
const DefaultSQLitePath = "quickly-buzz.db"

// Kinds lists every supported store kind.
func Kinds() []string {
	return []string{Memory, SQLite, Postgres, Redis}
}

// OpenStore connects to the store of the given kind.
func OpenStore(ctx context.Context, kind, url string, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.StoreOpen)
	defer cancel()

	switch strings.ToLower(kind) {
	case Memory:
		return memstore.New(), nil
	case SQLite:
		if url == "" {
			url = DefaultSQLitePath
		}
		return openSQL(ctx, sqlstore.SQLite, url, logger)
	case Postgres:
		return openSQL(ctx, sqlstore.Postgres, url, logger)
	case Redis:
		st, err := redisstore.Open(ctx, redisstore.Options{
			URL:    url,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store type %q (want one of %s)", kind, strings.Join(Kinds(), ", "))
	}
}

func openSQL(ctx context.Context, dialect sqlstore.Dialect, dsn string, logger *slog.Logger) (store.Store, error) {
	st, err := sqlstore.Open(ctx, sqlstore.Options{
		Dialect:      dialect,
		DSN:          dsn,
		PollInterval: timeouts.StorePoll,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialect, err)
	}
	return st, nil
}
