// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the replicated store selected by configuration.

# Backends

	st, err := db.OpenStore(ctx, db.SQLite, "buzz.db", logger)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

Supported kinds:

  - memory: in-process, single server only (memstore)
  - sqlite: a database file shared by every process on one host (sqlstore)
  - postgres: a shared Postgres database, LISTEN/NOTIFY for change fan-out (sqlstore)
  - redis: a shared Redis server, pub/sub for change fan-out (redisstore)

The sqlite and postgres backends create their tables on open. Safe to call
repeatedly against the same database.

# Tables

SQL backends use two tables:

  - nodes: one row per stored path (value, revision, updated_at)
  - clock: a single row holding the last committed revision

A transaction commits only if the clock has not moved since it was read.
*/
package db
