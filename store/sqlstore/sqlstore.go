// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"

	"github.com/danielhkuo/quickly-buzz/store"
)

// NotifyChannel is the Postgres LISTEN channel used to announce commits.
const NotifyChannel = "quickly_buzz"

const defaultPollInterval = 250 * time.Millisecond

var errLostRace = errors.New("lost race")

// updateError carries an error returned by the caller's update function so
// it is not mistaken for a driver failure.
type updateError struct{ err error }

func (e *updateError) Error() string { return e.err.Error() }

// Options configures Open.
type Options struct {
	Dialect Dialect
	// DSN is a file path for SQLite or a connection string for Postgres.
	DSN string
	// PollInterval is how often the commit clock is checked for writes made
	// by other processes. Defaults to 250ms.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Store is a store.Store kept in a SQL database. Several processes may
// share one database; each sees the others' commits through the clock row.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
	hub     *store.Hub

	retries  atomic.Uint64
	listener *pq.Listener

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Open connects to the database, creates the schema and starts watching for
// commits from other processes.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	dsn := opts.DSN
	switch opts.Dialect {
	case SQLite:
		dsn = sqliteDSN(dsn)
	case Postgres:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}

	db, err := sql.Open(opts.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", opts.Dialect, err)
	}
	if opts.Dialect == SQLite {
		// One writer at a time; other processes still contend through the
		// file lock and are retried on SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", opts.Dialect, err)
	}
	if err := CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		dialect: opts.Dialect,
		log:     opts.Logger,
		hub:     store.NewHub(),
		stop:    make(chan struct{}),
	}
	if opts.Dialect == Postgres {
		s.listen(opts.DSN)
	}
	s.wg.Add(1)
	go s.poll(opts.PollInterval)
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "?") {
		return path
	}
	return "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// Retries returns how many transaction attempts were re-run.
func (s *Store) Retries() uint64 {
	return s.retries.Load()
}

// Close stops background watchers and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.wg.Wait()
		s.hub.Close()
		err = s.db.Close()
	})
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) readNode(ctx context.Context, q queryer, path string) (store.Snapshot, error) {
	var (
		value   string
		rev     int64
		updated int64
	)
	err := q.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT value, revision, updated_at FROM nodes WHERE path = ?`), path,
	).Scan(&value, &rev, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Snapshot{Path: path}, nil
	}
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{
		Path:      path,
		Value:     []byte(value),
		Exists:    true,
		Revision:  uint64(rev),
		UpdatedAt: time.UnixMilli(updated).UTC(),
	}, nil
}

func (s *Store) readClock(ctx context.Context, q queryer) (uint64, error) {
	var seq int64
	if err := q.QueryRowContext(ctx, `SELECT seq FROM clock WHERE id = 1`).Scan(&seq); err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if !store.ValidPath(path) {
		return store.Snapshot{}, store.InvalidPath("get", path)
	}
	snap, err := s.readNode(ctx, s.db, path)
	if err != nil {
		return store.Snapshot{}, s.dialect.classify("get", path, err)
	}
	return snap, nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Snapshot, error) {
	if !store.ValidPath(prefix) {
		return nil, store.InvalidPath("list", prefix)
	}
	like := prefix + "/"
	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind(`SELECT path, value, revision, updated_at FROM nodes WHERE substr(path, 1, ?) = ? ORDER BY path`),
		utf8.RuneCountInString(like), like,
	)
	if err != nil {
		return nil, s.dialect.classify("list", prefix, err)
	}
	defer rows.Close()

	var out []store.Snapshot
	for rows.Next() {
		var (
			snap    store.Snapshot
			value   string
			rev     int64
			updated int64
		)
		if err := rows.Scan(&snap.Path, &value, &rev, &updated); err != nil {
			return nil, s.dialect.classify("list", prefix, err)
		}
		snap.Value = []byte(value)
		snap.Exists = true
		snap.Revision = uint64(rev)
		snap.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, s.dialect.classify("list", prefix, err)
	}
	return out, nil
}

// Transact implements store.Store. Each attempt reads the node and the
// commit clock, runs fn, and commits only if the clock has not moved.
func (s *Store) Transact(ctx context.Context, path string, fn store.UpdateFunc) (store.Result, error) {
	if !store.ValidPath(path) {
		return store.Result{}, store.InvalidPath("transact", path)
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return store.Result{}, store.ContextError("transact", path, err)
		}

		res, err := s.tryTransact(ctx, path, fn)
		if err == nil {
			if res.Committed {
				s.hub.Notify(path)
			}
			return res, nil
		}

		var ue *updateError
		if errors.As(err, &ue) {
			return store.Result{}, ue.err
		}
		if errors.Is(err, errLostRace) || s.dialect.retryable(err) {
			s.retries.Add(1)
			if err := sleepBackoff(ctx, attempt); err != nil {
				return store.Result{}, store.ContextError("transact", path, err)
			}
			continue
		}
		return store.Result{}, s.dialect.classify("transact", path, err)
	}
}

func (s *Store) tryTransact(ctx context.Context, path string, fn store.UpdateFunc) (store.Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Result{}, err
	}
	defer tx.Rollback()

	seq, err := s.readClock(ctx, tx)
	if err != nil {
		return store.Result{}, err
	}
	cur, err := s.readNode(ctx, tx, path)
	if err != nil {
		return store.Result{}, err
	}

	rev := seq + 1
	next, err := fn(cur, rev)
	if errors.Is(err, store.ErrAbort) {
		return store.Result{Snapshot: cur}, nil
	}
	if err != nil {
		return store.Result{}, &updateError{err: err}
	}
	if next == nil && !cur.Exists {
		return store.Result{Committed: true, Snapshot: cur}, nil
	}

	res, err := tx.ExecContext(ctx,
		s.dialect.rebind(`UPDATE clock SET seq = ? WHERE id = 1 AND seq = ?`), int64(rev), int64(seq))
	if err != nil {
		return store.Result{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return store.Result{}, err
	} else if n == 0 {
		return store.Result{}, errLostRace
	}

	committed, err := s.put(ctx, tx, path, next, rev)
	if err != nil {
		return store.Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return store.Result{}, err
	}
	return store.Result{Committed: true, Snapshot: committed}, nil
}

// put writes or deletes path inside tx at revision rev.
func (s *Store) put(ctx context.Context, tx *sql.Tx, path string, value []byte, rev uint64) (store.Snapshot, error) {
	if value == nil {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM nodes WHERE path = ?`), path); err != nil {
			return store.Snapshot{}, err
		}
		return store.Snapshot{Path: path}, s.announce(ctx, tx, path)
	}

	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO nodes (path, value, revision, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE
		SET value = excluded.value, revision = excluded.revision, updated_at = excluded.updated_at
	`), path, string(value), int64(rev), now.UnixMilli())
	if err != nil {
		return store.Snapshot{}, err
	}
	snap := store.Snapshot{
		Path:      path,
		Value:     append([]byte(nil), value...),
		Exists:    true,
		Revision:  rev,
		UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}
	return snap, s.announce(ctx, tx, path)
}

// announce tells Postgres listeners in other processes about the commit.
// It is delivered only if the transaction commits.
func (s *Store) announce(ctx context.Context, tx *sql.Tx, path string) error {
	if s.dialect != Postgres {
		return nil
	}
	_, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, path)
	return err
}

// Write implements store.Store.
func (s *Store) Write(ctx context.Context, path string, value []byte) error {
	if !store.ValidPath(path) {
		return store.InvalidPath("write", path)
	}
	_, err := s.Transact(ctx, path, func(store.Snapshot, uint64) ([]byte, error) {
		return value, nil
	})
	if err != nil {
		return s.relabel("write", err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, path string) error {
	if !store.ValidPath(path) {
		return store.InvalidPath("delete", path)
	}
	_, err := s.Transact(ctx, path, func(store.Snapshot, uint64) ([]byte, error) {
		return nil, nil
	})
	if err != nil {
		return s.relabel("delete", err)
	}
	return nil
}

func (s *Store) relabel(op string, err error) error {
	var se *store.Error
	if errors.As(err, &se) {
		cp := *se
		cp.Op = op
		return &cp
	}
	return err
}

// Subscribe implements store.Store.
func (s *Store) Subscribe(ctx context.Context, path string) (<-chan store.Event, error) {
	if !store.ValidPath(path) {
		return nil, store.InvalidPath("subscribe", path)
	}
	return s.hub.Watch(ctx, path, func(ctx context.Context) (store.Snapshot, error) {
		return s.Get(ctx, path)
	}), nil
}

// SubscribeTree implements store.Store.
func (s *Store) SubscribeTree(ctx context.Context, prefix string) (<-chan store.TreeEvent, error) {
	if !store.ValidPath(prefix) {
		return nil, store.InvalidPath("subscribe", prefix)
	}
	return s.hub.WatchTree(ctx, prefix, func(ctx context.Context) ([]store.Snapshot, error) {
		return s.List(ctx, prefix)
	}), nil
}

// poll wakes subscribers when another process moves the commit clock, and
// when the database comes back after an outage.
func (s *Store) poll(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		last    uint64
		healthy = true
	)
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval*4)
		seq, err := s.readClock(ctx, s.db)
		cancel()

		switch {
		case err != nil:
			if healthy {
				s.log.Warn("store clock unreachable", "error", err)
				healthy = false
				s.hub.NotifyAll()
			}
		case !healthy:
			s.log.Info("store clock reachable again", "seq", seq)
			healthy = true
			last = seq
			s.hub.NotifyAll()
		case seq != last:
			last = seq
			s.hub.NotifyAll()
		}
	}
}

// listen subscribes to Postgres commit notifications so remote writes are
// seen without waiting for the next poll.
func (s *Store) listen(dsn string) {
	l := pq.NewListener(dsn, 100*time.Millisecond, 10*time.Second, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.log.Warn("postgres listener event", "event", ev, "error", err)
		}
	})
	if err := l.Listen(NotifyChannel); err != nil {
		s.log.Warn("postgres listen failed; falling back to polling", "error", err)
		_ = l.Close()
		return
	}
	s.listener = l

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stop:
				return
			case n, ok := <-l.Notify:
				if !ok {
					return
				}
				if n == nil {
					// Reconnected; notifications may have been missed.
					s.hub.NotifyAll()
					continue
				}
				s.hub.Notify(n.Extra)
			}
		}
	}()
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := time.Duration(1<<min(attempt, 6)) * time.Millisecond
	d += time.Duration(rand.Int64N(int64(d)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
