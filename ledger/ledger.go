// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/danielhkuo/quickly-buzz/keyenc"
	"github.com/danielhkuo/quickly-buzz/store"
	"github.com/danielhkuo/quickly-buzz/timeouts"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("ledger: entry not found")
	// ErrInvalidKey is returned for a key that is not already encoded.
	ErrInvalidKey = errors.New("ledger: invalid key")
	// ErrInvalidName is returned when a display name is empty after
	// normalization.
	ErrInvalidName = errors.New("ledger: invalid display name")
)

// Entry is one participant's score record. Created is the store revision
// that created the entry; a deleted and recreated entry gets a new one even
// when a watcher never saw it absent.
type Entry struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	Created     uint64    `json:"created,omitempty"`
	UpdatedAt   time.Time `json:"-"`
}

// Ledger reads and updates score entries in one namespace.
type Ledger struct {
	st     store.Store
	prefix string
	log    *slog.Logger
}

func New(st store.Store, namespace string, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{st: st, prefix: Prefix(namespace), log: log}
}

// Prefix is the parent path of every entry in namespace.
func Prefix(namespace string) string {
	return store.Join(namespace, "scores")
}

// Path is the location of the entry for key.
func Path(namespace, key string) string {
	return store.Join(Prefix(namespace), key)
}

func (l *Ledger) path(key string) string {
	return store.Join(l.prefix, key)
}

func keyOf(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

// decode reads an entry. A malformed value decodes as an empty entry so the
// next write repairs it.
func (l *Ledger) decode(snap store.Snapshot) Entry {
	e := Entry{Key: keyOf(snap.Path), UpdatedAt: snap.UpdatedAt}
	if !snap.Exists {
		return e
	}
	if err := json.Unmarshal(snap.Value, &e); err != nil {
		l.log.Warn("malformed ledger entry", "path", snap.Path, "error", err)
		e = Entry{}
	}
	e.Key = keyOf(snap.Path)
	e.UpdatedAt = snap.UpdatedAt
	return e
}

func (l *Ledger) transact(ctx context.Context, key string, fn store.UpdateFunc) (store.Result, error) {
	if !keyenc.ValidKey(key) {
		return store.Result{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Transaction)
	defer cancel()
	return l.st.Transact(ctx, l.path(key), fn)
}

// Register creates the entry for name with score 0. If it already exists
// its score is kept and a missing display name is filled in.
func (l *Ledger) Register(ctx context.Context, name string) (Entry, error) {
	name = keyenc.NormalizeName(name)
	key := keyenc.Encode(name)
	if name == "" || key == "" {
		return Entry{}, ErrInvalidName
	}

	res, err := l.transact(ctx, key, func(cur store.Snapshot, rev uint64) ([]byte, error) {
		e := l.decode(cur)
		if cur.Exists && e.DisplayName != "" {
			return nil, store.ErrAbort
		}
		if !cur.Exists {
			e.Created = rev
		}
		e.DisplayName = name
		return store.Marshal(e)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("register %q: %w", name, err)
	}
	e := l.decode(res.Snapshot)
	if res.Committed {
		l.log.Info("participant registered", "key", e.Key, "name", e.DisplayName, "score", e.Score)
	}
	return e, nil
}

// ApplyDelta adds delta to the entry's score and returns the new score. A
// missing entry is created with score delta. An empty display name is
// repaired from name, or from the key when name is empty.
func (l *Ledger) ApplyDelta(ctx context.Context, key string, delta int, name string) (int, error) {
	name = keyenc.NormalizeName(name)
	res, err := l.transact(ctx, key, func(cur store.Snapshot, rev uint64) ([]byte, error) {
		e := l.decode(cur)
		if !cur.Exists {
			e.Created = rev
		}
		e.Score += delta
		if e.DisplayName == "" {
			e.DisplayName = cmp.Or(name, key)
		}
		return store.Marshal(e)
	})
	if err != nil {
		return 0, fmt.Errorf("apply delta to %q: %w", key, err)
	}
	e := l.decode(res.Snapshot)
	l.log.Info("score changed", "key", key, "delta", delta, "score", e.Score)
	return e.Score, nil
}

// ResetScore sets an existing entry's score to zero.
func (l *Ledger) ResetScore(ctx context.Context, key string) error {
	_, err := l.transact(ctx, key, func(cur store.Snapshot, _ uint64) ([]byte, error) {
		if !cur.Exists {
			return nil, ErrNotFound
		}
		e := l.decode(cur)
		e.Score = 0
		if e.DisplayName == "" {
			e.DisplayName = key
		}
		return store.Marshal(e)
	})
	if err != nil {
		return fmt.Errorf("reset score of %q: %w", key, err)
	}
	l.log.Info("score reset", "key", key)
	return nil
}

// DeleteEntry removes the entry. Deleting a missing entry is not an error.
func (l *Ledger) DeleteEntry(ctx context.Context, key string) error {
	if !keyenc.ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Transaction)
	defer cancel()
	if err := l.st.Delete(ctx, l.path(key)); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	l.log.Info("entry deleted", "key", key)
	return nil
}

// Get returns the entry for key.
func (l *Ledger) Get(ctx context.Context, key string) (Entry, error) {
	if !keyenc.ValidKey(key) {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	snap, err := l.st.Get(ctx, l.path(key))
	if err != nil {
		return Entry{}, err
	}
	if !snap.Exists {
		return Entry{}, ErrNotFound
	}
	return l.decode(snap), nil
}

// Board returns every entry, highest score first, ties by display name.
func (l *Ledger) Board(ctx context.Context) ([]Entry, error) {
	snaps, err := l.st.List(ctx, l.prefix)
	if err != nil {
		return nil, err
	}
	return l.board(snaps), nil
}

func (l *Ledger) board(snaps []store.Snapshot) []Entry {
	entries := make([]Entry, 0, len(snaps))
	for _, s := range snaps {
		entries = append(entries, l.decode(s))
	}
	SortBoard(entries)
	return entries
}

// SortBoard orders entries by score descending, then display name.
func SortBoard(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
}

// ResetAll zeroes every entry. Each entry is its own transaction; the
// errors of failed entries are joined.
func (l *Ledger) ResetAll(ctx context.Context) error {
	return l.each(ctx, "reset", func(key string) error {
		err := l.ResetScore(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
}

// DeleteAll removes every entry, one transaction per entry.
func (l *Ledger) DeleteAll(ctx context.Context) error {
	return l.each(ctx, "delete", func(key string) error {
		return l.DeleteEntry(ctx, key)
	})
}

func (l *Ledger) each(ctx context.Context, op string, fn func(key string) error) error {
	snaps, err := l.st.List(ctx, l.prefix)
	if err != nil {
		return fmt.Errorf("%s all: %w", op, err)
	}
	var errs []error
	for _, s := range snaps {
		if err := fn(keyOf(s.Path)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		l.log.Warn("bulk ledger action incomplete", "op", op, "entries", len(snaps), "failed", len(errs))
	}
	return errors.Join(errs...)
}

// EntryUpdate is one observation of a single entry.
type EntryUpdate struct {
	Entry   Entry
	Present bool
	Err     error
}

// WatchEntry delivers the entry for key now and after every change.
func (l *Ledger) WatchEntry(ctx context.Context, key string) (<-chan EntryUpdate, error) {
	if !keyenc.ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	events, err := l.st.Subscribe(ctx, l.path(key))
	if err != nil {
		return nil, err
	}
	out := make(chan EntryUpdate)
	go func() {
		defer close(out)
		for ev := range events {
			u := EntryUpdate{Err: ev.Err}
			if ev.Err == nil {
				u.Present = ev.Snapshot.Exists
				u.Entry = l.decode(ev.Snapshot)
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// BoardUpdate is one observation of the whole scoreboard.
type BoardUpdate struct {
	Entries []Entry
	Err     error
}

// WatchBoard delivers the sorted scoreboard now and after every change.
func (l *Ledger) WatchBoard(ctx context.Context) (<-chan BoardUpdate, error) {
	events, err := l.st.SubscribeTree(ctx, l.prefix)
	if err != nil {
		return nil, err
	}
	out := make(chan BoardUpdate)
	go func() {
		defer close(out)
		for ev := range events {
			u := BoardUpdate{Err: ev.Err}
			if ev.Err == nil {
				u.Entries = l.board(ev.Snapshots)
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
