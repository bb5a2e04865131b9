// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package redisstore keeps store.Store values in Redis. Transactions use
// WATCH on the node and a shared clock key; commits are announced on a
// pub/sub channel.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/quickly-buzz/store"
)

const defaultPrefix = "qb"

// Options configures Open.
type Options struct {
	URL string
	// Prefix namespaces every key. Defaults to "qb".
	Prefix string
	// PollInterval bounds how stale a subscriber can be if a pub/sub
	// message is lost. Defaults to one second.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Store is a Redis-backed store.Store.
type Store struct {
	rdb    *redis.Client
	prefix string
	log    *slog.Logger
	hub    *store.Hub
	pubsub *redis.PubSub

	retries atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type updateError struct{ err error }

func (e *updateError) Error() string { return e.err.Error() }

// Open connects to Redis and starts listening for commits.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	s := &Store{
		rdb:    rdb,
		prefix: opts.Prefix,
		log:    opts.Logger,
		hub:    store.NewHub(),
		stop:   make(chan struct{}),
	}
	s.pubsub = rdb.Subscribe(ctx, s.channel())
	if _, err := s.pubsub.Receive(ctx); err != nil {
		_ = s.pubsub.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	s.wg.Add(2)
	go s.relay()
	go s.poll(opts.PollInterval)
	return s, nil
}

func (s *Store) nodeKey(path string) string { return s.prefix + ":n:" + path }
func (s *Store) clockKey() string           { return s.prefix + ":clock" }
func (s *Store) indexKey() string           { return s.prefix + ":index" }
func (s *Store) channel() string            { return s.prefix + ":changes" }

// Retries returns how many transaction attempts lost a WATCH race.
func (s *Store) Retries() uint64 {
	return s.retries.Load()
}

// Close stops background work and closes the client.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		_ = s.pubsub.Close()
		s.wg.Wait()
		s.hub.Close()
		err = s.rdb.Close()
	})
	return err
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Store) read(ctx context.Context, r hashReader, path string) (store.Snapshot, error) {
	fields, err := r.HGetAll(ctx, s.nodeKey(path)).Result()
	if err != nil {
		return store.Snapshot{}, err
	}
	return decodeNode(path, fields)
}

func decodeNode(path string, fields map[string]string) (store.Snapshot, error) {
	if len(fields) == 0 {
		return store.Snapshot{Path: path}, nil
	}
	rev, err := strconv.ParseUint(fields["r"], 10, 64)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("corrupt revision at %s: %w", path, err)
	}
	updated, _ := strconv.ParseInt(fields["u"], 10, 64)
	return store.Snapshot{
		Path:      path,
		Value:     []byte(fields["v"]),
		Exists:    true,
		Revision:  rev,
		UpdatedAt: time.UnixMilli(updated).UTC(),
	}, nil
}

func classify(op, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return store.ContextError(op, path, err)
	}
	msg := err.Error()
	for _, p := range []string{"NOPERM", "NOAUTH", "WRONGPASS"} {
		if strings.HasPrefix(msg, p) {
			return store.PermissionDenied(op, path, err)
		}
	}
	return store.Unavailable(op, path, err)
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if !store.ValidPath(path) {
		return store.Snapshot{}, store.InvalidPath("get", path)
	}
	snap, err := s.read(ctx, s.rdb, path)
	if err != nil {
		return store.Snapshot{}, classify("get", path, err)
	}
	return snap, nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Snapshot, error) {
	if !store.ValidPath(prefix) {
		return nil, store.InvalidPath("list", prefix)
	}
	members, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, classify("list", prefix, err)
	}
	var paths []string
	for _, m := range members {
		if store.Under(m, prefix) {
			paths = append(paths, m)
		}
	}
	slices.Sort(paths)

	cmds := make([]*redis.MapStringStringCmd, len(paths))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, p := range paths {
			cmds[i] = pipe.HGetAll(ctx, s.nodeKey(p))
		}
		return nil
	})
	if err != nil {
		return nil, classify("list", prefix, err)
	}

	out := make([]store.Snapshot, 0, len(paths))
	for i, p := range paths {
		snap, err := decodeNode(p, cmds[i].Val())
		if err != nil {
			return nil, classify("list", prefix, err)
		}
		if snap.Exists {
			out = append(out, snap)
		}
	}
	return out, nil
}

// Transact implements store.Store.
func (s *Store) Transact(ctx context.Context, path string, fn store.UpdateFunc) (store.Result, error) {
	if !store.ValidPath(path) {
		return store.Result{}, store.InvalidPath("transact", path)
	}
	for {
		if err := ctx.Err(); err != nil {
			return store.Result{}, store.ContextError("transact", path, err)
		}

		var res store.Result
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			seq, err := tx.Get(ctx, s.clockKey()).Uint64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			cur, err := s.read(ctx, tx, path)
			if err != nil {
				return err
			}

			rev := seq + 1
			next, err := fn(cur, rev)
			if errors.Is(err, store.ErrAbort) {
				res = store.Result{Snapshot: cur}
				return nil
			}
			if err != nil {
				return &updateError{err: err}
			}
			if next == nil && !cur.Exists {
				res = store.Result{Committed: true, Snapshot: cur}
				return nil
			}

			now := time.Now().UTC().UnixMilli()
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, s.clockKey(), rev, 0)
				if next == nil {
					pipe.Del(ctx, s.nodeKey(path))
					pipe.SRem(ctx, s.indexKey(), path)
				} else {
					pipe.HSet(ctx, s.nodeKey(path), "v", string(next), "r", rev, "u", now)
					pipe.SAdd(ctx, s.indexKey(), path)
				}
				pipe.Publish(ctx, s.channel(), path)
				return nil
			})
			if err != nil {
				return err
			}

			res = store.Result{Committed: true, Snapshot: store.Snapshot{Path: path}}
			if next != nil {
				res.Snapshot = store.Snapshot{
					Path:      path,
					Value:     append([]byte(nil), next...),
					Exists:    true,
					Revision:  rev,
					UpdatedAt: time.UnixMilli(now).UTC(),
				}
			}
			return nil
		}, s.clockKey(), s.nodeKey(path))

		if errors.Is(err, redis.TxFailedErr) {
			s.retries.Add(1)
			continue
		}
		var ue *updateError
		if errors.As(err, &ue) {
			return store.Result{}, ue.err
		}
		if err != nil {
			return store.Result{}, classify("transact", path, err)
		}
		if res.Committed {
			s.hub.Notify(path)
		}
		return res, nil
	}
}

// Write implements store.Store.
func (s *Store) Write(ctx context.Context, path string, value []byte) error {
	_, err := s.Transact(ctx, path, func(store.Snapshot, uint64) ([]byte, error) {
		return value, nil
	})
	return err
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.Transact(ctx, path, func(store.Snapshot, uint64) ([]byte, error) {
		return nil, nil
	})
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

// relay forwards commit announcements from other processes to the hub.
func (s *Store) relay() {
	defer s.wg.Done()
	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.stop:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.hub.Notify(msg.Payload)
		}
	}
}

// poll re-checks every subscription periodically; pub/sub delivery is
// at-most-once and reconnects drop messages.
func (s *Store) poll(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.hub.NotifyAll()
		}
	}
}
