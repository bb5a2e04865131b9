// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package memstore is an in-process store.Store. Transactions are optimistic:
// the update function runs outside the lock and is re-run when another
// commit landed in between, which makes it a faithful stand-in for a
// networked store in tests.
package memstore

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/quickly-buzz/store"
)

// Op names the kind of access checked by a Policy.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// Policy decides whether an operation on path is allowed. A non-nil return
// is reported to the caller as store.ErrPermissionDenied.
type Policy func(op Op, path string) error

// Option configures a Store.
type Option func(*Store)

// WithPolicy installs an access policy.
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock overrides the wall clock used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type node struct {
	value   []byte
	rev     uint64
	updated time.Time
}

// Store keeps every value in memory.
type Store struct {
	mu     sync.Mutex
	nodes  map[string]node
	clock  uint64
	online bool
	closed bool
	policy Policy
	now    func() time.Time
	hub    *store.Hub

	retries uint64
}

// New returns an empty, online store.
func New(opts ...Option) *Store {
	s := &Store{
		nodes:  make(map[string]node),
		online: true,
		now:    time.Now,
		hub:    store.NewHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errOffline = errors.New("memstore offline")

// SetOnline simulates losing or regaining connectivity. While offline every
// operation fails with store.ErrUnavailable and subscribers are told so;
// coming back online redelivers current values.
func (s *Store) SetOnline(online bool) {
	s.mu.Lock()
	changed := s.online != online
	s.online = online
	s.mu.Unlock()
	if changed {
		s.hub.NotifyAll()
	}
}

// Retries returns how many times update functions were re-run after losing
// a race.
func (s *Store) Retries() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// check must be called with s.mu held.
func (s *Store) check(op Op, name, path string) error {
	if s.closed {
		return store.Unavailable(name, path, errors.New("store closed"))
	}
	if !s.online {
		return store.Unavailable(name, path, errOffline)
	}
	if s.policy != nil {
		if err := s.policy(op, path); err != nil {
			return store.PermissionDenied(name, path, err)
		}
	}
	return nil
}

func (s *Store) snapshot(path string) store.Snapshot {
	n, ok := s.nodes[path]
	if !ok {
		return store.Snapshot{Path: path}
	}
	return store.Snapshot{
		Path:      path,
		Value:     slices.Clone(n.value),
		Exists:    true,
		Revision:  n.rev,
		UpdatedAt: n.updated,
	}
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, store.ContextError("get", path, err)
	}
	if !store.ValidPath(path) {
		return store.Snapshot{}, store.InvalidPath("get", path)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpRead, "get", path); err != nil {
		return store.Snapshot{}, err
	}
	return s.snapshot(path), nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.ContextError("list", prefix, err)
	}
	if !store.ValidPath(prefix) {
		return nil, store.InvalidPath("list", prefix)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpRead, "list", prefix); err != nil {
		return nil, err
	}
	var out []store.Snapshot
	for p := range s.nodes {
		if store.Under(p, prefix) {
			out = append(out, s.snapshot(p))
		}
	}
	slices.SortFunc(out, func(a, b store.Snapshot) int { return strings.Compare(a.Path, b.Path) })
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

		s.mu.Lock()
		if err := s.check(OpWrite, "transact", path); err != nil {
			s.mu.Unlock()
			return store.Result{}, err
		}
		cur := s.snapshot(path)
		seen := s.clock
		s.mu.Unlock()

		next, err := fn(cur, seen+1)
		if errors.Is(err, store.ErrAbort) {
			return store.Result{Snapshot: cur}, nil
		}
		if err != nil {
			return store.Result{}, err
		}

		s.mu.Lock()
		if err := s.check(OpWrite, "transact", path); err != nil {
			s.mu.Unlock()
			return store.Result{}, err
		}
		if s.clock != seen {
			s.retries++
			s.mu.Unlock()
			runtime.Gosched()
			continue
		}
		s.apply(path, next)
		committed := s.snapshot(path)
		s.mu.Unlock()

		s.hub.Notify(path)
		return store.Result{Committed: true, Snapshot: committed}, nil
	}
}

// apply must be called with s.mu held.
func (s *Store) apply(path string, value []byte) {
	s.clock++
	if value == nil {
		delete(s.nodes, path)
		return
	}
	s.nodes[path] = node{value: slices.Clone(value), rev: s.clock, updated: s.now()}
}

// Write implements store.Store.
func (s *Store) Write(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return store.ContextError("write", path, err)
	}
	if !store.ValidPath(path) {
		return store.InvalidPath("write", path)
	}
	if value == nil {
		return s.Delete(ctx, path)
	}
	s.mu.Lock()
	if err := s.check(OpWrite, "write", path); err != nil {
		s.mu.Unlock()
		return err
	}
	s.apply(path, value)
	s.mu.Unlock()

	s.hub.Notify(path)
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return store.ContextError("delete", path, err)
	}
	if !store.ValidPath(path) {
		return store.InvalidPath("delete", path)
	}
	s.mu.Lock()
	if err := s.check(OpWrite, "delete", path); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.nodes[path]; !ok {
		s.mu.Unlock()
		return nil
	}
	s.apply(path, nil)
	s.mu.Unlock()

	s.hub.Notify(path)
	return nil
}

// Subscribe implements store.Store.
func (s *Store) Subscribe(ctx context.Context, path string) (<-chan store.Event, error) {
	if !store.ValidPath(path) {
		return nil, store.InvalidPath("subscribe", path)
	}
	s.mu.Lock()
	err := s.checkPolicy(path)
	s.mu.Unlock()
	if err != nil {
		return nil, store.PermissionDenied("subscribe", path, err)
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
	s.mu.Lock()
	err := s.checkPolicy(prefix)
	s.mu.Unlock()
	if err != nil {
		return nil, store.PermissionDenied("subscribe", prefix, err)
	}
	return s.hub.WatchTree(ctx, prefix, func(ctx context.Context) ([]store.Snapshot, error) {
		return s.List(ctx, prefix)
	}), nil
}

func (s *Store) checkPolicy(path string) error {
	if s.policy == nil {
		return nil
	}
	return s.policy(OpRead, path)
}

// Close ends all subscriptions. Later operations fail as unavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}
