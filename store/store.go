// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrAbort is returned by an UpdateFunc to end a transaction without writing.
var ErrAbort = errors.New("store: transaction aborted")

// Snapshot is the full value stored at a path at one revision.
// Values are JSON documents. An absent path has Exists false and Revision 0.
type Snapshot struct {
	Path      string
	Value     []byte
	Exists    bool
	Revision  uint64
	UpdatedAt time.Time
}

// Decode unmarshals the snapshot value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return errors.New("store: decode of absent value")
	}
	return json.Unmarshal(s.Value, v)
}

func (s Snapshot) same(o Snapshot) bool {
	return s.Exists == o.Exists && s.Revision == o.Revision
}

// UpdateFunc computes the next value for a path from its current value.
// rev is the revision the write will carry if it commits; a function may
// record it as a store-assigned timestamp. Returning ErrAbort leaves the path
// untouched and returning a nil value deletes it. The function may run more
// than once and must not have side effects.
type UpdateFunc func(cur Snapshot, rev uint64) ([]byte, error)

// Result reports how a transaction finished. Snapshot holds the committed
// value, or the last value seen when the update function aborted.
type Result struct {
	Committed bool
	Snapshot  Snapshot
}

// Event is one delivery on a path subscription. Exactly one of Snapshot or
// Err is meaningful.
type Event struct {
	Snapshot Snapshot
	Err      error
}

// TreeEvent is one delivery on a tree subscription: every value under the
// prefix, sorted by path.
type TreeEvent struct {
	Snapshots []Snapshot
	Err       error
}

// Store is a key-addressable replicated store with per-path linearizable
// transactions and push-based subscriptions.
type Store interface {
	// Get returns the current value at path.
	Get(ctx context.Context, path string) (Snapshot, error)

	// List returns every value stored below prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]Snapshot, error)

	// Transact runs fn against the current value and commits its result.
	// When a concurrent writer commits first, fn is re-run with the fresher
	// value. Store failures surface as errors, never as Committed false.
	Transact(ctx context.Context, path string, fn UpdateFunc) (Result, error)

	// Write unconditionally replaces the value at path.
	Write(ctx context.Context, path string, value []byte) error

	// Delete removes the value at path. Deleting an absent path is a no-op.
	Delete(ctx context.Context, path string) error

	// Subscribe delivers the current value at path and again after every
	// change. The channel closes when ctx ends or the store closes.
	Subscribe(ctx context.Context, path string) (<-chan Event, error)

	// SubscribeTree is Subscribe for every value below prefix.
	SubscribeTree(ctx context.Context, prefix string) (<-chan TreeEvent, error)

	Close() error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidPath reports whether path is a non-empty sequence of non-empty
// segments free of reserved characters.
func ValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || strings.ContainsAny(seg, ".#$[] \t\r\n") {
			return false
		}
	}
	return true
}

// Under reports whether path lies strictly below prefix.
func Under(path, prefix string) bool {
	return strings.HasPrefix(path, prefix+"/")
}

// Marshal encodes v for storage.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
