// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"sync"
)

// Hub fans change notifications out to subscriptions. Backends call Notify
// after each commit; every subscription re-reads its own value and delivers
// it when it differs from the last delivery. Wakeups coalesce, so a slow
// reader skips intermediate values but always ends on the latest one.
// Backends that poll skip them the same way, so callers that must notice a
// delete followed by a recreate stamp the value itself (see ledger.Entry).
type Hub struct {
	mu   sync.Mutex
	subs map[*watcher]struct{}
	done chan struct{}
	once sync.Once
}

type watcher struct {
	match func(path string) bool
	wake  chan struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[*watcher]struct{}),
		done: make(chan struct{}),
	}
}

// Notify wakes subscriptions interested in path.
func (h *Hub) Notify(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.subs {
		if w.match(path) {
			w.poke()
		}
	}
}

// NotifyAll wakes every subscription, e.g. after reconnecting or when the
// backend cannot tell which paths changed.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.subs {
		w.poke()
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends all subscriptions.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}

// Watch streams the value at path, reloading it with load on every wakeup.
func (h *Hub) Watch(ctx context.Context, path string, load func(context.Context) (Snapshot, error)) <-chan Event {
	match := func(p string) bool { return p == path }
	same := func(a, b Snapshot) bool { return a.same(b) }
	wrap := func(s Snapshot, err error) Event { return Event{Snapshot: s, Err: err} }
	return watch(ctx, h, match, load, same, wrap)
}

// WatchTree streams every value below prefix.
func (h *Hub) WatchTree(ctx context.Context, prefix string, load func(context.Context) ([]Snapshot, error)) <-chan TreeEvent {
	match := func(p string) bool { return Under(p, prefix) }
	same := func(a, b []Snapshot) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i].Path != b[i].Path || !a[i].same(b[i]) {
				return false
			}
		}
		return true
	}
	wrap := func(s []Snapshot, err error) TreeEvent { return TreeEvent{Snapshots: s, Err: err} }
	return watch(ctx, h, match, load, same, wrap)
}

func (w *watcher) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) add(w *watcher) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	h.subs[w] = struct{}{}
	return true
}

func (h *Hub) remove(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, w)
}

func watch[T, E any](
	ctx context.Context,
	h *Hub,
	match func(string) bool,
	load func(context.Context) (T, error),
	same func(a, b T) bool,
	wrap func(T, error) E,
) <-chan E {
	out := make(chan E, 1)
	w := &watcher{match: match, wake: make(chan struct{}, 1)}
	if !h.add(w) {
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer h.remove(w)

		send := func(e E) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			case <-h.done:
				return false
			}
		}

		var (
			last      T
			delivered bool
			failing   bool
		)
		for {
			v, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			switch {
			case err != nil:
				// Report an outage once; the next good load ends it.
				if !failing {
					var zero T
					if !send(wrap(zero, err)) {
						return
					}
					failing = true
				}
				if errors.Is(err, ErrPermissionDenied) {
					return
				}
			case !delivered || failing || !same(last, v):
				if !send(wrap(v, nil)) {
					return
				}
				last, delivered, failing = v, true, false
			}

			select {
			case <-w.wake:
			case <-ctx.Done():
				return
			case <-h.done:
				return
			}
		}
	}()
	return out
}
