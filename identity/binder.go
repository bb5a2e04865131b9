// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package identity binds a client to its ledger entry and notices when a
// moderator deletes that entry.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-buzz/ledger"
)

var (
	// ErrAlreadyBound is returned by Bind while a binding exists.
	ErrAlreadyBound = errors.New("identity: already bound")
	// ErrNotStarted is returned when Bind is called before Start.
	ErrNotStarted = errors.New("identity: binder not started")
)

// EventKind says what an Event reports.
type EventKind int

const (
	// EventBound follows a successful Bind or a restored binding.
	EventBound EventKind = iota
	// EventScore carries the current ledger entry.
	EventScore
	// EventRevoked means the entry was deleted and the binding cleared.
	EventRevoked
	// EventError carries a subscription error. The watch continues.
	EventError
)

// Event is one change to the binding or its entry.
type Event struct {
	Kind    EventKind
	Binding Binding
	Entry   ledger.Entry
	Err     error
}

// Binder owns the client's single binding.
type Binder struct {
	led   *ledger.Ledger
	local LocalStore
	log   *slog.Logger

	events chan Event

	mu       sync.Mutex
	started  bool
	ctx      context.Context
	clientID string
	binding  *Binding
	gen      int
	stop     context.CancelFunc
}

func NewBinder(led *ledger.Ledger, local LocalStore, log *slog.Logger) *Binder {
	if log == nil {
		log = slog.Default()
	}
	return &Binder{
		led:    led,
		local:  local,
		log:    log,
		events: make(chan Event, 32),
	}
}

// Events delivers binding changes. Events are dropped when the buffer is
// full.
func (b *Binder) Events() <-chan Event {
	return b.events
}

// Start loads local state, assigns a client ID on first run, and resumes a
// persisted binding. Watches stop when ctx ends.
func (b *Binder) Start(ctx context.Context) error {
	l, err := b.local.Load()
	if err != nil {
		return err
	}
	if l.ClientID == "" {
		l.ClientID = uuid.NewString()
		if err := b.local.Save(l); err != nil {
			return err
		}
		b.log.Info("client id assigned", "client_id", l.ClientID)
	}

	b.mu.Lock()
	b.started = true
	b.ctx = ctx
	b.clientID = l.ClientID
	b.mu.Unlock()

	if l.Binding == nil {
		return nil
	}
	if _, err := b.led.Register(ctx, l.Binding.Name); err != nil {
		return fmt.Errorf("restore binding: %w", err)
	}
	b.mu.Lock()
	bind := *l.Binding
	b.binding = &bind
	b.watchLocked(bind)
	b.mu.Unlock()
	b.emit(Event{Kind: EventBound, Binding: bind})
	return nil
}

// Bind registers name and binds this client to its entry.
func (b *Binder) Bind(ctx context.Context, name string) (Binding, error) {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return Binding{}, ErrNotStarted
	}
	if b.binding != nil {
		bound := *b.binding
		b.mu.Unlock()
		return bound, ErrAlreadyBound
	}
	clientID := b.clientID
	b.mu.Unlock()

	entry, err := b.led.Register(ctx, name)
	if err != nil {
		return Binding{}, err
	}
	bind := Binding{
		Name:     entry.DisplayName,
		Key:      entry.Key,
		ClientID: clientID,
		BoundAt:  time.Now().UTC(),
	}

	b.mu.Lock()
	if b.binding != nil {
		bound := *b.binding
		b.mu.Unlock()
		return bound, ErrAlreadyBound
	}
	if err := b.local.Save(Local{ClientID: clientID, Binding: &bind}); err != nil {
		b.mu.Unlock()
		return Binding{}, err
	}
	b.binding = &bind
	b.watchLocked(bind)
	b.mu.Unlock()

	b.log.Info("identity bound", "name", bind.Name, "key", bind.Key)
	b.emit(Event{Kind: EventBound, Binding: bind})
	return bind, nil
}

// Current returns the active binding.
func (b *Binder) Current() (Binding, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.binding == nil {
		return Binding{}, false
	}
	return *b.binding, true
}

// ClientID returns the stable anonymous client ID.
func (b *Binder) ClientID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clientID
}

// Close stops watching the entry. The persisted binding is kept.
func (b *Binder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
}

// watchLocked must be called with b.mu held.
func (b *Binder) watchLocked(bind Binding) {
	if b.stop != nil {
		b.stop()
	}
	b.gen++
	ctx, cancel := context.WithCancel(b.ctx)
	b.stop = cancel
	go b.watch(ctx, b.gen, bind)
}

func (b *Binder) watch(ctx context.Context, gen int, bind Binding) {
	updates, err := b.led.WatchEntry(ctx, bind.Key)
	if err != nil {
		b.emit(Event{Kind: EventError, Binding: bind, Err: err})
		return
	}

	// Absent before the entry was ever seen is the normal pre-registration
	// state. After that, absent or a different creation revision both mean a
	// moderator deleted it; the second covers a re-registration that landed
	// before this watch reloaded.
	var (
		seen    bool
		created uint64
	)
	for u := range updates {
		switch {
		case u.Err != nil:
			b.emit(Event{Kind: EventError, Binding: bind, Err: u.Err})
		case u.Present && seen && u.Entry.Created != created:
			b.revoke(gen, bind)
			return
		case u.Present:
			seen, created = true, u.Entry.Created
			b.emit(Event{Kind: EventScore, Binding: bind, Entry: u.Entry})
		case seen:
			b.revoke(gen, bind)
			return
		}
	}
}

func (b *Binder) revoke(gen int, bind Binding) {
	b.mu.Lock()
	if gen != b.gen || b.binding == nil {
		b.mu.Unlock()
		return
	}
	b.binding = nil
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	err := b.local.Save(Local{ClientID: b.clientID})
	b.mu.Unlock()

	if err != nil {
		b.log.Error("failed to clear revoked binding", "key", bind.Key, "error", err)
	}
	b.log.Info("identity revoked", "name", bind.Name, "key", bind.Key)
	b.emit(Event{Kind: EventRevoked, Binding: bind})
}

func (b *Binder) emit(ev Event) {
	select {
	case b.events <- ev:
	default:
		b.log.Debug("binder event dropped", "kind", int(ev.Kind))
	}
}
