// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package participant is the client side of a round: it follows the round
// record, tracks connectivity, and claims on the user's behalf.
package participant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danielhkuo/quickly-buzz/identity"
	"github.com/danielhkuo/quickly-buzz/ledger"
	"github.com/danielhkuo/quickly-buzz/round"
	"github.com/danielhkuo/quickly-buzz/store"
)

var (
	// ErrNotBound is returned by Buzz before the client has a name.
	ErrNotBound = errors.New("participant: no name bound")
	// ErrStale is returned by Buzz while the round view may be out of date.
	ErrStale = errors.New("participant: round view is stale")
)

// View is the client's current picture of the round.
type View struct {
	State    round.State
	Revision uint64
	// Stale is true until the first snapshot arrives and after any
	// connectivity error, until the next snapshot.
	Stale   bool
	Bound   bool
	Binding identity.Binding
	Score   int
	// Buzzed is set when this client claimed against Revision. Any newer
	// round record clears it; the record itself then says whether this
	// client holds a slot.
	Buzzed bool
	// Revoked is set when a moderator deleted the bound entry. It clears on
	// the next Bind.
	Revoked bool
}

// CanBuzz reports whether a claim could succeed from this view.
func (v View) CanBuzz() bool {
	return v.Bound && !v.Stale && !v.Buzzed && v.State.GateOpen &&
		!v.State.Holds(v.Binding.Name)
}

// Client follows one namespace on behalf of one user.
type Client struct {
	arb    *round.Arbiter
	ctl    *round.Controller
	binder *identity.Binder
	log    *slog.Logger

	changes chan struct{}

	mu   sync.Mutex
	view View
}

// New builds a client. Run must be called to start following the round.
func New(st store.Store, namespace string, cfg round.Config, local identity.LocalStore, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	led := ledger.New(st, namespace, log)
	return &Client{
		arb:     round.NewArbiter(st, namespace, cfg, round.WithScorer(led), round.WithLogger(log)),
		ctl:     round.NewController(st, namespace, log),
		binder:  identity.NewBinder(led, local, log),
		log:     log,
		changes: make(chan struct{}, 1),
		view:    View{Stale: true},
	}
}

// Changes is signalled after every view change. Read View for the value.
func (c *Client) Changes() <-chan struct{} {
	return c.changes
}

// View returns a copy of the current view.
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// CanBuzz reports whether Buzz would send a claim.
func (c *Client) CanBuzz() bool {
	return c.View().CanBuzz()
}

// ClientID is the stable anonymous ID of this installation.
func (c *Client) ClientID() string {
	return c.binder.ClientID()
}

func (c *Client) update(fn func(v *View)) {
	c.mu.Lock()
	fn(&c.view)
	c.mu.Unlock()
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Bind registers name and binds this client to it.
func (c *Client) Bind(ctx context.Context, name string) (identity.Binding, error) {
	b, err := c.binder.Bind(ctx, name)
	if err != nil {
		return b, err
	}
	c.update(func(v *View) {
		v.Bound = true
		v.Binding = b
		v.Revoked = false
	})
	return b, nil
}

// Start restores the persisted identity. Run calls it; callers that only
// need the identity may call it directly.
func (c *Client) Start(ctx context.Context) error {
	if err := c.binder.Start(ctx); err != nil {
		return err
	}
	if b, ok := c.binder.Current(); ok {
		c.update(func(v *View) {
			v.Bound = true
			v.Binding = b
		})
	}
	return nil
}

// Run follows the round and the bound entry until ctx ends. It returns a
// PermissionDenied store error as soon as one is observed; other store
// errors only mark the view stale.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.binder.Close()

	updates, err := c.ctl.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch round: %w", err)
	}
	events := c.binder.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			if err := c.applyRound(u); err != nil {
				return err
			}
		case ev := <-events:
			if err := c.applyIdentity(ev); err != nil {
				return err
			}
		}
	}
}

func (c *Client) applyRound(u round.Update) error {
	if u.Err != nil {
		c.update(func(v *View) { v.Stale = true })
		if errors.Is(u.Err, store.ErrPermissionDenied) {
			return u.Err
		}
		c.log.Warn("round subscription error", "error", u.Err)
		return nil
	}
	c.update(func(v *View) {
		if u.Revision != v.Revision {
			v.Buzzed = false
		}
		v.State = u.State
		v.Revision = u.Revision
		v.Stale = false
	})
	return nil
}

func (c *Client) applyIdentity(ev identity.Event) error {
	switch ev.Kind {
	case identity.EventBound:
		c.update(func(v *View) {
			v.Bound = true
			v.Binding = ev.Binding
			v.Revoked = false
		})
	case identity.EventScore:
		c.update(func(v *View) { v.Score = ev.Entry.Score })
	case identity.EventRevoked:
		c.update(func(v *View) {
			v.Bound = false
			v.Binding = identity.Binding{}
			v.Score = 0
			v.Revoked = true
		})
	case identity.EventError:
		if errors.Is(ev.Err, store.ErrPermissionDenied) {
			return ev.Err
		}
		c.log.Warn("ledger subscription error", "error", ev.Err)
	}
	return nil
}

// Buzz claims for the bound name. A claim this client already made in the
// current round, or a closed gate in the current view, returns Rejected
// without contacting the store.
func (c *Client) Buzz(ctx context.Context) (round.Outcome, error) {
	v := c.View()
	if !v.Bound {
		return round.Rejected, ErrNotBound
	}
	if v.Stale {
		return round.Rejected, ErrStale
	}
	if !v.CanBuzz() {
		return round.Rejected, nil
	}

	rev := v.Revision
	outcome, err := c.arb.AttemptClaim(ctx, v.Binding.Name)
	if err != nil && !errors.Is(err, round.ErrScoring) {
		if errors.Is(err, store.ErrUnavailable) {
			c.update(func(v *View) { v.Stale = true })
		}
		return round.Rejected, err
	}
	c.update(func(v *View) {
		// A newer record already arrived and speaks for itself.
		if v.Revision == rev {
			v.Buzzed = true
		}
	})
	return outcome, err
}
