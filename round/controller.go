// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package round

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/quickly-buzz/store"
	"github.com/danielhkuo/quickly-buzz/timeouts"
)

// Controller performs the moderator's round transitions.
type Controller struct {
	st   store.Store
	path string
	log  *slog.Logger
}

func NewController(st store.Store, namespace string, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{st: st, path: Path(namespace), log: log}
}

// Update is one observation of the round record.
type Update struct {
	State    State
	Revision uint64
	Err      error
}

// Open moves an IDLE round to LIVE. Opening a LIVE round changes nothing.
// Once a winner is recorded Open fails with ErrRoundLocked; use Restart.
func (c *Controller) Open(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Transaction)
	defer cancel()

	res, err := c.st.Transact(ctx, c.path, func(cur store.Snapshot, _ uint64) ([]byte, error) {
		s, err := Decode(cur)
		if err != nil {
			s = State{}
		}
		if s.Winner != nil {
			return nil, ErrRoundLocked
		}
		if s.GateOpen {
			return nil, store.ErrAbort
		}
		return store.Marshal(State{GateOpen: true})
	})
	if err != nil {
		return fmt.Errorf("open round: %w", err)
	}
	if res.Committed {
		c.log.Info("round opened", "revision", res.Snapshot.Revision)
	}
	return nil
}

// Close turns the gate off and keeps any recorded claims.
func (c *Controller) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Transaction)
	defer cancel()

	res, err := c.st.Transact(ctx, c.path, func(cur store.Snapshot, _ uint64) ([]byte, error) {
		s, err := Decode(cur)
		if err != nil || !s.GateOpen {
			return nil, store.ErrAbort
		}
		s.GateOpen = false
		return store.Marshal(s)
	})
	if err != nil {
		return fmt.Errorf("close round: %w", err)
	}
	if res.Committed {
		c.log.Info("round closed", "revision", res.Snapshot.Revision)
	}
	return nil
}

// Reset overwrites the record with IDLE regardless of its current value.
func (c *Controller) Reset(ctx context.Context) error {
	if err := c.write(ctx, State{}); err != nil {
		return fmt.Errorf("reset round: %w", err)
	}
	c.log.Info("round reset")
	return nil
}

// Restart overwrites the record with LIVE: a reset and reopen in one write.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.write(ctx, State{GateOpen: true}); err != nil {
		return fmt.Errorf("restart round: %w", err)
	}
	c.log.Info("round restarted")
	return nil
}

func (c *Controller) write(ctx context.Context, s State) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Transaction)
	defer cancel()

	b, err := store.Marshal(s)
	if err != nil {
		return err
	}
	return c.st.Write(ctx, c.path, b)
}

// Current reads the record once.
func (c *Controller) Current(ctx context.Context) (State, uint64, error) {
	snap, err := c.st.Get(ctx, c.path)
	if err != nil {
		return State{}, 0, err
	}
	return decodeOrIdle(c.log, snap), snap.Revision, nil
}

// Watch delivers the record now and after every change. Store errors are
// delivered as updates with Err set; a PermissionDenied error is the last
// update before the channel closes.
func (c *Controller) Watch(ctx context.Context) (<-chan Update, error) {
	events, err := c.st.Subscribe(ctx, c.path)
	if err != nil {
		return nil, err
	}
	out := make(chan Update)
	go func() {
		defer close(out)
		for ev := range events {
			u := Update{Err: ev.Err}
			if ev.Err == nil {
				u.State = decodeOrIdle(c.log, ev.Snapshot)
				u.Revision = ev.Snapshot.Revision
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
