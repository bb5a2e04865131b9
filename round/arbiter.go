// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package round

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielhkuo/quickly-buzz/keyenc"
	"github.com/danielhkuo/quickly-buzz/store"
	"github.com/danielhkuo/quickly-buzz/timeouts"
)

// Outcome is the result of a claim attempt.
type Outcome int

const (
	Rejected Outcome = iota
	Won
	RunnerUp
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return "won"
	case RunnerUp:
		return "runner_up"
	default:
		return "rejected"
	}
}

// MarshalText encodes the outcome name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Config selects the round variant and optional claim bonuses.
type Config struct {
	// SecondSlot keeps the gate open after the first claim so one more
	// participant can take the runner-up slot.
	SecondSlot    bool
	WinnerBonus   int
	RunnerUpBonus int
}

// DefaultConfig is the two-slot variant without scoring.
func DefaultConfig() Config {
	return Config{SecondSlot: true}
}

// Scorer applies score deltas. The ledger implements it.
type Scorer interface {
	ApplyDelta(ctx context.Context, key string, delta int, name string) (int, error)
}

// Arbiter runs claim transactions against the round record.
type Arbiter struct {
	st     store.Store
	path   string
	cfg    Config
	scorer Scorer
	log    *slog.Logger
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithScorer sets the ledger used for claim bonuses.
func WithScorer(s Scorer) Option {
	return func(a *Arbiter) { a.scorer = s }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Arbiter) { a.log = l }
}

func NewArbiter(st store.Store, namespace string, cfg Config, opts ...Option) *Arbiter {
	a := &Arbiter{
		st:   st,
		path: Path(namespace),
		cfg:  cfg,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the arbiter's configuration.
func (a *Arbiter) Config() Config {
	return a.cfg
}

// claimUpdate is the transaction body for one claim. It depends only on its
// arguments.
func claimUpdate(participantID string, secondSlot bool) store.UpdateFunc {
	return func(cur store.Snapshot, rev uint64) ([]byte, error) {
		s, err := Decode(cur)
		if err != nil || !s.GateOpen {
			return nil, store.ErrAbort
		}
		claim := &Claim{ParticipantID: participantID, ClaimedAt: rev}
		switch {
		case s.Winner == nil:
			s.Winner = claim
			if !secondSlot {
				s.GateOpen = false
			}
		case secondSlot && s.Winner.ParticipantID != participantID && s.RunnerUp == nil:
			s.RunnerUp = claim
			s.GateOpen = false
		default:
			return nil, store.ErrAbort
		}
		return store.Marshal(s)
	}
}

// AttemptClaim tries to take the winner or runner-up slot for participantID.
// The attempt is bounded by timeouts.Transaction. Store failures are
// returned as errors. When a bonus is configured and applying it fails, the
// outcome is still returned together with an error wrapping ErrScoring.
func (a *Arbiter) AttemptClaim(ctx context.Context, participantID string) (Outcome, error) {
	if strings.TrimSpace(participantID) == "" {
		return Rejected, ErrInvalidParticipant
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Transaction)
	defer cancel()

	res, err := a.st.Transact(ctx, a.path, claimUpdate(participantID, a.cfg.SecondSlot))
	if err != nil {
		return Rejected, fmt.Errorf("claim for %q: %w", participantID, err)
	}
	if !res.Committed {
		// Logs a corrupt record; the update function can only abort on it.
		decodeOrIdle(a.log, res.Snapshot)
		return Rejected, nil
	}

	outcome := Won
	if s := decodeOrIdle(a.log, res.Snapshot); s.RunnerUp != nil && s.RunnerUp.ParticipantID == participantID {
		outcome = RunnerUp
	}
	a.log.Info("claim accepted",
		"participant", participantID,
		"outcome", outcome.String(),
		"revision", res.Snapshot.Revision,
	)

	if err := a.award(ctx, participantID, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (a *Arbiter) award(ctx context.Context, participantID string, outcome Outcome) error {
	bonus := a.cfg.WinnerBonus
	if outcome == RunnerUp {
		bonus = a.cfg.RunnerUpBonus
	}
	if bonus == 0 || a.scorer == nil {
		return nil
	}
	if _, err := a.scorer.ApplyDelta(ctx, keyenc.Encode(participantID), bonus, participantID); err != nil {
		a.log.Error("failed to apply claim bonus",
			"participant", participantID,
			"bonus", bonus,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrScoring, err)
	}
	return nil
}
