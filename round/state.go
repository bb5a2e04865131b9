// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package round

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/quickly-buzz/store"
)

var (
	// ErrInvariant reports a round record that breaks the slot rules.
	ErrInvariant = errors.New("round: invariant violated")
	// ErrRoundLocked is returned by Open once a winner has been recorded.
	ErrRoundLocked = errors.New("round: winner already locked, restart required")
	// ErrScoring wraps a failure to apply a configured claim bonus.
	ErrScoring = errors.New("round: scoring failed")
	// ErrInvalidParticipant is returned for an empty participant ID.
	ErrInvalidParticipant = errors.New("round: participant id is required")
)

// Claim records who took a slot and the store revision it committed at.
type Claim struct {
	ParticipantID string `json:"participantId"`
	ClaimedAt     uint64 `json:"claimedAt"`
}

// State is the shared round record.
type State struct {
	GateOpen bool   `json:"gateOpen"`
	Winner   *Claim `json:"winner,omitempty"`
	RunnerUp *Claim `json:"runnerUp,omitempty"`
}

// Phase is the round's position in its state machine.
type Phase int

const (
	Idle Phase = iota
	Live
	WinnerLocked
	Closed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Live:
		return "LIVE"
	case WinnerLocked:
		return "WINNER_LOCKED"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Phase derives the phase from the record.
func (s State) Phase() Phase {
	switch {
	case s.RunnerUp != nil:
		return Closed
	case s.Winner != nil:
		return WinnerLocked
	case s.GateOpen:
		return Live
	default:
		return Idle
	}
}

// Check reports ErrInvariant when the record is not reachable through legal
// transitions.
func (s State) Check() error {
	if s.RunnerUp != nil && s.Winner == nil {
		return fmt.Errorf("%w: runner-up without winner", ErrInvariant)
	}
	if s.RunnerUp != nil && s.GateOpen {
		return fmt.Errorf("%w: gate open with both slots taken", ErrInvariant)
	}
	if s.Winner != nil && s.Winner.ParticipantID == "" {
		return fmt.Errorf("%w: winner without participant", ErrInvariant)
	}
	return nil
}

// Holds reports whether participantID occupies either slot.
func (s State) Holds(participantID string) bool {
	return (s.Winner != nil && s.Winner.ParticipantID == participantID) ||
		(s.RunnerUp != nil && s.RunnerUp.ParticipantID == participantID)
}

// Decode reads a round record. An absent record is IDLE. A malformed record
// returns the zero State and an error wrapping ErrInvariant.
func Decode(snap store.Snapshot) (State, error) {
	if !snap.Exists {
		return State{}, nil
	}
	var s State
	if err := json.Unmarshal(snap.Value, &s); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	if err := s.Check(); err != nil {
		return State{}, err
	}
	return s, nil
}

// decodeOrIdle is Decode with violations logged and read as IDLE.
func decodeOrIdle(log *slog.Logger, snap store.Snapshot) State {
	s, err := Decode(snap)
	if err != nil {
		log.Warn("round record rejected, treating as idle",
			"path", snap.Path,
			"revision", snap.Revision,
			"error", err,
		)
	}
	return s
}

// Path returns the location of the round record for namespace.
func Path(namespace string) string {
	return store.Join(namespace, "round")
}
