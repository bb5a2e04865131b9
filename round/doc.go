// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package round holds the shared round record and arbitrates claims against it.

# Round Record

One record per namespace, stored at "<namespace>/round":

	{"gateOpen": true, "winner": {"participantId": "Ann", "claimedAt": 41}}

The phase is derived from the record (see State.Phase):

	IDLE           gate closed, no claims
	LIVE           gate open, no claims
	WINNER_LOCKED  winner set, runner-up free
	CLOSED         runner-up set, gate closed

A record whose runner-up is set without a winner, or whose gate is open with
both slots taken, is logged and read as IDLE.

# Claiming

	arb := round.NewArbiter(st, "quizBuzzer", round.DefaultConfig())
	outcome, err := arb.AttemptClaim(ctx, "Ann")

Each attempt is one store transaction. The outcome comes from the committed
record, so any number of concurrent attempts yields exactly one Won and, with
SecondSlot on, at most one RunnerUp. A store failure is an error, never
Rejected.

# Moderator Actions

	ctl := round.NewController(st, "quizBuzzer", logger)
	ctl.Open(ctx)     // IDLE -> LIVE, ErrRoundLocked once a winner exists
	ctl.Close(ctx)    // gate off, claims kept
	ctl.Reset(ctx)    // unconditional overwrite with IDLE
	ctl.Restart(ctx)  // unconditional overwrite with LIVE
*/
package round
