// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger keeps one score entry per participant.

# Storage

Entries live at "<namespace>/scores/<key>" where key is keyenc.Encode of the
display name:

	{"key": "Ann_Lee", "displayName": "Ann Lee", "score": 5}

# Updates

Every mutation is a single transaction on one entry, so concurrent deltas
never lose an increment:

	led := ledger.New(st, "quizBuzzer", logger)
	led.Register(ctx, "Ann Lee")           // idempotent, score 0
	led.ApplyDelta(ctx, "Ann_Lee", 10, "") // creates the entry if missing
	led.ResetScore(ctx, "Ann_Lee")         // ErrNotFound if missing
	led.DeleteEntry(ctx, "Ann_Lee")        // the owner's binding is revoked

ResetAll and DeleteAll touch each entry in its own transaction. A failure
part way through leaves earlier entries changed.
*/
package ledger
