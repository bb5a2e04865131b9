// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the quickly-buzz API.

# Handler Types

Each handler is a struct built from a store.Store and the server Config:

  - RoundHandler: round state, claims and moderator transitions
  - ScoreHandler: participant registration and scoreboard moderation
  - StreamHandler: websocket feeds of the round, board and single entries

	roundHandler := handlers.NewRoundHandler(st, cfg)

# Round Lifecycle

A round moves IDLE → LIVE → WINNER_LOCKED → CLOSED. Claims are decided by a
single transaction on the round record, so exactly one caller wins and, when
the second slot is enabled, exactly one more becomes runner-up.

	GET  /round         → Get
	POST /round/claim   → Claim (returns won, runner_up or rejected)
	POST /round/open    → Open
	POST /round/close   → Close
	POST /round/reset   → Reset
	POST /round/restart → Restart

Moderator operations require the X-Moderator-Key header.

# Scores

	POST   /participants        → Register
	GET    /scores              → List
	GET    /scores/{key}        → Get
	POST   /scores/{key}/delta  → Delta
	POST   /scores/{key}/reset  → Reset
	DELETE /scores/{key}        → Delete
	POST   /scores/reset-all    → ResetAll
	DELETE /scores              → DeleteAll

Keys must already be in encoded form; a key containing whitespace or
reserved characters is rejected with 400.

# Streams

	GET /ws/round        → Round
	GET /ws/scores       → Board
	GET /ws/scores/{key} → Entry

Every frame is the full current value. When the store becomes unreachable
the stream sends a {"error": ..., "stale": true} frame and keeps running; a
permission error closes the socket with a policy violation.

# Errors

Store errors map to status codes in one place (statusFor): unavailable is
503, permission denied is 403, a locked round is 409 and a missing entry is
404.
*/
package handlers
