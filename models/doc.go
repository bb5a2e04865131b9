// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and stream types for the API.

# Request Types

Types for parsing incoming JSON:

  - ClaimRequest: name
  - RegisterRequest: name
  - DeltaRequest: delta, name

# Response Types

Types for JSON responses:

  - ClaimResponse: outcome, round, warning
  - ScoreResponse: key, score
  - BulkResponse: affected, message
  - ErrorResponse: error, message

# Domain Types

  - Round: phase, gate, winner and runner-up claims, store revision
  - Claim: participant ID and the store revision it committed at
  - Entry: ledger entry (key, displayName, score)
  - Scoreboard: entries sorted by score, then name

# Stream Frames

Websocket streams send full values, never diffs:

  - /ws/round: Round
  - /ws/scores: Scoreboard
  - /ws/scores/{key}: EntryFrame
  - any stream: StreamError, then close

# Constants

Phases:

	PhaseIdle         = "IDLE"
	PhaseLive         = "LIVE"
	PhaseWinnerLocked = "WINNER_LOCKED"
	PhaseClosed       = "CLOSED"

Outcomes:

	OutcomeWon      = "won"
	OutcomeRunnerUp = "runner_up"
	OutcomeRejected = "rejected"
*/
package models
