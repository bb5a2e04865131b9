// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the quickly-buzz API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(st, cfg)

# Endpoints

Health:

	GET /health

Round (public):

	GET  /round       - Current round record and phase
	POST /round/claim - Attempt a claim {name}

Round (moderator, requires X-Moderator-Key):

	POST /round/open    - IDLE to LIVE (409 once a winner exists)
	POST /round/close   - Disable the gate, keep claims
	POST /round/reset   - Overwrite with IDLE
	POST /round/restart - Overwrite with LIVE

Ledger (public):

	POST /participants - Register {name}, idempotent
	GET  /scores       - Scoreboard, highest first
	GET  /scores/{key} - One entry

Ledger (moderator, requires X-Moderator-Key):

	POST   /scores/{key}/delta - Add {delta}, creates the entry if missing
	POST   /scores/{key}/reset - Score to zero
	DELETE /scores/{key}       - Remove entry (revokes the owner's binding)
	POST   /scores/reset-all   - Zero every entry
	DELETE /scores             - Remove every entry

Streams (websocket, full value per frame):

	GET /ws/round
	GET /ws/scores
	GET /ws/scores/{key}

# Handler Initialization

The router creates handler instances with dependency injection:

	roundHandler := handlers.NewRoundHandler(st, cfg)
	scoreHandler := handlers.NewScoreHandler(st, cfg)
	streamHandler := handlers.NewStreamHandler(st, cfg)

All handlers receive the shared store and configuration.
*/
package router
