// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the quickly-buzz API server.

quickly-buzz is a quiz buzzer. Participants race to claim a round; the first
committed claim wins, the second (optionally) becomes runner-up, and
everyone else is rejected. Rounds and scores live in a shared store so any
number of server or buzz client processes can arbitrate the same round.

# Starting the Server

	MODERATOR_KEY_SALT=secret go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -moderator-salt secret

The moderator key for the namespace is logged at startup.

# Configuration

Required settings:

  - MODERATOR_KEY_SALT (-moderator-salt): Secret for moderator key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - STORE_TYPE (-t): memory, sqlite, postgres or redis (default: sqlite)
  - STORE_URL (-d): Connection URL or SQLite file (default: quickly-buzz.db)
  - NAMESPACE (-ns): Round namespace (default: quizBuzzer)
  - SECOND_SLOT (-second-slot): Accept a runner-up (default: true)
  - WINNER_BONUS, RUNNER_UP_BONUS: Points awarded on a claim
  - LOG_LEVEL (-log-level): debug, info, warn or error

A .env file in the working directory is read first; the environment and
then flags override it.

# Architecture

  - round: claim arbitration and round transitions
  - ledger: per-participant scores
  - identity: local name binding for buzz clients
  - participant: the client-side view tying the three together
  - store: the shared transactional store and its backends
  - handlers, router, middleware, models: the HTTP and websocket API
  - cmd/buzz: the participant command line client

See package documentation for each component.
*/
package main
