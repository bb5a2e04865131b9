// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns the server Config:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

The buzz client only needs the store half:

	sc, err := cliparse.LoadStoreConfig()

# Sources

Values are read in order, later sources winning:

 1. .env in the working directory (missing file is fine)
 2. environment variables
 3. CLI flags (server only)

# Variables and Flags

	PORT               -p                Server port (default 3318)
	STORE_TYPE         -t                memory, sqlite, postgres, redis
	STORE_URL          -d                Store URL or SQLite file
	NAMESPACE          -ns               Round namespace (default quizBuzzer)
	SECOND_SLOT        -second-slot      Accept a runner-up (default true)
	WINNER_BONUS       -winner-bonus     Points for the winner
	RUNNER_UP_BONUS    -runner-up-bonus  Points for the runner-up
	LOG_LEVEL          -log-level        debug, info, warn, error
	MODERATOR_KEY_SALT -moderator-salt   Secret for moderator keys

# Validation

ParseFlags returns an error when MODERATOR_KEY_SALT is missing, the port is
out of range, the store type is unknown, the namespace is not a valid
encoded key, or the log level does not parse.
*/
package cliparse
