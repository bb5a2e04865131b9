// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package timeouts defines the durations shared by the server, the
// participant client and the store backends.
package timeouts

import "time"

// Transaction caps one claim or ledger transaction, retries included.
const Transaction = 5 * time.Second

// StoreOpen caps connecting to a store backend at startup.
const StoreOpen = 10 * time.Second

// StorePoll is how often SQL backends check the commit clock for changes
// made by other processes.
const StorePoll = 250 * time.Millisecond

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// WSWrite caps a single websocket frame write.
const WSWrite = 10 * time.Second

// WSPing is the interval between websocket keepalive pings.
const WSPing = 30 * time.Second
