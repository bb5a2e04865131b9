// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command buzz is the participant client. It talks straight to the shared
// store, so it needs the same STORE_TYPE, STORE_URL and NAMESPACE as the
// server.
//
//	buzz join "Ann Lee"
//	buzz watch        # press Enter to buzz
//	buzz buzz
//	buzz whoami
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "buzz:", err)
		os.Exit(1)
	}
}
