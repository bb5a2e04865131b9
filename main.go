package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-buzz/auth"
	"github.com/danielhkuo/quickly-buzz/cliparse"
	"github.com/danielhkuo/quickly-buzz/db"
	"github.com/danielhkuo/quickly-buzz/middleware"
	"github.com/danielhkuo/quickly-buzz/router"
	"github.com/danielhkuo/quickly-buzz/timeouts"
)

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	if err := run(cfg); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg cliparse.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the shared store
	st, err := db.OpenStore(ctx, cfg.StoreType, cfg.StoreURL, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("Store ready", "type", cfg.StoreType, "namespace", cfg.Namespace, "second_slot", cfg.SecondSlot)

	// The moderator key is derived, so print it for whoever runs the quiz.
	slog.Info("Moderator key", "namespace", cfg.Namespace, "key", auth.GenerateModeratorKey(cfg.Namespace, cfg.ModeratorKeySalt))

	server := &http.Server{
		Handler:           middleware.CORS(router.NewRouter(st, cfg)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Wait for Ctrl-C or a failed listener
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("Server closed", "error", err)
	return err
}
